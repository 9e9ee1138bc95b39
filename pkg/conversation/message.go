package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ContentType string

const (
	ContentTypeChatMessage ContentType = "chat-message"
	ContentTypeToolUse     ContentType = "tool-use"
	ContentTypeToolResult  ContentType = "tool-result"
)

// MessageContent is implemented by the payload types a Message can carry.
type MessageContent interface {
	ContentType() ContentType
	String() string
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
	RoleTool      Role = "tool"
)

type ChatMessageContent struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

func (c *ChatMessageContent) ContentType() ContentType {
	return ContentTypeChatMessage
}

func (c *ChatMessageContent) String() string {
	return fmt.Sprintf("[%s]: %s", c.Role, strings.TrimRight(c.Text, "\n"))
}

var _ MessageContent = (*ChatMessageContent)(nil)

// ToolUseContent is a tool call requested by the model.
type ToolUseContent struct {
	ToolID string          `json:"toolID"`
	Name   string          `json:"name"`
	Input  json.RawMessage `json:"input"`
}

func (t *ToolUseContent) ContentType() ContentType {
	return ContentTypeToolUse
}

func (t *ToolUseContent) String() string {
	return fmt.Sprintf("ToolUseContent{ToolID: %s, Name: %s, Input: %s}", t.ToolID, t.Name, t.Input)
}

var _ MessageContent = (*ToolUseContent)(nil)

// ToolResultContent answers the ToolUseContent with the same ToolID.
type ToolResultContent struct {
	ToolID  string `json:"toolID"`
	Name    string `json:"name"`
	Result  string `json:"result"`
	IsError bool   `json:"isError,omitempty"`
}

func (t *ToolResultContent) ContentType() ContentType {
	return ContentTypeToolResult
}

func (t *ToolResultContent) String() string {
	return fmt.Sprintf("ToolResultContent{ToolID: %s, Result: %s}", t.ToolID, t.Result)
}

var _ MessageContent = (*ToolResultContent)(nil)

// Message is one entry of a conversation. ID is the identity used when
// merging histories: two messages with the same ID are the same message.
type Message struct {
	ID      string         `json:"id"`
	Time    time.Time      `json:"time"`
	Agent   string         `json:"agent,omitempty"`
	Content MessageContent `json:"content"`
}

type MessageOption func(*Message)

func WithAgent(name string) MessageOption {
	return func(m *Message) {
		m.Agent = name
	}
}

func WithTime(t time.Time) MessageOption {
	return func(m *Message) {
		m.Time = t
	}
}

func NewMessage(content MessageContent, options ...MessageOption) *Message {
	ret := &Message{
		ID:      uuid.NewString(),
		Time:    time.Now(),
		Content: content,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func NewChatMessage(role Role, text string, options ...MessageOption) *Message {
	return NewMessage(&ChatMessageContent{Role: role, Text: text}, options...)
}

func NewSystemMessage(text string, options ...MessageOption) *Message {
	return NewChatMessage(RoleSystem, text, options...)
}

func NewUserMessage(text string, options ...MessageOption) *Message {
	return NewChatMessage(RoleUser, text, options...)
}

func NewAssistantMessage(text string, options ...MessageOption) *Message {
	return NewChatMessage(RoleAssistant, text, options...)
}

func NewToolUseMessage(toolID, name string, input json.RawMessage, options ...MessageOption) *Message {
	return NewMessage(&ToolUseContent{ToolID: toolID, Name: name, Input: input}, options...)
}

func NewToolResultMessage(toolID, name, result string, isError bool, options ...MessageOption) *Message {
	return NewMessage(&ToolResultContent{ToolID: toolID, Name: name, Result: result, IsError: isError}, options...)
}

// IsSystem reports whether the message is a system instruction.
func (m *Message) IsSystem() bool {
	c, ok := m.Content.(*ChatMessageContent)
	return ok && c.Role == RoleSystem
}

// IsToolTraffic reports whether the message is a tool call or a tool result.
func (m *Message) IsToolTraffic() bool {
	switch m.Content.(type) {
	case *ToolUseContent, *ToolResultContent:
		return true
	}
	return false
}

// Text returns the textual payload of chat messages and tool results.
func (m *Message) Text() string {
	switch c := m.Content.(type) {
	case *ChatMessageContent:
		return c.Text
	case *ToolResultContent:
		return c.Result
	case *ToolUseContent:
		return string(c.Input)
	}
	return ""
}

type messageJSON struct {
	ID          string          `json:"id"`
	Time        time.Time       `json:"time"`
	Agent       string          `json:"agent,omitempty"`
	ContentType ContentType     `json:"contentType"`
	Content     json.RawMessage `json:"content"`
}

func (m *Message) MarshalJSON() ([]byte, error) {
	content, err := json.Marshal(m.Content)
	if err != nil {
		return nil, err
	}
	var ct ContentType
	if m.Content != nil {
		ct = m.Content.ContentType()
	}
	return json.Marshal(messageJSON{
		ID:          m.ID,
		Time:        m.Time,
		Agent:       m.Agent,
		ContentType: ct,
		Content:     content,
	})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var mj messageJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return err
	}
	m.ID, m.Time, m.Agent = mj.ID, mj.Time, mj.Agent

	switch mj.ContentType {
	case ContentTypeChatMessage:
		c := &ChatMessageContent{}
		if err := json.Unmarshal(mj.Content, c); err != nil {
			return err
		}
		m.Content = c
	case ContentTypeToolUse:
		c := &ToolUseContent{}
		if err := json.Unmarshal(mj.Content, c); err != nil {
			return err
		}
		m.Content = c
	case ContentTypeToolResult:
		c := &ToolResultContent{}
		if err := json.Unmarshal(mj.Content, c); err != nil {
			return err
		}
		m.Content = c
	default:
		return fmt.Errorf("unknown content type: %s", mj.ContentType)
	}
	return nil
}
