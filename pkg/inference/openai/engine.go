package openai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/conversation"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/inference/engine"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/security"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/tools"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

type Settings struct {
	APIKey      string  `mapstructure:"api-key" yaml:"api-key"`
	BaseURL     string  `mapstructure:"base-url" yaml:"base-url"`
	Model       string  `mapstructure:"model" yaml:"model"`
	Temperature float32 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max-tokens" yaml:"max-tokens"`
	// AllowLocal permits http and local network endpoints, for self hosted models.
	AllowLocal bool `mapstructure:"allow-local" yaml:"allow-local"`
}

func DefaultSettings() Settings {
	return Settings{
		BaseURL:     "https://api.openai.com/v1",
		Model:       go_openai.GPT4oMini,
		Temperature: 0.4,
	}
}

// Engine runs inference against an OpenAI compatible chat completions API.
type Engine struct {
	client   *go_openai.Client
	settings Settings
}

func MakeClient(s Settings) (*go_openai.Client, error) {
	if s.APIKey == "" {
		return nil, errors.New("no OpenAI API key configured")
	}
	config := go_openai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		policy := security.EndpointPolicy{AllowHTTP: s.AllowLocal, AllowLocal: s.AllowLocal}
		if err := security.CheckEndpoint(s.BaseURL, policy); err != nil {
			return nil, err
		}
		config.BaseURL = s.BaseURL
	}
	return go_openai.NewClientWithConfig(config), nil
}

func NewEngine(s Settings) (*Engine, error) {
	client, err := MakeClient(s)
	if err != nil {
		return nil, err
	}
	return &Engine{client: client, settings: s}, nil
}

func (e *Engine) RunInference(ctx context.Context, req *engine.Request) (*engine.Response, error) {
	cr := MakeCompletionRequest(e.settings, req)

	log.Debug().
		Str("model", cr.Model).
		Int("messages", len(cr.Messages)).
		Int("tools", len(cr.Tools)).
		Interface("tool_choice", cr.ToolChoice).
		Msg("OpenAI chat completion request")

	resp, err := e.client.CreateChatCompletion(ctx, cr)
	if err != nil {
		return nil, errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	msg := resp.Choices[0].Message
	ret := &engine.Response{Text: strings.TrimSpace(msg.Content)}
	for _, tc := range msg.ToolCalls {
		id := tc.ID
		if id == "" {
			id = uuid.NewString()
		}
		args := strings.TrimSpace(tc.Function.Arguments)
		if args == "" {
			args = "{}"
		}
		ret.ToolCalls = append(ret.ToolCalls, tools.Call{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(args),
		})
	}
	return ret, nil
}

// MakeCompletionRequest converts an engine request. Consecutive tool calls
// are folded into the preceding assistant message, tool results follow as
// tool messages.
func MakeCompletionRequest(s Settings, req *engine.Request) go_openai.ChatCompletionRequest {
	msgs := []go_openai.ChatCompletionMessage{}
	if req.Instructions != "" {
		msgs = append(msgs, go_openai.ChatCompletionMessage{
			Role:    go_openai.ChatMessageRoleSystem,
			Content: req.Instructions,
		})
	}

	for _, m := range req.Conversation {
		switch c := m.Content.(type) {
		case *conversation.ChatMessageContent:
			text := strings.TrimSpace(c.Text)
			if text == "" {
				continue
			}
			msgs = append(msgs, go_openai.ChatCompletionMessage{Role: string(c.Role), Content: text})

		case *conversation.ToolUseContent:
			call := go_openai.ToolCall{
				ID:   c.ToolID,
				Type: go_openai.ToolTypeFunction,
				Function: go_openai.FunctionCall{
					Name:      c.Name,
					Arguments: string(c.Input),
				},
			}
			if n := len(msgs); n > 0 && msgs[n-1].Role == go_openai.ChatMessageRoleAssistant {
				msgs[n-1].ToolCalls = append(msgs[n-1].ToolCalls, call)
				continue
			}
			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:      go_openai.ChatMessageRoleAssistant,
				ToolCalls: []go_openai.ToolCall{call},
			})

		case *conversation.ToolResultContent:
			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:       go_openai.ChatMessageRoleTool,
				Content:    c.Result,
				ToolCallID: c.ToolID,
			})
		}
	}

	ret := go_openai.ChatCompletionRequest{
		Model:       s.Model,
		Messages:    msgs,
		Temperature: s.Temperature,
	}
	if s.MaxTokens > 0 {
		ret.MaxTokens = s.MaxTokens
	}
	if len(req.Tools) > 0 {
		for _, def := range req.Tools {
			var params any = map[string]any{"type": "object", "properties": map[string]any{}}
			if def.Parameters != nil {
				params = def.Parameters
			}
			ret.Tools = append(ret.Tools, go_openai.Tool{
				Type: go_openai.ToolTypeFunction,
				Function: &go_openai.FunctionDefinition{
					Name:        def.Name,
					Description: def.Description,
					Parameters:  params,
				},
			})
		}
		choice := req.ToolChoice
		if choice == "" {
			choice = tools.ToolChoiceAuto
		}
		ret.ToolChoice = string(choice)
	}
	return ret
}

var _ engine.Engine = (*Engine)(nil)
