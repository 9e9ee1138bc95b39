package conversation

import (
	"strings"

	"github.com/huandu/go-clone"
)

// Conversation is an ordered, append-only history. Entries keep their ID when
// they are copied between roles, which is what Merge deduplicates on.
type Conversation []*Message

func NewConversation(msgs ...*Message) Conversation {
	return append(Conversation{}, msgs...)
}

// Append adds messages at the end of the conversation.
func (c *Conversation) Append(msgs ...*Message) {
	*c = append(*c, msgs...)
}

func (c Conversation) IDs() []string {
	ret := make([]string, 0, len(c))
	for _, m := range c {
		ret = append(ret, m.ID)
	}
	return ret
}

func (c Conversation) Contains(id string) bool {
	for _, m := range c {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Last returns the last message or nil.
func (c Conversation) Last() *Message {
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1]
}

func (c Conversation) String() string {
	lines := make([]string, 0, len(c))
	for _, m := range c {
		lines = append(lines, m.Content.String())
	}
	return strings.Join(lines, "\n")
}

type CopyOptions struct {
	// ExcludeToolCalls drops tool calls and their results.
	ExcludeToolCalls bool
	// ExcludeSystemInstructions drops system messages.
	ExcludeSystemInstructions bool
}

// Copy returns a deep copy of c, filtered by opts. The source is not modified
// and shares no memory with the result.
func Copy(c Conversation, opts CopyOptions) Conversation {
	ret := make(Conversation, 0, len(c))
	for _, m := range c {
		if m == nil {
			continue
		}
		if opts.ExcludeToolCalls && m.IsToolTraffic() {
			continue
		}
		if opts.ExcludeSystemInstructions && m.IsSystem() {
			continue
		}
		ret = append(ret, clone.Clone(m).(*Message))
	}
	return ret
}

// Merge appends to target every message of source whose ID is not yet in
// target, in source order. Existing entries are never reordered or replaced.
// Messages with equal content but different IDs are kept.
func Merge(target, source Conversation) Conversation {
	seen := make(map[string]struct{}, len(target)+len(source))
	for _, m := range target {
		seen[m.ID] = struct{}{}
	}
	ret := append(Conversation{}, target...)
	for _, m := range source {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		ret = append(ret, m)
	}
	return ret
}
