package conversation

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter counts model tokens of a text.
type TokenCounter interface {
	Count(text string) int
}

type TokenCounterFunc func(text string) int

func (f TokenCounterFunc) Count(text string) int {
	return f(text)
}

type tiktokenCounter struct {
	codec tokenizer.Codec
}

func (t *tiktokenCounter) Count(text string) int {
	ids, _, err := t.codec.Encode(text)
	if err != nil {
		// fall back to a rough estimate
		return len(text)/4 + 1
	}
	return len(ids)
}

var (
	defaultCounterOnce sync.Once
	defaultCounter     TokenCounter
	defaultCounterErr  error
)

// NewTokenCounter returns a cl100k_base backed counter.
func NewTokenCounter() (TokenCounter, error) {
	defaultCounterOnce.Do(func() {
		codec, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			defaultCounterErr = errors.Wrap(err, "could not load cl100k_base codec")
			return
		}
		defaultCounter = &tiktokenCounter{codec: codec}
	})
	return defaultCounter, defaultCounterErr
}

type TruncateOptions struct {
	// MaxMessages limits the number of non-system messages. 0 disables the limit.
	MaxMessages int
	// MaxTokens limits the token count of non-system messages. 0 disables the limit.
	MaxTokens int
	Counter   TokenCounter
}

func (o TruncateOptions) enabled() bool {
	return o.MaxMessages > 0 || (o.MaxTokens > 0 && o.Counter != nil)
}

// Truncate returns a view of c that fits the budget. System messages are always
// kept. Other messages are kept newest first until a budget runs out, and a
// tool call is never kept without its result or the other way around.
// The returned slice shares messages with c; c itself is left untouched.
func Truncate(c Conversation, opts TruncateOptions) Conversation {
	if !opts.enabled() {
		return c
	}

	keep := make([]bool, len(c))
	count, tokens := 0, 0
	full := false
	for i := len(c) - 1; i >= 0; i-- {
		m := c[i]
		if m.IsSystem() {
			keep[i] = true
			continue
		}
		if full {
			continue
		}
		n := 0
		if opts.Counter != nil && opts.MaxTokens > 0 {
			n = opts.Counter.Count(m.Text())
		}
		if (opts.MaxMessages > 0 && count+1 > opts.MaxMessages) ||
			(opts.MaxTokens > 0 && opts.Counter != nil && tokens+n > opts.MaxTokens) {
			full = true
			continue
		}
		count++
		tokens += n
		keep[i] = true
	}

	calls := map[string]bool{}
	results := map[string]bool{}
	for i, m := range c {
		if !keep[i] {
			continue
		}
		switch ct := m.Content.(type) {
		case *ToolUseContent:
			calls[ct.ToolID] = true
		case *ToolResultContent:
			results[ct.ToolID] = true
		}
	}

	ret := make(Conversation, 0, len(c))
	for i, m := range c {
		if !keep[i] {
			continue
		}
		switch ct := m.Content.(type) {
		case *ToolUseContent:
			if !results[ct.ToolID] {
				continue
			}
		case *ToolResultContent:
			if !calls[ct.ToolID] {
				continue
			}
		}
		ret = append(ret, m)
	}
	return ret
}
