package conversation

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func sampleConversation() Conversation {
	return NewConversation(
		NewSystemMessage("you are R1"),
		NewUserMessage("hello"),
		NewToolUseMessage("call-1", "set_name", json.RawMessage(`{"value":"Asha"}`)),
		NewToolResultMessage("call-1", "set_name", "ok", false),
		NewAssistantMessage("nice to meet you"),
	)
}

func TestCopy_FiltersAndKeepsIdentity(t *testing.T) {
	c := sampleConversation()

	all := Copy(c, CopyOptions{})
	require.Equal(t, c.IDs(), all.IDs())

	filtered := Copy(c, CopyOptions{ExcludeToolCalls: true, ExcludeSystemInstructions: true})
	require.Equal(t, []string{c[1].ID, c[4].ID}, filtered.IDs())
}

func TestCopy_IsDeep(t *testing.T) {
	c := sampleConversation()
	cp := Copy(c, CopyOptions{})

	cp[1].Content.(*ChatMessageContent).Text = "changed"
	require.Equal(t, "hello", c[1].Text())
	require.NotSame(t, c[1], cp[1])
}

func TestMerge_DedupesByIdentityOnly(t *testing.T) {
	shared := NewUserMessage("hi")
	target := NewConversation(shared, NewAssistantMessage("a"))
	twin := NewUserMessage("hi")
	source := NewConversation(shared, twin, NewAssistantMessage("b"))

	merged := Merge(target, source)
	require.Equal(t, []string{shared.ID, target[1].ID, twin.ID, source[2].ID}, merged.IDs())
	// inputs untouched
	require.Len(t, target, 2)
	require.Len(t, source, 3)
}

func TestMerge_PropertyNoDuplicatesOrderPreserved(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pool := make([]*Message, rapid.IntRange(1, 20).Draw(t, "pool"))
		for i := range pool {
			pool[i] = NewUserMessage(fmt.Sprintf("m%d", i))
		}
		pick := func(label string) Conversation {
			idx := rapid.SliceOfDistinct(rapid.IntRange(0, len(pool)-1), rapid.ID[int]).Draw(t, label)
			c := Conversation{}
			for _, i := range idx {
				c = append(c, pool[i])
			}
			return c
		}
		target, source := pick("target"), pick("source")

		merged := Merge(target, source)

		seen := map[string]int{}
		for i, m := range merged {
			_, dup := seen[m.ID]
			if dup {
				t.Fatalf("duplicate id %s", m.ID)
			}
			seen[m.ID] = i
		}
		for i, m := range target {
			if merged[i].ID != m.ID {
				t.Fatalf("target prefix not preserved at %d", i)
			}
		}
		last := -1
		for _, m := range source {
			pos, ok := seen[m.ID]
			if !ok {
				t.Fatalf("source message %s missing", m.ID)
			}
			if !target.Contains(m.ID) {
				if pos < last {
					t.Fatalf("source order not preserved")
				}
				last = pos
			}
		}
	})
}

func TestMessage_JSONRoundTrip(t *testing.T) {
	for _, m := range sampleConversation() {
		b, err := json.Marshal(m)
		require.NoError(t, err)
		var out Message
		require.NoError(t, json.Unmarshal(b, &out))
		require.Equal(t, m.ID, out.ID)
		require.Equal(t, m.Content, out.Content)
	}
}

func TestTruncate_KeepsSystemAndToolPairs(t *testing.T) {
	c := sampleConversation()

	// newest two non-system messages are the tool result and the reply, the
	// result loses its call and is dropped with it
	out := Truncate(c, TruncateOptions{MaxMessages: 2})
	require.Equal(t, []string{c[0].ID, c[4].ID}, out.IDs())

	out = Truncate(c, TruncateOptions{MaxMessages: 3})
	require.Equal(t, []string{c[0].ID, c[2].ID, c[3].ID, c[4].ID}, out.IDs())

	require.Equal(t, c.IDs(), Truncate(c, TruncateOptions{}).IDs())
}

func TestTruncate_TokenBudget(t *testing.T) {
	words := TokenCounterFunc(func(text string) int { return len(text) })
	c := NewConversation(
		NewUserMessage("aaaaaaaaaa"),
		NewAssistantMessage("bbbbb"),
		NewUserMessage("ccccc"),
	)
	out := Truncate(c, TruncateOptions{MaxTokens: 10, Counter: words})
	require.Equal(t, []string{c[1].ID, c[2].ID}, out.IDs())
}

func TestTokenCounter_Cl100k(t *testing.T) {
	counter, err := NewTokenCounter()
	require.NoError(t, err)
	require.Greater(t, counter.Count("the farmer planted wheat"), 0)
}
