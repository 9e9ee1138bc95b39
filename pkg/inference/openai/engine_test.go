package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/conversation"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/inference/engine"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/security"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/state"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/tools"
	"github.com/stretchr/testify/require"
)

type nameInput struct {
	Value string `json:"value"`
}

func nameTool() *tools.Definition {
	return tools.MustNewTool("set_name", "Set the name",
		func(ctx context.Context, s *state.Session, in nameInput) (*tools.Result, error) {
			return tools.NewResult("ok"), nil
		})
}

func sampleRequest(choice tools.ToolChoice) *engine.Request {
	return &engine.Request{
		Instructions: "be brief",
		Conversation: conversation.NewConversation(
			conversation.NewSystemMessage("Current session state."),
			conversation.NewUserMessage("I am Asha"),
			conversation.NewAssistantMessage("Let me note that."),
			conversation.NewToolUseMessage("call-1", "set_name", json.RawMessage(`{"value":"Asha"}`)),
			conversation.NewToolResultMessage("call-1", "set_name", "ok", false),
		),
		Tools:      []*tools.Definition{nameTool()},
		ToolChoice: choice,
	}
}

func TestMakeCompletionRequest_FoldsToolCalls(t *testing.T) {
	cr := MakeCompletionRequest(DefaultSettings(), sampleRequest(tools.ToolChoiceNone))

	require.Len(t, cr.Messages, 5)
	require.Equal(t, "system", cr.Messages[0].Role)
	require.Equal(t, "be brief", cr.Messages[0].Content)
	require.Equal(t, "assistant", cr.Messages[3].Role)
	require.Equal(t, "Let me note that.", cr.Messages[3].Content)
	require.Len(t, cr.Messages[3].ToolCalls, 1)
	require.Equal(t, "call-1", cr.Messages[3].ToolCalls[0].ID)
	require.Equal(t, "tool", cr.Messages[4].Role)
	require.Equal(t, "call-1", cr.Messages[4].ToolCallID)

	require.Len(t, cr.Tools, 1)
	require.Equal(t, "none", cr.ToolChoice)

	noTools := MakeCompletionRequest(DefaultSettings(), &engine.Request{})
	require.Nil(t, noTools.ToolChoice)
	require.Empty(t, noTools.Tools)
}

func TestEngine_RunInference(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{"id": "call-9", "type": "function", "function": {"name": "set_name", "arguments": "{\"value\":\"Ravi\"}"}}]
				}
			}]
		}`)
	}))
	defer srv.Close()

	e, err := NewEngine(Settings{APIKey: "test", BaseURL: srv.URL, Model: "gpt-test", AllowLocal: true})
	require.NoError(t, err)

	resp, err := e.RunInference(context.Background(), sampleRequest(tools.ToolChoiceAuto))
	require.NoError(t, err)
	require.Empty(t, resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	require.Equal(t, "call-9", resp.ToolCalls[0].ID)
	require.JSONEq(t, `{"value":"Ravi"}`, string(resp.ToolCalls[0].Arguments))

	require.Equal(t, "gpt-test", body["model"])
	require.Equal(t, "auto", body["tool_choice"])
}

func TestNewEngine_RequiresKey(t *testing.T) {
	_, err := NewEngine(Settings{})
	require.Error(t, err)
}

func TestNewEngine_RejectsLocalEndpointUnlessAllowed(t *testing.T) {
	_, err := NewEngine(Settings{APIKey: "test", BaseURL: "http://127.0.0.1:11434/v1"})
	require.True(t, errors.Is(err, security.ErrUnsafeEndpoint))

	_, err = NewEngine(Settings{APIKey: "test", BaseURL: "http://127.0.0.1:11434/v1", AllowLocal: true})
	require.NoError(t, err)
}
