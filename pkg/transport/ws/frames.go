package ws

import (
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/handoff"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/orchestrator"
)

const (
	FrameUserInput    = "user_input"
	FrameReply        = "reply"
	FrameError        = "error"
	FrameSessionEnded = "session_ended"
)

// InboundFrame is what a client sends on the session socket.
type InboundFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// OutboundFrame is what the server sends on the session socket.
type OutboundFrame struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Text      string          `json:"text,omitempty"`
	Role      string          `json:"role,omitempty"`
	Voice     string          `json:"voice,omitempty"`
	Handoff   *handoff.Record `json:"handoff,omitempty"`
	Completed bool            `json:"completed,omitempty"`
	Record    any             `json:"record,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func replyFrame(sessionID string, res *orchestrator.TurnResult) OutboundFrame {
	return OutboundFrame{
		Type:      FrameReply,
		SessionID: sessionID,
		Text:      res.Reply,
		Role:      res.Role,
		Voice:     res.Voice,
		Handoff:   res.Handoff,
		Completed: res.Completed,
		Record:    res.Record,
	}
}

func errorFrame(sessionID string, err error) OutboundFrame {
	return OutboundFrame{Type: FrameError, SessionID: sessionID, Error: err.Error()}
}
