package orchestratornode

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/agents/specialist"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/router"
	statex "github.com/tanpawarit/Chative-Dealership-Assistant/agent/state"
)

const MaxMessageRunes = 4000

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = errors.New("session id is empty")
	ErrMessageTooLong = errors.New("message is too long")
)

type GraphInput struct {
	Message contractx.InboundMessage
	TurnID  string
}

type GraphOutput struct {
	SessionID string
	TurnID    string
	Persona   string
	Reply     string
	Outcome   specialist.Outcome
	Delegated bool
}

type GraphState struct {
	Message contractx.InboundMessage
	TurnID  string
	Now     time.Time

	Session  *statex.SessionState
	Decision router.Decision

	// Runs holds the persona results of this turn in order: the routed
	// persona first, then the delegate when a transfer happened.
	Runs []specialist.Result
}

// Last returns the result that produced the reply.
func (s *GraphState) Last() (specialist.Result, bool) {
	if s == nil || len(s.Runs) == 0 {
		return specialist.Result{}, false
	}
	return s.Runs[len(s.Runs)-1], true
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	msg := in.Message
	msg.SessionID = strings.TrimSpace(msg.SessionID)
	if msg.SessionID == "" {
		return nil, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidSession)
	}
	msg.Text = strings.TrimSpace(msg.Text)
	if msg.Text == "" {
		return nil, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidMessage)
	}
	if utf8.RuneCountInString(msg.Text) > MaxMessageRunes {
		return nil, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrMessageTooLong)
	}
	if msg.Channel == "" {
		msg.Channel = contractx.ChannelWeb
	}

	now := nowFn().UTC()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}

	return &GraphState{
		Message: msg,
		TurnID:  in.TurnID,
		Now:     now,
	}, nil
}
