package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SessionState is the persisted record of one conversation.
// - Routing: ActivePersona + TopicResolved drive sticky classification
// - Carry-forward: Customer is monotonic, see CustomerFields.Merge
type SessionState struct {
	SessionID string `json:"session_id"`
	Channel   string `json:"channel"`

	ActivePersona string `json:"active_persona,omitempty"`
	TopicResolved bool   `json:"topic_resolved,omitempty"`

	Customer    CustomerFields  `json:"customer"`
	Appointment AppointmentFlow `json:"appointment"`
	Turns       []Turn          `json:"turns,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MaxStoredTurns bounds the persisted transcript; older turns are dropped.
const MaxStoredTurns = 200

type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

type Turn struct {
	Speaker Speaker          `json:"speaker"`
	Persona string           `json:"persona,omitempty"`
	Content string           `json:"content"`
	Tools   []ToolInvocation `json:"tools,omitempty"`
	At      time.Time        `json:"at"`
}

// ToolInvocation pairs a model tool call with the envelope it resolved to.
type ToolInvocation struct {
	CallID string         `json:"call_id,omitempty"`
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args,omitempty"`
	Status string         `json:"status"`
	Output string         `json:"output"`
}

var (
	ErrTurnEmpty      = errors.New("turn content is empty")
	ErrUnknownSpeaker = errors.New("unknown speaker")
)

func NewSessionState(sessionID, channel string, now time.Time) *SessionState {
	return &SessionState{
		SessionID: sessionID,
		Channel:   channel,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

func (s *SessionState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

func (s *SessionState) AppendTurn(t Turn) error {
	if s == nil {
		return ErrNilSessionState
	}
	switch t.Speaker {
	case SpeakerUser, SpeakerAssistant:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSpeaker, t.Speaker)
	}
	if strings.TrimSpace(t.Content) == "" && len(t.Tools) == 0 {
		return ErrTurnEmpty
	}
	t.At = t.At.UTC()
	s.Turns = append(s.Turns, t)
	if over := len(s.Turns) - MaxStoredTurns; over > 0 {
		s.Turns = append([]Turn(nil), s.Turns[over:]...)
	}
	return nil
}

// RecentTurns returns at most n trailing turns. n <= 0 returns all of them.
func (s *SessionState) RecentTurns(n int) []Turn {
	if s == nil || len(s.Turns) == 0 {
		return nil
	}
	if n <= 0 || n >= len(s.Turns) {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}

// SwitchPersona records the active persona. A change of persona opens a new topic.
func (s *SessionState) SwitchPersona(name string) {
	if s.ActivePersona != name {
		s.TopicResolved = false
	}
	s.ActivePersona = name
}

// Transcript flattens recent turns into "speaker: text" lines.
func (s *SessionState) Transcript(n int) string {
	turns := s.RecentTurns(n)
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range turns {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		b.WriteString(string(t.Speaker))
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(t.Content))
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

func (s *SessionState) Validate() error {
	if s == nil {
		return ErrNilSessionState
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	for i, t := range s.Turns {
		if t.Speaker != SpeakerUser && t.Speaker != SpeakerAssistant {
			return fmt.Errorf("%w: turn %d speaker=%q", ErrUnknownSpeaker, i, t.Speaker)
		}
	}
	if !s.Appointment.Stage.valid() {
		return fmt.Errorf("invalid appointment stage %q", s.Appointment.Stage)
	}
	return nil
}
