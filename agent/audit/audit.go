// Package audit keeps a correlation trail of side-effecting tool calls so
// duplicate tickets or appointments can be traced back to one conversation.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

type Entry struct {
	ID             string
	ConversationID string
	TurnID         string
	Persona        string
	Tool           string
	CallID         string
	ArgsDigest     string
	Status         contractx.ToolStatus
	FailureKind    contractx.FailureKind
	Elapsed        time.Duration
	RecordedAt     time.Time
}

// Ledger persists audit entries.
type Ledger interface {
	Append(ctx context.Context, e Entry) error
}

// Recorder turns tool calls into ledger entries. Read-only tools are skipped.
type Recorder struct {
	ledger  Ledger
	timeout time.Duration
	now     func() time.Time
}

func NewRecorder(ledger Ledger) *Recorder {
	if ledger == nil {
		ledger = LogLedger{}
	}
	return &Recorder{
		ledger:  ledger,
		timeout: 3 * time.Second,
		now:     time.Now,
	}
}

func (r *Recorder) RecordToolCall(
	ctx context.Context,
	call contractx.ToolCallContext,
	req contractx.ToolRequest,
	res contractx.ToolResult,
	sideEffect bool,
	elapsed time.Duration,
) {
	if !sideEffect {
		return
	}
	e := Entry{
		ID:             uuid.NewString(),
		ConversationID: call.SessionID,
		TurnID:         call.TurnID,
		Persona:        call.Persona,
		Tool:           req.Tool,
		CallID:         req.ID,
		ArgsDigest:     Digest(req.Args),
		Status:         res.Status,
		FailureKind:    res.Kind,
		Elapsed:        elapsed,
		RecordedAt:     r.now().UTC(),
	}

	// the turn may already be cancelled; the trail should still be written
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.ledger.Append(writeCtx, e); err != nil {
		log.Warn().Err(err).
			Str("conversation_id", e.ConversationID).
			Str("tool", e.Tool).
			Str("args_digest", e.ArgsDigest).
			Msg("audit append failed")
	}
}

// Digest is a stable fingerprint of tool arguments. encoding/json sorts map
// keys, so equal argument maps give equal digests.
func Digest(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:12])
}

// LogLedger writes entries to the structured log only.
type LogLedger struct{}

func (LogLedger) Append(_ context.Context, e Entry) error {
	log.Info().
		Str("audit_id", e.ID).
		Str("conversation_id", e.ConversationID).
		Str("turn_id", e.TurnID).
		Str("persona", e.Persona).
		Str("tool", e.Tool).
		Str("args_digest", e.ArgsDigest).
		Str("status", string(e.Status)).
		Str("failure_kind", string(e.FailureKind)).
		Dur("elapsed", e.Elapsed).
		Msg("side effect recorded")
	return nil
}
