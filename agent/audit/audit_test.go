package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

type memoryLedger struct {
	entries []Entry
	err     error
}

func (m *memoryLedger) Append(ctx context.Context, e Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func TestRecorderSkipsReadOnlyTools(t *testing.T) {
	t.Parallel()

	ledger := &memoryLedger{}
	rec := NewRecorder(ledger)

	rec.RecordToolCall(context.Background(),
		contractx.ToolCallContext{SessionID: "conv-1"},
		contractx.ToolRequest{Tool: "search_products", Args: map[string]any{"query": "accord"}},
		contractx.Success("search_products", "Found 1 products:", nil),
		false, time.Millisecond)

	assert.Empty(t, ledger.entries)
}

func TestRecorderWritesSideEffects(t *testing.T) {
	t.Parallel()

	ledger := &memoryLedger{}
	rec := NewRecorder(ledger)
	rec.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }

	rec.RecordToolCall(context.Background(),
		contractx.ToolCallContext{SessionID: "conv-1", TurnID: "turn-1", Persona: "appointment_support_agent"},
		contractx.ToolRequest{ID: "call-1", Tool: "create_ticket", Args: map[string]any{"title": "Trade-in"}},
		contractx.Failure("create_ticket", contractx.FailureTransport, "try later", errors.New("502")),
		true, 40*time.Millisecond)

	require.Len(t, ledger.entries, 1)
	e := ledger.entries[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "conv-1", e.ConversationID)
	assert.Equal(t, "turn-1", e.TurnID)
	assert.Equal(t, "call-1", e.CallID)
	assert.Equal(t, contractx.ToolFailure, e.Status)
	assert.Equal(t, contractx.FailureTransport, e.FailureKind)
	assert.NotEmpty(t, e.ArgsDigest)
}

func TestRecorderSurvivesLedgerError(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(&memoryLedger{err: errors.New("db down")})
	assert.NotPanics(t, func() {
		rec.RecordToolCall(context.Background(),
			contractx.ToolCallContext{SessionID: "conv-1"},
			contractx.ToolRequest{Tool: "create_appointment"},
			contractx.Success("create_appointment", "booked", nil),
			true, 0)
	})
}

func TestDigestIsStable(t *testing.T) {
	t.Parallel()

	a := Digest(map[string]any{"title": "Oil change", "priority": "low"})
	b := Digest(map[string]any{"priority": "low", "title": "Oil change"})
	c := Digest(map[string]any{"priority": "high", "title": "Oil change"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Empty(t, Digest(nil))
}
