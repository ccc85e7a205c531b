package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
	"github.com/uptrace/bun"
)

type entryRow struct {
	bun.BaseModel `bun:"table:tool_audit,alias:ta"`

	ID             string    `bun:"id,pk"`
	ConversationID string    `bun:"conversation_id,notnull"`
	TurnID         string    `bun:"turn_id"`
	Persona        string    `bun:"persona"`
	Tool           string    `bun:"tool,notnull"`
	CallID         string    `bun:"call_id"`
	ArgsDigest     string    `bun:"args_digest"`
	Status         string    `bun:"status,notnull"`
	FailureKind    string    `bun:"failure_kind"`
	ElapsedMS      int64     `bun:"elapsed_ms"`
	RecordedAt     time.Time `bun:"recorded_at,notnull"`
}

// PostgresLedger appends entries to the tool_audit table and mirrors them to
// the log.
type PostgresLedger struct {
	db *bun.DB
}

var _ Ledger = (*PostgresLedger)(nil)

func NewPostgresLedger(db *bun.DB) (*PostgresLedger, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &PostgresLedger{db: db}, nil
}

func (p *PostgresLedger) Migrate(ctx context.Context) error {
	if _, err := p.db.NewCreateTable().
		Model((*entryRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create tool_audit table: %w", err)
	}
	if _, err := p.db.NewCreateIndex().
		Model((*entryRow)(nil)).
		Index("tool_audit_conversation_idx").
		IfNotExists().
		Column("conversation_id", "tool").
		Exec(ctx); err != nil {
		return fmt.Errorf("create tool_audit index: %w", err)
	}
	return nil
}

func (p *PostgresLedger) Append(ctx context.Context, e Entry) error {
	_ = LogLedger{}.Append(ctx, e)
	if _, err := p.db.NewInsert().Model(newEntryRow(e)).Exec(ctx); err != nil {
		return fmt.Errorf("insert tool_audit %s: %w", e.ID, err)
	}
	return nil
}

// ForConversation lists entries oldest first.
func (p *PostgresLedger) ForConversation(ctx context.Context, conversationID string) ([]Entry, error) {
	var rows []entryRow
	err := p.db.NewSelect().
		Model(&rows).
		Where("conversation_id = ?", conversationID).
		Order("recorded_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select tool_audit: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entry())
	}
	return out, nil
}

func newEntryRow(e Entry) *entryRow {
	return &entryRow{
		ID:             e.ID,
		ConversationID: e.ConversationID,
		TurnID:         e.TurnID,
		Persona:        e.Persona,
		Tool:           e.Tool,
		CallID:         e.CallID,
		ArgsDigest:     e.ArgsDigest,
		Status:         string(e.Status),
		FailureKind:    string(e.FailureKind),
		ElapsedMS:      e.Elapsed.Milliseconds(),
		RecordedAt:     e.RecordedAt,
	}
}

func (r entryRow) entry() Entry {
	return Entry{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		TurnID:         r.TurnID,
		Persona:        r.Persona,
		Tool:           r.Tool,
		CallID:         r.CallID,
		ArgsDigest:     r.ArgsDigest,
		Status:         contractx.ToolStatus(r.Status),
		FailureKind:    contractx.FailureKind(r.FailureKind),
		Elapsed:        time.Duration(r.ElapsedMS) * time.Millisecond,
		RecordedAt:     r.RecordedAt,
	}
}
