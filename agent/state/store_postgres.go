package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type sessionRow struct {
	bun.BaseModel `bun:"table:chat_sessions,alias:cs"`

	SessionID     string          `bun:"session_id,pk"`
	ActivePersona string          `bun:"active_persona"`
	Version       int             `bun:"version,notnull"`
	Document      json.RawMessage `bun:"document,type:jsonb,notnull"`
	UpdatedAt     time.Time       `bun:"updated_at,notnull"`
}

// PostgresStore keeps sessions as jsonb documents, one row per session.
type PostgresStore struct {
	db *bun.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *bun.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &PostgresStore{db: db}, nil
}

// Migrate creates the sessions table when missing.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.NewCreateTable().
		Model((*sessionRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create chat_sessions table: %w", err)
	}
	return nil
}

func (p *PostgresStore) Load(ctx context.Context, sessionID string) (*SessionState, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	var row sessionRow
	err := p.db.NewSelect().
		Model(&row).
		Where("session_id = ?", sessionID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session %s: %w", sessionID, err)
	}
	return decodeSession(row.Document)
}

func (p *PostgresStore) Save(ctx context.Context, st *SessionState) error {
	if err := prepareForSave(st); err != nil {
		return err
	}
	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}

	row := &sessionRow{
		SessionID:     st.SessionID,
		ActivePersona: st.ActivePersona,
		Version:       st.Version,
		Document:      doc,
		UpdatedAt:     st.UpdatedAt,
	}
	if _, err := p.upsert(row).Exec(ctx); err != nil {
		return fmt.Errorf("upsert session %s: %w", st.SessionID, err)
	}
	return nil
}

func (p *PostgresStore) upsert(row *sessionRow) *bun.InsertQuery {
	return p.db.NewInsert().
		Model(row).
		On("CONFLICT (session_id) DO UPDATE").
		Set("active_persona = EXCLUDED.active_persona").
		Set("version = EXCLUDED.version").
		Set("document = EXCLUDED.document").
		Set("updated_at = EXCLUDED.updated_at")
}

func (p *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrInvalidSession
	}
	_, err := p.db.NewDelete().
		Model((*sessionRow)(nil)).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}
