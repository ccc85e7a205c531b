package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMemoryStoreSize = 4096

// MemoryStore is a bounded in-process Store. Least recently used sessions are
// evicted once the size is reached. Documents are stored encoded so callers
// never share pointers with the cache.
type MemoryStore struct {
	cache *lru.Cache[string, []byte]
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = defaultMemoryStoreSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &MemoryStore{cache: cache}, nil
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (*SessionState, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	doc, ok := m.cache.Get(sessionID)
	if !ok {
		return nil, ErrStateNotFound
	}
	return decodeSession(doc)
}

func (m *MemoryStore) Save(_ context.Context, st *SessionState) error {
	if err := prepareForSave(st); err != nil {
		return err
	}
	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}
	m.cache.Add(st.SessionID, doc)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrInvalidSession
	}
	m.cache.Remove(sessionID)
	return nil
}

func (m *MemoryStore) Len() int {
	return m.cache.Len()
}
