package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultUpstashKeyPrefix = "dealership:session:"
	defaultUpstashTTL       = 72 * time.Hour
	maxUpstashReplyBytes    = 4 << 20
)

type UpstashRedisConfig struct {
	URL       string        `envconfig:"URL" split_words:"true"`
	Token     string        `envconfig:"TOKEN" split_words:"true"`
	Timeout   time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	KeyPrefix string        `envconfig:"KEY_PREFIX" split_words:"true" default:"dealership:session:"`
	TTL       time.Duration `envconfig:"TTL" split_words:"true" default:"72h"`
}

// UpstashOption customizes UpstashRedisStore.
type UpstashOption func(*UpstashRedisStore)

func WithKeyPrefix(prefix string) UpstashOption {
	return func(s *UpstashRedisStore) {
		if trimmed := strings.TrimSpace(prefix); trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) UpstashOption {
	return func(s *UpstashRedisStore) {
		s.ttl = ttl
	}
}

func WithHTTPClient(client *http.Client) UpstashOption {
	return func(s *UpstashRedisStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// UpstashRedisStore keeps one JSON document per session in Upstash Redis over REST.
type UpstashRedisStore struct {
	endpoint   string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
}

var _ Store = (*UpstashRedisStore)(nil)

type upstashReply struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...UpstashOption) (*UpstashRedisStore, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if endpoint == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid upstash redis url: %w", err)
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultUpstashTTL
	}

	s := &UpstashRedisStore{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		keyPrefix:  defaultUpstashKeyPrefix,
		ttl:        ttl,
	}
	WithKeyPrefix(cfg.KeyPrefix)(s)
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	return s, nil
}

func (s *UpstashRedisStore) Load(ctx context.Context, sessionID string) (*SessionState, error) {
	key, err := s.key(sessionID)
	if err != nil {
		return nil, err
	}

	reply, err := s.command(ctx, "GET", key)
	if err != nil {
		return nil, err
	}

	raw := bytes.TrimSpace(reply.Result)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ErrStateNotFound
	}

	// GET returns the stored document as a JSON string.
	var doc string
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode session payload: %w", err)
	}
	return decodeSession([]byte(doc))
}

func (s *UpstashRedisStore) Save(ctx context.Context, st *SessionState) error {
	if err := prepareForSave(st); err != nil {
		return err
	}
	key, err := s.key(st.SessionID)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}

	args := []any{"SET", key, string(doc)}
	if s.ttl > 0 {
		args = append(args, "EX", ttlSeconds(s.ttl))
	}
	_, err = s.command(ctx, args...)
	return err
}

func (s *UpstashRedisStore) Delete(ctx context.Context, sessionID string) error {
	key, err := s.key(sessionID)
	if err != nil {
		return err
	}
	_, err = s.command(ctx, "DEL", key)
	return err
}

func (s *UpstashRedisStore) key(sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", ErrInvalidSession
	}
	return s.keyPrefix + sessionID, nil
}

func (s *UpstashRedisStore) command(ctx context.Context, args ...any) (*upstashReply, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis %v: %w", args[0], err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstashReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis %v: http status=%d body=%s", args[0], resp.StatusCode, string(raw))
	}

	var reply upstashReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("redis %v: %s", args[0], reply.Error)
	}
	return &reply, nil
}

func decodeSession(doc []byte) (*SessionState, error) {
	var st SessionState
	if err := json.Unmarshal(doc, &st); err != nil {
		return nil, fmt.Errorf("unmarshal session state: %w", err)
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session state loaded from store: %w", err)
	}
	return &st, nil
}

// ttlSeconds rounds up so a sub-second TTL never becomes "no expiry".
func ttlSeconds(ttl time.Duration) int64 {
	seconds := int64(ttl / time.Second)
	if ttl%time.Second != 0 {
		seconds++
	}
	if seconds <= 0 {
		return 1
	}
	return seconds
}
