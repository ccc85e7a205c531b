package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestUpstashStore(t *testing.T, handler http.HandlerFunc, opts ...UpstashOption) *UpstashRedisStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]UpstashOption{WithHTTPClient(server.Client())}, opts...)
	store, err := NewUpstashRedisStore(UpstashRedisConfig{URL: server.URL, Token: "token"}, opts...)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}
	return store
}

func TestUpstashRedisStoreKey(t *testing.T) {
	t.Parallel()

	store, err := NewUpstashRedisStore(UpstashRedisConfig{URL: "https://example.upstash.io", Token: "t"})
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}
	got, err := store.key("abc")
	if err != nil {
		t.Fatalf("key() error = %v", err)
	}
	if got != "dealership:session:abc" {
		t.Fatalf("key() = %q", got)
	}

	if _, err := store.key("   "); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("key() error = %v, want ErrInvalidSession", err)
	}
}

func TestNewUpstashRedisStoreRequiresToken(t *testing.T) {
	t.Parallel()

	if _, err := NewUpstashRedisStore(UpstashRedisConfig{URL: "https://example.upstash.io"}); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestUpstashRedisStoreSaveSendsSetWithExpiry(t *testing.T) {
	t.Parallel()

	var gotCommand []any
	var gotAuth string
	store := newTestUpstashStore(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprint(w, `{"result":"OK"}`)
	}, WithTTL(90*time.Second), WithKeyPrefix("test:"))

	st := NewSessionState("session-1", "web", time.Now())
	if err := store.Save(context.Background(), st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if gotAuth != "Bearer token" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if len(gotCommand) != 5 {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
	if gotCommand[0] != "SET" || gotCommand[1] != "test:session-1" {
		t.Fatalf("unexpected command head: %#v", gotCommand[:2])
	}
	if gotCommand[3] != "EX" || gotCommand[4] != float64(90) {
		t.Fatalf("unexpected expiry: %#v", gotCommand[3:])
	}
	if st.Version != 1 {
		t.Fatalf("Version = %d, want 1", st.Version)
	}
}

func TestUpstashRedisStoreLoadRoundTrip(t *testing.T) {
	t.Parallel()

	seed := NewSessionState("session-2", "sms", time.Now())
	seed.ActivePersona = "faq_agent"
	seed.Customer.Name = "Dana"
	doc, err := json.Marshal(seed)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	encoded, err := json.Marshal(string(doc))
	if err != nil {
		t.Fatalf("marshal encoded seed: %v", err)
	}

	var gotCommand []any
	store := newTestUpstashStore(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		_ = json.NewDecoder(r.Body).Decode(&gotCommand)
		fmt.Fprintf(w, `{"result":%s}`, encoded)
	})

	st, err := store.Load(context.Background(), "session-2")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if st.ActivePersona != "faq_agent" || st.Customer.Name != "Dana" {
		t.Fatalf("unexpected state: %+v", st)
	}
	if gotCommand[0] != "GET" || gotCommand[1] != "dealership:session:session-2" {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
}

func TestUpstashRedisStoreLoadMissing(t *testing.T) {
	t.Parallel()

	store := newTestUpstashStore(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":null}`)
	})

	_, err := store.Load(context.Background(), "nope")
	if !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("Load() error = %v, want ErrStateNotFound", err)
	}
}

func TestUpstashRedisStoreSurfacesRedisError(t *testing.T) {
	t.Parallel()

	store := newTestUpstashStore(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"WRONGPASS"}`)
	})

	if err := store.Delete(context.Background(), "session-3"); err == nil {
		t.Fatal("expected error")
	}
}

func TestTTLSecondsRoundsUp(t *testing.T) {
	t.Parallel()

	if got := ttlSeconds(1500 * time.Millisecond); got != 2 {
		t.Fatalf("ttlSeconds(1.5s) = %d", got)
	}
	if got := ttlSeconds(time.Millisecond); got != 1 {
		t.Fatalf("ttlSeconds(1ms) = %d", got)
	}
}
