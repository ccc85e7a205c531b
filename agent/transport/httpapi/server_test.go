package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

type fakeTurns struct {
	out  contractx.OutboundMessage
	err  error
	seen []contractx.InboundMessage
}

func (f *fakeTurns) HandleTurn(ctx context.Context, msg contractx.InboundMessage) (contractx.OutboundMessage, error) {
	f.seen = append(f.seen, msg)
	return f.out, f.err
}

func newTestServer(t *testing.T, turns TurnHandler) *httptest.Server {
	t.Helper()
	s := NewServer(Config{TurnTimeout: time.Second}, turns, prometheus.NewRegistry())
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/messages", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestPostMessageReply(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{out: contractx.OutboundMessage{SessionID: "s1", Persona: "faq_agent", Reply: "We open at 9."}}
	srv := newTestServer(t, turns)

	resp, body := post(t, srv, `{
		"text": "what are your hours",
		"channel": "instagram",
		"session_id": "s1",
		"customer": {"name": "Dana", "phone": "601-555-0100"},
		"timestamp": "2026-10-16T10:00:00-05:00"
	}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "We open at 9.", body["reply"])
	assert.Equal(t, "faq_agent", body["persona"])

	require.Len(t, turns.seen, 1)
	msg := turns.seen[0]
	assert.Equal(t, contractx.ChannelSocial, msg.Channel)
	assert.Equal(t, "Dana", msg.Customer.Name)
	assert.Equal(t, 15, msg.Timestamp.UTC().Hour())
}

func TestPostMessageBadInput(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeTurns{})

	resp, _ := post(t, srv, `{"text": `)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := post(t, srv, `{"text": "hi", "session_id": "s1", "timestamp": "yesterday"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "RFC3339")
}

func TestPostMessageValidationError(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{err: fmt.Errorf("%w: %w", contractx.ErrValidation, fmt.Errorf("message is empty"))}
	srv := newTestServer(t, turns)

	resp, body := post(t, srv, `{"text": " ", "session_id": "s1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "message is empty", body["error"])
}

func TestPostMessageModelFailureApologizes(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{err: fmt.Errorf("%w: status 502 from upstream", contractx.ErrModelInvoke)}
	srv := newTestServer(t, turns)

	resp, body := post(t, srv, `{"text": "hi", "session_id": "s1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ApologyReply, body["reply"])
	assert.NotContains(t, body["reply"], "502")
}

func TestHealthzAndMetrics(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeTurns{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/messages")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
