package tool

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

	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

const maxBackendReplyBytes = 1 << 20

// InboxConfig addresses the ticketing and calendar backend.
type InboxConfig struct {
	BaseURL    string        `envconfig:"BASE_URL" split_words:"true" required:"true"`
	BusinessID string        `envconfig:"BUSINESS_ID" split_words:"true" required:"true"`
	UserEmail  string        `envconfig:"USER_EMAIL" split_words:"true" required:"true"`
	Timeout    time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	Source     string        `envconfig:"SOURCE" split_words:"true" default:"ai-agent"`
}

// InboxClient posts JSON to the backend with the static per-deployment headers.
type InboxClient struct {
	baseURL    string
	businessID string
	userEmail  string
	source     string
	httpClient *http.Client
}

func NewInboxClient(cfg InboxConfig, httpClient *http.Client) (*InboxClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: inbox base url is required", contractx.ErrConfig)
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("%w: inbox base url: %v", contractx.ErrConfig, err)
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	source := strings.TrimSpace(cfg.Source)
	if source == "" {
		source = "ai-agent"
	}
	return &InboxClient{
		baseURL:    baseURL,
		businessID: strings.TrimSpace(cfg.BusinessID),
		userEmail:  strings.TrimSpace(cfg.UserEmail),
		source:     source,
		httpClient: httpClient,
	}, nil
}

// createResource posts payload to path and returns the created record id.
// The id is read from `id` then `_id`, optionally nested under wrapKey.
func (c *InboxClient) createResource(ctx context.Context, path, wrapKey string, payload any) (string, error) {
	body, err := postJSON(ctx, c.httpClient, c.baseURL+path, payload, map[string]string{
		"x-business-id": c.businessID,
		"x-user-email":  c.userEmail,
	})
	if err != nil {
		return "", err
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("%w: decode %s reply: %v", contractx.ErrMalformedResponse, path, err)
	}
	if inner, ok := doc[wrapKey].(map[string]any); ok {
		doc = inner
	}
	id := idField(doc)
	if id == "" {
		return "", fmt.Errorf("%w: %s reply has no id", contractx.ErrMalformedResponse, path)
	}
	return id, nil
}

func idField(doc map[string]any) string {
	for _, key := range []string{"id", "_id"} {
		switch v := doc[key].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

// postJSON returns the raw 2xx body. Transport failures and non-2xx replies
// wrap ErrTransport; the upstream body only ever goes into the error text.
func postJSON(ctx context.Context, client *http.Client, endpoint string, payload any, headers map[string]string) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal payload: %v", contractx.ErrValidation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", contractx.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBackendReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read reply: %v", contractx.ErrTransport, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: status=%d body=%s", contractx.ErrTransport, resp.StatusCode, truncate(string(body), 512))
	}
	return body, nil
}

func failureKind(err error) contractx.FailureKind {
	switch {
	case errors.Is(err, contractx.ErrMalformedResponse):
		return contractx.FailureMalformed
	case errors.Is(err, contractx.ErrValidation):
		return contractx.FailureValidation
	default:
		return contractx.FailureTransport
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
