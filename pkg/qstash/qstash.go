package qstash

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

type Config struct {
	URL         string        `split_words:"true" default:"https://qstash.upstash.io"`
	Token       string        `split_words:"true" required:"true"`
	Destination string        `split_words:"true" required:"true"`
	Retries     int           `split_words:"true" default:"3"`
	Timeout     time.Duration `split_words:"true" default:"10s"`
}

type Client struct {
	baseURL     string
	token       string
	destination string
	retries     int
	httpClient  *http.Client
}

type publishReply struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("qstash url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	destination := strings.TrimSpace(cfg.Destination)
	if destination == "" {
		return nil, errors.New("qstash destination is required")
	}
	if _, err := url.ParseRequestURI(destination); err != nil {
		return nil, fmt.Errorf("qstash destination: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       strings.TrimSpace(cfg.Token),
		destination: destination,
		retries:     cfg.Retries,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// Publish enqueues body as JSON for the configured destination and returns
// the QStash message id. Delivery and retries are QStash's responsibility.
func (c *Client) Publish(ctx context.Context, body any, dedupID string) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("qstash marshal: %w", err)
	}

	endpoint := c.baseURL + "/v2/publish/" + c.destination
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	if c.retries >= 0 {
		req.Header.Set("Upstash-Retries", fmt.Sprint(c.retries))
	}
	if dedupID != "" {
		req.Header.Set("Upstash-Deduplication-Id", dedupID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("qstash publish: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("qstash read reply: %w", err)
	}

	var reply publishReply
	_ = json.Unmarshal(payload, &reply)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg := reply.Error
		if msg == "" {
			msg = strings.TrimSpace(string(payload))
		}
		return "", fmt.Errorf("qstash publish status=%d: %s", resp.StatusCode, msg)
	}
	if reply.MessageID == "" {
		return "", errors.New("qstash publish reply has no messageId")
	}
	return reply.MessageID, nil
}
