package contract

import (
	"strings"
	"time"
)

type Channel string

const (
	ChannelWeb    Channel = "web"
	ChannelSMS    Channel = "sms"
	ChannelSocial Channel = "social"
)

// ParseChannel normalizes inbound channel labels. Unknown values fall back to web.
func ParseChannel(raw string) Channel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sms", "text":
		return ChannelSMS
	case "social", "instagram", "facebook", "whatsapp", "messenger":
		return ChannelSocial
	default:
		return ChannelWeb
	}
}

// SupportsMarkup reports whether links should be rendered as anchors.
func (c Channel) SupportsMarkup() bool {
	return c == ChannelWeb
}

type CustomerInfo struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type InboundMessage struct {
	SessionID string       `json:"session_id"`
	Text      string       `json:"text"`
	Channel   Channel      `json:"channel"`
	Customer  CustomerInfo `json:"customer,omitempty"`
	Timestamp time.Time    `json:"timestamp,omitempty"`
}

type OutboundMessage struct {
	SessionID string `json:"session_id"`
	Persona   string `json:"persona"`
	Reply     string `json:"reply"`
}

type ToolRequest struct {
	ID   string         `json:"id,omitempty"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

type ToolStatus string

const (
	ToolSuccess ToolStatus = "success"
	ToolFailure ToolStatus = "failure"
)

type FailureKind string

const (
	FailureTransport  FailureKind = "transport"
	FailureMalformed  FailureKind = "malformed_response"
	FailurePolicy     FailureKind = "policy_violation"
	FailureValidation FailureKind = "validation"
)

// ToolResult is the envelope every tool invocation resolves to.
// Reason is user-safe; Cause is for logs only and never serialized.
type ToolResult struct {
	Tool    string      `json:"tool"`
	Status  ToolStatus  `json:"status"`
	Summary string      `json:"summary,omitempty"`
	Payload any         `json:"payload,omitempty"`
	Reason  string      `json:"reason,omitempty"`
	Kind    FailureKind `json:"-"`
	Cause   error       `json:"-"`
}

func Success(tool, summary string, payload any) ToolResult {
	return ToolResult{
		Tool:    tool,
		Status:  ToolSuccess,
		Summary: summary,
		Payload: payload,
	}
}

func Failure(tool string, kind FailureKind, reason string, cause error) ToolResult {
	return ToolResult{
		Tool:   tool,
		Status: ToolFailure,
		Reason: reason,
		Kind:   kind,
		Cause:  cause,
	}
}

func (r ToolResult) OK() bool {
	return r.Status == ToolSuccess
}

// Text is what gets fed back to the model.
func (r ToolResult) Text() string {
	if r.OK() {
		return r.Summary
	}
	return r.Reason
}
