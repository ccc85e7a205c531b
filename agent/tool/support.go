package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/booking"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

// SupportRequest is the handoff notice delivered to the human team.
type SupportRequest struct {
	ConversationID string    `json:"conversation_id"`
	Channel        string    `json:"channel"`
	CustomerName   string    `json:"customer_name"`
	CustomerEmail  string    `json:"customer_email"`
	CustomerPhone  string    `json:"customer_phone"`
	Reason         string    `json:"reason"`
	Transcript     string    `json:"transcript,omitempty"`
	RequestedAt    time.Time `json:"requested_at"`
}

type Notifier interface {
	NotifySupport(ctx context.Context, req SupportRequest) (string, error)
}

// LogNotifier only records the handoff. Used when no queue is configured.
type LogNotifier struct{}

func (LogNotifier) NotifySupport(_ context.Context, req SupportRequest) (string, error) {
	log.Info().
		Str("conversation_id", req.ConversationID).
		Str("customer_email", req.CustomerEmail).
		Str("reason", req.Reason).
		Msg("support handoff requested")
	return "", nil
}

type publisher interface {
	Publish(ctx context.Context, body any, dedupID string) (string, error)
}

// QueueNotifier publishes handoffs to a message queue (QStash in production).
type QueueNotifier struct {
	pub publisher
}

func NewQueueNotifier(pub publisher) *QueueNotifier {
	return &QueueNotifier{pub: pub}
}

func (n *QueueNotifier) NotifySupport(ctx context.Context, req SupportRequest) (string, error) {
	return n.pub.Publish(ctx, req, req.ConversationID+":"+req.RequestedAt.UTC().Format(time.RFC3339))
}

type ConnectSupportArgs struct {
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone"`
	Reason        string `json:"reason"`
}

type SupportHandoff struct {
	Queued    bool   `json:"queued"`
	MessageID string `json:"message_id,omitempty"`
	InHours   bool   `json:"in_hours"`
}

// NewConnectSupportTool acknowledges the handoff even when delivery fails;
// delivery is the queue's concern.
func NewConnectSupportTool(notifier Notifier, hours booking.Hours, now func() time.Time) Tool {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if now == nil {
		now = time.Now
	}
	return Tool{
		Info: &schema.ToolInfo{
			Name: ToolConnectToSupport,
			Desc: "Hand the conversation to the human support team. Only call after the customer agreed to be connected.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"customerName":  {Type: schema.String, Desc: "Customer full name", Required: true},
				"customerEmail": {Type: schema.String, Desc: "Customer email", Required: true},
				"customerPhone": {Type: schema.String, Desc: "Customer phone number"},
				"reason":        {Type: schema.String, Desc: "Why the customer needs a person", Required: true},
			}),
		},
		SideEffect: true,
		Handler: func(ctx context.Context, call contractx.ToolCallContext, raw map[string]any) contractx.ToolResult {
			var args ConnectSupportArgs
			if err := decodeArgs(raw, &args); err != nil {
				return contractx.Failure(ToolConnectToSupport, contractx.FailureValidation, genericRetryReason, err)
			}
			req := SupportRequest{
				ConversationID: call.SessionID,
				Channel:        string(call.Channel),
				CustomerName:   firstNonBlank(strings.TrimSpace(args.CustomerName), call.Customer.Name),
				CustomerEmail:  firstNonBlank(strings.TrimSpace(args.CustomerEmail), call.Customer.Email),
				CustomerPhone:  firstNonBlank(strings.TrimSpace(args.CustomerPhone), call.Customer.Phone),
				Reason:         strings.TrimSpace(args.Reason),
				Transcript:     call.History,
				RequestedAt:    now(),
			}
			return connectSupport(ctx, notifier, hours, req)
		},
	}
}

func connectSupport(ctx context.Context, notifier Notifier, hours booking.Hours, req SupportRequest) contractx.ToolResult {
	out := SupportHandoff{InHours: hours.OpenAt(req.RequestedAt)}

	id, err := notifier.NotifySupport(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", req.ConversationID).Msg("support notification not delivered")
	} else {
		out.Queued = true
		out.MessageID = id
	}

	contact := firstNonBlank(req.CustomerEmail, req.CustomerPhone)
	if req.CustomerEmail != "" && req.CustomerPhone != "" {
		contact = req.CustomerEmail + " or " + req.CustomerPhone
	}
	summary := fmt.Sprintf("Connecting %s to the support team.", firstNonBlank(req.CustomerName, "the customer"))
	if contact != "" {
		summary += fmt.Sprintf(" They will be contacted at %s.", contact)
	}
	if !out.InHours {
		summary += fmt.Sprintf(" The team is outside business hours (%s) and will follow up when they are back.", hours.Describe())
	}
	return contractx.Success(ToolConnectToSupport, summary, out)
}
