package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

const ticketFailureReason = "I wasn't able to open a support ticket just now because of a temporary issue. Please try again in a few minutes, or I can have our team reach out to you directly."

type CreateTicketArgs struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	CustomerName   string `json:"customerName"`
	CustomerEmail  string `json:"customerEmail"`
	CustomerPhone  string `json:"customerPhone"`
	Priority       string `json:"priority"`
	Tags           string `json:"tags"`
	ConversationID string `json:"conversationId"`
}

type ticketPayload struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	CustomerName   string   `json:"customerName"`
	CustomerEmail  string   `json:"customerEmail"`
	CustomerPhone  string   `json:"customerPhone"`
	Priority       string   `json:"priority"`
	Source         string   `json:"source"`
	Tags           []string `json:"tags,omitempty"`
	ConversationID string   `json:"conversationId,omitempty"`
}

type TicketCreated struct {
	TicketID string `json:"ticket_id"`
	Title    string `json:"title"`
}

var validPriorities = map[string]bool{"low": true, "medium": true, "high": true}

func NewCreateTicketTool(client *InboxClient) Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: ToolCreateTicket,
			Desc: "Open a support ticket so the dealership team follows up with the customer.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"title":          {Type: schema.String, Desc: "Short summary of the request", Required: true},
				"description":    {Type: schema.String, Desc: "Details of the issue or request", Required: true},
				"customerName":   {Type: schema.String, Desc: "Customer full name", Required: true},
				"customerEmail":  {Type: schema.String, Desc: "Customer email", Required: true},
				"customerPhone":  {Type: schema.String, Desc: "Customer phone number", Required: true},
				"priority":       {Type: schema.String, Desc: "Ticket priority", Enum: []string{"low", "medium", "high"}},
				"tags":           {Type: schema.String, Desc: "Optional comma-separated tags"},
				"conversationId": {Type: schema.String, Desc: "Optional conversation id"},
			}),
		},
		SideEffect: true,
		Handler: func(ctx context.Context, call contractx.ToolCallContext, raw map[string]any) contractx.ToolResult {
			var args CreateTicketArgs
			if err := decodeArgs(raw, &args); err != nil {
				return contractx.Failure(ToolCreateTicket, contractx.FailureValidation, ticketFailureReason, err)
			}
			return createTicket(ctx, client, call, args)
		},
	}
}

func createTicket(ctx context.Context, client *InboxClient, call contractx.ToolCallContext, args CreateTicketArgs) contractx.ToolResult {
	title := strings.TrimSpace(args.Title)
	if title == "" {
		return contractx.Failure(ToolCreateTicket, contractx.FailureValidation,
			"I need a short description of what you'd like help with before I can open a ticket.", fmt.Errorf("%w: title is required", contractx.ErrValidation))
	}
	priority := strings.ToLower(strings.TrimSpace(args.Priority))
	if !validPriorities[priority] {
		priority = "medium"
	}

	payload := ticketPayload{
		Title:          title,
		Description:    strings.TrimSpace(args.Description),
		CustomerName:   firstNonBlank(strings.TrimSpace(args.CustomerName), call.Customer.Name),
		CustomerEmail:  firstNonBlank(strings.TrimSpace(args.CustomerEmail), call.Customer.Email),
		CustomerPhone:  firstNonBlank(strings.TrimSpace(args.CustomerPhone), call.Customer.Phone),
		Priority:       priority,
		Source:         client.source,
		Tags:           splitTags(args.Tags),
		ConversationID: firstNonBlank(strings.TrimSpace(args.ConversationID), call.SessionID),
	}

	id, err := client.createResource(ctx, "/tickets", "ticket", payload)
	if err != nil {
		return contractx.Failure(ToolCreateTicket, failureKind(err), ticketFailureReason, err)
	}

	summary := fmt.Sprintf("Ticket created successfully. ID: %s. Title: %s.", id, title)
	if payload.CustomerName != "" && payload.CustomerEmail != "" {
		summary += fmt.Sprintf(" The team will follow up with %s at %s.", payload.CustomerName, payload.CustomerEmail)
	}
	return contractx.Success(ToolCreateTicket, summary, TicketCreated{TicketID: id, Title: title})
}

func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
