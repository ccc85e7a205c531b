package tool

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/booking"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

const appointmentSlot = 30 * time.Minute

type RecordCustomerArgs struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	PreferredDateTime string `json:"preferred_datetime"`
}

// CustomerDetails is the validated subset of what the customer shared.
// The turn driver merges it into the session.
type CustomerDetails struct {
	Name        string     `json:"name,omitempty"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	RequestedAt *time.Time `json:"requested_at,omitempty"`
}

func NewRecordCustomerTool(hours booking.Hours, now func() time.Time) Tool {
	if now == nil {
		now = time.Now
	}
	return Tool{
		Info: &schema.ToolInfo{
			Name: ToolRecordCustomerDetails,
			Desc: "Save contact details or a preferred appointment time the customer just gave. Pass only the fields the customer stated; the datetime may be natural language such as 'next Tuesday at 3pm'.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"name":               {Type: schema.String, Desc: "Customer full name"},
				"email":              {Type: schema.String, Desc: "Customer email"},
				"phone":              {Type: schema.String, Desc: "Customer phone number"},
				"preferred_datetime": {Type: schema.String, Desc: "Preferred appointment date and time"},
			}),
		},
		Handler: func(_ context.Context, _ contractx.ToolCallContext, raw map[string]any) contractx.ToolResult {
			var args RecordCustomerArgs
			if err := decodeArgs(raw, &args); err != nil {
				return contractx.Failure(ToolRecordCustomerDetails, contractx.FailureValidation, "I didn't quite catch those details. Could you repeat them?", err)
			}
			return recordCustomer(args, hours, now())
		},
	}
}

func recordCustomer(args RecordCustomerArgs, hours booking.Hours, now time.Time) contractx.ToolResult {
	details := CustomerDetails{
		Name:  strings.TrimSpace(args.Name),
		Phone: strings.TrimSpace(args.Phone),
	}

	if email := strings.TrimSpace(args.Email); email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil {
			return contractx.Failure(ToolRecordCustomerDetails, contractx.FailureValidation,
				fmt.Sprintf("%q doesn't look like a valid email address. Could you double-check it?", email),
				fmt.Errorf("%w: email: %v", contractx.ErrValidation, err))
		}
		details.Email = addr.Address
	}

	if raw := strings.TrimSpace(args.PreferredDateTime); raw != "" {
		at, err := booking.ParseDateTime(raw, now, hours.Location)
		if err != nil {
			return contractx.Failure(ToolRecordCustomerDetails, contractx.FailureValidation,
				"I couldn't understand that date and time. Could you give me a specific day and time?",
				fmt.Errorf("%w: %v", contractx.ErrValidation, err))
		}
		if err := hours.Check(at, appointmentSlot, now); err != nil {
			return contractx.Failure(ToolRecordCustomerDetails, contractx.FailureValidation,
				hours.Rejection(err), fmt.Errorf("%w: %v", contractx.ErrValidation, err))
		}
		details.RequestedAt = &at
	}

	var saved []string
	if details.Name != "" {
		saved = append(saved, "name "+details.Name)
	}
	if details.Email != "" {
		saved = append(saved, "email "+details.Email)
	}
	if details.Phone != "" {
		saved = append(saved, "phone "+details.Phone)
	}
	if details.RequestedAt != nil {
		saved = append(saved, "preferred time "+details.RequestedAt.In(hours.Location).Format("Monday, January 2 at 3:04 PM MST"))
	}
	if len(saved) == 0 {
		return contractx.Success(ToolRecordCustomerDetails, "Nothing new to record.", details)
	}
	return contractx.Success(ToolRecordCustomerDetails, "Recorded "+strings.Join(saved, ", ")+".", details)
}
