package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

const appointmentFailureReason = "I couldn't finish booking that appointment because of a temporary issue. Please try again shortly, or I can have our team call you to set it up."

const defaultAppointmentMinutes = 30

// CreateAppointmentArgs mirrors the calendar payload. Date validation is the
// caller's job; the adapter forwards Date as given.
type CreateAppointmentArgs struct {
	Title                string `json:"title"`
	Date                 string `json:"date"`
	CustomerName         string `json:"customerName"`
	CustomerEmail        string `json:"customerEmail"`
	CustomerPhone        string `json:"customerPhone"`
	DurationMinutes      int    `json:"duration"`
	Type                 string `json:"appointment_type"`
	Notes                string `json:"notes"`
	SyncExternalCalendar *bool  `json:"syncToGoogle"`
}

type appointmentPayload struct {
	Title         string `json:"title"`
	Date          string `json:"date"`
	Duration      int    `json:"duration"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone"`
	Type          string `json:"type"`
	Notes         string `json:"notes"`
	SyncToGoogle  bool   `json:"syncToGoogle"`
}

type AppointmentCreated struct {
	AppointmentID string `json:"appointment_id"`
	Title         string `json:"title"`
	Date          string `json:"date"`
}

func NewCreateAppointmentTool(client *InboxClient) Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: ToolCreateAppointment,
			Desc: "Book an in-store or virtual appointment once name, email, phone and a date/time inside business hours are confirmed.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"title":            {Type: schema.String, Desc: "e.g. In-Store Consultation", Required: true},
				"date":             {Type: schema.String, Desc: "Full ISO-8601 datetime including time, e.g. 2026-02-20T10:00:00-06:00", Required: true},
				"customerName":     {Type: schema.String, Desc: "Customer full name", Required: true},
				"customerEmail":    {Type: schema.String, Desc: "Customer email", Required: true},
				"customerPhone":    {Type: schema.String, Desc: "Customer phone number", Required: true},
				"duration":         {Type: schema.Integer, Desc: "Duration in minutes, default 30"},
				"appointment_type": {Type: schema.String, Desc: "Appointment type, e.g. in-store or virtual"},
				"notes":            {Type: schema.String, Desc: "Additional notes"},
				"syncToGoogle":     {Type: schema.Boolean, Desc: "Sync to the external calendar, default true"},
			}),
		},
		SideEffect: true,
		Handler: func(ctx context.Context, call contractx.ToolCallContext, raw map[string]any) contractx.ToolResult {
			var args CreateAppointmentArgs
			if err := decodeArgs(raw, &args); err != nil {
				return contractx.Failure(ToolCreateAppointment, contractx.FailureValidation, appointmentFailureReason, err)
			}
			return createAppointment(ctx, client, call, args)
		},
	}
}

func createAppointment(ctx context.Context, client *InboxClient, call contractx.ToolCallContext, args CreateAppointmentArgs) contractx.ToolResult {
	title := firstNonBlank(strings.TrimSpace(args.Title), "In-Store Consultation")
	date := strings.TrimSpace(args.Date)
	if date == "" {
		return contractx.Failure(ToolCreateAppointment, contractx.FailureValidation,
			"I still need the date and time you'd like to come in.", fmt.Errorf("%w: date is required", contractx.ErrValidation))
	}
	duration := args.DurationMinutes
	if duration <= 0 {
		duration = defaultAppointmentMinutes
	}
	sync := true
	if args.SyncExternalCalendar != nil {
		sync = *args.SyncExternalCalendar
	}

	payload := appointmentPayload{
		Title:         title,
		Date:          date,
		Duration:      duration,
		CustomerName:  firstNonBlank(strings.TrimSpace(args.CustomerName), call.Customer.Name),
		CustomerEmail: firstNonBlank(strings.TrimSpace(args.CustomerEmail), call.Customer.Email),
		CustomerPhone: firstNonBlank(strings.TrimSpace(args.CustomerPhone), call.Customer.Phone),
		Type:          firstNonBlank(strings.TrimSpace(args.Type), "in-store"),
		Notes:         strings.TrimSpace(args.Notes),
		SyncToGoogle:  sync,
	}

	id, err := client.createResource(ctx, "/calendar/appointments", "appointment", payload)
	if err != nil {
		return contractx.Failure(ToolCreateAppointment, failureKind(err), appointmentFailureReason, err)
	}

	summary := fmt.Sprintf("Appointment booked successfully. ID: %s. %s on %s for %s.", id, title, date, payload.CustomerName)
	if payload.CustomerEmail != "" {
		summary += fmt.Sprintf(" Confirmation will be sent to %s.", payload.CustomerEmail)
	}
	return contractx.Success(ToolCreateAppointment, summary, AppointmentCreated{AppointmentID: id, Title: title, Date: date})
}
