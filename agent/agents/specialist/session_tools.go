package specialist

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/booking"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/state"
	toolx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/tool"
)

// customer-facing tools that carry contact fields in their arguments
var contactArgTools = map[string]bool{
	toolx.ToolCreateTicket:      true,
	toolx.ToolCreateAppointment: true,
	toolx.ToolConnectToSupport:  true,
}

const defaultSlot = 30 * time.Minute

// beforeTool applies session rules to a pending call. A non-nil result
// short-circuits the call.
func beforeTool(req *contractx.ToolRequest, st *state.SessionState, hours booking.Hours, at time.Time) *contractx.ToolResult {
	if contactArgTools[req.Tool] {
		st.Customer.FillMissing(contractx.CustomerInfo{
			Name:  argString(req.Args, "customerName"),
			Email: argString(req.Args, "customerEmail"),
			Phone: argString(req.Args, "customerPhone"),
		})
		req.Args = withSessionContact(req.Args, st.Customer)
	}
	if req.Tool != toolx.ToolCreateAppointment {
		return nil
	}

	flow := &st.Appointment
	if raw := argString(req.Args, "date"); raw != "" {
		t, err := booking.ParseDateTime(raw, at, hours.Location)
		if err == nil {
			err = hours.Check(t, slotLength(req.Args), at)
		}
		if err != nil {
			res := contractx.Failure(req.Tool, contractx.FailureValidation, hours.Rejection(err), fmt.Errorf("%w: %v", contractx.ErrValidation, err))
			return &res
		}
		flow.ProposeDateTime(t, st.Customer, at)
	} else if flow.Active() {
		flow.Sync(st.Customer, at)
	} else {
		flow.Begin(st.Customer, at)
	}

	if flow.Stage != state.StageConfirmed {
		res := contractx.Failure(req.Tool, contractx.FailureValidation,
			fmt.Sprintf("The appointment can't be booked yet. Still needed from the customer: %s.", flow.NextField()),
			fmt.Errorf("%w: appointment stage=%s", contractx.ErrValidation, flow.Stage))
		return &res
	}

	// canonical date from the session
	args := cloneArgs(req.Args)
	loc := hours.Location
	if loc == nil {
		loc = time.UTC
	}
	args["date"] = flow.RequestedAt.In(loc).Format(time.RFC3339)
	req.Args = args
	return nil
}

// afterTool folds a finished call back into the session.
func afterTool(req contractx.ToolRequest, res contractx.ToolResult, st *state.SessionState, at time.Time) {
	if !res.OK() {
		return
	}
	switch req.Tool {
	case toolx.ToolRecordCustomerDetails:
		details, ok := res.Payload.(toolx.CustomerDetails)
		if !ok {
			return
		}
		st.Customer.Merge(contractx.CustomerInfo{Name: details.Name, Email: details.Email, Phone: details.Phone})
		if details.RequestedAt != nil {
			st.Appointment.ProposeDateTime(*details.RequestedAt, st.Customer, at)
		} else {
			st.Appointment.Sync(st.Customer, at)
		}
	case toolx.ToolCreateAppointment:
		if created, ok := res.Payload.(toolx.AppointmentCreated); ok {
			st.Appointment.MarkBooked(created.AppointmentID, at)
		}
		st.TopicResolved = true
	case toolx.ToolCreateTicket, toolx.ToolConnectToSupport:
		st.TopicResolved = true
	}
}

func argString(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// withSessionContact replaces contact arguments with the session's values
// wherever the session has one.
func withSessionContact(args map[string]any, c state.CustomerFields) map[string]any {
	out := cloneArgs(args)
	for key, v := range map[string]string{
		"customerName":  c.Name,
		"customerEmail": c.Email,
		"customerPhone": c.Phone,
	} {
		if v != "" {
			out[key] = v
		}
	}
	return out
}

// slotLength reads the duration argument in minutes.
func slotLength(args map[string]any) time.Duration {
	var minutes int
	switch v := args["duration"].(type) {
	case float64:
		minutes = int(v)
	case int:
		minutes = v
	case string:
		minutes, _ = strconv.Atoi(strings.TrimSpace(v))
	}
	if minutes <= 0 {
		return defaultSlot
	}
	return time.Duration(minutes) * time.Minute
}

func cloneArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args)+4)
	for k, v := range args {
		out[k] = v
	}
	return out
}
