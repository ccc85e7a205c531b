package specialist

import (
	"fmt"
	"strings"

	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/booking"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/state"
)

const unknownValue = "(not provided yet)"

// sessionContext is appended to the rendered instruction every turn.
func sessionContext(st *state.SessionState, hours booking.Hours) string {
	var b strings.Builder
	b.WriteString("SESSION CONTEXT\n")
	b.WriteString("Known customer details. Never ask for these again; confirm them instead:\n")
	fmt.Fprintf(&b, "- name: %s\n", valueOr(st.Customer.Name))
	fmt.Fprintf(&b, "- email: %s\n", valueOr(st.Customer.Email))
	fmt.Fprintf(&b, "- phone: %s\n", valueOr(st.Customer.Phone))

	flow := st.Appointment
	switch {
	case flow.Stage == state.StageBooked:
		fmt.Fprintf(&b, "Appointment: booked (id %s).\n", flow.AppointmentID)
	case flow.Active():
		fmt.Fprintf(&b, "Appointment: in progress, stage %s.", flow.Stage)
		if next := flow.NextField(); next != "" {
			fmt.Fprintf(&b, " Next detail to collect: %s.", next)
		}
		b.WriteByte('\n')
	}
	if flow.RequestedAt != nil && flow.Stage != state.StageBooked {
		loc := hours.Location
		if loc == nil {
			loc = flow.RequestedAt.Location()
		}
		fmt.Fprintf(&b, "Requested appointment time: %s.\n", flow.RequestedAt.In(loc).Format("Monday, January 2 at 3:04 PM MST"))
	}
	fmt.Fprintf(&b, "Business hours for appointments: %s.", hours.Describe())
	return b.String()
}

func valueOr(v string) string {
	if strings.TrimSpace(v) == "" {
		return unknownValue
	}
	return v
}
