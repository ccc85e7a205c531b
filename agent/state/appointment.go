package state

import (
	"time"
)

type AppointmentStage string

const (
	StageIdle               AppointmentStage = ""
	StageCollectingName     AppointmentStage = "collecting_name"
	StageCollectingEmail    AppointmentStage = "collecting_email"
	StageCollectingPhone    AppointmentStage = "collecting_phone"
	StageCollectingDateTime AppointmentStage = "collecting_datetime"
	StageConfirmed          AppointmentStage = "confirmed"
	StageBooked             AppointmentStage = "booked"
)

func (s AppointmentStage) valid() bool {
	switch s {
	case StageIdle, StageCollectingName, StageCollectingEmail, StageCollectingPhone,
		StageCollectingDateTime, StageConfirmed, StageBooked:
		return true
	}
	return false
}

// AppointmentFlow tracks the booking sequence
// CollectingName -> CollectingEmail -> CollectingPhone -> CollectingDateTime -> Confirmed.
// Values may arrive in any order; the stage always points at the first gap.
type AppointmentFlow struct {
	Stage         AppointmentStage `json:"stage,omitempty"`
	RequestedAt   *time.Time       `json:"requested_at,omitempty"`
	AppointmentID string           `json:"appointment_id,omitempty"`
	UpdatedAt     time.Time        `json:"updated_at,omitempty"`
}

func (f *AppointmentFlow) Active() bool {
	return f.Stage != StageIdle && f.Stage != StageBooked
}

// Begin starts a new booking. A previous booked flow is reset.
func (f *AppointmentFlow) Begin(c CustomerFields, now time.Time) {
	if f.Stage == StageBooked {
		*f = AppointmentFlow{}
	}
	f.advance(c, now)
}

func (f *AppointmentFlow) ProposeDateTime(t time.Time, c CustomerFields, now time.Time) {
	if f.Stage == StageBooked {
		*f = AppointmentFlow{}
	}
	at := t.UTC()
	f.RequestedAt = &at
	f.advance(c, now)
}

// Sync recomputes the stage after customer fields change.
func (f *AppointmentFlow) Sync(c CustomerFields, now time.Time) {
	if !f.Active() {
		return
	}
	f.advance(c, now)
}

func (f *AppointmentFlow) MarkBooked(appointmentID string, now time.Time) {
	f.Stage = StageBooked
	f.AppointmentID = appointmentID
	f.UpdatedAt = now.UTC()
}

// NextField names the piece of information still required, or "".
func (f AppointmentFlow) NextField() string {
	switch f.Stage {
	case StageCollectingName:
		return "name"
	case StageCollectingEmail:
		return "email"
	case StageCollectingPhone:
		return "phone"
	case StageCollectingDateTime:
		return "preferred_datetime"
	default:
		return ""
	}
}

func (f *AppointmentFlow) advance(c CustomerFields, now time.Time) {
	switch {
	case c.Name == "":
		f.Stage = StageCollectingName
	case c.Email == "":
		f.Stage = StageCollectingEmail
	case c.Phone == "":
		f.Stage = StageCollectingPhone
	case f.RequestedAt == nil:
		f.Stage = StageCollectingDateTime
	default:
		f.Stage = StageConfirmed
	}
	f.UpdatedAt = now.UTC()
}
