package persona

import (
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

const datetimeLayout = "Monday, January 2, 2006, 3:04 PM MST"

// Renderer fills per-turn placeholders in instruction templates.
type Renderer struct {
	DealershipName string
	Location       *time.Location
}

func (r Renderer) Render(instruction string, at time.Time, channel contractx.Channel) string {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	return strings.NewReplacer(
		"{{current_datetime}}", at.In(loc).Format(datetimeLayout),
		"{{user_channel}}", ChannelLabel(channel),
		"{{dealership_name}}", r.DealershipName,
	).Replace(instruction)
}

func ChannelLabel(c contractx.Channel) string {
	switch c {
	case contractx.ChannelSMS:
		return "SMS"
	case contractx.ChannelSocial:
		return "Social (Instagram/Facebook)"
	default:
		return "Webchat"
	}
}
