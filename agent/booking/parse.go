package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

var ErrUnparsableTime = errors.New("could not understand the requested date and time")

var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseDateTime reads an appointment time proposed by the model. ISO values
// are tried first; anything else goes through the natural language parser,
// preferring future dates relative to now.
func ParseDateTime(raw string, now time.Time, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrUnparsableTime
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}

	parser := dps.Parser{}
	parsed, err := parser.Parse(&dps.Configuration{
		CurrentTime:         now.In(loc),
		DefaultTimezone:     loc,
		PreferredDateSource: dps.Future,
	}, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrUnparsableTime, err)
	}
	if parsed.IsZero() {
		return time.Time{}, ErrUnparsableTime
	}
	return parsed.Time, nil
}
