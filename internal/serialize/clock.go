package serialize

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// timestampLayouts are the device timestamp formats accepted in payloads.
// Values without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// DeviceClock translates device-side timestamps onto the server clock. A
// payload carrying both a timestamp and "called" (the device time when the
// request was sent) is stored as now - (called - timestamp), which removes
// any skew of the device clock.
type DeviceClock struct {
	clock clockwork.Clock
}

// NewDeviceClock returns a DeviceClock reading the given clock.
func NewDeviceClock(clock clockwork.Clock) *DeviceClock {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DeviceClock{clock: clock}
}

// Now returns the current server time in UTC.
func (c *DeviceClock) Now() time.Time {
	return c.clock.Now().UTC()
}

// Resolve returns the server time for payload key. present reports whether
// the key was in the payload at all; when it is absent the current time is
// returned. When "called" is absent the current time is used as well.
func (c *DeviceClock) Resolve(data map[string]any, key string) (t time.Time, present bool, err error) {
	now := c.Now()

	raw, ok := data[key]
	if !ok || raw == nil {
		return now, false, nil
	}
	calledRaw, ok := data["called"]
	if !ok || calledRaw == nil {
		return now, true, nil
	}

	ts, ok := parseTimestamp(raw)
	if !ok {
		return time.Time{}, true, ValidationErrors{key: "Enter a valid date/time."}
	}
	called, ok := parseTimestamp(calledRaw)
	if !ok {
		return time.Time{}, true, ValidationErrors{"called": "Enter a valid date/time."}
	}
	return now.Add(-called.Sub(ts)), true, nil
}

func parseTimestamp(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
