// Package window normalizes user-supplied start/end instants onto the
// marketplace's scheduling grid.
//
// Internally all rounding happens on epoch-minutes (whole minutes since
// the Unix epoch): every submitted start lies on a minute boundary and
// every submitted end lies on an hour boundary. "NOW" is a sentinel, not
// a timestamp — it is resolved at the moment it is consumed, so a start
// captured at quote time never leaks into submission after the user has
// sat on the confirmation prompt.
package window

import (
	"fmt"
	"strings"
	"time"
)

// Instant is either an absolute timestamp or the NOW sentinel.
// The zero value is NOW.
type Instant struct {
	fixed bool
	t     time.Time
}

// Now returns the NOW sentinel.
func Now() Instant { return Instant{} }

// At returns a fixed instant.
func At(t time.Time) Instant { return Instant{fixed: true, t: t} }

func (i Instant) IsNow() bool { return !i.fixed }

// Time returns the fixed timestamp. Panics on the NOW sentinel; callers
// must resolve first.
func (i Instant) Time() time.Time {
	if !i.fixed {
		panic("window: Time() on NOW sentinel")
	}
	return i.t
}

func (i Instant) String() string {
	if !i.fixed {
		return "NOW"
	}
	return i.t.Format(time.RFC3339)
}

// Parse accepts "NOW" (any case) or an RFC3339 timestamp.
func Parse(s string) (Instant, error) {
	if s == "" || strings.EqualFold(s, "NOW") {
		return Now(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Instant{}, fmt.Errorf("invalid start time %q: %w", s, err)
	}
	return At(t), nil
}

const minutesPerHour = 60

func epochMinute(t time.Time) int64 {
	return t.Unix() / 60
}

func fromEpochMinute(m int64) time.Time {
	return time.Unix(m*60, 0).UTC()
}

// nextMinute is the start of the next whole minute strictly after now.
func nextMinute(now time.Time) time.Time {
	return fromEpochMinute(epochMinute(now) + 1)
}

// ceilHour rounds t up to the next hour boundary; hour-aligned inputs
// are returned unchanged.
func ceilHour(t time.Time) time.Time {
	m := epochMinute(t)
	if t.Unix()%60 != 0 {
		m++
	}
	if rem := m % minutesPerHour; rem != 0 {
		m += minutesPerHour - rem
	}
	return fromEpochMinute(m)
}

// ResolveStart maps a start instant to the concrete timestamp submitted
// to the marketplace. NOW, and any instant within one minute of now,
// becomes the start of the next whole minute — "now" orders must not race
// the platform's minute-granularity clock. Explicit future starts round
// up to the next hour boundary.
//
// Pure given now. Callers re-resolve immediately before submission rather
// than reusing a value computed at quote time.
func ResolveStart(i Instant, now time.Time) time.Time {
	if i.IsNow() {
		return nextMinute(now)
	}
	t := i.Time()
	if d := t.Sub(now); d < time.Minute && d > -time.Minute {
		return nextMinute(now)
	}
	return ceilHour(t)
}

// ResolveEnd rounds an end timestamp up to the next hour boundary.
// Hour-aligned ends are a no-op, not pushed to the following hour.
func ResolveEnd(t time.Time) time.Time {
	return ceilHour(t)
}
