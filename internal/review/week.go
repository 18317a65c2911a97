package review

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// WeekPolicy fixes where a progress week begins: Start at 00:00 in Location.
// The same cutoff applies to every reviewer.
type WeekPolicy struct {
	Location *time.Location
	Start    time.Weekday
}

// DefaultWeekPolicy starts weeks on Monday 00:00 UTC.
func DefaultWeekPolicy() WeekPolicy {
	return WeekPolicy{Location: time.UTC, Start: time.Monday}
}

// NewWeekPolicy builds a policy from an IANA zone name and a weekday name.
func NewWeekPolicy(timezone, start string) (WeekPolicy, error) {
	p := DefaultWeekPolicy()
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return WeekPolicy{}, fmt.Errorf("loading timezone %q: %w", timezone, err)
		}
		p.Location = loc
	}
	if start != "" {
		wd, err := ParseWeekday(start)
		if err != nil {
			return WeekPolicy{}, err
		}
		p.Start = wd
	}
	return p, nil
}

// ParseWeekday accepts full or three-letter English weekday names.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// StartOf returns the beginning of the week containing t.
func (p WeekPolicy) StartOf(t time.Time) time.Time {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	back := (int(lt.Weekday()) - int(p.Start) + 7) % 7
	return time.Date(lt.Year(), lt.Month(), lt.Day()-back, 0, 0, 0, 0, loc)
}
