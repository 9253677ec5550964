package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Interval is a single open/close span in 24h "HH:MM" form.
// Close may be earlier than Open, meaning the span crosses midnight.
type Interval struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// DayHours is the schedule for one weekday: either explicitly closed or
// an ordered list of open intervals (lunch breaks yield two intervals).
type DayHours struct {
	Closed    bool       `json:"closed,omitempty"`
	Intervals []Interval `json:"intervals,omitempty"`
}

// WeekSchedule is the canonical opening-hours form the rest of the system
// reads. Days absent from the map are unknown, which is distinct from an
// explicit closed day.
type WeekSchedule map[time.Weekday]DayHours

var dayNames = map[time.Weekday]string{
	time.Monday:    "monday",
	time.Tuesday:   "tuesday",
	time.Wednesday: "wednesday",
	time.Thursday:  "thursday",
	time.Friday:    "friday",
	time.Saturday:  "saturday",
	time.Sunday:    "sunday",
}

var daysByName = func() map[string]time.Weekday {
	m := make(map[string]time.Weekday, len(dayNames))
	for d, n := range dayNames {
		m[n] = d
	}
	return m
}()

// DayName returns the lowercase English name used in the serialized form.
func DayName(d time.Weekday) string {
	return dayNames[d]
}

// WeekdayByName resolves a serialized day name back to a weekday.
func WeekdayByName(name string) (time.Weekday, bool) {
	d, ok := daysByName[strings.ToLower(name)]
	return d, ok
}

// MarshalJSON serializes the schedule keyed by lowercase day name so the
// stored form is stable and readable outside Go.
func (w WeekSchedule) MarshalJSON() ([]byte, error) {
	if w == nil {
		return []byte("null"), nil
	}
	out := make(map[string]DayHours, len(w))
	for day, h := range w {
		out[dayNames[day]] = h
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a schedule from its day-name keyed form.
func (w *WeekSchedule) UnmarshalJSON(data []byte) error {
	var raw map[string]DayHours
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*w = nil
		return nil
	}
	sched := make(WeekSchedule, len(raw))
	for name, h := range raw {
		day, ok := daysByName[strings.ToLower(name)]
		if !ok {
			return fmt.Errorf("model: unknown weekday %q", name)
		}
		sched[day] = h
	}
	*w = sched
	return nil
}

// Days returns the known weekdays in Monday-first order.
func (w WeekSchedule) Days() []time.Weekday {
	days := make([]time.Weekday, 0, len(w))
	for d := range w {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool {
		return mondayFirst(days[i]) < mondayFirst(days[j])
	})
	return days
}

func mondayFirst(d time.Weekday) int {
	if d == time.Sunday {
		return 6
	}
	return int(d) - 1
}
