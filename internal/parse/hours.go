// Package parse holds the pure parsers that turn raw scraped fragments
// into typed values. Every parser degrades to "not parseable" instead of
// returning an error: a bad fragment costs one field from one source,
// never the run.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/placedir/refresh-cli/internal/model"
)

var dayAliases = map[string]time.Weekday{
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "weds": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
	"sun": time.Sunday, "sunday": time.Sunday,
}

var (
	// "Mon-Fri", "Monday - Friday"
	dayRangeRe = regexp.MustCompile(`(?i)\b([a-z]{3,9})\.?\s*[-–]\s*([a-z]{3,9})\.?\b`)
	// standalone day mentions
	dayRe = regexp.MustCompile(`(?i)\b(mon|monday|tue|tues|tuesday|wed|weds|wednesday|thu|thur|thurs|thursday|fri|friday|sat|saturday|sun|sunday)\.?\b`)
	// "09:00-17:00", "9am - 5pm", "9:30 AM – 10 PM"
	timeRangeRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*[-–]\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
	closedRe    = regexp.MustCompile(`(?i)\bclosed\b`)
)

// ParseHours turns free-text opening hours into the canonical weekly
// schedule. It accepts lines like "Mon-Fri 09:00-17:00", "Sat 10am-2pm",
// "Sunday: closed" and multi-interval days ("11:00-14:00, 17:00-22:00").
// Days the text never mentions stay absent; a single-day line is never
// extrapolated to the rest of the week. Returns ok=false when nothing
// usable was found.
func ParseHours(text string) (model.WeekSchedule, bool) {
	sched := make(model.WeekSchedule)

	for _, seg := range splitSegments(text) {
		days, rest := extractDays(seg)
		if len(days) == 0 {
			continue
		}

		if closedRe.MatchString(rest) {
			for _, d := range days {
				sched[d] = model.DayHours{Closed: true}
			}
			continue
		}

		intervals := extractIntervals(rest)
		if len(intervals) == 0 {
			continue
		}
		for _, d := range days {
			existing := sched[d]
			existing.Closed = false
			existing.Intervals = append(existing.Intervals, intervals...)
			sched[d] = existing
		}
	}

	if len(sched) == 0 {
		return nil, false
	}
	return sched, true
}

// splitSegments breaks hour text into per-day-group chunks.
func splitSegments(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == ';' || r == '|' || r == '•'
	})
}

// extractDays pulls the weekday list off the front of a segment and
// returns it with the remaining text. Ranges expand in calendar order
// and may wrap past Sunday ("Fri-Mon").
func extractDays(seg string) ([]time.Weekday, string) {
	rest := seg
	var days []time.Weekday
	seen := make(map[time.Weekday]bool)

	add := func(d time.Weekday) {
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}

	for _, m := range dayRangeRe.FindAllStringSubmatch(seg, -1) {
		from, okFrom := dayAliases[strings.ToLower(m[1])]
		to, okTo := dayAliases[strings.ToLower(m[2])]
		if !okFrom || !okTo {
			continue
		}
		for d := from; ; d = (d + 1) % 7 {
			add(d)
			if d == to {
				break
			}
		}
		rest = strings.Replace(rest, m[0], " ", 1)
	}

	for _, m := range dayRe.FindAllString(rest, -1) {
		if d, ok := dayAliases[strings.ToLower(strings.TrimSuffix(m, "."))]; ok {
			add(d)
		}
	}
	rest = dayRe.ReplaceAllString(rest, " ")

	return days, rest
}

// extractIntervals finds every open-close time range in the text.
func extractIntervals(text string) []model.Interval {
	var out []model.Interval
	for _, m := range timeRangeRe.FindAllStringSubmatch(text, -1) {
		open, okOpen := clock(m[1], m[2], m[3], m[6], false)
		clos, okClose := clock(m[4], m[5], m[6], m[3], true)
		if !okOpen || !okClose {
			continue
		}
		out = append(out, model.Interval{Open: open, Close: clos})
	}
	return out
}

// clock normalizes one time token to "HH:MM". A bare hour with no am/pm
// marker of its own borrows the marker from the other side of the range
// ("9-5pm" reads as 09:00-17:00); an ambiguous small hour without any
// marker is taken as written, since "14-22" style 24h text has none.
func clock(hourStr, minStr, meridiem, otherMeridiem string, isClose bool) (string, bool) {
	hour, err := strconv.Atoi(hourStr)
	if err != nil {
		return "", false
	}
	minute := 0
	if minStr != "" {
		minute, err = strconv.Atoi(minStr)
		if err != nil {
			return "", false
		}
	}
	if minute < 0 || minute > 59 {
		return "", false
	}

	mer := strings.ToLower(meridiem)
	if mer == "" && hour <= 12 {
		// Borrow the other side's marker so "9-5pm" resolves sanely.
		if other := strings.ToLower(otherMeridiem); other != "" {
			if isClose || other == "am" {
				mer = other
			}
		}
	}
	switch mer {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}

	if hour == 24 {
		hour = 0
	}
	if hour < 0 || hour > 23 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// HoursFromSpecs converts schema.org openingHoursSpecification entries to
// the canonical schedule. Entries with unknown days or malformed times
// are skipped rather than failing the whole list.
func HoursFromSpecs(specs []OpeningHoursSpec) (model.WeekSchedule, bool) {
	sched := make(model.WeekSchedule)

	for _, spec := range specs {
		days := spec.Weekdays()
		if len(days) == 0 {
			continue
		}

		if spec.Opens == "" && spec.Closes == "" {
			// Day listed with no times: schema.org convention for closed.
			for _, d := range days {
				sched[d] = model.DayHours{Closed: true}
			}
			continue
		}

		open, okOpen := normalizeSpecTime(spec.Opens)
		clos, okClose := normalizeSpecTime(spec.Closes)
		if !okOpen || !okClose {
			continue
		}
		if open == "00:00" && clos == "00:00" {
			for _, d := range days {
				sched[d] = model.DayHours{Closed: true}
			}
			continue
		}
		for _, d := range days {
			existing := sched[d]
			existing.Closed = false
			existing.Intervals = append(existing.Intervals, model.Interval{Open: open, Close: clos})
			sched[d] = existing
		}
	}

	if len(sched) == 0 {
		return nil, false
	}
	return sched, true
}

// normalizeSpecTime accepts "09:00", "09:00:00" or "9:00" schema.org
// time values.
func normalizeSpecTime(s string) (string, bool) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return "", false
	}
	return clock(parts[0], parts[1], "", "", false)
}
