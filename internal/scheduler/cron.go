// Package scheduler fires the entry and exit triggers on a 5-field cron
// schedule evaluated in the exchange timezone, with per-day at-most-once
// semantics that survive restarts.
package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cronField is one parsed cron field that can match against a value.
type cronField struct {
	wildcard bool
	values   []int
}

func (f cronField) matches(val int) bool {
	if f.wildcard {
		return true
	}
	for _, v := range f.values {
		if v == val {
			return true
		}
	}
	return false
}

// parseCronField parses a single field: "*", a value, a comma list, or an
// inclusive range such as "1-5".
func parseCronField(field string) (cronField, error) {
	if field == "*" {
		return cronField{wildcard: true}, nil
	}

	var values []int
	for _, p := range strings.Split(field, ",") {
		p = strings.TrimSpace(p)

		if lo, hi, ok := strings.Cut(p, "-"); ok {
			start, err := strconv.Atoi(lo)
			if err != nil {
				return cronField{}, fmt.Errorf("invalid cron range start %q: %w", lo, err)
			}
			end, err := strconv.Atoi(hi)
			if err != nil {
				return cronField{}, fmt.Errorf("invalid cron range end %q: %w", hi, err)
			}
			if end < start {
				return cronField{}, fmt.Errorf("invalid cron range %q", p)
			}
			for v := start; v <= end; v++ {
				values = append(values, v)
			}
			continue
		}

		v, err := strconv.Atoi(p)
		if err != nil {
			return cronField{}, fmt.Errorf("invalid cron field value %q: %w", p, err)
		}
		values = append(values, v)
	}
	return cronField{values: values}, nil
}

// cronSpec holds five parsed cron fields:
// "minute hour day-of-month month day-of-week".
type cronSpec struct {
	minute     cronField
	hour       cronField
	dayOfMonth cronField
	month      cronField
	dayOfWeek  cronField
}

func (c cronSpec) matchesTime(t time.Time) bool {
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dayOfMonth.matches(t.Day()) &&
		c.month.matches(int(t.Month())) &&
		c.dayOfWeek.matches(int(t.Weekday()))
}

func parseCron(expr string) (cronSpec, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return cronSpec{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	names := []string{"minute", "hour", "day-of-month", "month", "day-of-week"}
	parsed := make([]cronField, 5)
	for i, f := range fields {
		cf, err := parseCronField(f)
		if err != nil {
			return cronSpec{}, fmt.Errorf("parsing %s field: %w", names[i], err)
		}
		parsed[i] = cf
	}

	return cronSpec{
		minute:     parsed[0],
		hour:       parsed[1],
		dayOfMonth: parsed[2],
		month:      parsed[3],
		dayOfWeek:  parsed[4],
	}, nil
}

// next returns the first matching time strictly after 'after', searching
// minute-by-minute up to one year ahead.
func (c cronSpec) next(after time.Time) (time.Time, error) {
	candidate := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(366 * 24 * time.Hour)

	for candidate.Before(limit) {
		if c.matchesTime(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("no matching cron time within one year")
}

// prev returns the most recent matching time at or before 'at', searching
// back at most 'window'. The zero time and false mean no match in the window.
func (c cronSpec) prev(at time.Time, window time.Duration) (time.Time, bool) {
	candidate := at.Truncate(time.Minute)
	limit := at.Add(-window)

	for !candidate.Before(limit) {
		if c.matchesTime(candidate) {
			return candidate, true
		}
		candidate = candidate.Add(-time.Minute)
	}
	return time.Time{}, false
}
