/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule evaluates which schedules, and therefore which files, are
// live at a given instant. Everything here is pure: callers pass a document
// snapshot and a reference time and get a deterministic answer.
package schedule

import (
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/skald_audio/internal/models"
)

// DefaultTimezone applies when neither the schedule slots nor the global
// settings carry a usable zone name.
const DefaultTimezone = "Asia/Kolkata"

// EffectiveTimezone resolves the zone a schedule is evaluated in: the first
// slot's zone, then the global setting, then DefaultTimezone.
func EffectiveTimezone(s *models.Schedule, globalTZ string) string {
	if len(s.TimeSlots) > 0 && s.TimeSlots[0].Timezone != "" {
		return s.TimeSlots[0].Timezone
	}
	if globalTZ != "" {
		return globalTZ
	}
	return DefaultTimezone
}

// IsActive reports whether the schedule's date range and at least one of its
// time slots cover now. Day-of-week, date, and time-of-day are all rendered
// in the schedule's effective timezone. Malformed slot times and unknown
// zone names fail closed: the slot (or the whole schedule) counts as
// inactive rather than erroring.
func IsActive(s *models.Schedule, globalTZ string, now time.Time) bool {
	if len(s.TimeSlots) == 0 {
		return false
	}

	loc, err := time.LoadLocation(EffectiveTimezone(s, globalTZ))
	if err != nil {
		return false
	}
	local := now.In(loc)

	today := local.Format("2006-01-02")
	if s.DateRange.StartDate != "" && today < s.DateRange.StartDate {
		return false
	}
	if s.DateRange.EndDate != "" && today > s.DateRange.EndDate {
		return false
	}

	weekday := int(local.Weekday())
	minute := local.Hour()*60 + local.Minute()

	for _, slot := range s.TimeSlots {
		if slot.DayOfWeek != "*" && !dayListContains(slot.DayOfWeek, weekday) {
			continue
		}
		start, err := minuteOfDay(slot.StartTime)
		if err != nil {
			continue
		}
		end, err := minuteOfDay(slot.EndTime)
		if err != nil {
			continue
		}
		// Inclusive on both ends; slots never wrap past midnight.
		if minute >= start && minute <= end {
			return true
		}
	}
	return false
}

// minuteOfDay parses "HH:MM" into minutes since midnight.
func minuteOfDay(hhmm string) (int, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, strconv.ErrSyntax
	}
	hours, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, err
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, strconv.ErrRange
	}
	return hours*60 + minutes, nil
}

func dayListContains(list string, weekday int) bool {
	for _, part := range strings.Split(list, ",") {
		day, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if day == weekday {
			return true
		}
	}
	return false
}
