/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/friendsincode/skald_audio/internal/models"
)

// Validate checks a schedule as submitted through the admin API. The matcher
// fails closed on bad slots at evaluation time regardless; this exists so
// operators get told about mistakes at save time instead of silence at
// airtime.
func Validate(s *models.Schedule) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("schedule name is required")
	}
	if len(s.TimeSlots) == 0 {
		return fmt.Errorf("schedule needs at least one time slot")
	}
	for i, slot := range s.TimeSlots {
		if err := validateSlot(slot); err != nil {
			return fmt.Errorf("time slot %d: %w", i+1, err)
		}
	}
	if err := validateDate(s.DateRange.StartDate); err != nil {
		return fmt.Errorf("start date: %w", err)
	}
	if err := validateDate(s.DateRange.EndDate); err != nil {
		return fmt.Errorf("end date: %w", err)
	}
	if s.DateRange.StartDate != "" && s.DateRange.EndDate != "" && s.DateRange.StartDate > s.DateRange.EndDate {
		return fmt.Errorf("date range ends before it starts")
	}
	return nil
}

func validateSlot(slot models.TimeSlot) error {
	start, err := minuteOfDay(slot.StartTime)
	if err != nil {
		return fmt.Errorf("invalid start time %q", slot.StartTime)
	}
	end, err := minuteOfDay(slot.EndTime)
	if err != nil {
		return fmt.Errorf("invalid end time %q", slot.EndTime)
	}
	if start > end {
		return fmt.Errorf("slot %s-%s spans midnight, which is not supported", slot.StartTime, slot.EndTime)
	}

	if slot.DayOfWeek != "*" {
		for _, part := range strings.Split(slot.DayOfWeek, ",") {
			day, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || day < 0 || day > 6 {
				return fmt.Errorf("invalid day of week %q", slot.DayOfWeek)
			}
		}
	}
	return nil
}

func validateDate(date string) error {
	if date == "" {
		return nil
	}
	if len(date) != 10 || date[4] != '-' || date[7] != '-' {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	for i, r := range date {
		if i == 4 || i == 7 {
			continue
		}
		if r < '0' || r > '9' {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
		}
	}
	return nil
}
