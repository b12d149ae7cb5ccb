/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"testing"

	"github.com/friendsincode/skald_audio/internal/models"
)

func validSchedule() *models.Schedule {
	return &models.Schedule{
		Name:       "Morning Show",
		Collection: "music",
		TimeSlots: []models.TimeSlot{
			{DayOfWeek: "*", StartTime: "09:00", EndTime: "17:00"},
		},
	}
}

func TestValidateAccepts(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(s *models.Schedule)
	}{
		{"wildcard day", func(s *models.Schedule) {}},
		{"day list", func(s *models.Schedule) { s.TimeSlots[0].DayOfWeek = "1,3,5" }},
		{"spaced day list", func(s *models.Schedule) { s.TimeSlots[0].DayOfWeek = "0, 6" }},
		{"zero-length window", func(s *models.Schedule) {
			s.TimeSlots[0].StartTime = "12:00"
			s.TimeSlots[0].EndTime = "12:00"
		}},
		{"bounded dates", func(s *models.Schedule) {
			s.DateRange = models.DateRange{StartDate: "2026-01-01", EndDate: "2026-12-31"}
		}},
		{"open-ended dates", func(s *models.Schedule) {
			s.DateRange = models.DateRange{StartDate: "2026-01-01"}
		}},
	}
	for _, tc := range cases {
		s := validSchedule()
		tc.mutate(s)
		if err := Validate(s); err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(s *models.Schedule)
	}{
		{"empty name", func(s *models.Schedule) { s.Name = "  " }},
		{"no slots", func(s *models.Schedule) { s.TimeSlots = nil }},
		{"bad start time", func(s *models.Schedule) { s.TimeSlots[0].StartTime = "25:00" }},
		{"bad end time", func(s *models.Schedule) { s.TimeSlots[0].EndTime = "17:60" }},
		{"not a time", func(s *models.Schedule) { s.TimeSlots[0].StartTime = "morning" }},
		{"cross-midnight slot", func(s *models.Schedule) {
			s.TimeSlots[0].StartTime = "22:00"
			s.TimeSlots[0].EndTime = "02:00"
		}},
		{"day out of range", func(s *models.Schedule) { s.TimeSlots[0].DayOfWeek = "7" }},
		{"day not a number", func(s *models.Schedule) { s.TimeSlots[0].DayOfWeek = "mon" }},
		{"bad date", func(s *models.Schedule) { s.DateRange.StartDate = "01/02/2026" }},
		{"inverted date range", func(s *models.Schedule) {
			s.DateRange = models.DateRange{StartDate: "2026-06-01", EndDate: "2026-01-01"}
		}},
	}
	for _, tc := range cases {
		s := validSchedule()
		tc.mutate(s)
		if err := Validate(s); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}
