/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"sort"
	"strings"
	"time"
)

// RoleName enumerates the account roles.
type RoleName string

const (
	RoleAdmin    RoleName = "admin"
	RoleListener RoleName = "listener"
)

// User represents an authenticated account persisted in the config document.
// Password holds a bcrypt hash, never plaintext.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"password,omitempty"`
	Role      RoleName  `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Settings holds the global runtime-configurable options.
type Settings struct {
	Timezone string `json:"timezone"`
}

// Collection is a named group of audio filenames plus their source directory.
// Files contains bare filenames only, no directory components.
type Collection struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Path  string   `json:"path"`
	Files []string `json:"files"`
}

// TimeSlot is one recurring weekly window within a schedule.
// DayOfWeek is "*" or a comma-separated list of integers 0-6 (0=Sunday).
// StartTime and EndTime are "HH:MM" 24h; slots spanning midnight are not
// representable.
type TimeSlot struct {
	DayOfWeek string `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Timezone  string `json:"timezone"`
}

// DateRange bounds a schedule by inclusive ISO dates. An empty string means
// unbounded on that side.
type DateRange struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// Schedule binds a collection to recurring time windows plus an optional
// date range. A dangling Collection reference is tolerated and resolves to
// an empty file list.
type Schedule struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Collection string     `json:"collection"`
	Enabled    bool       `json:"enabled"`
	TimeSlots  []TimeSlot `json:"timeSlots"`
	DateRange  DateRange  `json:"dateRange"`
}

// ActiveFile is a derived record for a filename currently reachable through
// an active schedule. It is never persisted.
type ActiveFile struct {
	Name       string `json:"name"`
	URL        string `json:"url"`
	Collection string `json:"collection"`
	Schedule   string `json:"schedule"`
}

// Document is the full persisted state: one JSON document rewritten on every
// mutation. ActiveSchedules is an advisory snapshot for the dashboard; the
// streaming path never reads it.
type Document struct {
	Settings        Settings               `json:"settings"`
	Users           map[string]*User       `json:"users"`
	UserSchedules   map[string][]string    `json:"userSchedules"`
	ActiveSchedules []string               `json:"activeSchedules"`
	Collections     map[string]*Collection `json:"collections"`
	Schedules       map[string]*Schedule   `json:"schedules"`
}

// NewDocument returns an empty document with all maps initialized.
func NewDocument() *Document {
	return &Document{
		Users:           make(map[string]*User),
		UserSchedules:   make(map[string][]string),
		ActiveSchedules: []string{},
		Collections:     make(map[string]*Collection),
		Schedules:       make(map[string]*Schedule),
	}
}

// Clone returns a deep copy so callers can read without aliasing store state.
func (d *Document) Clone() *Document {
	out := NewDocument()
	out.Settings = d.Settings
	out.ActiveSchedules = append([]string{}, d.ActiveSchedules...)
	for id, u := range d.Users {
		cu := *u
		out.Users[id] = &cu
	}
	for id, ids := range d.UserSchedules {
		out.UserSchedules[id] = append([]string{}, ids...)
	}
	for id, c := range d.Collections {
		cc := *c
		cc.Files = append([]string{}, c.Files...)
		out.Collections[id] = &cc
	}
	for id, s := range d.Schedules {
		cs := *s
		cs.TimeSlots = append([]TimeSlot{}, s.TimeSlots...)
		out.Schedules[id] = &cs
	}
	return out
}

// ScheduleIDs returns schedule ids in ascending order. JSON objects carry no
// insertion order, so ascending id order is the store's canonical iteration
// order and decides which schedule wins duplicate filenames.
func (d *Document) ScheduleIDs() []string {
	ids := make([]string, 0, len(d.Schedules))
	for id := range d.Schedules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CollectionIDs returns collection ids in ascending order.
func (d *Document) CollectionIDs() []string {
	ids := make([]string, 0, len(d.Collections))
	for id := range d.Collections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SlugID derives a stable identifier from a display name: lowercased, with
// every non-alphanumeric rune collapsed to an underscore.
func SlugID(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
