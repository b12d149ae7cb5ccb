/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"net/url"
	"time"

	"github.com/friendsincode/skald_audio/internal/models"
)

// ActiveFiles aggregates the files of every enabled, currently active
// schedule into one deduplicated list, keyed by bare filename; the first
// schedule in store order keeps the attribution. A
// schedule referencing a missing collection contributes nothing.
func ActiveFiles(doc *models.Document, now time.Time) []models.ActiveFile {
	seen := make(map[string]struct{})
	files := []models.ActiveFile{}

	for _, id := range doc.ScheduleIDs() {
		s := doc.Schedules[id]
		if !s.Enabled || !IsActive(s, doc.Settings.Timezone, now) {
			continue
		}
		col, ok := doc.Collections[s.Collection]
		if !ok {
			continue
		}
		for _, name := range col.Files {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			files = append(files, models.ActiveFile{
				Name:       name,
				URL:        "/" + url.PathEscape(name),
				Collection: s.Collection,
				Schedule:   s.ID,
			})
		}
	}
	return files
}

// ActiveScheduleIDs lists the enabled schedules whose windows cover now, in
// store order. Used for the advisory dashboard snapshot only.
func ActiveScheduleIDs(doc *models.Document, now time.Time) []string {
	ids := []string{}
	for _, id := range doc.ScheduleIDs() {
		s := doc.Schedules[id]
		if s.Enabled && IsActive(s, doc.Settings.Timezone, now) {
			ids = append(ids, id)
		}
	}
	return ids
}

// IsFileActive reports whether filename is present in the currently active
// set. The streaming path calls this on every request; nothing is cached.
func IsFileActive(doc *models.Document, filename string, now time.Time) bool {
	for _, f := range ActiveFiles(doc, now) {
		if f.Name == filename {
			return true
		}
	}
	return false
}
