/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/friendsincode/skald_audio/internal/auth"
	"github.com/friendsincode/skald_audio/internal/models"
	"github.com/friendsincode/skald_audio/internal/schedule"
)

// handleFiles returns the snapshot of currently active files. Public and
// unauthenticated; recomputed on every call.
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	doc := s.store.Snapshot()
	files := schedule.ActiveFiles(doc, s.now())
	writeJSON(w, http.StatusOK, map[string]any{"audioFiles": files})
}

// handleStatus reports availability counters and the server clock.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	doc := s.store.Snapshot()
	now := s.now()

	tz := doc.Settings.Timezone
	if tz == "" {
		tz = schedule.DefaultTimezone
	}
	serverTime := now.UTC().Format(time.RFC3339)
	if loc, err := time.LoadLocation(tz); err == nil {
		serverTime = now.In(loc).Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"filesAvailable":  len(schedule.ActiveFiles(doc, now)),
		"activeSchedules": schedule.ActiveScheduleIDs(doc, now),
		"serverTime":      serverTime,
		"timezone":        tz,
	})
}

// handleMySchedules lists the schedules granted to the authenticated user.
func (s *Server) handleMySchedules(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	doc := s.store.Snapshot()
	schedules := []*models.Schedule{}
	for _, id := range doc.UserSchedules[claims.UserID] {
		if sched, ok := doc.Schedules[id]; ok {
			schedules = append(schedules, sched)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": schedules})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
