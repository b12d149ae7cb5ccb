/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/friendsincode/skald_audio/internal/auth"
	"github.com/friendsincode/skald_audio/internal/logbuffer"
	"github.com/friendsincode/skald_audio/internal/models"
	"github.com/friendsincode/skald_audio/internal/schedule"
	"github.com/friendsincode/skald_audio/internal/store"
)

const tokenTTL = 24 * time.Hour

var (
	errNotFound = errors.New("not found")
	errConflict = errors.New("already exists")
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	doc := s.store.Snapshot()
	var user *models.User
	for _, u := range doc.Users {
		if strings.EqualFold(u.Email, req.Email) {
			user = u
			break
		}
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		s.logger.Warn().Str("email", req.Email).Msg("failed login attempt")
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	token, err := auth.Issue([]byte(s.cfg.JWTSigningKey), auth.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	}, tokenTTL)
	if err != nil {
		s.logger.Error().Err(err).Msg("token issue failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	s.logger.Info().Str("email", user.Email).Str("role", string(user.Role)).Msg("login")
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user": map[string]string{
			"id":    user.ID,
			"email": user.Email,
			"role":  string(user.Role),
		},
	})
}

// handleLogout exists for the admin UI; tokens are stateless so there is
// nothing to revoke server-side.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	doc := s.store.Snapshot()
	now := s.now()
	active := schedule.ActiveScheduleIDs(doc, now)

	writeJSON(w, http.StatusOK, map[string]any{
		"activeSchedules": active,
		"collections":     len(doc.Collections),
		"schedules":       len(doc.Schedules),
		"users":           len(doc.Users),
		"serverTime":      now.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleAdminLogs(w http.ResponseWriter, r *http.Request) {
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	entries := s.logBuffer.Query(logbuffer.QueryParams{
		Level:      r.URL.Query().Get("level"),
		Component:  r.URL.Query().Get("component"),
		Search:     r.URL.Query().Get("q"),
		Limit:      limit,
		Descending: true,
	})
	writeJSON(w, http.StatusOK, map[string]any{"logs": entries, "stats": s.logBuffer.Stats()})
}

// handleConfigGet exports the full document with password hashes stripped.
func (s *Server) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	doc := s.store.Snapshot()
	for _, u := range doc.Users {
		u.Password = ""
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleConfigReplace imports a full document. Users arriving with an empty
// password keep the stored hash, so a GET/POST round trip does not lock
// anyone out.
func (s *Server) handleConfigReplace(w http.ResponseWriter, r *http.Request) {
	var incoming models.Document
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	// Imports get the same validation as piecemeal edits, so a bad export
	// cannot smuggle malformed slots or path-carrying filenames into the
	// store.
	for id, col := range incoming.Collections {
		if err := validateCollection(col); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("collection %s: %s", id, err))
			return
		}
	}
	for id, sched := range incoming.Schedules {
		if err := schedule.Validate(sched); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("schedule %s: %s", id, err))
			return
		}
	}

	err := s.store.Mutate(func(doc *models.Document) error {
		for id, u := range incoming.Users {
			if u.Password == "" {
				if prev, ok := doc.Users[id]; ok {
					u.Password = prev.Password
				}
			}
		}
		*doc = incoming
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("config import failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	s.logger.Info().Msg("configuration imported")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	var req models.Settings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_timezone")
			return
		}
	}

	err := s.store.Mutate(func(doc *models.Document) error {
		doc.Settings = req
		// Restamp every slot so the timezone change takes effect on existing
		// schedules.
		for _, sched := range doc.Schedules {
			store.StampSlotTimezones(sched, doc.Settings.Timezone)
		}
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	s.logger.Info().Str("timezone", req.Timezone).Msg("settings updated")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Reset(); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	s.logger.Warn().Msg("configuration reset to empty defaults")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleBrowse lists audio files in a directory under the audio root, for
// picking collection contents in the admin UI.
func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	files, err := s.locator.ListDir(path, audioExtensions())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_path")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "files": files})
}

func (s *Server) handleCollectionsList(w http.ResponseWriter, r *http.Request) {
	doc := s.store.Snapshot()
	out := make([]*models.Collection, 0, len(doc.Collections))
	for _, id := range doc.CollectionIDs() {
		out = append(out, doc.Collections[id])
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": out})
}

func (s *Server) handleCollectionCreate(w http.ResponseWriter, r *http.Request) {
	var col models.Collection
	if err := json.NewDecoder(r.Body).Decode(&col); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := validateCollection(&col); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	col.ID = models.SlugID(col.Name)

	err := s.store.Mutate(func(doc *models.Document) error {
		if _, exists := doc.Collections[col.ID]; exists {
			return errConflict
		}
		doc.Collections[col.ID] = &col
		return nil
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Info().Str("collection", col.ID).Int("files", len(col.Files)).Msg("collection created")
	writeJSON(w, http.StatusCreated, &col)
}

func (s *Server) handleCollectionUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var col models.Collection
	if err := json.NewDecoder(r.Body).Decode(&col); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := validateCollection(&col); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// The id is assigned at creation and stays stable across renames.
	col.ID = id

	err := s.store.Mutate(func(doc *models.Document) error {
		if _, exists := doc.Collections[id]; !exists {
			return errNotFound
		}
		doc.Collections[id] = &col
		return nil
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &col)
}

func (s *Server) handleCollectionDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.store.Mutate(func(doc *models.Document) error {
		if _, exists := doc.Collections[id]; !exists {
			return errNotFound
		}
		delete(doc.Collections, id)
		return nil
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Info().Str("collection", id).Msg("collection deleted")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSchedulesList(w http.ResponseWriter, r *http.Request) {
	doc := s.store.Snapshot()
	out := make([]*models.Schedule, 0, len(doc.Schedules))
	for _, id := range doc.ScheduleIDs() {
		out = append(out, doc.Schedules[id])
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": out})
}

func (s *Server) handleScheduleCreate(w http.ResponseWriter, r *http.Request) {
	var sched models.Schedule
	if err := json.NewDecoder(r.Body).Decode(&sched); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := schedule.Validate(&sched); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sched.ID = models.SlugID(sched.Name)

	err := s.store.Mutate(func(doc *models.Document) error {
		if _, exists := doc.Schedules[sched.ID]; exists {
			return errConflict
		}
		store.StampSlotTimezones(&sched, doc.Settings.Timezone)
		doc.Schedules[sched.ID] = &sched
		return nil
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Info().Str("schedule", sched.ID).Str("collection", sched.Collection).Msg("schedule created")
	writeJSON(w, http.StatusCreated, &sched)
}

func (s *Server) handleScheduleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var sched models.Schedule
	if err := json.NewDecoder(r.Body).Decode(&sched); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := schedule.Validate(&sched); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sched.ID = id

	err := s.store.Mutate(func(doc *models.Document) error {
		if _, exists := doc.Schedules[id]; !exists {
			return errNotFound
		}
		store.StampSlotTimezones(&sched, doc.Settings.Timezone)
		doc.Schedules[id] = &sched
		return nil
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &sched)
}

func (s *Server) handleScheduleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.store.Mutate(func(doc *models.Document) error {
		if _, exists := doc.Schedules[id]; !exists {
			return errNotFound
		}
		delete(doc.Schedules, id)
		// Drop user grants pointing at the deleted schedule.
		for userID, ids := range doc.UserSchedules {
			kept := ids[:0]
			for _, sid := range ids {
				if sid != id {
					kept = append(kept, sid)
				}
			}
			if len(kept) == 0 {
				delete(doc.UserSchedules, userID)
			} else {
				doc.UserSchedules[userID] = kept
			}
		}
		return nil
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Info().Str("schedule", id).Msg("schedule deleted")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScheduleToggle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var enabled bool
	err := s.store.Mutate(func(doc *models.Document) error {
		sched, exists := doc.Schedules[id]
		if !exists {
			return errNotFound
		}
		sched.Enabled = !sched.Enabled
		enabled = sched.Enabled
		return nil
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Info().Str("schedule", id).Bool("enabled", enabled).Msg("schedule toggled")
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "enabled": enabled})
}

func (s *Server) handleUsersList(w http.ResponseWriter, r *http.Request) {
	doc := s.store.Snapshot()
	out := make([]*models.User, 0, len(doc.Users))
	for _, u := range doc.Users {
		u.Password = ""
		out = append(out, u)
	}
	sortUsersByEmail(out)
	writeJSON(w, http.StatusOK, map[string]any{
		"users":         out,
		"userSchedules": doc.UserSchedules,
	})
}

func (s *Server) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "invalid_email")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password_too_short")
		return
	}
	role := models.RoleName(req.Role)
	if role == "" {
		role = models.RoleListener
	}
	if role != models.RoleAdmin && role != models.RoleListener {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	user := &models.User{
		ID:        uuid.NewString(),
		Email:     req.Email,
		Password:  string(hash),
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	err = s.store.Mutate(func(doc *models.Document) error {
		for _, u := range doc.Users {
			if strings.EqualFold(u.Email, user.Email) {
				return errConflict
			}
		}
		doc.Users[user.ID] = user
		return nil
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.logger.Info().Str("email", user.Email).Str("role", string(user.Role)).Msg("user created")
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":    user.ID,
		"email": user.Email,
		"role":  string(user.Role),
	})
}

func (s *Server) handleUserAssignSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     string `json:"userId"`
		ScheduleID string `json:"scheduleId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	err := s.store.Mutate(func(doc *models.Document) error {
		if _, ok := doc.Users[req.UserID]; !ok {
			return errNotFound
		}
		if _, ok := doc.Schedules[req.ScheduleID]; !ok {
			return errNotFound
		}
		for _, sid := range doc.UserSchedules[req.UserID] {
			if sid == req.ScheduleID {
				return nil
			}
		}
		doc.UserSchedules[req.UserID] = append(doc.UserSchedules[req.UserID], req.ScheduleID)
		return nil
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUserRemoveSchedules(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	err := s.store.Mutate(func(doc *models.Document) error {
		if _, ok := doc.Users[req.UserID]; !ok {
			return errNotFound
		}
		delete(doc.UserSchedules, req.UserID)
		return nil
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func validateCollection(col *models.Collection) error {
	if strings.TrimSpace(col.Name) == "" {
		return errors.New("collection name is required")
	}
	for _, f := range col.Files {
		if f == "" || strings.ContainsAny(f, "/\\") || f == "." || f == ".." {
			return errors.New("files must be bare filenames")
		}
	}
	return nil
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, errConflict):
		writeError(w, http.StatusConflict, "already_exists")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

func sortUsersByEmail(users []*models.User) {
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
}
