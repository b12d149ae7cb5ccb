/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"net/http"
	"testing"

	"github.com/friendsincode/skald_audio/internal/models"
)

func TestLogin(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/admin/login", "", map[string]string{
		"email":    testAdminEmail,
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: status = %d, want 401", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/admin/login", "", map[string]string{
		"email":    "nobody@example.com",
		"password": testAdminPassword,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user: status = %d, want 401", rec.Code)
	}

	token := login(t, srv, testAdminEmail, testAdminPassword)

	rec = doRequest(t, srv, http.MethodGet, "/admin/config", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("config with token: status = %d", rec.Code)
	}
}

func TestAdminRequiresToken(t *testing.T) {
	srv := newTestServer(t)

	for _, target := range []string{"/admin/config", "/admin/status", "/admin/logs"} {
		rec := doRequest(t, srv, http.MethodGet, target, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", target, rec.Code)
		}
	}

	rec := doRequest(t, srv, http.MethodGet, "/admin/config", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status = %d, want 401", rec.Code)
	}
}

func TestAdminForbidsListenerRole(t *testing.T) {
	srv := newTestServer(t)
	adminToken := login(t, srv, testAdminEmail, testAdminPassword)

	rec := doRequest(t, srv, http.MethodPost, "/admin/users", adminToken, map[string]string{
		"email":    "listener@example.com",
		"password": "listener-pass",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create listener: status = %d, body %s", rec.Code, rec.Body.String())
	}

	listenerToken := login(t, srv, "listener@example.com", "listener-pass")

	if rec := doRequest(t, srv, http.MethodGet, "/admin/config", listenerToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("listener config: status = %d, want 403", rec.Code)
	}
	// Status and logs are readable by any authenticated account.
	if rec := doRequest(t, srv, http.MethodGet, "/admin/status", listenerToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("listener status: status = %d, want 200", rec.Code)
	}
}

func TestCollectionCRUD(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv, testAdminEmail, testAdminPassword)

	rec := doRequest(t, srv, http.MethodPost, "/admin/collections", token, map[string]any{
		"name":  "Evening Talks",
		"path":  "talks",
		"files": []string{"a.mp3", "b.mp3"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created models.Collection
	decodeBody(t, rec, &created)
	if created.ID != "evening_talks" {
		t.Fatalf("id = %q, want slug of the name", created.ID)
	}

	// Same name again conflicts.
	rec = doRequest(t, srv, http.MethodPost, "/admin/collections", token, map[string]any{
		"name": "Evening Talks", "path": "talks", "files": []string{},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: status = %d, want 409", rec.Code)
	}

	// Filenames with directory components are rejected.
	rec = doRequest(t, srv, http.MethodPost, "/admin/collections", token, map[string]any{
		"name": "Bad", "path": "bad", "files": []string{"../escape.mp3"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("path traversal in files: status = %d, want 400", rec.Code)
	}

	// Rename keeps the id stable.
	rec = doRequest(t, srv, http.MethodPut, "/admin/collections/evening_talks", token, map[string]any{
		"name": "Night Talks", "path": "talks", "files": []string{"a.mp3"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var updated models.Collection
	decodeBody(t, rec, &updated)
	if updated.ID != "evening_talks" || updated.Name != "Night Talks" {
		t.Fatalf("updated = %+v", updated)
	}

	rec = doRequest(t, srv, http.MethodDelete, "/admin/collections/evening_talks", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodDelete, "/admin/collections/evening_talks", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete again: status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/admin/collections", token, nil)
	var list struct {
		Collections []*models.Collection `json:"collections"`
	}
	decodeBody(t, rec, &list)
	if len(list.Collections) != 1 || list.Collections[0].ID != "music" {
		t.Fatalf("collections = %+v", list.Collections)
	}
}

func TestScheduleCRUDAndToggle(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv, testAdminEmail, testAdminPassword)

	rec := doRequest(t, srv, http.MethodPost, "/admin/schedules", token, map[string]any{
		"name":       "Weekend Special",
		"collection": "music",
		"enabled":    true,
		"timeSlots": []map[string]string{
			{"dayOfWeek": "0,6", "startTime": "10:00", "endTime": "12:00"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created models.Schedule
	decodeBody(t, rec, &created)
	if created.ID != "weekend_special" {
		t.Fatalf("id = %q", created.ID)
	}
	// Slot timezone stamped from settings.
	if created.TimeSlots[0].Timezone != "UTC" {
		t.Fatalf("slot timezone = %q, want global setting", created.TimeSlots[0].Timezone)
	}

	// Bad slot times are rejected at save time.
	rec = doRequest(t, srv, http.MethodPost, "/admin/schedules", token, map[string]any{
		"name":       "Broken",
		"collection": "music",
		"timeSlots": []map[string]string{
			{"dayOfWeek": "*", "startTime": "25:00", "endTime": "26:00"},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid slot: status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/admin/schedules/weekend_special/toggle", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle: status = %d", rec.Code)
	}
	var toggled struct {
		Enabled bool `json:"enabled"`
	}
	decodeBody(t, rec, &toggled)
	if toggled.Enabled {
		t.Fatal("toggle should have disabled the schedule")
	}

	rec = doRequest(t, srv, http.MethodDelete, "/admin/schedules/weekend_special", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", rec.Code)
	}
	doc := srv.store.Snapshot()
	if _, ok := doc.Schedules["weekend_special"]; ok {
		t.Fatal("schedule still present after delete")
	}
}

func TestScheduleDeleteDropsUserGrants(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv, testAdminEmail, testAdminPassword)

	rec := doRequest(t, srv, http.MethodPost, "/admin/users", token, map[string]string{
		"email": "listener@example.com", "password": "listener-pass",
	})
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &created)

	rec = doRequest(t, srv, http.MethodPost, "/admin/users/assign-schedule", token, map[string]string{
		"userId": created.ID, "scheduleId": "daytime",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign: status = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodDelete, "/admin/schedules/daytime", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete schedule: status = %d", rec.Code)
	}

	doc := srv.store.Snapshot()
	if _, ok := doc.UserSchedules[created.ID]; ok {
		t.Fatal("user grant survived schedule deletion")
	}
}

func TestUserCreateValidation(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv, testAdminEmail, testAdminPassword)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"no email", map[string]string{"password": "long-enough"}},
		{"bad email", map[string]string{"email": "nope", "password": "long-enough"}},
		{"short password", map[string]string{"email": "x@example.com", "password": "short"}},
		{"bad role", map[string]string{"email": "x@example.com", "password": "long-enough", "role": "owner"}},
	}
	for _, tc := range cases {
		rec := doRequest(t, srv, http.MethodPost, "/admin/users", token, tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}

	// Duplicate email conflicts, case-insensitively.
	rec := doRequest(t, srv, http.MethodPost, "/admin/users", token, map[string]string{
		"email": "Admin@Example.com", "password": "long-enough",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate email: status = %d, want 409", rec.Code)
	}
}

func TestUserRemoveSchedules(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv, testAdminEmail, testAdminPassword)

	rec := doRequest(t, srv, http.MethodPost, "/admin/users", token, map[string]string{
		"email": "listener@example.com", "password": "listener-pass",
	})
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &created)

	doRequest(t, srv, http.MethodPost, "/admin/users/assign-schedule", token, map[string]string{
		"userId": created.ID, "scheduleId": "daytime",
	})

	rec = doRequest(t, srv, http.MethodPost, "/admin/users/remove-schedules", token, map[string]string{
		"userId": created.ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("remove: status = %d", rec.Code)
	}
	doc := srv.store.Snapshot()
	if len(doc.UserSchedules[created.ID]) != 0 {
		t.Fatalf("grants = %v, want none", doc.UserSchedules[created.ID])
	}
}

func TestSettingsUpdateRestampsSlots(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv, testAdminEmail, testAdminPassword)

	rec := doRequest(t, srv, http.MethodPost, "/admin/settings", token, map[string]string{
		"timezone": "America/New_York",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("settings: status = %d, body %s", rec.Code, rec.Body.String())
	}

	doc := srv.store.Snapshot()
	if doc.Settings.Timezone != "America/New_York" {
		t.Fatalf("timezone = %q", doc.Settings.Timezone)
	}
	if got := doc.Schedules["daytime"].TimeSlots[0].Timezone; got != "America/New_York" {
		t.Fatalf("slot timezone = %q, want restamped", got)
	}

	rec = doRequest(t, srv, http.MethodPost, "/admin/settings", token, map[string]string{
		"timezone": "Neverland/Nowhere",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad timezone: status = %d, want 400", rec.Code)
	}
}

func TestConfigRoundTripKeepsPasswords(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv, testAdminEmail, testAdminPassword)

	rec := doRequest(t, srv, http.MethodGet, "/admin/config", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: status = %d", rec.Code)
	}
	var exported models.Document
	decodeBody(t, rec, &exported)
	for _, u := range exported.Users {
		if u.Password != "" {
			t.Fatal("export leaked a password hash")
		}
	}

	rec = doRequest(t, srv, http.MethodPost, "/admin/config", token, exported)
	if rec.Code != http.StatusOK {
		t.Fatalf("import: status = %d, body %s", rec.Code, rec.Body.String())
	}

	// The stored hash survived the import, so login still works.
	login(t, srv, testAdminEmail, testAdminPassword)
}

func TestConfigImportValidates(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv, testAdminEmail, testAdminPassword)

	rec := doRequest(t, srv, http.MethodGet, "/admin/config", token, nil)
	var exported models.Document
	decodeBody(t, rec, &exported)

	withBadSchedule := exported
	withBadSchedule.Schedules = map[string]*models.Schedule{
		"broken": {
			ID: "broken", Name: "Broken", Collection: "music",
			TimeSlots: []models.TimeSlot{
				{DayOfWeek: "*", StartTime: "25:00", EndTime: "26:00"},
			},
		},
	}
	rec = doRequest(t, srv, http.MethodPost, "/admin/config", token, withBadSchedule)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad schedule import: status = %d, want 400", rec.Code)
	}

	withBadCollection := exported
	withBadCollection.Collections = map[string]*models.Collection{
		"bad": {ID: "bad", Name: "Bad", Path: "bad", Files: []string{"../escape.mp3"}},
	}
	rec = doRequest(t, srv, http.MethodPost, "/admin/config", token, withBadCollection)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad collection import: status = %d, want 400", rec.Code)
	}

	// Neither rejected import touched the store.
	doc := srv.store.Snapshot()
	if _, ok := doc.Schedules["broken"]; ok {
		t.Fatal("rejected schedule reached the store")
	}
	if _, ok := doc.Collections["bad"]; ok {
		t.Fatal("rejected collection reached the store")
	}
}

func TestReset(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv, testAdminEmail, testAdminPassword)

	rec := doRequest(t, srv, http.MethodPost, "/admin/reset", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: status = %d", rec.Code)
	}

	doc := srv.store.Snapshot()
	if len(doc.Collections) != 0 || len(doc.Schedules) != 0 || len(doc.Users) != 0 {
		t.Fatalf("document not emptied: %+v", doc)
	}
}

func TestBrowse(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv, testAdminEmail, testAdminPassword)

	rec := doRequest(t, srv, http.MethodGet, "/admin/browse?path=music", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("browse: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Files []string `json:"files"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Files) != 1 || resp.Files[0] != "song.mp3" {
		t.Fatalf("files = %v", resp.Files)
	}

	rec = doRequest(t, srv, http.MethodGet, "/admin/browse?path=../outside", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("escape attempt: status = %d, want 400", rec.Code)
	}
}

func TestAdminLogs(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv, testAdminEmail, testAdminPassword)

	rec := doRequest(t, srv, http.MethodGet, "/admin/logs?limit=10", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logs: status = %d", rec.Code)
	}
}
