/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/friendsincode/skald_audio/internal/models"
)

func TestFilesListsActive(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/files", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		AudioFiles []models.ActiveFile `json:"audioFiles"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.AudioFiles) != 1 {
		t.Fatalf("audioFiles = %v, want exactly song.mp3", resp.AudioFiles)
	}
	got := resp.AudioFiles[0]
	if got.Name != "song.mp3" || got.URL != "/song.mp3" {
		t.Fatalf("got %+v", got)
	}
	if got.Collection != "music" || got.Schedule != "daytime" {
		t.Fatalf("got %+v", got)
	}
}

func TestFilesEmptyOutsideWindow(t *testing.T) {
	srv := newTestServer(t)
	srv.now = func() time.Time {
		return time.Date(2026, time.March, 4, 23, 30, 0, 0, time.UTC)
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/files", "", nil)
	var resp struct {
		AudioFiles []models.ActiveFile `json:"audioFiles"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.AudioFiles) != 0 {
		t.Fatalf("audioFiles = %v, want empty", resp.AudioFiles)
	}
}

func TestRootServesSameListing(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		AudioFiles []models.ActiveFile `json:"audioFiles"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.AudioFiles) != 1 {
		t.Fatalf("audioFiles = %v", resp.AudioFiles)
	}
}

func TestStatus(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/status", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		FilesAvailable  int      `json:"filesAvailable"`
		ActiveSchedules []string `json:"activeSchedules"`
		ServerTime      string   `json:"serverTime"`
		Timezone        string   `json:"timezone"`
	}
	decodeBody(t, rec, &resp)
	if resp.FilesAvailable != 1 {
		t.Fatalf("filesAvailable = %d", resp.FilesAvailable)
	}
	if len(resp.ActiveSchedules) != 1 || resp.ActiveSchedules[0] != "daytime" {
		t.Fatalf("activeSchedules = %v", resp.ActiveSchedules)
	}
	if resp.Timezone != "UTC" {
		t.Fatalf("timezone = %q", resp.Timezone)
	}
	if _, err := time.Parse(time.RFC3339, resp.ServerTime); err != nil {
		t.Fatalf("serverTime %q not RFC3339: %v", resp.ServerTime, err)
	}
}

func TestMySchedules(t *testing.T) {
	srv := newTestServer(t)

	if rec := doRequest(t, srv, http.MethodGet, "/api/my/schedules", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}

	adminToken := login(t, srv, testAdminEmail, testAdminPassword)

	rec := doRequest(t, srv, http.MethodPost, "/admin/users", adminToken, map[string]string{
		"email":    "listener@example.com",
		"password": "listener-pass",
		"role":     "listener",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &created)

	rec = doRequest(t, srv, http.MethodPost, "/admin/users/assign-schedule", adminToken, map[string]string{
		"userId":     created.ID,
		"scheduleId": "daytime",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign: status = %d, body %s", rec.Code, rec.Body.String())
	}

	listenerToken := login(t, srv, "listener@example.com", "listener-pass")
	rec = doRequest(t, srv, http.MethodGet, "/api/my/schedules", listenerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("my schedules: status = %d", rec.Code)
	}
	var resp struct {
		Schedules []*models.Schedule `json:"schedules"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Schedules) != 1 || resp.Schedules[0].ID != "daytime" {
		t.Fatalf("schedules = %+v", resp.Schedules)
	}
}
