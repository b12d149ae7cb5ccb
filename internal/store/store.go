/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store owns the persisted configuration document: collections,
// schedules, settings, users. Readers get deep-copied snapshots; writers go
// through Mutate, which serializes the whole document back to disk.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skald_audio/internal/models"
)

// Store holds the in-memory document and its file-backed snapshot.
type Store struct {
	mu     sync.RWMutex
	doc    *models.Document
	path   string
	logger zerolog.Logger
}

// Open loads the document from path. A missing or corrupt file falls back to
// an empty default document rather than refusing to start.
func Open(path string, logger zerolog.Logger) *Store {
	s := &Store{
		doc:    models.NewDocument(),
		path:   path,
		logger: logger.With().Str("component", "store").Logger(),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info().Str("path", path).Msg("no existing state file, starting empty")
		} else {
			s.logger.Warn().Err(err).Str("path", path).Msg("state file unreadable, starting empty")
		}
		return s
	}

	doc := models.NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("state file corrupt, starting empty")
		return s
	}
	normalize(doc)
	s.doc = doc
	s.logger.Info().
		Int("collections", len(doc.Collections)).
		Int("schedules", len(doc.Schedules)).
		Msg("state loaded")
	return s
}

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() *models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Mutate applies fn to the document under the write lock and persists the
// result. If fn returns an error the document is left untouched.
func (s *Store) Mutate(fn func(doc *models.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.Clone()
	if err := fn(next); err != nil {
		return err
	}
	normalize(next)
	if err := s.persist(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

// SetActiveSchedules replaces the advisory active-schedule list in memory.
// It is display-only state recomputed every minute, so it is not flushed to
// disk on its own; the next Mutate call carries it along.
func (s *Store) SetActiveSchedules(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.ActiveSchedules = append([]string{}, ids...)
}

// Reset replaces the document with empty defaults and persists.
func (s *Store) Reset() error {
	return s.Mutate(func(doc *models.Document) error {
		*doc = *models.NewDocument()
		return nil
	})
}

// persist writes the document atomically: temp file in the same directory,
// then rename over the target.
func (s *Store) persist(doc *models.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// normalize repairs nil maps left behind by partial documents on disk.
func normalize(doc *models.Document) {
	if doc.Users == nil {
		doc.Users = make(map[string]*models.User)
	}
	if doc.UserSchedules == nil {
		doc.UserSchedules = make(map[string][]string)
	}
	if doc.ActiveSchedules == nil {
		doc.ActiveSchedules = []string{}
	}
	if doc.Collections == nil {
		doc.Collections = make(map[string]*models.Collection)
	}
	if doc.Schedules == nil {
		doc.Schedules = make(map[string]*models.Schedule)
	}
}

// StampSlotTimezones overwrites every slot timezone on a schedule with the
// global setting. Applied on every schedule create/update and again when the
// global timezone changes, so schedules never carry independent zones.
func StampSlotTimezones(sched *models.Schedule, tz string) {
	for i := range sched.TimeSlots {
		sched.TimeSlots[i].Timezone = tz
	}
}
