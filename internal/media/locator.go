/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package media resolves collection filenames to paths on disk.
package media

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/friendsincode/skald_audio/internal/models"
)

// ErrNotFound means no collection produced an existing path for the filename.
var ErrNotFound = errors.New("media: file not found in any collection")

// Locator searches collections for files on the local filesystem.
type Locator struct {
	audioRoot string
}

// NewLocator creates a locator. Relative collection paths are joined against
// audioRoot.
func NewLocator(audioRoot string) *Locator {
	return &Locator{audioRoot: audioRoot}
}

// Resolve returns the first existing on-disk path for filename across all
// collections, in store order. A collection that lists the filename but whose
// directory no longer holds it is skipped, tolerating stale metadata.
func (l *Locator) Resolve(doc *models.Document, filename string) (string, error) {
	for _, id := range doc.CollectionIDs() {
		col := doc.Collections[id]
		if !containsFile(col.Files, filename) {
			continue
		}
		candidate := filepath.Join(l.collectionDir(col), filename)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, nil
		}
	}
	return "", ErrNotFound
}

// ListDir returns the audio files directly under a collection-style path,
// confined to the audio root. Used by the admin file browser.
func (l *Locator) ListDir(path string, allowed map[string]bool) ([]string, error) {
	dir := l.collectionDir(&models.Collection{Path: path})

	root, err := filepath.Abs(l.audioRoot)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return nil, errors.New("media: path escapes audio root")
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(e.Name()), "."))
		if allowed[ext] {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (l *Locator) collectionDir(col *models.Collection) string {
	if filepath.IsAbs(col.Path) {
		return col.Path
	}
	return filepath.Join(l.audioRoot, col.Path)
}

func containsFile(files []string, name string) bool {
	for _, f := range files {
		if f == name {
			return true
		}
	}
	return false
}
