/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/skald_audio/internal/media"
	"github.com/friendsincode/skald_audio/internal/schedule"
	"github.com/friendsincode/skald_audio/internal/telemetry"
)

// audioContentTypes is the streaming allow-list: requests for any other
// extension never reach the scheduler or the filesystem.
var audioContentTypes = map[string]string{
	"mp3": "audio/mpeg",
	"wav": "audio/wav",
	"m4a": "audio/mp4",
	"aac": "audio/aac",
}

func extensionOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// audioExtensions returns the allow-list in the set form the file browser
// expects.
func audioExtensions() map[string]bool {
	exts := make(map[string]bool, len(audioContentTypes))
	for ext := range audioContentTypes {
		exts[ext] = true
	}
	return exts
}

// handleStream is the per-request streaming gate: decode the filename, check
// it is currently active, locate it on disk, then deliver it with byte-range
// support.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	// chi only decodes the param when the request URL is canonically encoded;
	// otherwise it routes on RawPath and the param arrives still escaped.
	// Unescape here so the active-set lookup always sees the bare filename.
	// Filenames with a literal % fail to unescape and pass through as-is.
	if decoded, err := url.PathUnescape(filename); err == nil {
		filename = decoded
	}

	contentType, ok := audioContentTypes[extensionOf(filename)]
	if !ok || strings.ContainsAny(filename, "/\\") {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	doc := s.store.Snapshot()
	now := s.now()

	if !schedule.IsFileActive(doc, filename, now) {
		// Policy rejection is expected traffic, not an error.
		telemetry.StreamRejections.WithLabelValues("inactive").Inc()
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error":   "not_available",
			"message": "This file is not available at this time",
		})
		return
	}

	fullPath, err := s.locator.Resolve(doc, filename)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			telemetry.StreamRejections.WithLabelValues("not_found").Inc()
			s.logger.Warn().Str("file", filename).Msg("active file not locatable on disk")
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		s.logger.Error().Err(err).Str("file", filename).Msg("locate failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	f, err := os.Open(fullPath)
	if err != nil {
		// Raced against deletion between the existence check and open.
		s.logger.Warn().Err(err).Str("path", fullPath).Msg("open failed after locate")
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.logger.Error().Err(err).Str("path", fullPath).Msg("stat failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	size := info.Size()

	telemetry.StreamsInFlight.Inc()
	defer telemetry.StreamsInFlight.Dec()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "no-cache")

	start, end, partial, valid := parseByteRange(r.Header.Get("Range"), size)
	if !valid {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		writeError(w, http.StatusRequestedRangeNotSatisfiable, "invalid_range")
		return
	}

	length := end - start + 1
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	if partial {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if r.Method == http.MethodHead {
		return
	}

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		s.logger.Error().Err(err).Str("path", fullPath).Msg("seek failed")
		return
	}
	if _, err := io.CopyN(w, f, length); err != nil {
		// Client aborts land here; the deferred close releases the handle
		// and the server keeps serving other streams.
		s.logger.Debug().Err(err).Str("file", filename).Msg("stream interrupted")
	}
}

// parseByteRange interprets a single-range Range header against a file of
// the given size. It returns the inclusive byte bounds, whether the response
// is partial, and whether the bounds are satisfiable. A missing or malformed
// header falls back to the full file rather than erroring; bounds outside
// the file are unsatisfiable.
func parseByteRange(header string, size int64) (start, end int64, partial, valid bool) {
	full := func() (int64, int64, bool, bool) {
		if size == 0 {
			return 0, -1, false, true
		}
		return 0, size - 1, false, true
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if header == "" || !ok || strings.Contains(spec, ",") {
		return full()
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return full()
	}

	if startStr == "" {
		// Suffix form: last N bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return full()
		}
		if n <= 0 {
			return 0, 0, false, false
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, true, true
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return full()
	}

	end = size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return full()
		}
	}

	if start < 0 || end < start {
		return full()
	}
	if start >= size {
		return 0, 0, false, false
	}
	if end >= size {
		end = size - 1
	}
	return start, end, true, true
}
