/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version exposes build version information.
package version

// Version is the current version of Skald Audio.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/skald_audio/internal/version.Version=X.Y.Z
var Version = "0.3.0"
