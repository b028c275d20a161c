// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package version holds build-time version information, overridden via
// -ldflags at release time.
package version

var (
	// Version is the semantic version of this build.
	Version = "dev"

	// Commit is the git commit this build was produced from.
	Commit = "unknown"
)

// String returns the human-readable version string.
func String() string {
	return Version + " (" + Commit + ")"
}
