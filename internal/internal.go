// Shared build metadata and runtime mode flags for the wheelsmith CLI.
package internal

import "log/slog"

// Program name used for CLI help, logging groups, and directory naming.
const Name = "wheelsmith"

// Log level shared between the entry point and the CLI.
//
// Seeded from build-time linker flags at startup and adjusted once after
// flag parsing.
var LogLevel = new(slog.LevelVar)
