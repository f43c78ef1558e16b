// Package config loads mcpify's own settings from an optional .mcpify.kdl
// file at the analyzed project root. Settings cover the detector's file
// walk and the dispatcher's execution limits; the generated tool schema
// itself lives in the JSON configuration, not here.
package config

import (
	"time"
)

type Settings struct {
	Detect   Detect
	Dispatch Dispatch
}

type Detect struct {
	Exclude     []string // doublestar globs matched against path segments and relative paths
	MaxFileSize int64    // per-file ceiling; larger files are skipped
	Strategy    string   // "auto", "structural", or a named strategy
}

type Dispatch struct {
	Timeout time.Duration // bounds each backend call end to end
	Python  string        // interpreter used for python-module backends
}

// DefaultExcludes mirrors the directories no detector should descend into:
// VCS metadata, caches, virtualenvs, build output and editor state.
var DefaultExcludes = []string{
	".*",
	"__pycache__",
	"*.egg-info",
	"venv", "env", "virtualenv",
	"build", "dist",
	"node_modules",
	"htmlcov", "coverage",
	"*.tmp", "*.log", "*.swp",
}

// Default returns the settings used when no .mcpify.kdl is present.
func Default() *Settings {
	return &Settings{
		Detect: Detect{
			Exclude:     append([]string(nil), DefaultExcludes...),
			MaxFileSize: 1024 * 1024,
			Strategy:    "auto",
		},
		Dispatch: Dispatch{
			Timeout: 30 * time.Second,
			Python:  "python3",
		},
	}
}
