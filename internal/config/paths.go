package config

import (
	"os"
	"path/filepath"
)

// Paths locates the agent's per-user files. Everything the agent
// persists lives flat under one directory.
type Paths struct {
	Root string
}

// DefaultPaths returns the standard agent directory:
// $XDG_CONFIG_HOME/ccp-agent or ~/.config/ccp-agent.
func DefaultPaths() (Paths, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, ".config")
	}
	return Paths{Root: filepath.Join(base, "ccp-agent")}, nil
}

// Config is the JSON configuration file.
func (p Paths) Config() string { return filepath.Join(p.Root, "config.json") }

// State is the persisted file-offset state.
func (p Paths) State() string { return filepath.Join(p.Root, "state.json") }

// PID is the background agent's PID file.
func (p Paths) PID() string { return filepath.Join(p.Root, "daemon.pid") }

// Heartbeat is the runtime snapshot the daemon writes for `status`.
func (p Paths) Heartbeat() string { return filepath.Join(p.Root, "daemon.json") }

// Log is the append-only operational log.
func (p Paths) Log() string { return filepath.Join(p.Root, "agent.log") }

// ErrorLog is the append-only error log.
func (p Paths) ErrorLog() string { return filepath.Join(p.Root, "error.log") }
