// Package plugin discovers and runs external event hooks. A hook is an executable that
// receives one event as JSON on stdin and answers with a JSON Response on stdout.
package plugin

import (
	"encoding/json"
	"slices"
	"time"
)

// Manifest describes a hook's metadata and the events it subscribes to.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Request is the event payload written to a hook's stdin.
type Request struct {
	Event     string          `json:"event"`
	Count     int             `json:"count"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	ImagePath string          `json:"imagePath,omitempty"`
	Time      time.Time       `json:"time"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Response represents the response from a hook execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered hook with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Handles reports whether the hook subscribes to event. A manifest without events
// subscribes to all of them.
func (p *Plugin) Handles(event string) bool {
	return len(p.Manifest.Events) == 0 || slices.Contains(p.Manifest.Events, event)
}
