// Package plugin discovers and runs external blend plugins. A plugin is a
// directory holding a plugin.json manifest and an executable that reads one
// JSON request on stdin and writes one JSON response on stdout.
package plugin

import "encoding/json"

// ActionBlend asks a plugin to blend an overlay image toward a skin tone.
const ActionBlend = "blend"

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Supports reports whether the manifest lists action.
func (m Manifest) Supports(action string) bool {
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Color is an RGB colour with 0-255 channels.
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Request represents a request sent to a plugin for execution.
type Request struct {
	Action   string          `json:"action"`
	Image    string          `json:"image,omitempty"`
	SkinTone *Color          `json:"skin_tone,omitempty"`
	Opacity  float64         `json:"opacity,omitempty"`
	Config   json.RawMessage `json:"config,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// BlendResult is the data payload of a successful blend response.
type BlendResult struct {
	Image string `json:"image"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
