// Package main provides a blend plugin that leaves the overlay untouched.
// It is the reference for the plugin protocol: one JSON request on stdin,
// one JSON response on stdout.
package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action   string          `json:"action"`
	Image    string          `json:"image"`
	SkinTone *Color          `json:"skin_tone"`
	Opacity  float64         `json:"opacity"`
	Config   json.RawMessage `json:"config"`
}

// Color is an RGB colour with 0-255 channels.
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	switch req.Action {
	case "blend":
		image, err := blend(req)
		if err != nil {
			writeErrorResponse(fmt.Sprintf("blend failed: %v", err))
			return
		}
		writeResponse(Response{Success: true, Data: map[string]string{"image": image}})
	default:
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
	}
}

func blend(req Request) (string, error) {
	if req.Image == "" {
		return "", fmt.Errorf("image is required")
	}
	if req.Opacity < 0 || req.Opacity > 1 {
		return "", fmt.Errorf("opacity %v out of range", req.Opacity)
	}
	return req.Image, nil
}

func writeErrorResponse(msg string) {
	writeResponse(Response{Success: false, Error: msg})
}

func writeResponse(resp Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}
