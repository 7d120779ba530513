// Package api implements the JSON endpoints of the inkcam HTTP server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/inkcam/internal/capture"
	"github.com/ayusman/inkcam/internal/screen"
	"github.com/ayusman/inkcam/internal/source"
	"github.com/ayusman/inkcam/internal/store"
)

// Backend is the application surface the handlers drive. *app.App
// satisfies it.
type Backend interface {
	Screen() *screen.Screen
	Library() *source.Library
	PickImage(ctx context.Context, src source.Source) error
	ToggleFacing() (capture.Facing, error)
	SetARMode(on bool) error
	DeleteDesign(id string) error
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error      string            `json:"error"`
	Permission screen.Permission `json:"permission,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeFailure maps an application error to a status code.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, screen.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: screen.MessageDenied, Permission: screen.PermissionDenied})
	case errors.Is(err, screen.ErrPermissionPending):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: screen.MessagePending, Permission: screen.PermissionUnknown})
	case errors.Is(err, screen.ErrNoOverlay):
		writeError(w, http.StatusConflict, "No tattoo selected")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Design not found")
	case errors.Is(err, source.ErrUnsupportedType):
		writeError(w, http.StatusUnsupportedMediaType, "Unsupported image type")
	case errors.Is(err, source.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "Image too large")
	case errors.Is(err, source.ErrInvalidURI):
		writeError(w, http.StatusBadRequest, "Invalid image locator")
	default:
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

// RequireCamera rejects requests while camera access is not granted.
func RequireCamera(b Backend, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := b.Screen().Ready(); err != nil {
			writeFailure(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
