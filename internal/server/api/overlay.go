package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/inkcam/internal/source"
	"github.com/gorilla/mux"
)

// OverlayHandler serves the screen state and the overlay, camera and AR
// controls.
type OverlayHandler struct {
	backend Backend
}

// NewOverlayHandler creates a new OverlayHandler.
func NewOverlayHandler(b Backend) *OverlayHandler {
	return &OverlayHandler{backend: b}
}

type selectRequest struct {
	URI       string `json:"uri"`
	Cancelled bool   `json:"cancelled"`
}

type arRequest struct {
	Enabled *bool `json:"enabled"`
}

// Register adds the overlay routes to r.
func (h *OverlayHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/state", h.state).Methods(http.MethodGet)
	r.HandleFunc("/api/overlay/select", h.selectDesign).Methods(http.MethodPost)
	r.HandleFunc("/api/overlay/upload", h.upload).Methods(http.MethodPost)
	r.HandleFunc("/api/overlay/{action:increase|decrease|reset|delete}", h.action).Methods(http.MethodPost)
	r.HandleFunc("/api/camera/flip", h.flip).Methods(http.MethodPost)
	r.HandleFunc("/api/ar", h.setAR).Methods(http.MethodPost)
}

// state handles GET /api/state.
func (h *OverlayHandler) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.backend.Screen().Snapshot())
}

// selectDesign handles POST /api/overlay/select. A cancelled selection
// leaves the overlay as it was.
func (h *OverlayHandler) selectDesign(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	src := &source.LibrarySource{Library: h.backend.Library()}
	if !req.Cancelled {
		src.URI = req.URI
	}
	if err := h.backend.PickImage(r.Context(), src); err != nil {
		writeFailure(w, err)
		return
	}
	h.state(w, r)
}

// upload handles POST /api/overlay/upload. The file is stored in the
// library and becomes the overlay; a form without a file is a cancelled
// pick.
func (h *OverlayHandler) upload(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.Screen().Ready(); err != nil {
		writeFailure(w, err)
		return
	}

	name, body, err := readUpload(w, r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	src := &source.UploadSource{Library: h.backend.Library(), Name: name}
	if body != nil {
		defer body.Close()
		src.Body = body
	}
	if err := h.backend.PickImage(r.Context(), src); err != nil {
		writeFailure(w, err)
		return
	}
	h.state(w, r)
}

// action handles POST /api/overlay/{action}.
func (h *OverlayHandler) action(w http.ResponseWriter, r *http.Request) {
	scr := h.backend.Screen()

	var err error
	switch mux.Vars(r)["action"] {
	case "increase":
		err = scr.Increase()
	case "decrease":
		err = scr.Decrease()
	case "reset":
		err = scr.Reset()
	case "delete":
		err = scr.Delete()
	}
	if err != nil {
		writeFailure(w, err)
		return
	}
	h.state(w, r)
}

// flip handles POST /api/camera/flip.
func (h *OverlayHandler) flip(w http.ResponseWriter, r *http.Request) {
	if _, err := h.backend.ToggleFacing(); err != nil {
		writeFailure(w, err)
		return
	}
	h.state(w, r)
}

// setAR handles POST /api/ar.
func (h *OverlayHandler) setAR(w http.ResponseWriter, r *http.Request) {
	var req arRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}
	if err := h.backend.SetARMode(*req.Enabled); err != nil {
		writeFailure(w, err)
		return
	}
	h.state(w, r)
}
