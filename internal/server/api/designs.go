package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ayusman/inkcam/internal/source"
	"github.com/ayusman/inkcam/internal/store"
	"github.com/gorilla/mux"
)

// uploadField is the multipart field carrying an image file.
const uploadField = "image"

// DesignHandler serves the design library.
type DesignHandler struct {
	backend Backend
}

// NewDesignHandler creates a new DesignHandler.
func NewDesignHandler(b Backend) *DesignHandler {
	return &DesignHandler{backend: b}
}

type designResponse struct {
	ID        string    `json:"id"`
	URI       string    `json:"uri"`
	Name      string    `json:"name"`
	MIME      string    `json:"mime"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"created_at"`
}

type listDesignsResponse struct {
	Designs []designResponse `json:"designs"`
}

func toResponse(d *store.Design) designResponse {
	return designResponse{
		ID:        d.ID,
		URI:       source.DesignURI(d.ID),
		Name:      d.Name,
		MIME:      d.MIME,
		Width:     d.Width,
		Height:    d.Height,
		CreatedAt: d.CreatedAt,
	}
}

// Register adds the design routes to r.
func (h *DesignHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/designs", h.list).Methods(http.MethodGet)
	r.HandleFunc("/api/designs", h.create).Methods(http.MethodPost)
	r.HandleFunc("/api/designs/{id}/image", h.image).Methods(http.MethodGet)
	r.HandleFunc("/api/designs/{id}", h.delete).Methods(http.MethodDelete)
}

// list handles GET /api/designs.
func (h *DesignHandler) list(w http.ResponseWriter, r *http.Request) {
	designs, err := h.backend.Library().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list designs")
		return
	}

	response := listDesignsResponse{Designs: make([]designResponse, 0, len(designs))}
	for _, d := range designs {
		response.Designs = append(response.Designs, toResponse(d))
	}
	writeJSON(w, http.StatusOK, response)
}

// create handles POST /api/designs with a multipart image upload.
func (h *DesignHandler) create(w http.ResponseWriter, r *http.Request) {
	name, body, err := readUpload(w, r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if body == nil {
		writeError(w, http.StatusBadRequest, "Image file is required")
		return
	}
	defer body.Close()

	d, err := h.backend.Library().Import(name, body)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(d))
}

// image handles GET /api/designs/{id}/image and returns the stored PNG.
func (h *DesignHandler) image(w http.ResponseWriter, r *http.Request) {
	d, err := h.backend.Library().Get(source.DesignURI(mux.Vars(r)["id"]))
	if err != nil {
		writeFailure(w, err)
		return
	}

	w.Header().Set("Content-Type", d.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(d.Data)))
	w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	w.Write(d.Data)
}

// delete handles DELETE /api/designs/{id}.
func (h *DesignHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.DeleteDesign(mux.Vars(r)["id"]); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readUpload returns the uploaded image file, or a nil body when the form
// carries none.
func readUpload(w http.ResponseWriter, r *http.Request) (string, io.ReadCloser, error) {
	r.Body = http.MaxBytesReader(w, r.Body, source.MaxUploadSize+(1<<20))
	file, header, err := r.FormFile(uploadField)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil, nil
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, source.ErrTooLarge
		}
		return "", nil, nil
	}
	return header.Filename, file, nil
}
