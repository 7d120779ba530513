package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func serveRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	rec := serveRequest(s, http.MethodGet, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var body struct {
		Status     string  `json:"status"`
		Uptime     string  `json:"uptime"`
		Permission *string `json:"permission"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Status != "ok" || body.Uptime == "" {
		t.Errorf("unexpected health body %+v", body)
	}
	if body.Permission != nil {
		t.Errorf("expected no permission without an app, got %q", *body.Permission)
	}

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		if rec := serveRequest(s, method, "/api/health"); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s /api/health: expected %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
		}
	}
}

func TestServer_Routes(t *testing.T) {
	webDir := t.TempDir()
	files := map[string]string{
		"index.html": "<html><body>inkcam</body></html>",
		"app.js":     "console.log('inkcam')",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(webDir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	tests := []struct {
		name      string
		staticDir string
		path      string
		wantCode  int
		wantBody  string
	}{
		{"index at root", webDir, "/", http.StatusOK, files["index.html"]},
		{"script", webDir, "/app.js", http.StatusOK, files["app.js"]},
		{"missing static file", webDir, "/missing.css", http.StatusNotFound, ""},
		{"root without static dir", "", "/", http.StatusNotFound, ""},
		{"unknown api path", "", "/api/nonexistent", http.StatusNotFound, ""},
		{"state without app", "", "/api/state", http.StatusNotFound, ""},
		{"designs without app", "", "/api/designs", http.StatusNotFound, ""},
		{"stream without app", "", "/api/stream", http.StatusNotFound, ""},
		{"pointer without app", "", "/api/pointer", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveRequest(New(Config{StaticDir: tt.staticDir}), http.MethodGet, tt.path)
			if rec.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
		})
	}
}
