package e2e

import (
	"bytes"
	"encoding/json"
	"image/color"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/inkcam/internal/app"
	"github.com/ayusman/inkcam/internal/capture"
	"github.com/ayusman/inkcam/internal/screen"
	"github.com/ayusman/inkcam/internal/segment"
	"github.com/ayusman/inkcam/internal/server"
	"github.com/ayusman/inkcam/internal/store"
	"github.com/ayusman/inkcam/testdata"
	"github.com/gorilla/websocket"
)

type harness struct {
	app    *app.App
	ts     *httptest.Server
	client *http.Client
}

func newHarness(t *testing.T, s *store.Store, cfg app.Config) *harness {
	t.Helper()

	frames := testdata.Sequence(640, 480, testdata.Skin)
	t.Cleanup(func() { testdata.CloseAll(frames) })

	cfg.Store = s
	cfg.Camera = capture.NewMockCamera(frames, true)
	if cfg.PluginDir == "" {
		cfg.PluginDir = t.TempDir()
	}
	if cfg.ChangeThreshold == 0 {
		cfg.ChangeThreshold = 1.0
	}

	a := app.New(cfg)
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(a.Stop)

	ts := httptest.NewServer(server.New(server.Config{App: a}))
	t.Cleanup(ts.Close)

	return &harness{app: a, ts: ts, client: ts.Client()}
}

func openStore(t *testing.T, path string) *store.Store {
	t.Helper()
	s, err := store.New(path)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	return s
}

func (h *harness) state(t *testing.T) screen.Snapshot {
	t.Helper()
	resp, err := h.client.Get(h.ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("GET /api/state error = %v", err)
	}
	defer resp.Body.Close()
	var snap screen.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode state error = %v", err)
	}
	return snap
}

func (h *harness) post(t *testing.T, path, body string) screen.Snapshot {
	t.Helper()
	resp, err := h.client.Post(h.ts.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s error = %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST %s status = %d", path, resp.StatusCode)
	}
	var snap screen.Snapshot
	json.NewDecoder(resp.Body).Decode(&snap)
	return snap
}

func (h *harness) upload(t *testing.T) screen.Snapshot {
	t.Helper()
	design, err := testdata.Design(64, 64, color.NRGBA{R: 20, G: 20, B: 20, A: 255})
	if err != nil {
		t.Fatalf("Design() error = %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("image", "rose.png")
	fw.Write(design)
	mw.Close()

	resp, err := h.client.Post(h.ts.URL+"/api/overlay/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("upload error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	var snap screen.Snapshot
	json.NewDecoder(resp.Body).Decode(&snap)
	return snap
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestE2E_TattooWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	s := openStore(t, filepath.Join(t.TempDir(), "data.db"))
	defer s.Close()

	seg := segment.NewMockSegmenter()
	seg.SetTone(&segment.SkinTone{R: 220, G: 160, B: 120})
	h := newHarness(t, s, app.Config{Segmenter: seg, Blender: segment.NewMockBlender()})

	waitFor(t, "first frame", func() bool { _, seq := h.app.Frames().Latest(); return seq > 0 })

	var uri string
	t.Run("UploadDesign", func(t *testing.T) {
		snap := h.upload(t)
		uri = snap.Image
		if !strings.HasPrefix(uri, "design://") {
			t.Fatalf("image = %q, want a design locator", uri)
		}
		if len(snap.Instructions) != 3 {
			t.Errorf("instructions = %v, want all three", snap.Instructions)
		}
	})

	t.Run("DragOverPointerSocket", func(t *testing.T) {
		url := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/api/pointer"
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("Dial() error = %v", err)
		}
		defer conn.Close()

		var msg struct {
			State screen.Snapshot `json:"state"`
		}
		send := func(v any) {
			if err := conn.WriteJSON(v); err != nil {
				t.Fatalf("WriteJSON() error = %v", err)
			}
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			if err := conn.ReadJSON(&msg); err != nil {
				t.Fatalf("ReadJSON() error = %v", err)
			}
		}
		conn.ReadJSON(&msg) // greeting

		// The overlay box spans (220,144)-(420,344).
		send(map[string]any{"type": "pointers", "pointers": []map[string]any{{"id": 1, "x": 320, "y": 240}}})
		send(map[string]any{"type": "pointers", "pointers": []map[string]any{{"id": 1, "x": 300, "y": 200}}})
		send(map[string]any{"type": "pointers", "pointers": []map[string]any{}})

		if got := msg.State.Gesture.Offset; got.X != -20 || got.Y != -40 {
			t.Errorf("offset = %+v, want {-20 -40}", got)
		}
		if !msg.State.Controls {
			t.Error("expected controls after selecting the overlay")
		}
	})

	t.Run("ButtonsClampScale", func(t *testing.T) {
		var snap screen.Snapshot
		for i := 0; i < 30; i++ {
			snap = h.post(t, "/api/overlay/increase", "")
		}
		if snap.Gesture.Scale != 3.0 {
			t.Errorf("scale = %v, want clamp at 3", snap.Gesture.Scale)
		}
		snap = h.post(t, "/api/overlay/reset", "")
		if snap.Gesture.Scale != 1 || snap.Gesture.Offset.X != 0 || snap.Gesture.Offset.Y != 0 {
			t.Errorf("after reset gesture = %+v", snap.Gesture)
		}
	})

	t.Run("ARBlend", func(t *testing.T) {
		h.post(t, "/api/ar", `{"enabled": true}`)
		waitFor(t, "blended design", func() bool {
			snap := h.state(t)
			return snap.DisplayImage == uri+"#blended" && snap.SkinTone != nil
		})
		tone := h.state(t).SkinTone
		if math.Abs(tone.R-220) > 0.5 || tone.Hex() != "#dca078" {
			t.Errorf("tone = %+v", tone)
		}
	})

	t.Run("FlipCameraInvalidates", func(t *testing.T) {
		before := h.state(t).Generation
		snap := h.post(t, "/api/camera/flip", "")
		if snap.Facing != capture.FacingBack {
			t.Errorf("facing = %q, want back", snap.Facing)
		}
		if snap.Generation <= before {
			t.Errorf("generation = %d, want > %d", snap.Generation, before)
		}
		// The new camera is segmented again.
		waitFor(t, "re-blend after flip", func() bool {
			return h.state(t).DisplayImage == uri+"#blended"
		})
	})

	t.Run("ARModeOffRestoresOriginal", func(t *testing.T) {
		snap := h.post(t, "/api/ar", `{"enabled": false}`)
		if snap.DisplayImage != uri || snap.SkinTone != nil {
			t.Errorf("display = %q tone = %v, want original without tone", snap.DisplayImage, snap.SkinTone)
		}
	})
}

func TestE2E_SkinSegmentationWithPassthrough(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	s := openStore(t, filepath.Join(t.TempDir(), "data.db"))
	defer s.Close()

	h := newHarness(t, s, app.Config{SegmenterName: app.SegmenterSkin})

	uri := h.upload(t).Image
	h.post(t, "/api/ar", `{"enabled": true}`)

	waitFor(t, "skin tone", func() bool { return h.state(t).SkinTone != nil })
	snap := h.state(t)
	if math.Abs(snap.SkinTone.R-220) > 2 || math.Abs(snap.SkinTone.G-160) > 2 || math.Abs(snap.SkinTone.B-120) > 2 {
		t.Errorf("tone = %+v, want about (220,160,120)", snap.SkinTone)
	}
	if snap.DisplayImage != uri {
		t.Errorf("display = %q, want the passthrough original %q", snap.DisplayImage, uri)
	}
}

func TestE2E_SettingsAndDesignsSurviveRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	dbPath := filepath.Join(t.TempDir(), "data.db")

	s1 := openStore(t, dbPath)
	h1 := newHarness(t, s1, app.Config{Segmenter: segment.NewMockSegmenter(), Blender: segment.NewMockBlender()})
	uri := h1.upload(t).Image
	h1.post(t, "/api/camera/flip", "")
	h1.post(t, "/api/ar", `{"enabled": true}`)
	h1.ts.Close()
	h1.app.Stop()
	s1.Close()

	s2 := openStore(t, dbPath)
	defer s2.Close()
	h2 := newHarness(t, s2, app.Config{Segmenter: segment.NewMockSegmenter(), Blender: segment.NewMockBlender()})

	snap := h2.state(t)
	if snap.Facing != capture.FacingBack || !snap.ARMode {
		t.Errorf("restored facing = %q AR = %v, want back with AR on", snap.Facing, snap.ARMode)
	}
	if snap.Image != "" {
		t.Errorf("overlay = %q, want none after restart", snap.Image)
	}

	resp, err := h2.client.Get(h2.ts.URL + "/api/designs")
	if err != nil {
		t.Fatalf("GET /api/designs error = %v", err)
	}
	defer resp.Body.Close()
	var listed struct {
		Designs []struct {
			URI string `json:"uri"`
		} `json:"designs"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	if len(listed.Designs) != 1 || listed.Designs[0].URI != uri {
		t.Errorf("designs = %+v, want %s", listed.Designs, uri)
	}

	snap = h2.post(t, "/api/overlay/select", `{"uri":"`+uri+`"}`)
	if snap.Image != uri {
		t.Errorf("image = %q, want %q", snap.Image, uri)
	}
}
