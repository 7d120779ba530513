package server

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/inkcam/internal/capture"
	"github.com/ayusman/inkcam/internal/gesture"
	"github.com/ayusman/inkcam/internal/screen"
	"github.com/ayusman/inkcam/internal/source"
	"github.com/gorilla/websocket"
)

// testPointerBackend feeds a real screen with every press counted as a hit.
type testPointerBackend struct {
	scr  *screen.Screen
	mu   sync.Mutex
	subs []chan screen.Snapshot
}

func (b *testPointerBackend) Screen() *screen.Screen { return b.scr }

func (b *testPointerBackend) NewPointerTracker() *gesture.PointerTracker {
	return gesture.NewPointerTracker(b.scr, nil)
}

func (b *testPointerBackend) Subscribe() (<-chan screen.Snapshot, func()) {
	ch := make(chan screen.Snapshot, 1)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	var once sync.Once
	return ch, func() { once.Do(func() { close(ch) }) }
}

func newPointerRig(t *testing.T) (*websocket.Conn, *testPointerBackend) {
	t.Helper()

	scr := screen.New(capture.FacingFront, false)
	scr.SetPermission(screen.PermissionGranted)
	if err := scr.PickImage(source.Picked("design://rose")); err != nil {
		t.Fatalf("PickImage() error = %v", err)
	}
	b := &testPointerBackend{scr: scr}

	ts := httptest.NewServer(NewPointerHandler(b))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// Greeting carries the current state.
	greeting := readState(t, conn)
	if greeting.State.Image != "design://rose" {
		t.Fatalf("greeting image = %q", greeting.State.Image)
	}
	return conn, b
}

func readState(t *testing.T, conn *websocket.Conn) stateMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg stateMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func exchange(t *testing.T, conn *websocket.Conn, msg any) stateMessage {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	return readState(t, conn)
}

func TestPointerHandler_TrackedDrag(t *testing.T) {
	conn, _ := newPointerRig(t)

	reply := exchange(t, conn, map[string]any{
		"type":     "pointers",
		"pointers": []map[string]any{{"id": 1, "x": 100, "y": 100}},
	})
	if reply.State.Gesture.ActivePointers != 1 || !reply.State.Gesture.Selected {
		t.Fatalf("after press gesture = %+v", reply.State.Gesture)
	}

	reply = exchange(t, conn, map[string]any{
		"type":     "pointers",
		"pointers": []map[string]any{{"id": 1, "x": 130, "y": 110}},
	})
	if got := reply.State.Gesture.Offset; got != (gesture.Vector2{X: 30, Y: 10}) {
		t.Errorf("offset while dragging = %+v, want {30 10}", got)
	}

	reply = exchange(t, conn, map[string]any{"type": "pointers", "pointers": []any{}})
	if reply.State.Gesture.ActivePointers != 0 {
		t.Errorf("active pointers after release = %d, want 0", reply.State.Gesture.ActivePointers)
	}
	if got := reply.State.Gesture.Offset; got != (gesture.Vector2{X: 30, Y: 10}) {
		t.Errorf("offset after release = %+v, want {30 10}", got)
	}
	if !reply.State.Controls {
		t.Error("expected controls while selected")
	}
}

func TestPointerHandler_DirectEvents(t *testing.T) {
	conn, _ := newPointerRig(t)

	exchange(t, conn, map[string]any{"type": "start", "touches": []map[string]any{{"x": 10, "y": 10}}})
	exchange(t, conn, map[string]any{"type": "move", "touches": []map[string]any{{"x": 15, "y": 30}}})
	reply := exchange(t, conn, map[string]any{"type": "end"})
	if got := reply.State.Gesture.Offset; got != (gesture.Vector2{X: 5, Y: 20}) {
		t.Errorf("offset = %+v, want {5 20}", got)
	}

	reply = exchange(t, conn, map[string]any{"type": "tap"})
	if reply.State.Gesture.Selected {
		t.Error("expected background tap to deselect")
	}
	if len(reply.State.Instructions) != 3 {
		t.Errorf("instructions = %v, want all three", reply.State.Instructions)
	}
}

func TestPointerHandler_UnknownType(t *testing.T) {
	conn, _ := newPointerRig(t)

	reply := exchange(t, conn, map[string]any{"type": "wiggle"})
	if reply.Type != "error" || reply.Error == "" {
		t.Errorf("reply = %+v, want an error", reply)
	}
}

func TestPointerHandler_DisconnectEndsGesture(t *testing.T) {
	conn, b := newPointerRig(t)

	exchange(t, conn, map[string]any{"type": "start", "touches": []map[string]any{{"x": 0, "y": 0}}})
	exchange(t, conn, map[string]any{"type": "move", "touches": []map[string]any{{"x": 40, "y": 0}}})
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for b.scr.Snapshot().Gesture.ActivePointers != 0 {
		if time.Now().After(deadline) {
			t.Fatal("gesture still active after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := b.scr.Snapshot().Gesture.Offset; got != (gesture.Vector2{X: 40}) {
		t.Errorf("offset = %+v, want {40 0}", got)
	}
}
