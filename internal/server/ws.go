package server

import (
	"log"
	"net/http"
	"sync"

	"github.com/ayusman/inkcam/internal/gesture"
	"github.com/ayusman/inkcam/internal/screen"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// PointerBackend is what the pointer socket drives. *app.App satisfies it.
type PointerBackend interface {
	Screen() *screen.Screen
	NewPointerTracker() *gesture.PointerTracker
	Subscribe() (<-chan screen.Snapshot, func())
}

// pointerMessage is one client event. "pointers" carries every pointer
// currently pressed and lets the server derive the gesture; "start",
// "move", "end" and "tap" address the overlay directly.
type pointerMessage struct {
	Type     string          `json:"type"`
	Pointers []pointerJSON   `json:"pointers,omitempty"`
	Touches  []gesture.Touch `json:"touches,omitempty"`
}

type pointerJSON struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type stateMessage struct {
	Type  string          `json:"type"`
	State screen.Snapshot `json:"state"`
	Error string          `json:"error,omitempty"`
}

// PointerHandler routes browser pointer events to the screen over a
// WebSocket and answers each event with the resulting state.
type PointerHandler struct {
	backend PointerBackend
}

// NewPointerHandler creates a new PointerHandler.
func NewPointerHandler(b PointerBackend) *PointerHandler {
	return &PointerHandler{backend: b}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *PointerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(msg stateMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(msg)
	}

	updates, unsubscribe := h.backend.Subscribe()
	defer unsubscribe()
	go func() {
		for snap := range updates {
			if err := send(stateMessage{Type: "state", State: snap}); err != nil {
				return
			}
		}
	}()

	scr := h.backend.Screen()
	tracker := h.backend.NewPointerTracker()
	direct := false

	// A client that vanishes mid-gesture must not leave the overlay with a
	// pending delta.
	defer func() {
		if tracker.Active() {
			tracker.Update(nil)
		}
		tracker.Cancel()
		if direct {
			scr.End()
		}
	}()

	if err := send(stateMessage{Type: "state", State: scr.Snapshot()}); err != nil {
		return
	}

	for {
		var msg pointerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Pointer socket closed: %v", err)
			}
			return
		}

		reply := stateMessage{Type: "state"}
		switch msg.Type {
		case "pointers":
			pointers := make([]gesture.Pointer, len(msg.Pointers))
			for i, p := range msg.Pointers {
				pointers[i] = gesture.Pointer{ID: p.ID, X: p.X, Y: p.Y}
			}
			tracker.Update(pointers)
		case "start":
			scr.Start(msg.Touches...)
			direct = true
		case "move":
			scr.Move(msg.Touches)
		case "end":
			scr.End()
			direct = false
		case "tap":
			scr.BackgroundTap()
		case "state":
		default:
			reply.Type = "error"
			reply.Error = "unknown message type: " + msg.Type
		}

		reply.State = scr.Snapshot()
		if err := send(reply); err != nil {
			return
		}
	}
}

