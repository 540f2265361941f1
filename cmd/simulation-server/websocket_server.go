package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"intersection/shared"
	"intersection/simulation"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	// subscriberBuffer is how many frames a slow viewer may fall behind before frames are dropped
	subscriberBuffer = 16
)

// WebSocketServer pushes every tick's frame to connected viewers and serves health and status
type WebSocketServer struct {
	sim      *simulation.Simulation
	upgrader websocket.Upgrader
	mu       sync.Mutex
	viewers  map[*websocket.Conn]struct{}
}

// NewWebSocketServer creates a new WebSocket frame server
func NewWebSocketServer(sim *simulation.Simulation) *WebSocketServer {
	return &WebSocketServer{
		sim: sim,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow connections from any origin
			},
		},
		viewers: make(map[*websocket.Conn]struct{}),
	}
}

// Routes registers the HTTP endpoints on mux
func (s *WebSocketServer) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.StreamFrames)
	mux.HandleFunc("/health", s.HealthCheck)
	mux.HandleFunc("/status", s.Status)
}

// encodeFrame returns the websocket message type and payload for a frame. "msgpack" selects the
// binary encoding, anything else JSON.
func encodeFrame(format string, f shared.Frame) (int, []byte, error) {
	if format == "msgpack" {
		b, err := msgpack.Marshal(f)
		return websocket.BinaryMessage, b, err
	}
	b, err := json.Marshal(f)
	return websocket.TextMessage, b, err
}

// StreamFrames upgrades the connection and sends the current frame followed by one frame per tick
func (s *WebSocketServer) StreamFrames(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	events, cancel := s.sim.Events().Subscribe(subscriberBuffer)

	s.mu.Lock()
	s.viewers[conn] = struct{}{}
	s.mu.Unlock()
	log.Printf("Viewer %s connected (format %q)", conn.RemoteAddr(), format)

	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.viewers, conn)
		s.mu.Unlock()
		conn.Close()
		log.Printf("Viewer %s disconnected", conn.RemoteAddr())
	}()

	// Viewers never send anything; reading only detects the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(f shared.Frame) bool {
		kind, payload, err := encodeFrame(format, f)
		if err != nil {
			log.Printf("Failed to encode frame %d: %v", f.Tick, err)
			return false
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(kind, payload); err != nil {
			log.Printf("Failed to send frame %d to %s: %v", f.Tick, conn.RemoteAddr(), err)
			return false
		}
		return true
	}

	if !send(s.sim.Frame()) {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if tick, isTick := e.(simulation.TickEvent); isTick && !send(tick.Frame) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				log.Printf("Viewer %s ping failed: %v", conn.RemoteAddr(), err)
				return
			}
		}
	}
}

// Viewers returns the number of connected viewers
func (s *WebSocketServer) Viewers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.viewers)
}

// Stop closes every viewer connection
func (s *WebSocketServer) Stop() {
	log.Println("Shutting down WebSocket frame server...")
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.viewers {
		conn.Close()
	}
}

// HealthCheck endpoint
func (s *WebSocketServer) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "run_id": s.sim.RunID()})
}

// statusResponse is the summary served on /status
type statusResponse struct {
	RunID   string             `json:"run_id"`
	Tick    int                `json:"tick"`
	Width   int                `json:"width"`
	Height  int                `json:"height"`
	Agents  int                `json:"agents"`
	Viewers int                `json:"viewers"`
	Signal  shared.SignalState `json:"signal"`
}

// Status endpoint
func (s *WebSocketServer) Status(w http.ResponseWriter, r *http.Request) {
	f := s.sim.Frame()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{
		RunID:   f.RunID,
		Tick:    f.Tick,
		Width:   f.Width,
		Height:  f.Height,
		Agents:  len(f.Agents),
		Viewers: s.Viewers(),
		Signal:  f.Signal,
	})
}
