package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"time"

	pb "intersection/proto"
	"intersection/shared"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// FrameDTO is a lightweight JSON view sent to the browser
type FrameDTO struct {
	RunID  string    `json:"run_id"`
	Tick   int       `json:"tick"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Light  string    `json:"light"`
	Center [2]int    `json:"center"`
	Cells  []CellDTO `json:"cells"`
	At     time.Time `json:"at"`
}

// CellDTO lists the agents standing on one occupied cell
type CellDTO struct {
	X      int        `json:"x"`
	Y      int        `json:"y"`
	Agents []AgentDTO `json:"agents"`
}

type AgentDTO struct {
	ID    int    `json:"id"`
	Kind  string `json:"kind"`
	State string `json:"state"`
}

// toDTO groups the frame's agents by cell, keeping the frame's ascending ID order
func toDTO(f shared.Frame) FrameDTO {
	index := make(map[shared.Position]int)
	var cells []CellDTO
	for _, a := range f.Agents {
		i, ok := index[a.Position]
		if !ok {
			i = len(cells)
			index[a.Position] = i
			cells = append(cells, CellDTO{X: a.Position.X, Y: a.Position.Y})
		}
		cells[i].Agents = append(cells[i].Agents, AgentDTO{ID: a.ID, Kind: string(a.Kind), State: a.State})
	}
	return FrameDTO{
		RunID:  f.RunID,
		Tick:   f.Tick,
		Width:  f.Width,
		Height: f.Height,
		Light:  string(f.Signal.Color),
		Center: [2]int{f.Signal.Position.X, f.Signal.Position.Y},
		Cells:  cells,
		At:     time.Now(),
	}
}

// frameSource is the part of the gRPC client the relay needs
type frameSource interface {
	GetFrame(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

// eventsHandler streams frames as server-sent events, polling the simulation every interval and
// skipping ticks the browser has already seen
func eventsHandler(client frameSource, interval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		lastTick := -1
		for {
			sent, err := sendFrame(r.Context(), client, w, lastTick)
			if err != nil {
				log.Printf("/events send error: %v", err)
				return
			}
			if sent >= 0 {
				lastTick = sent
				flusher.Flush()
			}

			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
			}
		}
	}
}

// sendFrame writes the current frame unless its tick equals lastTick. It returns the tick sent,
// or -1 when nothing was written.
func sendFrame(ctx context.Context, client frameSource, w io.Writer, lastTick int) (int, error) {
	s, err := client.GetFrame(ctx, &emptypb.Empty{})
	if err != nil {
		return -1, err
	}
	f, err := pb.FrameFromStruct(s)
	if err != nil {
		return -1, err
	}
	if f.Tick == lastTick {
		return -1, nil
	}

	b, err := json.Marshal(toDTO(f))
	if err != nil {
		return -1, err
	}
	// SSE: write as id: <tick>\ndata: <json>\n\n
	if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", f.Tick, b); err != nil {
		return -1, err
	}
	return f.Tick, nil
}

func main() {
	addr := flag.String("http", ":8081", "HTTP listen address for visualization server")
	simGRPC := flag.String("grpc", "localhost:9090", "Simulation server gRPC address")
	staticDir := flag.String("static", "./visualization-client", "Directory with static web assets")
	pollMs := flag.Int("poll_ms", 250, "Polling interval in milliseconds for frame updates")
	flag.Parse()

	log.Printf("Connecting to simulation gRPC at %s", *simGRPC)
	conn, err := grpc.NewClient(*simGRPC, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("Failed to connect to simulation server: %v", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("Error closing gRPC connection: %v", err)
		}
	}()

	client := pb.NewSimulationServiceClient(conn)

	mux := http.NewServeMux()
	mux.HandleFunc("/events", eventsHandler(client, time.Duration(*pollMs)*time.Millisecond))

	absStaticDir, _ := filepath.Abs(*staticDir)
	log.Printf("Serving static files from %s", absStaticDir)
	mux.Handle("/", http.FileServer(http.Dir(absStaticDir)))

	// Support automatic free port selection with -http :0
	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("Failed to bind %s: %v", *addr, err)
	}
	log.Printf("Visualization server listening on %s", ln.Addr())
	if err := http.Serve(ln, mux); err != nil {
		log.Fatalf("HTTP server stopped: %v", err)
	}
}
