package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pb "intersection/proto"
	"intersection/shared"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// fakeSource serves a fixed frame
type fakeSource struct {
	frame shared.Frame
	err   error
}

func (f *fakeSource) GetFrame(context.Context, *emptypb.Empty, ...grpc.CallOption) (*structpb.Struct, error) {
	if f.err != nil {
		return nil, f.err
	}
	return pb.FrameToStruct(f.frame)
}

func testFrame(tick int) shared.Frame {
	return shared.Frame{
		RunID:  "run",
		Tick:   tick,
		Width:  5,
		Height: 5,
		Agents: []shared.AgentState{
			{ID: 1, Kind: shared.KindCommuter, Position: shared.Position{X: 2, Y: 2}, State: "calm"},
			{ID: 2, Kind: shared.KindRider, Position: shared.Position{X: 0, Y: 4}, State: "waiting"},
			{ID: 3, Kind: shared.KindSportB, Position: shared.Position{X: 2, Y: 2}, State: "happy"},
		},
		Signal: shared.SignalState{Position: shared.Position{X: 2, Y: 2}, Color: shared.Green},
	}
}

func TestToDTO(t *testing.T) {
	dto := toDTO(testFrame(3))
	if dto.Tick != 3 || dto.Light != "green" || dto.Center != [2]int{2, 2} {
		t.Errorf("Unexpected header %+v", dto)
	}
	if len(dto.Cells) != 2 {
		t.Fatalf("Expected 2 occupied cells, got %d", len(dto.Cells))
	}
	center := dto.Cells[0]
	if center.X != 2 || center.Y != 2 || len(center.Agents) != 2 || center.Agents[1].ID != 3 {
		t.Errorf("Expected agents 1 and 3 sharing the center, got %+v", center)
	}
}

func TestSendFrame(t *testing.T) {
	tests := []struct {
		name     string
		source   *fakeSource
		lastTick int
		wantTick int
		wantErr  bool
		wantBody string
	}{
		{"new tick", &fakeSource{frame: testFrame(4)}, 3, 4, false, "id: 4\ndata: {"},
		{"already seen", &fakeSource{frame: testFrame(4)}, 4, -1, false, ""},
		{"source error", &fakeSource{err: errors.New("unavailable")}, -1, -1, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			got, err := sendFrame(context.Background(), tt.source, &b, tt.lastTick)
			if (err != nil) != tt.wantErr {
				t.Fatalf("sendFrame error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.wantTick {
				t.Errorf("Expected tick %d, got %d", tt.wantTick, got)
			}
			if !strings.HasPrefix(b.String(), tt.wantBody) || (tt.wantBody == "" && b.Len() > 0) {
				t.Errorf("Unexpected body %q", b.String())
			}
		})
	}
}

func TestEventsHandler(t *testing.T) {
	ts := httptest.NewServer(eventsHandler(&fakeSource{frame: testFrame(7)}, 10*time.Millisecond))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected an event stream, got %q", ct)
	}
	buf := make([]byte, 64)
	n, err := resp.Body.Read(buf)
	if err != nil {
		t.Fatalf("Reading event: %v", err)
	}
	if !strings.HasPrefix(string(buf[:n]), "id: 7\n") {
		t.Errorf("Expected the tick 7 event, got %q", buf[:n])
	}
}
