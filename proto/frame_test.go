package proto

import (
	"reflect"
	"testing"

	"intersection/shared"
)

func TestFrameStructRoundTrip(t *testing.T) {
	f := shared.Frame{
		RunID:  "5f0c",
		Tick:   12,
		Width:  11,
		Height: 9,
		Agents: []shared.AgentState{
			{ID: 1, Kind: shared.KindCommuter, Position: shared.Position{X: 5, Y: 4}, State: "calm", Token: shared.Yield, Destination: shared.West, Score: 3},
			{ID: 2, Kind: shared.KindTransit, Position: shared.Position{X: 0, Y: 4}, State: "angry", Token: shared.Compete, Passengers: 6},
		},
		Signal:    shared.SignalState{Position: shared.Position{X: 5, Y: 4}, Color: shared.Green, Cycle: shared.West, Queue: 2},
		LoopCells: []shared.Position{{X: 4, Y: 3}},
		Negotiations: []shared.NegotiationOutcome{
			{A: 1, B: 2, Cell: shared.Position{X: 5, Y: 4}, TokenA: shared.Yield, TokenB: shared.Compete, PayoffA: 3, PayoffB: 1},
		},
	}

	s, err := FrameToStruct(f)
	if err != nil {
		t.Fatalf("FrameToStruct: %v", err)
	}
	if got := s.Fields["tick"].GetNumberValue(); got != 12 {
		t.Errorf("Expected tick field 12, got %v", got)
	}

	back, err := FrameFromStruct(s)
	if err != nil {
		t.Fatalf("FrameFromStruct: %v", err)
	}
	if !reflect.DeepEqual(f, back) {
		t.Errorf("Frame changed in transit:\nwant %+v\ngot  %+v", f, back)
	}
}

func TestFrameFromNilStruct(t *testing.T) {
	if _, err := FrameFromStruct(nil); err == nil {
		t.Error("Expected an error for a nil struct")
	}
}
