package proto

import (
	"encoding/json"
	"fmt"

	"intersection/shared"

	"google.golang.org/protobuf/types/known/structpb"
)

// FrameToStruct converts a frame into its google.protobuf.Struct form, keyed by the frame's JSON
// field names
func FrameToStruct(f shared.Frame) (*structpb.Struct, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decoding frame fields: %w", err)
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("building frame struct: %w", err)
	}
	return s, nil
}

// FrameFromStruct is the inverse of FrameToStruct
func FrameFromStruct(s *structpb.Struct) (shared.Frame, error) {
	var f shared.Frame
	if s == nil {
		return f, fmt.Errorf("nil frame struct")
	}
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return f, fmt.Errorf("encoding frame struct: %w", err)
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("decoding frame: %w", err)
	}
	return f, nil
}
