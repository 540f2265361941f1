package main

import (
	"context"

	pb "intersection/proto"
	"intersection/simulation"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// maxStepsPerCall bounds a single Step RPC
const maxStepsPerCall = 1000

// GRPCSimulationServer implements the SimulationServiceServer interface
type GRPCSimulationServer struct {
	pb.UnimplementedSimulationServiceServer

	sim *simulation.Simulation
}

// NewGRPCSimulationServer wraps a simulation with the gRPC service
func NewGRPCSimulationServer(sim *simulation.Simulation) *GRPCSimulationServer {
	return &GRPCSimulationServer{sim: sim}
}

// GetFrame implements the GetFrame RPC
func (s *GRPCSimulationServer) GetFrame(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	frame, err := pb.FrameToStruct(s.sim.Frame())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return frame, nil
}

// Step implements the Step RPC
func (s *GRPCSimulationServer) Step(ctx context.Context, req *wrapperspb.UInt32Value) (*structpb.Struct, error) {
	n := int(req.GetValue())
	if n == 0 {
		n = 1
	}
	if n > maxStepsPerCall {
		return nil, status.Errorf(codes.InvalidArgument, "at most %d ticks per call, got %d", maxStepsPerCall, n)
	}

	frame := s.sim.Frame()
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, status.FromContextError(err).Err()
		}
		frame = s.sim.Step()
	}
	log.Debugf("Step RPC advanced %d ticks to tick %d", n, frame.Tick)

	out, err := pb.FrameToStruct(frame)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// HealthCheck implements the HealthCheck RPC
func (s *GRPCSimulationServer) HealthCheck(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String("healthy " + s.sim.RunID()), nil
}
