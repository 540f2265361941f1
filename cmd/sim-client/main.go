package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"text/template"
	"time"

	pb "intersection/proto"
	"intersection/shared"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

//go:embed summary_template.txt
var summaryTemplate string

var summary = template.Must(template.New("summary").Parse(summaryTemplate))

// KindSummary counts the live agents of one archetype by state
type KindSummary struct {
	Kind   shared.Kind
	Count  int
	States map[string]int
}

// SummaryData holds the data for the summary template
type SummaryData struct {
	shared.Frame
	Kinds      []KindSummary
	Passengers int
}

func newSummaryData(f shared.Frame) SummaryData {
	byKind := lo.GroupBy(f.Agents, func(a shared.AgentState) shared.Kind { return a.Kind })
	kinds := lo.Keys(byKind)
	slices.Sort(kinds)

	data := SummaryData{Frame: f}
	for _, k := range kinds {
		data.Kinds = append(data.Kinds, KindSummary{
			Kind:   k,
			Count:  len(byKind[k]),
			States: lo.CountValuesBy(byKind[k], func(a shared.AgentState) string { return a.State }),
		})
	}
	data.Passengers = lo.SumBy(f.Agents, func(a shared.AgentState) int { return a.Passengers })
	return data
}

// renderSummary writes a short human-readable report of a frame
func renderSummary(w io.Writer, f shared.Frame) error {
	return summary.Execute(w, newSummaryData(f))
}

// SimClient talks to the simulation server over gRPC
type SimClient struct {
	ServerURL  string
	Connection *grpc.ClientConn
	Client     pb.SimulationServiceClient
	Timeout    time.Duration
}

// Connect establishes a gRPC connection to the simulation server and checks its health
func (c *SimClient) Connect() error {
	log.Printf("Connecting to simulation server at %s", c.ServerURL)

	conn, err := grpc.NewClient(c.ServerURL, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	c.Connection = conn
	c.Client = pb.NewSimulationServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()
	health, err := c.Client.HealthCheck(ctx, &emptypb.Empty{})
	if err != nil {
		conn.Close()
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Printf("Server reports %s", health.GetValue())
	return nil
}

// Close closes the connection
func (c *SimClient) Close() {
	if c.Connection != nil {
		c.Connection.Close()
	}
}

// Frame fetches the current frame, or advances the simulation first when steps > 0
func (c *SimClient) Frame(steps uint32) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()
	if steps > 0 {
		return c.Client.Step(ctx, wrapperspb.UInt32(steps))
	}
	return c.Client.GetFrame(ctx, &emptypb.Empty{})
}

// printFrame writes a frame either as a summary or as indented JSON
func printFrame(w io.Writer, s *structpb.Struct, asJSON bool) error {
	if asJSON {
		b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	f, err := pb.FrameFromStruct(s)
	if err != nil {
		return err
	}
	return renderSummary(w, f)
}

func main() {
	serverURL := flag.String("server", "localhost:9090", "Simulation server URL (gRPC)")
	steps := flag.Uint("steps", 0, "Ticks to advance per request (0 only reads the frame)")
	repeat := flag.Int("repeat", 1, "Number of requests to make")
	interval := flag.Duration("interval", 0, "Pause between requests")
	asJSON := flag.Bool("json", false, "Print the raw frame as JSON instead of a summary")
	flag.Parse()

	client := &SimClient{ServerURL: *serverURL, Timeout: 10 * time.Second}
	if err := client.Connect(); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	for i := 0; i < *repeat; i++ {
		if i > 0 && *interval > 0 {
			time.Sleep(*interval)
		}
		s, err := client.Frame(uint32(*steps))
		if err != nil {
			log.Fatalf("Request %d failed: %v", i+1, err)
		}
		if err := printFrame(os.Stdout, s, *asJSON); err != nil {
			log.Fatalf("Failed to print frame: %v", err)
		}
	}
}
