package main

import (
	"context"
	"errors"
	"flag"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"intersection/config"
	pb "intersection/proto"
	"intersection/simulation"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

// overrides holds the command-line flags that take precedence over the config file and environment
type overrides struct {
	width, height int
	seed          int64
	ticks         int
	tickRateMS    int
	grpcAddr      string
	httpAddr      string
	output        string
}

// apply copies every flag that was set explicitly onto cfg
func (o overrides) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "width":
			cfg.Width = o.width
		case "height":
			cfg.Height = o.height
		case "seed":
			cfg.Seed = o.seed
		case "ticks":
			cfg.MaxTicks = o.ticks
		case "tick-ms":
			cfg.TickRateMS = o.tickRateMS
		case "grpc":
			cfg.GRPCAddr = o.grpcAddr
		case "http":
			cfg.HTTPAddr = o.httpAddr
		case "output":
			cfg.OutputFile = o.output
		case "debug":
			cfg.Debug = true
		}
	})
}

// runTicks advances the simulation at the configured rate until ctx is done or maxTicks ticks
// have run. maxTicks 0 runs forever.
func runTicks(ctx context.Context, sim *simulation.Simulation, tickRate time.Duration, maxTicks int) {
	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()

	for i := 0; maxTicks == 0 || i < maxTicks; i++ {
		select {
		case <-ctx.Done():
			log.Println("Simulation stopped")
			return
		case <-ticker.C:
			tickStart := time.Now()
			frame := sim.Step()
			log.Debugf("Tick %d processing completed in %v", frame.Tick, time.Since(tickStart))
		}
	}
	log.Printf("Simulation finished after %d ticks", maxTicks)
}

// printFrames keeps the frame file in sync with every published tick
func printFrames(sim *simulation.Simulation, ff *simulation.FrameFile) {
	events, cancel := sim.Events().Subscribe(64)
	defer cancel()
	for e := range events {
		if tick, ok := e.(simulation.TickEvent); ok {
			ff.PrintState(tick.Frame)
		}
	}
}

func main() {
	var o overrides
	configPath := flag.String("config", config.GetDefaultConfigPath(), "Path to the JSON config file")
	manual := flag.Bool("manual", false, "Only advance the simulation through the Step RPC")
	flag.IntVar(&o.width, "width", 0, "Grid width")
	flag.IntVar(&o.height, "height", 0, "Grid height")
	flag.Int64Var(&o.seed, "seed", 0, "Random seed (0 seeds from the clock)")
	flag.IntVar(&o.ticks, "ticks", 0, "Number of ticks to run (0 runs forever)")
	flag.IntVar(&o.tickRateMS, "tick-ms", 0, "Milliseconds between ticks")
	flag.StringVar(&o.grpcAddr, "grpc", "", "gRPC listen address")
	flag.StringVar(&o.httpAddr, "http", "", "HTTP listen address for /ws, /health and /status")
	flag.StringVar(&o.output, "output", "", "Frame output file")
	flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if err := config.SaveDefaultConfig(*configPath); err != nil {
		log.Printf("Warning: could not write default config to %s: %v", *configPath, err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		log.Fatalf("Invalid environment: %v", err)
	}
	o.apply(flag.CommandLine, cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		log.Println("Debug logging enabled")
	}

	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	log.Printf("Using seed %d", cfg.Seed)
	rng := rand.New(rand.NewSource(cfg.Seed))

	sim, err := simulation.New(cfg.Simulation(), rng)
	if err != nil {
		log.Fatalf("Failed to create simulation: %v", err)
	}
	defer sim.Stop()

	frameFile, err := simulation.OpenFrameFile(cfg.OutputFile)
	if err != nil {
		log.Fatalf("Failed to open output file: %v", err)
	}
	defer frameFile.Close()
	frameFile.PrintState(sim.Frame())
	go printFrames(sim, frameFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// gRPC service
	grpcServer := grpc.NewServer()
	pb.RegisterSimulationServiceServer(grpcServer, NewGRPCSimulationServer(sim))
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", cfg.GRPCAddr, err)
	}
	go func() {
		log.Printf("gRPC server listening on %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			log.Errorf("gRPC server stopped: %v", err)
		}
	}()

	// HTTP health, status and websocket frame stream
	wsServer := NewWebSocketServer(sim)
	mux := http.NewServeMux()
	wsServer.Routes(mux)
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("HTTP server stopped: %v", err)
		}
	}()

	if *manual {
		log.Println("Manual mode: ticks only advance through the Step RPC")
	} else {
		go runTicks(ctx, sim, cfg.TickRate(), cfg.MaxTicks)
	}

	<-ctx.Done()
	log.Println("Shutting down simulation server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsServer.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}
	grpcServer.GracefulStop()
}
