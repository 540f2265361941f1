// Package config loads the simulation server configuration. Values come from defaults, then a
// JSON file, then INTERSECTION_* environment variables; command-line flags are applied last by
// the caller.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"intersection/shared"
	"intersection/simulation"

	log "github.com/sirupsen/logrus"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv
const EnvPrefix = "INTERSECTION_"

// Config holds the application configuration
type Config struct {
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Commuters int               `json:"commuters"`
	Transits  int               `json:"transits"`
	SportA    int               `json:"sport_a"`
	SportB    int               `json:"sport_b"`
	Riders    int               `json:"riders"`
	LoopCells []shared.Position `json:"loop_cells,omitempty"`

	// Seed drives placement and every random choice; 0 means seed from the clock
	Seed       int64  `json:"seed"`
	TickRateMS int    `json:"tick_rate_ms"`
	MaxTicks   int    `json:"max_ticks"`
	OutputFile string `json:"output_file"`
	GRPCAddr   string `json:"grpc_addr"`
	HTTPAddr   string `json:"http_addr"`
	Debug      bool   `json:"debug"`
}

// Default returns the configuration used when nothing else is given
func Default() *Config {
	return &Config{
		Width:      11,
		Height:     11,
		Commuters:  8,
		Transits:   2,
		SportA:     2,
		SportB:     2,
		Riders:     6,
		TickRateMS: 1000,
		MaxTicks:   1000,
		OutputFile: "grid_output.txt",
		GRPCAddr:   ":9090",
		HTTPAddr:   ":8080",
	}
}

// Load reads the configuration from a JSON file on top of the defaults. A missing file is not an
// error.
func Load(configPath string) (*Config, error) {
	config := Default()

	file, err := os.Open(configPath)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("Config file not found at %s, using defaults", configPath)
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
	}

	log.Printf("Configuration loaded from %s", configPath)
	return config, nil
}

// ApplyEnv overlays INTERSECTION_* variables found through lookup, normally os.LookupEnv
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	ints := map[string]*int{
		"WIDTH":        &c.Width,
		"HEIGHT":       &c.Height,
		"COMMUTERS":    &c.Commuters,
		"TRANSITS":     &c.Transits,
		"SPORT_A":      &c.SportA,
		"SPORT_B":      &c.SportB,
		"RIDERS":       &c.Riders,
		"TICK_RATE_MS": &c.TickRateMS,
		"MAX_TICKS":    &c.MaxTicks,
	}
	for name, dst := range ints {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}

	if v, ok := lookup(EnvPrefix + "SEED"); ok {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sSEED: %w", EnvPrefix, err)
		}
		c.Seed = seed
	}
	if v, ok := lookup(EnvPrefix + "DEBUG"); ok {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sDEBUG: %w", EnvPrefix, err)
		}
		c.Debug = debug
	}

	strs := map[string]*string{
		"OUTPUT_FILE": &c.OutputFile,
		"GRPC_ADDR":   &c.GRPCAddr,
		"HTTP_ADDR":   &c.HTTPAddr,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	return nil
}

// Validate rejects configurations the simulation cannot run
func (c *Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("grid must be at least 1x1, got %dx%d", c.Width, c.Height))
	}
	counts := map[string]int{
		"commuters": c.Commuters,
		"transits":  c.Transits,
		"sport_a":   c.SportA,
		"sport_b":   c.SportB,
		"riders":    c.Riders,
	}
	for name, n := range counts {
		if n < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", name, n))
		}
	}
	if c.TickRateMS <= 0 {
		errs = append(errs, fmt.Errorf("tick_rate_ms must be positive, got %d", c.TickRateMS))
	}
	if c.MaxTicks < 0 {
		errs = append(errs, fmt.Errorf("max_ticks must not be negative, got %d", c.MaxTicks))
	}
	for _, p := range c.LoopCells {
		if p.X < 0 || p.X >= c.Width || p.Y < 0 || p.Y >= c.Height {
			errs = append(errs, fmt.Errorf("loop cell (%d, %d) is outside the grid", p.X, p.Y))
		}
	}
	return errors.Join(errs...)
}

// TickRate is the wall-clock interval between ticks
func (c *Config) TickRate() time.Duration {
	return time.Duration(c.TickRateMS) * time.Millisecond
}

// Simulation converts the configuration into the simulation's setup parameters
func (c *Config) Simulation() simulation.Config {
	return simulation.Config{
		Width:     c.Width,
		Height:    c.Height,
		Commuters: c.Commuters,
		Transits:  c.Transits,
		SportA:    c.SportA,
		SportB:    c.SportB,
		Riders:    c.Riders,
		LoopCells: c.LoopCells,
	}
}

// GetDefaultConfigPath returns the default path for the config file
func GetDefaultConfigPath() string {
	execPath, err := os.Executable()
	if err != nil {
		log.Printf("Warning: Could not determine executable path: %v", err)
		return "config.json"
	}
	return filepath.Join(filepath.Dir(execPath), "config.json")
}

// SaveDefaultConfig creates a default config file if it doesn't exist
func SaveDefaultConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return nil
	}

	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(Default()); err != nil {
		return err
	}

	log.Printf("Created default config file at %s", configPath)
	return nil
}
