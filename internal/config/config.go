package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/smoke/internal/core/observability/log"
	"github.com/zeusync/smoke/internal/core/service/collision"
)

var ErrInvalid = errors.New("invalid config")

// Config is the engine configuration file.
type Config struct {
	Engine    Engine     `yaml:"engine"`
	Logging   log.Config `yaml:"logging"`
	Collision Collision  `yaml:"collision"`
	Inspect   Inspect    `yaml:"inspect"`
}

type Engine struct {
	// Workers caps concurrently running thread-safe tasks.
	Workers int `yaml:"workers"`
	// TickRate is the number of frames per second Run aims for.
	TickRate int `yaml:"tick_rate"`
	// MaxFrames stops Run after that many frames; 0 runs until canceled.
	MaxFrames   uint64 `yaml:"max_frames"`
	HaltOnError bool   `yaml:"halt_on_error"`
}

type Collision struct {
	TTLFrames int `yaml:"ttl_frames"`
}

type Inspect struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Engine: Engine{
			Workers:  runtime.NumCPU(),
			TickRate: 60,
		},
		Logging: log.Config{
			Level:  "info",
			Format: "console",
		},
		Collision: Collision{
			TTLFrames: collision.DefaultTTL,
		},
		Inspect: Inspect{
			Addr: "127.0.0.1:7070",
		},
	}
}

// FrameInterval is the target duration of one frame.
func (e Engine) FrameInterval() time.Duration {
	if e.TickRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(e.TickRate)
}

// Decode reads YAML over the defaults and validates the result.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads path; an empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func (c Config) Validate() error {
	var errs []error
	if c.Engine.Workers <= 0 {
		errs = append(errs, fmt.Errorf("engine.workers must be positive, got %d", c.Engine.Workers))
	}
	if c.Engine.TickRate < 0 {
		errs = append(errs, fmt.Errorf("engine.tick_rate must not be negative, got %d", c.Engine.TickRate))
	}
	if c.Collision.TTLFrames <= 0 {
		errs = append(errs, errors.New("collision.ttl_frames must be positive"))
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}
	if c.Inspect.Enabled && c.Inspect.Addr == "" {
		errs = append(errs, errors.New("inspect.addr is required when inspect is enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
