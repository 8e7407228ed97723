// Package config loads the allocator configuration of a process from YAML and installs the
// resulting allocator as the process-wide default.
package config

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ltd-go/ltd/memory"
	"github.com/ltd-go/ltd/memory/instrument"
	"github.com/ltd-go/ltd/memutils"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/slog"
	"gopkg.in/yaml.v3"
)

const (
	KindHeap  = "heap"
	KindArena = "arena"
	KindNever = "never"
)

const (
	EnvAllocatorKind = "LTD_ALLOCATOR_KIND"
	EnvLogLevel      = "LTD_LOG_LEVEL"
)

type Config struct {
	Allocator AllocatorConfig
	Log       LogConfig
}

type AllocatorConfig struct {
	// Name labels the allocator in logs and metrics
	Name string
	// Kind is one of KindHeap, KindArena, or KindNever
	Kind string
	// ArenaSize is the size in bytes of the arena's region
	ArenaSize int
	// Alignment is the alignment of arena blocks. 0 selects the arena's default.
	Alignment              uint
	ExternallySynchronized bool
	// Track wraps the allocator in a memory.TrackingAllocator
	Track bool
	// Metrics wraps the allocator in an instrument.Allocator
	Metrics bool
}

type LogConfig struct {
	Level string
}

// Default returns the configuration used when no file is provided: an untracked heap allocator and
// info-level logging
func Default() Config {
	return Config{
		Allocator: AllocatorConfig{
			Name:      "default",
			Kind:      KindHeap,
			ArenaSize: 1 << 20,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

type fileConfig struct {
	Allocator fileAllocatorConfig `yaml:"allocator"`
	Log       fileLogConfig       `yaml:"log"`
}

type fileAllocatorConfig struct {
	Name                   string `yaml:"name"`
	Kind                   string `yaml:"kind"`
	ArenaSize              int    `yaml:"arenaSize"`
	Alignment              uint   `yaml:"alignment"`
	ExternallySynchronized *bool  `yaml:"externallySynchronized"`
	Track                  *bool  `yaml:"track"`
	Metrics                *bool  `yaml:"metrics"`
}

type fileLogConfig struct {
	Level string `yaml:"level"`
}

func merge(dst *Config, src fileConfig) {
	if src.Allocator.Name != "" {
		dst.Allocator.Name = src.Allocator.Name
	}
	if src.Allocator.Kind != "" {
		dst.Allocator.Kind = strings.ToLower(src.Allocator.Kind)
	}
	if src.Allocator.ArenaSize != 0 {
		dst.Allocator.ArenaSize = src.Allocator.ArenaSize
	}
	if src.Allocator.Alignment != 0 {
		dst.Allocator.Alignment = src.Allocator.Alignment
	}
	if src.Allocator.ExternallySynchronized != nil {
		dst.Allocator.ExternallySynchronized = *src.Allocator.ExternallySynchronized
	}
	if src.Allocator.Track != nil {
		dst.Allocator.Track = *src.Allocator.Track
	}
	if src.Allocator.Metrics != nil {
		dst.Allocator.Metrics = *src.Allocator.Metrics
	}
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
}

// Parse reads a YAML document and merges it over Default. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var parsed fileConfig
	err := decoder.Decode(&parsed)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "failed to parse allocator configuration")
	}

	merge(&cfg, parsed)

	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Load reads the configuration file at path and applies the environment overrides
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read allocator configuration %s", path)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "invalid allocator configuration %s", path)
	}

	ApplyEnvOverrides(&cfg)

	err = cfg.Validate()
	if err != nil {
		return Config{}, errors.Wrapf(err, "invalid environment override of %s", path)
	}

	return cfg, nil
}

// ApplyEnvOverrides replaces the allocator kind and log level with the values of EnvAllocatorKind
// and EnvLogLevel, when they are set
func ApplyEnvOverrides(cfg *Config) {
	if kind := strings.TrimSpace(os.Getenv(EnvAllocatorKind)); kind != "" {
		cfg.Allocator.Kind = strings.ToLower(kind)
	}
	if level := strings.TrimSpace(os.Getenv(EnvLogLevel)); level != "" {
		cfg.Log.Level = level
	}
}

func (c Config) Validate() error {
	switch c.Allocator.Kind {
	case KindHeap, KindNever:
	case KindArena:
		if c.Allocator.ArenaSize <= 0 {
			return errors.Newf("allocator.arenaSize must be positive, but was %d", c.Allocator.ArenaSize)
		}
		if c.Allocator.Alignment != 0 {
			err := memutils.CheckPow2(c.Allocator.Alignment, "allocator.alignment")
			if err != nil {
				return err
			}
		}
	default:
		return errors.Newf("unknown allocator.kind %q", c.Allocator.Kind)
	}

	if c.Allocator.Name == "" {
		return errors.New("allocator.name must not be empty")
	}

	_, err := c.level()
	return err
}

func (c Config) level() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.Log.Level))
	if err != nil {
		return level, errors.Wrapf(err, "invalid log.level %q", c.Log.Level)
	}

	return level, nil
}

// Logger returns a text logger writing to w at the configured level
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Build creates the configured allocator. reg is only used, and only required, when metrics are
// enabled.
func (c Config) Build(logger *slog.Logger, reg prometheus.Registerer) (memory.Allocator, error) {
	err := c.Validate()
	if err != nil {
		return nil, err
	}
	if c.Allocator.Metrics && reg == nil {
		return nil, errors.Wrap(memutils.ErrNullPointer, "allocator.metrics requires a prometheus registerer")
	}

	var allocator memory.Allocator
	switch c.Allocator.Kind {
	case KindHeap:
		allocator = memory.HeapAllocator{}
	case KindNever:
		allocator = memory.NeverAllocator{}
	case KindArena:
		allocator, err = memory.NewArena(memory.ArenaOptions{
			Size:                   c.Allocator.ArenaSize,
			Alignment:              c.Allocator.Alignment,
			ExternallySynchronized: c.Allocator.ExternallySynchronized,
			Logger:                 logger,
		})
		if err != nil {
			return nil, err
		}
	}

	if c.Allocator.Track {
		allocator = memory.NewTracking(allocator, memory.TrackingOptions{
			Name:                   c.Allocator.Name,
			ExternallySynchronized: c.Allocator.ExternallySynchronized,
			Logger:                 logger,
		})
	}

	if c.Allocator.Metrics {
		instrumented, err := instrument.New(allocator, reg, c.Allocator.Name)
		if err != nil {
			return nil, errors.CombineErrors(err, Close(allocator))
		}
		allocator = instrumented
	}

	return allocator, nil
}

// Apply builds the configured allocator and installs it as the process-wide default. It fails if a
// default allocator was already installed.
func (c Config) Apply(logger *slog.Logger, reg prometheus.Registerer) (memory.Allocator, error) {
	allocator, err := c.Build(logger, reg)
	if err != nil {
		return nil, err
	}

	err = memory.SetDefault(allocator)
	if err != nil {
		return nil, errors.CombineErrors(err, Close(allocator))
	}

	return allocator, nil
}

type wrapper interface {
	Inner() memory.Allocator
}

// Close releases the resources of an allocator built by Build, looking through any tracking or
// instrumenting wrappers. Allocators without resources are left alone.
func Close(allocator memory.Allocator) error {
	for allocator != nil {
		closer, ok := allocator.(io.Closer)
		if ok {
			return closer.Close()
		}

		wrapped, ok := allocator.(wrapper)
		if !ok {
			return nil
		}
		allocator = wrapped.Inner()
	}

	return nil
}
