// Package config loads the boxtree configuration from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-boxtree/logger"
)

// Environment variables consulted by Load.
const (
	EnvPath        = "BOXTREE_CONFIG"
	EnvLogLevel    = "BOXTREE_LOG_LEVEL"
	EnvWriteBuffer = "BOXTREE_WRITE_BUFFER"

	DefaultPath = "./boxtree.yaml"
)

// Known event record types.
const (
	LeanEventType = "MDLeanEvent"
	FullEventType = "MDEvent"
)

// Config is the full configuration tree.
type Config struct {
	Log       logger.Config `mapstructure:"log" yaml:"log"`
	Store     Store         `mapstructure:"store" yaml:"store"`
	Container Container     `mapstructure:"container" yaml:"container"`
	Codec     Codec         `mapstructure:"codec" yaml:"codec"`
}

// Store configures the disk-backed record store.
type Store struct {
	// WriteBufferBytes is the write-behind threshold. Zero writes through.
	WriteBufferBytes int64 `mapstructure:"write_buffer_bytes" yaml:"write_buffer_bytes"`
	// DataChunkRecords is the file growth granularity in records.
	DataChunkRecords int64 `mapstructure:"data_chunk_records" yaml:"data_chunk_records"`
}

// Container configures the columns written into container files.
type Container struct {
	CompressionLevel int  `mapstructure:"compression_level" yaml:"compression_level"` // 0 disables
	Shuffle          bool `mapstructure:"shuffle" yaml:"shuffle"`
	Checksum         bool `mapstructure:"checksum" yaml:"checksum"`
	ChunkRows        int  `mapstructure:"chunk_rows" yaml:"chunk_rows"`
}

// Codec configures the flat tree codec.
type Codec struct {
	EventType       string  `mapstructure:"event_type" yaml:"event_type"`
	VolumeTolerance float64 `mapstructure:"volume_tolerance" yaml:"volume_tolerance"`
	LoadConcurrency int     `mapstructure:"load_concurrency" yaml:"load_concurrency"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Log: logger.DefaultConfig(),
		Store: Store{
			WriteBufferBytes: 16 << 20,
			DataChunkRecords: 10000,
		},
		Container: Container{
			ChunkRows: 16384,
		},
		Codec: Codec{
			EventType:       LeanEventType,
			VolumeTolerance: 1e-4,
			LoadConcurrency: 4,
		},
	}
}

// Load reads the configuration from path, from $BOXTREE_CONFIG when path
// is empty, or from ./boxtree.yaml. A missing file yields the defaults.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if envPath := os.Getenv(EnvPath); envPath != "" {
			path = envPath
		} else {
			path = DefaultPath
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvWriteBuffer); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWriteBuffer, err)
		}
		cfg.Store.WriteBufferBytes = n
	}
	return nil
}

// Validate rejects negative sizes and unknown event types.
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Store.WriteBufferBytes < 0 {
		return fmt.Errorf("store.write_buffer_bytes must not be negative: %d", c.Store.WriteBufferBytes)
	}
	if c.Store.DataChunkRecords < 0 {
		return fmt.Errorf("store.data_chunk_records must not be negative: %d", c.Store.DataChunkRecords)
	}
	if c.Container.CompressionLevel < 0 || c.Container.CompressionLevel > 22 {
		return fmt.Errorf("container.compression_level out of range: %d", c.Container.CompressionLevel)
	}
	if c.Container.ChunkRows < 0 {
		return fmt.Errorf("container.chunk_rows must not be negative: %d", c.Container.ChunkRows)
	}
	switch c.Codec.EventType {
	case LeanEventType, FullEventType:
	default:
		return fmt.Errorf("unknown codec.event_type %q", c.Codec.EventType)
	}
	if c.Codec.VolumeTolerance <= 0 {
		return fmt.Errorf("codec.volume_tolerance must be positive: %g", c.Codec.VolumeTolerance)
	}
	if c.Codec.LoadConcurrency < 0 {
		return fmt.Errorf("codec.load_concurrency must not be negative: %d", c.Codec.LoadConcurrency)
	}
	return nil
}
