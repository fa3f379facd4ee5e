package depot

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Settings is the file form of the package configuration.
//
//	chunk_bytes: 16384
//	entity_limit: 100000
//	workers: 8
//	log_level: info
type Settings struct {
	ChunkBytes  int    `yaml:"chunk_bytes"`
	EntityLimit int    `yaml:"entity_limit"`
	Workers     int    `yaml:"workers"`
	LogLevel    string `yaml:"log_level"`
}

// LoadSettings decodes YAML settings from r. An empty document yields zero
// Settings, which keep every default.
func LoadSettings(r io.Reader) (*Settings, error) {
	var s Settings
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if s.ChunkBytes < 0 || s.EntityLimit < 0 || s.Workers < 0 {
		return nil, fmt.Errorf("settings must not be negative: %+v", s)
	}
	return &s, nil
}

// Logger builds the logger described by LogLevel. An empty level disables
// logging.
func (s *Settings) Logger() (*zap.Logger, error) {
	if s.LogLevel == "" {
		return zap.NewNop(), nil
	}
	level, err := zapcore.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", s.LogLevel, err)
	}
	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    true,
	}
	return config.Build()
}

// Apply installs the settings as the package-wide Config.
func (s *Settings) Apply() error {
	logger, err := s.Logger()
	if err != nil {
		return err
	}
	if s.ChunkBytes > 0 {
		Config.SetChunkBytes(s.ChunkBytes)
	}
	Config.SetEntityLimit(s.EntityLimit)
	Config.SetLogger(logger)
	return nil
}

// WorldOptions converts the settings into options for a single world,
// leaving the package Config untouched.
func (s *Settings) WorldOptions() ([]WorldOption, error) {
	logger, err := s.Logger()
	if err != nil {
		return nil, err
	}
	opts := []WorldOption{WithLogger(logger)}
	if s.ChunkBytes > 0 {
		opts = append(opts, WithChunkBytes(s.ChunkBytes))
	}
	if s.EntityLimit > 0 {
		opts = append(opts, WithEntityLimit(s.EntityLimit))
	}
	return opts, nil
}
