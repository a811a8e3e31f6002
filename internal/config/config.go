// Package config loads simulator settings from YAML.
//
// Config file locations (priority order):
//  1. $SECNETSIM_CONFIG
//  2. ./secnetsim.yaml
//  3. ~/.config/secnetsim/config.yaml
//
// Command-line flags override whatever the file says.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"secnetsim/internal/sim"
	"secnetsim/internal/topology"
)

const (
	// EnvConfigPath names an explicit config file.
	EnvConfigPath = "SECNETSIM_CONFIG"
	// ConfigFileName is looked for in the working directory.
	ConfigFileName = "secnetsim.yaml"
	// ConfigDirName is the directory under ~/.config.
	ConfigDirName = "secnetsim"
)

var validate = validator.New()

// Config is the whole settings file.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Topology   TopologyConfig   `yaml:"topology"`
	Log        LogConfig        `yaml:"log"`
	Web        WebConfig        `yaml:"web"`
}

// SimulationConfig tunes the driver.
type SimulationConfig struct {
	Mode                  string        `yaml:"mode" validate:"oneof=auto manual"`
	Seed                  uint64        `yaml:"seed,omitempty"`
	CompromiseProbability *float64      `yaml:"compromise_probability,omitempty" validate:"omitempty,gte=0,lte=1"`
	Payload               string        `yaml:"payload" validate:"required,max=1024"`
	Timings               TimingsConfig `yaml:"timings"`
}

// TimingsConfig paces auto mode.
type TimingsConfig struct {
	Routing     Duration `yaml:"routing" validate:"gt=0"`
	Launch      Duration `yaml:"launch" validate:"gt=0"`
	Hop         Duration `yaml:"hop" validate:"gt=0"`
	Hold        Duration `yaml:"hold" validate:"gt=0"`
	Compromise  Duration `yaml:"compromise" validate:"gt=0"`
	KeyRotation Duration `yaml:"key_rotation" validate:"gt=0"`
}

// TopologyConfig picks the graph: a file when set, otherwise a random one.
type TopologyConfig struct {
	File    string  `yaml:"file,omitempty"`
	Nodes   int     `yaml:"nodes" validate:"gte=2,lte=200"`
	Density float64 `yaml:"density" validate:"gte=0,lte=1"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `yaml:"level,omitempty" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Format string `yaml:"format,omitempty" validate:"omitempty,oneof=console json"`
	File   string `yaml:"file,omitempty"`
}

// WebConfig configures the HTTP front end.
type WebConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

// Duration wraps time.Duration for YAML unmarshaling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DefaultConfig returns the stock settings.
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load finds and loads the config file, or returns defaults if none is found.
func Load() (*Config, string, error) {
	path := FindConfigPath()
	if path == "" {
		return DefaultConfig(), "", nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads and validates config from a specific path.
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, path, nil
}

// Save writes the config to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyDefaults() {
	s := &c.Simulation
	if s.Mode == "" {
		s.Mode = sim.ModeAuto.String()
	}
	if s.Payload == "" {
		s.Payload = sim.DefaultPayload
	}
	if s.CompromiseProbability == nil {
		p := sim.DefaultCompromiseProbability
		s.CompromiseProbability = &p
	}

	def := sim.DefaultTimings()
	t := &s.Timings
	for _, f := range []struct {
		field *Duration
		value time.Duration
	}{
		{&t.Routing, def.Routing},
		{&t.Launch, def.Launch},
		{&t.Hop, def.Hop},
		{&t.Hold, def.Hold},
		{&t.Compromise, def.Compromise},
		{&t.KeyRotation, def.KeyRotation},
	} {
		if *f.field == 0 {
			*f.field = Duration(f.value)
		}
	}

	if c.Topology.Nodes == 0 {
		c.Topology.Nodes = topology.DefaultNodes
	}
	if c.Topology.Density == 0 {
		c.Topology.Density = topology.DefaultDensity
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Web.Addr == "" {
		c.Web.Addr = "localhost:8080"
	}
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Report the first problem only.
	for _, e := range validationErrs {
		field := e.Namespace()
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "gte", "gt":
			return fmt.Errorf("%s: must be at least %s", field, e.Param())
		case "lte":
			return fmt.Errorf("%s: must not exceed %s", field, e.Param())
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, e.Param())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}

// DriverMode returns the configured pacing mode.
func (c *Config) DriverMode() sim.Mode {
	m, _ := sim.ParseMode(c.Simulation.Mode)
	return m
}

// DriverTimings converts the configured timings.
func (c *Config) DriverTimings() sim.Timings {
	t := c.Simulation.Timings
	return sim.Timings{
		Routing:     t.Routing.Duration(),
		Launch:      t.Launch.Duration(),
		Hop:         t.Hop.Duration(),
		Hold:        t.Hold.Duration(),
		Compromise:  t.Compromise.Duration(),
		KeyRotation: t.KeyRotation.Duration(),
	}
}

// DriverCompromiseProbability maps a configured zero to "never".
func (c *Config) DriverCompromiseProbability() float64 {
	p := *c.Simulation.CompromiseProbability
	if p == 0 {
		return -1
	}
	return p
}

// TopologyOptions returns the generator settings.
func (c *Config) TopologyOptions() topology.Options {
	return topology.Options{Nodes: c.Topology.Nodes, Density: c.Topology.Density}
}

// FindConfigPath returns the first config file found, or "".
func FindConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		if fileExists(path) {
			return path
		}
	}

	if fileExists(ConfigFileName) {
		if abs, err := filepath.Abs(ConfigFileName); err == nil {
			return abs
		}
		return ConfigFileName
	}

	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
