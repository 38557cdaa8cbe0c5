// Package config holds the yaml configuration of the aggregation daemon.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jvmprof/jvmprof/pkg/storage/client"
)

type AgentConfig struct {
	// Directory scanned for completed trace dumps (*.traces files).
	SpoolDir string `yaml:"spool_dir"`

	// Directory holding per-process method maps (methods-<pid>.map).
	// The spool directory by default.
	MethodMapDir string `yaml:"method_map_dir"`

	// Kind of profiles the sampler records: cpu, heap or contention.
	ProfileType string `yaml:"profile_type"`

	// Sampling rate the in-process sampler was configured with.
	// Zero means every event was recorded.
	SamplingRate int64 `yaml:"sampling_rate"`

	// Scale flushed profiles back to real event magnitudes.
	Unsample bool `yaml:"unsample"`

	// How often the spool directory is rescanned.
	PollInterval time.Duration `yaml:"poll_interval"`

	// How long one profile accumulates before it is flushed to storage.
	EgressInterval time.Duration `yaml:"egress_interval"`

	// Number of concurrent per-process aggregation workers.
	Workers int `yaml:"workers"`

	// Labels attached to every flushed profile.
	Labels map[string]string `yaml:"labels,omitempty"`
}

type Config struct {
	Agent AgentConfig `yaml:"agent"`

	LocalStorage    *client.LocalStorageConfig    `yaml:"local_storage,omitempty"`
	InMemoryStorage *client.InMemoryStorageConfig `yaml:"inmemory_storage,omitempty"`

	MetricsPort uint `yaml:"metrics_port"`
}

func defaultValue[T comparable](ptr *T, value T) {
	var zero T
	if *ptr == zero {
		*ptr = value
	}
}

func (c *Config) FillDefault() {
	defaultValue(&c.Agent.MethodMapDir, c.Agent.SpoolDir)
	defaultValue(&c.Agent.ProfileType, "cpu")
	defaultValue(&c.Agent.PollInterval, 10*time.Second)
	defaultValue(&c.Agent.EgressInterval, time.Minute)
	defaultValue(&c.Agent.Workers, 4)

	if c.LocalStorage == nil && c.InMemoryStorage == nil {
		c.InMemoryStorage = &client.InMemoryStorageConfig{}
	}
	if c.InMemoryStorage != nil {
		c.InMemoryStorage.FillDefault()
	}

	defaultValue(&c.MetricsPort, 9127)
}

func (c *Config) validate() error {
	if c.Agent.SpoolDir == "" {
		return fmt.Errorf("agent spool directory is required")
	}

	switch c.Agent.ProfileType {
	case "cpu", "heap", "contention":
	default:
		return fmt.Errorf("unknown profile type %q", c.Agent.ProfileType)
	}

	return nil
}

func ParseConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open config file: %w", err)
	}
	defer file.Close()

	var conf Config

	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&conf); err != nil {
		return nil, fmt.Errorf("can't parse config %s: %w", path, err)
	}

	conf.FillDefault()

	if err := conf.validate(); err != nil {
		return nil, err
	}

	return &conf, nil
}
