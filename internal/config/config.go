// Package config loads triage core configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Ramdan0505/radlab-preinvest/pkg/errkind"
)

type Config struct {
	Cases    CasesConfig    `mapstructure:"cases"`
	Triage   TriageConfig   `mapstructure:"triage"`
	Semantic SemanticConfig `mapstructure:"semantic"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type CasesConfig struct {
	// Dir is the root under which per-case artifact stores live.
	Dir string `mapstructure:"dir"`
}

type TriageConfig struct {
	// RulesPath points at a YAML rule table. Empty means the embedded
	// default table.
	RulesPath string `mapstructure:"rules_path"`
}

type SemanticConfig struct {
	// MaxDistance filters query results: anything farther than this cosine
	// distance is discarded. Tune between false negatives (too low) and
	// noise (too high).
	MaxDistance float64 `mapstructure:"max_distance"`
	TopK        int     `mapstructure:"top_k"`
	// DBPath is the SQLite file backing the vector store. Empty selects
	// the in-memory store.
	DBPath string `mapstructure:"db_path"`
	// EmbedderURL is the endpoint of the external text→vector service.
	EmbedderURL string `mapstructure:"embedder_url"`
}

type PipelineConfig struct {
	// Workers bounds concurrent per-file normalization within one case.
	Workers int `mapstructure:"workers"`
	// MaxEventCandidates caps how many stored events feed the free-text
	// ranking pass.
	MaxEventCandidates int `mapstructure:"max_event_candidates"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("cases.dir", "data/cases")
	v.SetDefault("triage.rules_path", "")
	v.SetDefault("semantic.max_distance", 0.70)
	v.SetDefault("semantic.top_k", 5)
	v.SetDefault("semantic.db_path", "")
	v.SetDefault("semantic.embedder_url", "http://localhost:8501")
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.max_event_candidates", 2000)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/radlab")
	}

	// Environment variables override
	v.SetEnvPrefix("RADLAB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects impossible settings before any artifact is touched.
func (c *Config) Validate() error {
	if c.Semantic.MaxDistance <= 0 || c.Semantic.MaxDistance > 2 {
		return errkind.E(errkind.KindConfiguration, "config.Validate",
			fmt.Sprintf("semantic.max_distance must be in (0, 2], got %g", c.Semantic.MaxDistance))
	}
	if c.Semantic.TopK < 1 {
		return errkind.E(errkind.KindConfiguration, "config.Validate",
			fmt.Sprintf("semantic.top_k must be at least 1, got %d", c.Semantic.TopK))
	}
	if c.Pipeline.Workers < 1 {
		return errkind.E(errkind.KindConfiguration, "config.Validate",
			fmt.Sprintf("pipeline.workers must be at least 1, got %d", c.Pipeline.Workers))
	}
	if c.Pipeline.MaxEventCandidates < 1 {
		return errkind.E(errkind.KindConfiguration, "config.Validate",
			fmt.Sprintf("pipeline.max_event_candidates must be at least 1, got %d", c.Pipeline.MaxEventCandidates))
	}
	return nil
}
