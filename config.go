package keizu

import (
	jlconfig "github.com/JeremyLoy/config"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Config holds the World settings. LoadConfig fills it from the environment;
// field names map to KEIZU_* variables.
type Config struct {
	// LogLevel is a zerolog level name ("debug", "info", ...).
	LogLevel string `config:"KEIZU_LOG_LEVEL"`
	// InitialCapacity is the number of entity slots allocated up front.
	InitialCapacity int `config:"KEIZU_INITIAL_CAPACITY"`
	// CompactThreshold is the minimum number of consumed events a change log
	// must hold before Maintain compacts it.
	CompactThreshold int `config:"KEIZU_COMPACT_THRESHOLD"`
	// ValidateHierarchy runs a full invariant check at the start of every
	// Hierarchy.Update.
	ValidateHierarchy bool `config:"KEIZU_VALIDATE_HIERARCHY"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		LogLevel:         "info",
		InitialCapacity:  1024,
		CompactThreshold: 256,
	}
}

// LoadConfig returns DefaultConfig overridden by any KEIZU_* environment
// variables that are set.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := jlconfig.FromEnv().To(&cfg); err != nil {
		return cfg, eris.Wrap(err, "load config from environment")
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return cfg, eris.Wrapf(err, "invalid log level %q", cfg.LogLevel)
	}
	if cfg.InitialCapacity < 0 {
		return cfg, eris.Errorf("initial capacity must not be negative, got %d", cfg.InitialCapacity)
	}
	return cfg, nil
}
