package config

import (
	"errors"
	"fmt"
	"time"
)

// Enforcer policy names accepted in Settings.
const (
	EnforcerAny  = "any"
	EnforcerMain = "main"
)

// SectionKey is the optional top-level section bus settings live under.
const SectionKey = "bus"

// Settings are the file-configurable knobs of a bus.
type Settings struct {
	// Identifier names the bus in logs and String().
	// Default: a random identifier
	Identifier string

	// Enforcer is EnforcerAny or EnforcerMain.
	// Default: EnforcerAny
	Enforcer string

	// IOPoolSize bounds concurrent IO-affinity handlers.
	// Default: 64
	IOPoolSize int

	// ComputationPoolSize bounds concurrent Computation-affinity handlers.
	// Default: 0, meaning GOMAXPROCS
	ComputationPoolSize int

	// JournalCapacity sizes the dead-letter journal; 0 disables it.
	// Default: 0
	JournalCapacity int

	// ProduceTimeout bounds each producer call during sticky replay;
	// 0 waits as long as the caller's context allows.
	// Default: 0
	ProduceTimeout time.Duration

	// Metrics enables the OpenTelemetry metrics recorder.
	// Default: false
	Metrics bool

	// Tracing enables OpenTelemetry spans.
	// Default: false
	Tracing bool
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Enforcer:   EnforcerAny,
		IOPoolSize: 64,
	}
}

// SettingsFrom reads Settings from c. Keys are looked up under the "bus"
// section when present, otherwise at the top level. Missing keys keep
// their defaults.
func SettingsFrom(c Config) (Settings, error) {
	if c.Has(SectionKey) {
		c = c.Sub(SectionKey)
	}

	d := DefaultSettings()
	s := Settings{
		Identifier:          c.String("identifier", d.Identifier),
		Enforcer:            c.String("enforcer", d.Enforcer),
		IOPoolSize:          c.Int("io_pool_size", d.IOPoolSize),
		ComputationPoolSize: c.Int("computation_pool_size", d.ComputationPoolSize),
		JournalCapacity:     c.Int("journal_capacity", d.JournalCapacity),
		ProduceTimeout:      c.Duration("produce_timeout", d.ProduceTimeout),
		Metrics:             c.Bool("metrics", d.Metrics),
		Tracing:             c.Bool("tracing", d.Tracing),
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadSettings reads Settings from a YAML or JSON file.
func LoadSettings(path string) (Settings, error) {
	c, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}
	return SettingsFrom(c)
}

// Validate checks the settings for values a bus cannot use.
func (s Settings) Validate() error {
	var errs []error
	if s.Enforcer != EnforcerAny && s.Enforcer != EnforcerMain {
		errs = append(errs, fmt.Errorf("enforcer must be %q or %q, got %q", EnforcerAny, EnforcerMain, s.Enforcer))
	}
	if s.IOPoolSize < 0 {
		errs = append(errs, fmt.Errorf("io_pool_size must not be negative, got %d", s.IOPoolSize))
	}
	if s.ComputationPoolSize < 0 {
		errs = append(errs, fmt.Errorf("computation_pool_size must not be negative, got %d", s.ComputationPoolSize))
	}
	if s.JournalCapacity < 0 {
		errs = append(errs, fmt.Errorf("journal_capacity must not be negative, got %d", s.JournalCapacity))
	}
	if s.ProduceTimeout < 0 {
		errs = append(errs, fmt.Errorf("produce_timeout must not be negative, got %v", s.ProduceTimeout))
	}
	return errors.Join(errs...)
}
