/*
Package config loads bus settings from YAML or JSON and provides type-safe
value extraction from map[string]any.

# Basic Usage

Config wraps a decoded map and returns defaults for missing keys and type
mismatches:

	cfg := config.New(map[string]any{
	    "bus": map[string]any{
	        "io_pool_size":    16,
	        "produce_timeout": "2s",
	    },
	})

	cfg.Int("bus.io_pool_size", 64)                    // 16
	cfg.Duration("bus.produce_timeout", time.Second)  // 2s
	cfg.String("bus.identifier", "default")            // "default"

Dotted keys descend into nested maps. Sub returns a nested section as its
own Config.

# Type Coercion

Duration accepts time.ParseDuration strings, a number of seconds, or a
time.Duration. Int accepts float64 only when it has no fractional part,
since JSON decodes every number as float64.

# Bus Settings

Settings holds the knobs a bus reads from a file:

	# stickybus.yaml
	bus:
	  identifier: ui
	  enforcer: main
	  io_pool_size: 32
	  journal_capacity: 500
	  produce_timeout: 2s
	  metrics: true

	settings, err := config.LoadSettings("stickybus.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	bus := stickybus.New(stickybus.WithSettings(settings))

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
