// Package config loads, normalizes, and validates albumrun configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, applies a working-directory .env file, and
// honours ALBUMRUN_* environment overrides. The Config type centralizes every
// knob the runner needs: where run logs and history live, how many units run
// at once, how often a failing unit is retried, and which external command is
// invoked per album folder.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
