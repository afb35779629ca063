package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRunner(); err != nil {
		return err
	}
	if err := c.validateCommand(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateRunner() error {
	if c.Runner.MaxJobs < 0 {
		return errors.New("runner.max_jobs must be zero (auto) or positive")
	}
	if c.Runner.MaxRetries < 1 {
		return errors.New("runner.max_retries must be at least 1")
	}
	if c.Runner.BackoffSeconds < 0 {
		return errors.New("runner.backoff_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateCommand() error {
	if c.Command.Program == "" {
		return errors.New("command.program must be set")
	}
	return nil
}

func (c *Config) validateClassifier() error {
	for _, pattern := range c.Classifier.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("classifier.ignore: invalid pattern %q", pattern)
		}
	}
	if c.Classifier.DiscPattern != "" {
		if _, err := regexp.Compile(c.Classifier.DiscPattern); err != nil {
			return fmt.Errorf("classifier.disc_pattern: %w", err)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
