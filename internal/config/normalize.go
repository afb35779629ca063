package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeRunner(); err != nil {
		return err
	}
	if err := c.normalizeCommand(); err != nil {
		return err
	}
	c.normalizeClassifier()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := lookupEnv("ALBUMRUN_LOG_DIR"); ok {
		c.Paths.LogDir = value
	}
	if value, ok := lookupEnv("ALBUMRUN_STATE_DIR"); ok {
		c.Paths.StateDir = value
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	var err error
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRunner() error {
	overrides := []struct {
		env    string
		target *int
	}{
		{"ALBUMRUN_MAX_JOBS", &c.Runner.MaxJobs},
		{"ALBUMRUN_MAX_RETRIES", &c.Runner.MaxRetries},
		{"ALBUMRUN_BACKOFF", &c.Runner.BackoffSeconds},
	}
	for _, o := range overrides {
		value, ok := lookupEnv(o.env)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", o.env, value)
		}
		*o.target = n
	}
	return nil
}

func (c *Config) normalizeCommand() error {
	if value, ok := lookupEnv("ALBUMRUN_COMMAND"); ok {
		c.Command.Program = value
	}
	c.Command.Program = strings.TrimSpace(c.Command.Program)
	if c.Command.Program == "" {
		c.Command.Program = defaultProgram
	}
	if c.Command.Args == nil {
		c.Command.Args = append([]string(nil), defaultArgs...)
	}
	if strings.TrimSpace(c.Command.WorkingDir) != "" {
		dir, err := expandPath(strings.TrimSpace(c.Command.WorkingDir))
		if err != nil {
			return fmt.Errorf("command.working_dir: %w", err)
		}
		c.Command.WorkingDir = dir
	}
	env := make([]string, 0, len(c.Command.Env)+1)
	for _, entry := range c.Command.Env {
		if trimmed := strings.TrimSpace(entry); trimmed != "" {
			env = append(env, trimmed)
		}
	}
	// beets reads its library location from BEETSDIR; forward it unless set explicitly.
	if value, ok := lookupEnv("BEETSDIR"); ok && !hasEnvKey(env, "BEETSDIR") {
		env = append(env, "BEETSDIR="+value)
	}
	c.Command.Env = env
	return nil
}

func (c *Config) normalizeClassifier() {
	patterns := make([]string, 0, len(c.Classifier.Ignore))
	seen := make(map[string]struct{}, len(c.Classifier.Ignore))
	for _, pattern := range c.Classifier.Ignore {
		trimmed := strings.TrimSpace(pattern)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		patterns = append(patterns, trimmed)
	}
	c.Classifier.Ignore = patterns
	c.Classifier.DiscPattern = strings.TrimSpace(c.Classifier.DiscPattern)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

func hasEnvKey(env []string, key string) bool {
	prefix := key + "="
	for _, entry := range env {
		if strings.HasPrefix(entry, prefix) {
			return true
		}
	}
	return false
}
