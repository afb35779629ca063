package config

const (
	defaultConfigPath     = "~/.config/albumrun/config.toml"
	defaultLogDir         = "~/.local/share/albumrun/logs"
	defaultStateDir       = "~/.local/share/albumrun"
	defaultMaxRetries     = 3
	defaultBackoffSeconds = 5
	defaultProgram        = "beet"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultRetentionDays  = 30
)

var defaultArgs = []string{"import", "-q", "{path}"}

var defaultIgnore = []string{"**/@eaDir", "**/#recycle"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Runner: Runner{
			MaxRetries:     defaultMaxRetries,
			BackoffSeconds: defaultBackoffSeconds,
		},
		Command: Command{
			Program: defaultProgram,
			Args:    append([]string(nil), defaultArgs...),
		},
		Classifier: Classifier{
			Ignore: append([]string(nil), defaultIgnore...),
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultRetentionDays,
		},
	}
}
