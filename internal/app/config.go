package app

// Config holds the command-line level options shared by every stackctl
// command.
type Config struct {
	// LogLevel overrides the configured log level when non-empty.
	LogLevel string

	// LogFormat selects the log output format: "text" or "json".
	LogFormat string
}

// NewConfig creates a new application configuration
func NewConfig(logLevel, logFormat string) *Config {
	return &Config{
		LogLevel:  logLevel,
		LogFormat: logFormat,
	}
}
