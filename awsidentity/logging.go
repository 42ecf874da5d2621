package awsidentity

import "log/slog"

// Config carries cross-cutting options for the package, currently the
// structured logger. A nil Config falls back to slog.Default().
type Config struct {
	Logger *slog.Logger
	Level  slog.Leveler
}

// NewConfig creates a Config with the given logger and minimum level.
func NewConfig(logger *slog.Logger, level slog.Leveler) *Config {
	return &Config{Logger: logger, Level: level}
}

func getLogger(config *Config) *slog.Logger {
	if config != nil && config.Logger != nil {
		return config.Logger
	}
	return slog.Default()
}
