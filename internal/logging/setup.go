package logging

import (
	"fmt"

	"applyflow/internal/config"
)

// Global logger instance
var globalLogger *MultiLogger

// Setup initializes the global logging system from configuration. Adapter
// entries take precedence; without them a single stdout adapter is created
// from the top-level format setting.
func Setup(cfg *config.Config) error {
	logger := NewMultiLogger()
	logger.SetLevel(ParseLogLevel(cfg.Logging.Level))

	if len(cfg.Logging.Adapters) == 0 {
		if err := logger.AddAdapter(NewStdoutAdapter("stdout", cfg.Logging.Format)); err != nil {
			return err
		}
		globalLogger = logger
		return nil
	}

	for _, ac := range cfg.Logging.Adapters {
		if !ac.Enabled {
			continue
		}

		adapter, err := createAdapter(ac.Name, ac.Type, ac.Options)
		if err != nil {
			return fmt.Errorf("failed to create adapter %s: %w", ac.Name, err)
		}

		if err := logger.AddAdapter(adapter); err != nil {
			return fmt.Errorf("failed to add adapter %s: %w", ac.Name, err)
		}
	}

	globalLogger = logger
	return nil
}

func createAdapter(name, adapterType string, options map[string]interface{}) (LogAdapter, error) {
	switch adapterType {
	case "stdout":
		return NewStdoutAdapter(name, stringOption(options, "format", "json")), nil
	case "file":
		return NewFileAdapter(name,
			stringOption(options, "file_path", ""),
			stringOption(options, "format", "json"))
	default:
		return nil, fmt.Errorf("unsupported adapter type: %s", adapterType)
	}
}

func stringOption(options map[string]interface{}, key, defaultValue string) string {
	if value, exists := options[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

// GetGlobalLogger returns the global logger instance, creating a basic
// stdout logger if Setup has not run.
func GetGlobalLogger() Logger {
	if globalLogger == nil {
		logger := NewMultiLogger()
		logger.AddAdapter(NewStdoutAdapter("fallback_stdout", "json"))
		globalLogger = logger
	}
	return globalLogger
}

// Close closes the global logging system
func Close() error {
	if globalLogger != nil {
		return globalLogger.Close()
	}
	return nil
}
