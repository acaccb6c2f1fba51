package config

import "fmt"

// ConfigurationError reports a bad or missing setting. It is raised before
// any task graph is built.
type ConfigurationError struct {
	// Field is the configuration key at fault, e.g. "inputs.dsets".
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Errorf builds a *ConfigurationError for field.
func Errorf(field, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
