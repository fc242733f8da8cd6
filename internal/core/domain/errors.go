package domain

import "fmt"

// =============================================================================
// Configuration Errors
// =============================================================================

// ConfigurationError reports an invalid parameter caught before any external
// effect. Always fatal, never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// NewConfigurationError creates a ConfigurationError for the given field.
func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}
