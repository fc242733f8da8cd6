// Package validation checks deploy parameters before any external effect.
// Violations are configuration errors: always fatal, never retried.
package validation

import (
	"strings"

	"github.com/shipwaylabs/shipway/internal/core/domain"
	"github.com/shipwaylabs/shipway/internal/core/manifest"
)

// =============================================================================
// Application Parameters
// =============================================================================

// ValidateAppParams checks the application deployment parameters.
// Returns the first violation found, or nil.
func ValidateAppParams(p manifest.AppParams) error {
	if strings.TrimSpace(p.Name) == "" {
		return domain.NewConfigurationError("app.name", "must not be empty")
	}
	if p.Image.Repository == "" || p.Image.Tag == "" {
		return domain.NewConfigurationError("app.image", "repository and tag are required")
	}
	if p.Replicas < 1 {
		return domain.NewConfigurationError("app.replicas", "must be at least 1")
	}
	if err := validatePort("app.port", p.Port); err != nil {
		return err
	}
	if p.Requests.CPUMillis <= 0 {
		return domain.NewConfigurationError("app.cpu_request", "must be positive")
	}
	if p.Requests.MemoryBytes <= 0 {
		return domain.NewConfigurationError("app.memory_request", "must be positive")
	}
	if p.Requests.CPUMillis > p.Limits.CPUMillis {
		return domain.NewConfigurationError("app.cpu_request", "must not exceed cpu limit")
	}
	if p.Requests.MemoryBytes > p.Limits.MemoryBytes {
		return domain.NewConfigurationError("app.memory_request", "must not exceed memory limit")
	}
	if err := validateProbe("app.readiness", p.Readiness); err != nil {
		return err
	}
	if err := validateProbe("app.liveness", p.Liveness); err != nil {
		return err
	}
	return nil
}

func validateProbe(field string, p manifest.ProbeParams) error {
	if !strings.HasPrefix(p.Path, "/") {
		return domain.NewConfigurationError(field+".path", "must start with /")
	}
	if p.InitialDelaySeconds < 0 {
		return domain.NewConfigurationError(field+".initial_delay", "must not be negative")
	}
	if p.PeriodSeconds <= 0 {
		return domain.NewConfigurationError(field+".period", "must be positive")
	}
	return nil
}

// =============================================================================
// Service Parameters
// =============================================================================

// ValidateServiceParams checks the service document parameters.
func ValidateServiceParams(p manifest.ServiceParams) error {
	if strings.TrimSpace(p.Name) == "" {
		return domain.NewConfigurationError("service.name", "must not be empty")
	}
	if len(p.Ports) == 0 {
		return domain.NewConfigurationError("service.ports", "at least one port mapping is required")
	}
	for _, m := range p.Ports {
		if err := validatePort("service.port", m.Port); err != nil {
			return err
		}
		if err := validatePort("service.target_port", m.TargetPort); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Data-Tier Parameters
// =============================================================================

// ValidateDataParams checks the data-tier parameters. Credential values are
// opaque; only their presence is checked, never their content.
func ValidateDataParams(p manifest.DataParams) error {
	if strings.TrimSpace(p.Name) == "" {
		return domain.NewConfigurationError("datastore.name", "must not be empty")
	}
	if strings.TrimSpace(p.Image) == "" {
		return domain.NewConfigurationError("datastore.image", "must not be empty")
	}
	if err := validatePort("datastore.port", p.Port); err != nil {
		return err
	}
	if p.StorageBytes <= 0 {
		return domain.NewConfigurationError("datastore.storage", "must be positive")
	}
	for name, value := range p.Credentials {
		if value == "" {
			return domain.NewConfigurationError("datastore.credentials", name+" is empty")
		}
	}
	return nil
}

func validatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return domain.NewConfigurationError(field, "must be between 1 and 65535")
	}
	return nil
}
