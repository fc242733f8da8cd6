package registry

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrConnectionFailed = errors.New("docker connection failed")
	ErrImageBuildFailed = errors.New("image build failed")
)

// PushError reports a rejected or failed image push, carrying the registry's
// diagnostic text.
type PushError struct {
	Ref     string
	Message string
	Err     error
}

func (e *PushError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("push %s: %s", e.Ref, e.Message)
	}
	return fmt.Sprintf("push %s: %v", e.Ref, e.Err)
}

func (e *PushError) Unwrap() error {
	return e.Err
}
