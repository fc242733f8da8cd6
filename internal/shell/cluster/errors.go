package cluster

import "fmt"

// =============================================================================
// Error Types
// =============================================================================

// ApplyError reports a rejected or failed control-plane operation, carrying
// the control plane's diagnostic output.
type ApplyError struct {
	Op     string
	Output string
	Err    error
}

func (e *ApplyError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Output)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}
