package platform

import (
	"errors"
	"os"
	"os/exec"
)

// Side-effect failure taxonomy. Emitters wrap their errors with one of these
// so callers can classify failures with errors.Is.
var (
	ErrPermissionDenied    = errors.New("permission denied")
	ErrResourceUnavailable = errors.New("resource unavailable")
	ErrEngineNotReady      = errors.New("engine not ready")
	ErrExactAlarmDenied    = errors.New("exact alarms not permitted")
)

// Reason returns a short metric-friendly label for err.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrResourceUnavailable):
		return "resource_unavailable"
	case errors.Is(err, ErrEngineNotReady):
		return "engine_not_ready"
	default:
		return "other"
	}
}

// classifyExecError maps process start failures onto the taxonomy.
func classifyExecError(name string, err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return &CommandError{Name: name, Kind: ErrResourceUnavailable, Err: err}
	case errors.Is(err, os.ErrPermission):
		return &CommandError{Name: name, Kind: ErrPermissionDenied, Err: err}
	default:
		return &CommandError{Name: name, Err: err}
	}
}

// CommandError describes a failed platform command.
type CommandError struct {
	Name string
	Kind error
	Err  error
}

func (e *CommandError) Error() string {
	if e.Kind != nil {
		return e.Name + ": " + e.Kind.Error() + ": " + e.Err.Error()
	}
	return e.Name + ": " + e.Err.Error()
}

// Unwrap exposes both the classification and the underlying cause.
func (e *CommandError) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Kind, e.Err}
}
