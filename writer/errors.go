package writer

import "fmt"

// BackendUnavailableError means no storage backend could be
// discovered or reached for the call.
type BackendUnavailableError struct {
	Backend string
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	name := e.Backend
	if name == "" {
		name = "auto"
	}
	if e.Err != nil {
		return fmt.Sprintf("storage backend %s unavailable: %v", name, e.Err)
	}
	return fmt.Sprintf("storage backend %s unavailable", name)
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

// BackendDisabledError means the discovered backend is running but
// explicitly configured to skip persistence.
type BackendDisabledError struct {
	Backend string
}

func (e *BackendDisabledError) Error() string {
	return fmt.Sprintf("storage backend %s is configured to skip storage", e.Backend)
}

// CommitError reports a failed per-symbol commit. Symbols committed
// before the failing one stay committed.
type CommitError struct {
	Symbol string
	Err    error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit failed for %s: %v", e.Symbol, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
