package queryfx

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ServiceError is the structured error a JSON gateway returns for a failed
// call: a numeric status code, an optional symbolic code name, a message,
// and opaque detail payloads. Transport callers decode non-2xx bodies into
// this type so application code can branch on the code rather than on
// string matching.
type ServiceError struct {
	CodeName string            `json:"codeName,omitempty"`
	Code     int               `json:"code"`
	Message  string            `json:"message"`
	Details  []json.RawMessage `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	if e.CodeName != "" {
		return fmt.Sprintf("%s (code %d): %s", e.CodeName, e.Code, e.Message)
	}
	return fmt.Sprintf("code %d: %s", e.Code, e.Message)
}

// AsServiceError unwraps err to the structured service error, if any.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsServiceError reports whether err carries a structured service error.
// Transport-level failures (DNS, timeouts, malformed bodies) do not.
func IsServiceError(err error) bool {
	_, ok := AsServiceError(err)
	return ok
}

// IsServiceCode reports whether err is a structured service error with the
// given status code.
func IsServiceCode(err error, code int) bool {
	se, ok := AsServiceError(err)
	return ok && se.Code == code
}

// Phase names the mutation lifecycle stage an effect error originated in.
type Phase string

const (
	PhasePrepare  Phase = "prepare"
	PhaseCommit   Phase = "commit"
	PhaseRollback Phase = "rollback"
)

// EffectError wraps a failure from one side effect, tagged with the phase it
// occurred in and the canonical key it was operating on.
type EffectError struct {
	Phase Phase
	Key   string
	Err   error
}

func (e *EffectError) Error() string {
	return fmt.Sprintf("effect %s %s: %v", e.Phase, e.Key, e.Err)
}

func (e *EffectError) Unwrap() error { return e.Err }
