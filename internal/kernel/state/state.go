// Package state defines the lifecycle status vocabulary shared by the
// service registry and the application orchestrator.
package state

import (
	"encoding/json"
	"fmt"
)

// Status represents the lifecycle status of a managed component.
type Status int32

const (
	// StatusUnknown indicates an uninitialized or unknown state.
	StatusUnknown Status = iota

	// StatusRegistered indicates the component is known to the kernel but
	// its init hook has not run.
	StatusRegistered

	// StatusInitializing indicates the init hook is in progress.
	StatusInitializing

	// StatusReady indicates the init hook completed successfully.
	StatusReady

	// StatusStopping indicates the shutdown hook is in progress.
	StatusStopping

	// StatusStopped indicates the shutdown hook completed cleanly.
	StatusStopped

	// StatusFailed indicates the init hook failed.
	StatusFailed

	// StatusStopFailed indicates the shutdown hook failed.
	StatusStopFailed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusRegistered:
		return "registered"
	case StatusInitializing:
		return "initializing"
	case StatusReady:
		return "ready"
	case StatusStopping:
		return "stopping"
	case StatusStopped:
		return "stopped"
	case StatusFailed:
		return "failed"
	case StatusStopFailed:
		return "stop-failed"
	default:
		return fmt.Sprintf("status(%d)", s)
	}
}

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParseStatus(str)
	return nil
}

// ParseStatus converts a string to Status. Unrecognized input maps to
// StatusUnknown.
func ParseStatus(s string) Status {
	switch s {
	case "registered":
		return StatusRegistered
	case "initializing":
		return StatusInitializing
	case "ready":
		return StatusReady
	case "stopping":
		return StatusStopping
	case "stopped":
		return StatusStopped
	case "failed":
		return StatusFailed
	case "stop-failed":
		return StatusStopFailed
	default:
		return StatusUnknown
	}
}

// IsReady returns true if the init hook has completed successfully and the
// component has not begun shutting down.
func (s Status) IsReady() bool {
	return s == StatusReady
}

// IsTerminal returns true if this status represents a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusStopped || s == StatusFailed || s == StatusStopFailed
}

// ValidTransitions defines the allowed lifecycle transitions. Shutdown is
// permitted straight from StatusRegistered: a failed startup still walks
// every registration through its shutdown hook.
var ValidTransitions = map[Status][]Status{
	StatusUnknown:      {StatusRegistered},
	StatusRegistered:   {StatusInitializing, StatusStopping},
	StatusInitializing: {StatusReady, StatusFailed},
	StatusReady:        {StatusStopping},
	StatusStopping:     {StatusStopped, StatusStopFailed},
	StatusFailed:       {StatusStopping},
	StatusStopped:      {},
	StatusStopFailed:   {},
}

// CanTransition returns true if the transition from -> to is valid.
func CanTransition(from, to Status) bool {
	for _, s := range ValidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionError represents an invalid lifecycle transition.
type TransitionError struct {
	From Status
	To   Status
}

// Error implements error.
func (e TransitionError) Error() string {
	return fmt.Sprintf("invalid lifecycle transition: %s -> %s", e.From, e.To)
}
