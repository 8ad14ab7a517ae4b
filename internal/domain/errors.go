package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOutputExists is returned when an aggregated output already exists and
// the run is configured to fail rather than skip.
var ErrOutputExists = errors.New("output already exists")

// ConfigError is an operator setup mistake: a missing collaborator, request
// table or input directory, an invalid setting or a held run lock.
type ConfigError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Path != "" {
		b.WriteString(": " + e.Path)
	}
	if e.Reason != "" {
		b.WriteString(": " + e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError is shorthand for a ConfigError about path.
func NewConfigError(path, reason string) *ConfigError {
	return &ConfigError{Path: path, Reason: reason}
}

// InconsistencyError reports a ready chunk whose post-processed inputs are
// absent at plot time.
type InconsistencyError struct {
	Chunk   string
	Missing []string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("chunk %s is ready but %d plot inputs are missing", e.Chunk, len(e.Missing))
}

// InvocationError reports a collaborator that exited unsuccessfully.
type InvocationError struct {
	Invocation Invocation
	ExitCode   int
	Err        error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s failed (exit %d): %s: %v", e.Invocation.Collaborator, e.ExitCode, e.Invocation, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }
