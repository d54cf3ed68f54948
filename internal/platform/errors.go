package platform

import (
	"errors"
	"fmt"
)

// ErrNotFound signals that a query matched no candidate on a platform: a
// definite miss, never retried with the same query.
var ErrNotFound = errors.New("no matching result")

// TransportError represents a network, timeout or protocol failure while
// reaching a platform. It is transient: the orchestrator treats it like a
// miss but logs it separately for diagnosis.
type TransportError struct {
	Platform string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Platform, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err as a transport failure for the platform.
func NewTransportError(platform string, err error) *TransportError {
	return &TransportError{Platform: platform, Err: err}
}

// IsTransportError reports whether err is a TransportError (even when wrapped).
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ConfigError indicates a required credential for an adapter or provider is
// absent. The affected component is excluded from its chain; the search as
// a whole never fails because of it.
type ConfigError struct {
	Platform string
	Missing  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: missing configuration: %s", e.Platform, e.Missing)
}

// NewConfigError creates a ConfigError for the named missing setting.
func NewConfigError(platform, missing string) *ConfigError {
	return &ConfigError{Platform: platform, Missing: missing}
}

// IsConfigError reports whether err is a ConfigError (even when wrapped).
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
