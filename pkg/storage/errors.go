package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionFault if a backend could not be reached or returned an unusable answer.
	// It never signals a missing document; see NotFound.
	ErrConnectionFault = errors.New("connection fault")

	// ErrConfiguration if a reader or chain was built with invalid parameters, or used before it was ready.
	ErrConfiguration = errors.New("invalid configuration")
)

// ConnectionFaultError wraps a backend specific error so that callers can match it with
// errors.Is(err, ErrConnectionFault) regardless of the backend that produced it.
func ConnectionFaultError(backend string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConnectionFault) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrConnectionFault, backend, err)
}

func ConfigurationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// IsConnectionFault reports whether err is, or wraps, ErrConnectionFault.
func IsConnectionFault(err error) bool {
	return errors.Is(err, ErrConnectionFault)
}
