package core

import (
	"errors"
	"fmt"
)

var (
	ErrBadArguments    = errors.New("arguments are not acceptable")
	ErrNotFound        = errors.New("not found")
	ErrNotConfigured   = errors.New("component is not configured")
	ErrExternalService = errors.New("external service failure")
	ErrValidation      = errors.New("generative result rejected")
	ErrMalformed       = errors.New("malformed generative response")
)

// ProviderError is a failure of an external provider: transport error,
// unexpected HTTP status or an unreadable payload.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: http %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrExternalService }

// ValidationError lists the phrases that break verbatim fidelity of a
// generative answer.
type ValidationError struct {
	Added      []string
	Missing    []string
	Duplicated []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %d added, %d missing, %d duplicated",
		ErrValidation, len(e.Added), len(e.Missing), len(e.Duplicated))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
