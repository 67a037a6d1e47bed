package apierror

import (
	"fmt"
	"strings"
)

// ProviderFailure records why one provider in a chain failed.
type ProviderFailure struct {
	Provider string
	Err      error
}

// ExhaustedError is returned when every provider in a chain failed.
type ExhaustedError struct {
	Failures []ProviderFailure
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msg := fmt.Sprint(f.Err)
		// Provider errors already lead with the provider name.
		if !strings.HasPrefix(msg, f.Provider+": ") {
			msg = f.Provider + ": " + msg
		}
		parts = append(parts, msg)
	}
	return fmt.Sprintf("%s (tried %s): %s",
		ErrAllProvidersExhausted, strings.Join(e.Providers(), ", "), strings.Join(parts, "; "))
}

// Is matches ErrAllProvidersExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllProvidersExhausted
}

// Unwrap exposes every provider failure to errors.Is and errors.As.
func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Providers returns the providers tried, in order.
func (e *ExhaustedError) Providers() []string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.Provider)
	}
	return names
}

// Last returns the final provider failure, or nil if none were recorded.
func (e *ExhaustedError) Last() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[len(e.Failures)-1].Err
}
