package pricesync_errors

import (
	"errors"
	"fmt"
)

// ErrConfig is returned for invalid or missing configuration. It is always
// raised before any network or store activity.
var ErrConfig = errors.New("configuration error")

// ErrValidation marks a sync-stage input that cannot be trusted. The whole
// stage aborts instead of dropping rows.
var ErrValidation = errors.New("validation error")

// ErrNoData is returned by the fetch stage when no asset produced rows.
var ErrNoData = errors.New("no data fetched for any symbol")

func ConfigError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

func ValidationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ErrProvider is a failure reported by a price provider. Transient failures
// (network, 5xx, rate limits) are retried; semantic failures (explicit error
// payloads) are not.
type ErrProvider struct {
	Provider  string
	Symbol    string
	Transient bool
	Message   string
	Err       error
}

func (e ErrProvider) Error() string {
	kind := "semantic"
	if e.Transient {
		kind = "transient"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s error for %s: %s: %v", e.Provider, kind, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s error for %s: %s", e.Provider, kind, e.Symbol, e.Message)
}

func (e ErrProvider) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a provider error worth retrying.
func IsTransient(err error) bool {
	var pErr ErrProvider
	if errors.As(err, &pErr) {
		return pErr.Transient
	}
	return false
}
