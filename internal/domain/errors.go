package domain

import (
	"errors"
	"strings"
	"time"
)

// Domain errors.
var (
	// ErrInvalidInput is returned when the input is not a recognizable
	// target for the capability.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownCapability is returned for capability names outside the fixed set.
	ErrUnknownCapability = errors.New("unknown capability")

	// ErrNoProviders is returned when a capability has no registered providers.
	ErrNoProviders = errors.New("no providers registered")

	// ErrProvidersExhausted is returned when every candidate provider failed.
	ErrProvidersExhausted = errors.New("all providers failed")

	// ErrProviderReported is returned when a provider answered with success=false.
	ErrProviderReported = errors.New("provider reported failure")

	// ErrProviderPanic is returned when a provider panicked during a call.
	ErrProviderPanic = errors.New("provider panicked")

	// ErrMalformedResponse is returned when an upstream response does not have the expected shape.
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrEmptyResponse is returned when an upstream response has no body.
	ErrEmptyResponse = errors.New("empty upstream response")

	// ErrUpstreamStatus is returned for unexpected non-2xx statuses.
	ErrUpstreamStatus = errors.New("unexpected upstream status")

	// ErrUnauthorized is returned when an upstream rejects the credential (401/403).
	ErrUnauthorized = errors.New("upstream rejected credentials")

	// ErrRateLimited is returned when rate limited by external services.
	ErrRateLimited = errors.New("rate limited")

	// ErrNoMedia is returned when a response parsed but contained no usable media.
	ErrNoMedia = errors.New("no media found")

	// ErrJobFailed is returned when an asynchronous conversion job reports failure.
	ErrJobFailed = errors.New("conversion job failed")

	// ErrPollExhausted is returned when a job is still pending after the last poll.
	ErrPollExhausted = errors.New("poll attempts exhausted")

	// ErrCredential is returned when a short-lived credential handshake fails.
	ErrCredential = errors.New("credential handshake failed")

	// ErrToolMissing is returned when a local helper binary is not installed.
	ErrToolMissing = errors.New("external tool not available")
)

// InputError reports input that failed validation before any provider ran.
type InputError struct {
	Capability Capability
	Message    string
}

func (e *InputError) Error() string {
	return e.Message
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// NewInputError creates a new InputError.
func NewInputError(c Capability, msg string) *InputError {
	return &InputError{Capability: c, Message: msg}
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Op != "" {
		return e.Op + " [" + e.Provider + "]: " + e.Err.Error()
	}
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new ProviderError.
func NewProviderError(provider, op string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Op:       op,
		Err:      err,
	}
}

// Attempt is one entry of the per-resolution attempt log.
type Attempt struct {
	Provider string
	Err      error
	Duration time.Duration
}

// Message returns "provider: cause".
func (a Attempt) Message() string {
	if a.Err == nil {
		return a.Provider + ": unknown error"
	}
	return a.Provider + ": " + a.Err.Error()
}

// ExhaustedError is returned when every candidate provider for a
// capability failed. Its message lists every attempt joined by " | ".
type ExhaustedError struct {
	Capability Capability
	Attempts   []Attempt
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return ErrProvidersExhausted.Error()
	}
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Message()
	}
	return strings.Join(parts, " | ")
}

func (e *ExhaustedError) Unwrap() error {
	return ErrProvidersExhausted
}

// Providers returns the names of the attempted providers in order.
func (e *ExhaustedError) Providers() []string {
	names := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		names[i] = a.Provider
	}
	return names
}
