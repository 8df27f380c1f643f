package services

import (
	"errors"
	"fmt"
)

// ErrorCode is the machine-readable code returned to API clients
type ErrorCode string

const (
	CodeValidation        ErrorCode = "VALIDATION_ERROR"
	CodeRateLimited       ErrorCode = "RATE_LIMITED"
	CodeProviderError     ErrorCode = "PROVIDER_ERROR"
	CodeParseError        ErrorCode = "PARSE_ERROR"
	CodeGenerationFailed  ErrorCode = "GENERATION_FAILED"
	CodeInvalidTransition ErrorCode = "INVALID_STATE_TRANSITION"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeUnavailable       ErrorCode = "SERVICE_UNAVAILABLE"
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
)

var (
	// ErrSessionNotFound is returned when a styling session id is unknown
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidTransition is returned when a session action is not allowed from its current state
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrRetryExhausted is returned when the single manual retry was already used
	ErrRetryExhausted = errors.New("retry already used")
	// ErrServiceDisabled is returned when a feature's credentials are not configured
	ErrServiceDisabled = errors.New("service not configured")
)

// ValidationError is a malformed or missing input field, rejected before any network call
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// RateLimitError is returned when a limiter rejects a caller
type RateLimitError struct {
	Limiter string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s", e.Limiter)
}

// ProviderFetchError is a failed or timed-out outbound call to an AI, search or storage provider
type ProviderFetchError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s returned HTTP %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *ProviderFetchError) Unwrap() error {
	return e.Err
}

// ParseError is a provider response that is not the JSON shape we asked for.
// Raw holds the model output for logs and must not be sent to clients.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse model response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// GenerationFailure means the provider returned no usable image
type GenerationFailure struct {
	Variant string
	Reason  string
}

func (e *GenerationFailure) Error() string {
	if e.Variant == "" {
		return "image generation failed: " + e.Reason
	}
	return fmt.Sprintf("image generation failed for %s variant: %s", e.Variant, e.Reason)
}

// CodeOf maps an error to its API error code
func CodeOf(err error) ErrorCode {
	var (
		validationErr *ValidationError
		rateErr       *RateLimitError
		fetchErr      *ProviderFetchError
		parseErr      *ParseError
		genErr        *GenerationFailure
	)
	switch {
	case errors.As(err, &validationErr):
		return CodeValidation
	case errors.As(err, &rateErr):
		return CodeRateLimited
	case errors.As(err, &parseErr):
		return CodeParseError
	case errors.As(err, &genErr):
		return CodeGenerationFailed
	case errors.As(err, &fetchErr):
		return CodeProviderError
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrRetryExhausted):
		return CodeInvalidTransition
	case errors.Is(err, ErrSessionNotFound):
		return CodeNotFound
	case errors.Is(err, ErrServiceDisabled):
		return CodeUnavailable
	default:
		return CodeInternal
	}
}
