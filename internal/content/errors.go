package content

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory is the normalized failure taxonomy for providers.
type ErrorCategory string

const (
	ErrorTimeout        ErrorCategory = "timeout"
	ErrorBadData        ErrorCategory = "bad_data"
	ErrorAuthentication ErrorCategory = "authentication"
	ErrorProviderOutage ErrorCategory = "provider_outage"
	ErrorNotFound       ErrorCategory = "not_found"
	ErrorRateLimited    ErrorCategory = "rate_limited"
	ErrorInternal       ErrorCategory = "internal"
)

// ProviderError wraps a provider failure with a category.
type ProviderError struct {
	Category   ErrorCategory
	ProviderID string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.ProviderID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.ProviderID, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// NewProviderError builds a ProviderError. Timeouts, outages and rate limits
// are retryable; everything else is permanent for the attempt.
func NewProviderError(category ErrorCategory, providerID, message string, underlying error) *ProviderError {
	return &ProviderError{
		Category:   category,
		ProviderID: providerID,
		Message:    message,
		Underlying: underlying,
		Retryable: category == ErrorTimeout ||
			category == ErrorProviderOutage ||
			category == ErrorRateLimited,
	}
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// ErrAllProvidersFailed is matched by the aggregate error from Resolver.Fetch.
var ErrAllProvidersFailed = errors.New("all providers failed")

// ErrEmptyLocator is returned for blank locators.
var ErrEmptyLocator = errors.New("content locator is empty")

// ProviderFailure pairs a provider with its final error.
type ProviderFailure struct {
	ProviderID string
	Err        error
}

// FetchError is the aggregate returned when every provider failed.
type FetchError struct {
	Locator  string
	Failures []ProviderFailure
}

func (e *FetchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.ProviderID, f.Err))
	}
	return fmt.Sprintf("all providers failed for %s: %s", e.Locator, strings.Join(parts, "; "))
}

func (e *FetchError) Unwrap() error {
	return ErrAllProvidersFailed
}

// ProviderIDs lists the providers that failed, in attempt order.
func (e *FetchError) ProviderIDs() []string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.ProviderID)
	}
	return ids
}
