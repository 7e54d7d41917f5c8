package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Common domain errors
	ErrNotFound              = errors.New("entity not found")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrInvalidExecContext    = errors.New("invalid execution context")
	ErrMessageTooLong        = errors.New("message too long")
	ErrChatbotUnavailable    = errors.New("chatbot unavailable")
	ErrModerationUnavailable = errors.New("moderation unavailable")
)

// RateLimitError is returned when a client exhausted its window.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %ds", e.RetryAfterSeconds())
}

// RetryAfterSeconds rounds up and never returns less than 1.
func (e *RateLimitError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// ProviderError carries the upstream HTTP status of a failed completion call.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

type FailureCategory string

const (
	FailureRateLimited   FailureCategory = "rate_limited"
	FailureConfiguration FailureCategory = "configuration"
	FailureBadRequest    FailureCategory = "bad_request"
	FailureUnavailable   FailureCategory = "unavailable"
)

// ChatFailure is the user-facing shape of every failed chat turn.
// Message is safe to show to participants.
type ChatFailure struct {
	Category FailureCategory
	Message  string
	Err      error
}

func (e *ChatFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *ChatFailure) Unwrap() error { return e.Err }
