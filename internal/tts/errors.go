package tts

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrSynthesisFailed is wrapped by every synthesis error.
	ErrSynthesisFailed = errors.New("speech synthesis failed")

	// ErrEngineNotAvailable indicates the selected engine cannot run.
	ErrEngineNotAvailable = errors.New("selected TTS engine is not available")

	// ErrInvalidEngine indicates an unknown engine was specified.
	ErrInvalidEngine = errors.New("invalid TTS engine specified")

	// ErrEmptyText is returned when there is nothing to synthesize.
	ErrEmptyText = errors.New("text cannot be empty")
)

// ErrorCode identifies a class of synthesis failure.
type ErrorCode string

const (
	ErrorCodeEngineFailure     ErrorCode = "ENGINE_FAILURE"
	ErrorCodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"
	ErrorCodeEngineTimeout     ErrorCode = "ENGINE_TIMEOUT"
	ErrorCodeRateLimited       ErrorCode = "RATE_LIMITED"

	ErrorCodeAudioFormat ErrorCode = "AUDIO_FORMAT"
	ErrorCodeCacheFailed ErrorCode = "CACHE_FAILED"

	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorCodeTextTooLong  ErrorCode = "TEXT_TOO_LONG"

	ErrorCodeCanceled ErrorCode = "CANCELED"
)

// Error is a synthesis failure with the scene and voice it belongs to.
// Scene is -1 when the failure is not tied to a scene.
type Error struct {
	Code    ErrorCode
	Scene   int
	Voice   string
	Message string
	Cause   error
}

// NewError creates an Error that is not yet attributed to a scene.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Scene: -1, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := string(e.Code)
	if e.Scene >= 0 {
		prefix = fmt.Sprintf("scene %d: %s", e.Scene, prefix)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap exposes ErrSynthesisFailed and the cause.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrSynthesisFailed}
	}
	return []error{ErrSynthesisFailed, e.Cause}
}

// For returns a copy of e attributed to a scene and voice.
func (e *Error) For(scene int, voice string) *Error {
	c := *e
	c.Scene = scene
	c.Voice = voice
	return &c
}

// IsFatal reports whether retrying with this engine is pointless.
func (e *Error) IsFatal() bool {
	switch e.Code {
	case ErrorCodeEngineUnavailable:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether the same request may succeed later.
func (e *Error) IsRetryable() bool {
	switch e.Code {
	case ErrorCodeEngineTimeout, ErrorCodeRateLimited:
		return true
	default:
		return false
	}
}

// AsError converts any engine error into an *Error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(ErrorCodeEngineTimeout, "synthesis timed out", err)
	case errors.Is(err, context.Canceled):
		return NewError(ErrorCodeCanceled, "synthesis canceled", err)
	case errors.Is(err, ErrEmptyText):
		return NewError(ErrorCodeInvalidInput, "nothing to synthesize", err)
	case errors.Is(err, ErrEngineNotAvailable):
		return NewError(ErrorCodeEngineUnavailable, "engine unavailable", err)
	default:
		return NewError(ErrorCodeEngineFailure, "engine failed", err)
	}
}
