package tts

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorWrapsSentinel(t *testing.T) {
	cause := errors.New("exit status 1")
	err := NewError(ErrorCodeEngineFailure, "piper failed", cause).For(2, "en")

	assert.ErrorIs(t, err, ErrSynthesisFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "scene 2: ENGINE_FAILURE: piper failed: exit status 1", err.Error())
	assert.Equal(t, "en", err.Voice)
}

func TestErrorForCopies(t *testing.T) {
	base := NewError(ErrorCodeEngineTimeout, "slow", nil)
	a := base.For(1, "en")
	b := base.For(3, "de")

	assert.Equal(t, -1, base.Scene)
	assert.Equal(t, 1, a.Scene)
	assert.Equal(t, 3, b.Scene)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		err       error
		code      ErrorCode
		retryable bool
		fatal     bool
	}{
		{context.DeadlineExceeded, ErrorCodeEngineTimeout, true, false},
		{context.Canceled, ErrorCodeCanceled, false, false},
		{ErrEmptyText, ErrorCodeInvalidInput, false, false},
		{fmt.Errorf("wrap: %w", ErrEngineNotAvailable), ErrorCodeEngineUnavailable, false, true},
		{errors.New("boom"), ErrorCodeEngineFailure, false, false},
		{NewError(ErrorCodeRateLimited, "429", nil), ErrorCodeRateLimited, true, false},
	}
	for _, tc := range tests {
		te := AsError(tc.err)
		assert.Equal(t, tc.code, te.Code, "%v", tc.err)
		assert.Equal(t, tc.retryable, te.IsRetryable(), "%v", tc.err)
		assert.Equal(t, tc.fatal, te.IsFatal(), "%v", tc.err)
	}
	assert.Nil(t, AsError(nil))
}

func TestReport(t *testing.T) {
	r := Report{
		Ready:    []int{0},
		Failures: []Failure{{Scene: 1, SceneID: "b", Err: NewError(ErrorCodeEngineFailure, "x", nil)}},
	}
	assert.True(t, r.Failed(1))
	assert.False(t, r.Failed(0))
	assert.True(t, r.AllFailed())
	assert.ErrorIs(t, r.Err(), ErrSynthesisFailed)
	assert.Equal(t, ErrorCodeEngineFailure, r.Failures[0].Code())

	r.Synthesized = []int{2}
	assert.False(t, r.AllFailed())
	assert.NoError(t, Report{}.Err())
}
