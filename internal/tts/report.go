package tts

import (
	"errors"
	"fmt"
)

// Failure is a scene whose audio could not be prepared.
type Failure struct {
	Scene   int
	SceneID string
	Err     error
}

func (f Failure) Error() string {
	return fmt.Sprintf("scene %d (%s): %v", f.Scene, f.SceneID, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Code returns the error code of the failure.
func (f Failure) Code() ErrorCode {
	if te := AsError(f.Err); te != nil {
		return te.Code
	}
	return ""
}

// Report is the outcome of a reconcile pass.
type Report struct {
	// Ready lists scenes whose every segment is cached, in timeline order.
	Ready []int
	// Synthesized lists scenes that needed and received new audio.
	Synthesized []int
	Failures    []Failure
}

// Err joins all failures, or returns nil.
func (r Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Failed reports whether scene i failed.
func (r Report) Failed(i int) bool {
	for _, f := range r.Failures {
		if f.Scene == i {
			return true
		}
	}
	return false
}

// AllFailed reports whether every scene that needed synthesis failed.
func (r Report) AllFailed() bool {
	return len(r.Failures) > 0 && len(r.Synthesized) == 0
}
