package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrPrerequisiteMissing is matched by every advisory failure: the stage
	// was asked to run before its input existed. No call was made.
	ErrPrerequisiteMissing = errors.New("prerequisite missing")

	// ErrEmptyIdea is returned by the first stage for blank idea text.
	ErrEmptyIdea = fmt.Errorf("%w: business idea is empty", ErrPrerequisiteMissing)
)

// PrerequisiteError names the stage that was refused and the stage it waits on.
type PrerequisiteError struct {
	Stage   Stage
	Missing Stage
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("%s requires %s", e.Stage, e.Missing)
}

func (e *PrerequisiteError) Unwrap() error {
	return ErrPrerequisiteMissing
}

// CompletionError wraps a transport, auth or service failure from the
// completion call. The stage result was left untouched.
type CompletionError struct {
	Stage Stage
	Err   error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("%s completion failed: %v", e.Stage, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}
