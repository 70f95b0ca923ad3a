package recovery

import (
	"errors"
	"fmt"

	"github.com/vietddude/poolwatch/internal/core/domain"
)

// StageError tags an iteration error with the stage that produced it.
type StageError struct {
	Stage domain.FailureType
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Wrap tags err with stage. A nil err stays nil.
func Wrap(stage domain.FailureType, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// Classify returns the stage an error was tagged with.
func Classify(err error) domain.FailureType {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return domain.FailureTypeChain
}
