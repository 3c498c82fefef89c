package pipeline

import (
	"errors"
	"fmt"

	"github.com/jonathan/cv-adaptor/internal/pipeline/steps"
)

// InputError reports missing run input
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

// PreconditionError reports a stage invoked without its upstream records
type PreconditionError struct {
	Step    steps.Name
	Message string
	Cause   error
}

func (e *PreconditionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *PreconditionError) Unwrap() error {
	return e.Cause
}

// IsInputError reports whether err is an InputError
func IsInputError(err error) bool {
	var target *InputError
	return errors.As(err, &target)
}
