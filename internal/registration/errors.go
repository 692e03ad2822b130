package registration

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the pipeline matches exactly one of
// these with errors.Is.
var (
	ErrMalformedInput = errors.New("malformed input")
	ErrUpload         = errors.New("image upload failed")
	ErrAppend         = errors.New("sheet append failed")
	ErrNotify         = errors.New("confirmation email failed")
	ErrRead           = errors.New("sheet read failed")
)

// Step names one stage of the pipeline.
type Step string

const (
	StepParse     Step = "parse"
	StepNormalize Step = "normalize"
	StepUpload    Step = "upload"
	StepAppend    Step = "append"
	StepNotify    Step = "notify"
	StepRead      Step = "read"
)

// StepError tags a failure with the step it happened in. It unwraps to both
// its kind and the underlying client error.
type StepError struct {
	Step Step
	Kind error
	Err  error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Step, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// FailedStep reports which step produced err, if it came from the pipeline.
func FailedStep(err error) (Step, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step, true
	}
	return "", false
}
