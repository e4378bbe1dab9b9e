package publish

import (
	"fmt"
	"strings"
)

// InconsistentStateError is returned by INSPECT when a previous run left a
// temporary asset behind. It is never repaired automatically; an operator
// has to look at the release and remove or rename the asset by hand.
type InconsistentStateError struct {
	Package string
	Asset   string
	Reason  string
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("%s: %s (%s); remove or rename it by hand before publishing again", e.Package, e.Reason, e.Asset)
}

// LocalPreconditionError is returned when the local artifact cannot be
// used. No remote call has been made when it is returned.
type LocalPreconditionError struct {
	Path string
	Err  error
}

func (e *LocalPreconditionError) Error() string {
	return fmt.Sprintf("artifact %s: %v", e.Path, e.Err)
}

func (e *LocalPreconditionError) Unwrap() error { return e.Err }

// StepError names the step a run failed in.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return strings.ToUpper(e.Step.String()) + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error { return e.Err }
