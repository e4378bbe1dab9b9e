package publish

import "fmt"

// Step is one stage of a replacement run. Steps execute in declaration
// order and never overlap.
type Step int

const (
	StepInspect Step = iota
	StepUpload
	StepSettle
	StepRenameOld
	StepRenameNew
	StepDeleteOld
	StepUpdateNotes
	StepVerify
)

var stepNames = [...]string{
	StepInspect:     "inspect",
	StepUpload:      "upload",
	StepSettle:      "settle",
	StepRenameOld:   "rename-old",
	StepRenameNew:   "rename-new",
	StepDeleteOld:   "delete-old",
	StepUpdateNotes: "update-notes",
	StepVerify:      "verify",
}

func (s Step) String() string {
	if s >= 0 && int(s) < len(stepNames) {
		return stepNames[s]
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// Outcome is how a run ended.
type Outcome int

const (
	// Success means the new artifact is live and the notes are updated.
	Success Outcome = iota
	// NoChange means there was nothing to publish and nothing was touched.
	NoChange
	// Aborted means the run stopped before issuing any mutating call.
	Aborted
	// PartialFailure means the run stopped after at least one mutating
	// call was issued; the release may need an operator.
	PartialFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case NoChange:
		return "no-change"
	case Aborted:
		return "aborted"
	case PartialFailure:
		return "partial-failure"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}
