package triage

import "fmt"

// Stage names a pipeline stage for error attribution and metrics labels.
type Stage string

const (
	StageRedact   Stage = "redact"
	StageClassify Stage = "classify"
	StageRetrieve Stage = "retrieve"
	StageDraft    Stage = "draft"
	StageDecide   Stage = "decide"
)

// StageError is a fatal pipeline failure. The run that produced it has no
// partial result: no classification is guessed, no reply is sent, no decision
// is recorded. Callers decide how to surface it (typically forcing human
// handling out of band).
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("triage stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
