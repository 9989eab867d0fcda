package dialogue

import "fmt"

// Stage names where in a turn an error arose.
type Stage string

const (
	StageRoute    Stage = "route"
	StageExtract  Stage = "extract"
	StageQuery    Stage = "query"
	StageSlots    Stage = "slots"
	StageDispatch Stage = "dispatch"
	StageCompose  Stage = "compose"
)

// Kind classifies an error by how the turn handles it.
type Kind string

const (
	// KindConfig marks a required collaborator that is unavailable.
	KindConfig Kind = "config"
	// KindRouting marks an out-of-vocabulary routing decision.
	KindRouting Kind = "routing"
	// KindExtraction marks a model output that could not be turned into
	// the structured result its path needed.
	KindExtraction Kind = "extraction"
	// KindTool marks a capability call that failed. Always surfaced
	// through the tool outcome, never through a system note.
	KindTool Kind = "tool"
	// KindCompose marks a failure inside the composer itself; the only
	// kind that survives past the end of the turn.
	KindCompose Kind = "compose"
)

// TurnError is the error descriptor carried on a turn. Message is safe to
// show or paraphrase to the user; Err keeps the underlying cause for logs.
type TurnError struct {
	Stage   Stage
	Kind    Kind
	Message string
	Err     error
}

func (e *TurnError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *TurnError) Unwrap() error { return e.Err }
