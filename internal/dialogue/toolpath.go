package dialogue

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"parley/internal/slots"
	"parley/internal/tools"
)

// slotHistoryWindow bounds how many prior utterances ride into the
// parameter prompts.
const slotHistoryWindow = 8

func kindForDecision(d Decision) (slots.Kind, bool) {
	switch d {
	case DecisionPlayback:
		return slots.KindPlayback, true
	case DecisionSend:
		return slots.KindSend, true
	case DecisionSearch:
		return slots.KindSearch, true
	case DecisionRead:
		return slots.KindRead, true
	}
	return "", false
}

// runTool extracts the tool's parameters and dispatches when they are
// complete. An incomplete set carries a follow-up question instead of an
// outcome; an unconfigured capability short-circuits with a failed
// outcome and a config error.
func (e *Engine) runTool(ctx context.Context, st *TurnState) {
	kind, ok := kindForDecision(st.Decision)
	if !ok {
		return
	}

	if !e.dispatcher.Supports(kind) {
		st.Outcome = &tools.Outcome{Success: false, Message: unavailableMessage(kind)}
		st.Err = &TurnError{
			Stage:   StageDispatch,
			Kind:    KindConfig,
			Message: "that capability is not configured",
			Err:     fmt.Errorf("no capability behind %s", kind),
		}
		return
	}

	res, err := e.slots.Extract(ctx, kind, slotUtterance(st.History, st.Input), st.SearchContext)
	if err != nil {
		st.Err = &TurnError{
			Stage:   StageSlots,
			Kind:    KindExtraction,
			Message: "the request details could not be worked out",
			Err:     err,
		}
		return
	}
	if !res.Complete() {
		st.PendingQuestion = res.Question
		e.log.Info("slot filling pending",
			zap.String("kind", string(kind)), zap.String("missing", res.Missing))
		return
	}

	outcome, searchContext := e.dispatcher.Dispatch(ctx, res.Params)
	st.Outcome = &outcome
	if !outcome.Success {
		st.Err = &TurnError{Stage: StageDispatch, Kind: KindTool, Message: outcome.Message}
	}
	if kind == slots.KindSearch {
		st.SearchContext = searchContext
	}
	e.log.Info("tool dispatched",
		zap.String("kind", string(kind)), zap.Bool("success", outcome.Success))
}

func unavailableMessage(kind slots.Kind) string {
	if kind == slots.KindPlayback {
		return "Music playback is not set up right now."
	}
	return "Messaging is not set up right now."
}

// slotUtterance is the text the parameter prompts see. Prior turns ride
// along so the model can merge slots the user supplied earlier.
func slotUtterance(history []Utterance, input string) string {
	if len(history) == 0 {
		return input
	}
	tail := history
	if len(tail) > slotHistoryWindow {
		tail = tail[len(tail)-slotHistoryWindow:]
	}

	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, u := range tail {
		fmt.Fprintf(&b, "%s: %s\n", roleLabel(u.Role), u.Content)
	}
	b.WriteString("Latest user message: ")
	b.WriteString(input)
	return b.String()
}
