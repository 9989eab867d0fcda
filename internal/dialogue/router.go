package dialogue

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"parley/internal/extract"
	"parley/internal/llm"
	"parley/internal/prompts"
	"parley/internal/store"
)

// Decision is the routing token for one turn.
type Decision string

const (
	DecisionExtractFacts Decision = "extract_facts"
	DecisionQueryFacts   Decision = "query_facts"
	DecisionPlayback     Decision = "playback_action"
	DecisionSend         Decision = "send_message"
	DecisionSearch       Decision = "search_messages"
	DecisionRead         Decision = "read_message"
	DecisionRespond      Decision = "generate_response"
	DecisionExit         Decision = "exit"
)

// decisions is the closed routing vocabulary. planning_query and other
// are accepted aliases for open conversation.
var decisions = map[string]Decision{
	"extract_facts":     DecisionExtractFacts,
	"query_facts":       DecisionQueryFacts,
	"playback_action":   DecisionPlayback,
	"send_message":      DecisionSend,
	"search_messages":   DecisionSearch,
	"read_message":      DecisionRead,
	"generate_response": DecisionRespond,
	"exit":              DecisionExit,
	"planning_query":    DecisionRespond,
	"other":             DecisionRespond,
}

// Router classifies a turn's intent.
type Router struct {
	client llm.Client
	lib    *prompts.Library
	log    *zap.Logger
}

// NewRouter builds a Router over client and lib.
func NewRouter(client llm.Client, lib *prompts.Library, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{client: client, lib: lib, log: log}
}

// Route returns the decision for input. It never fails: an unavailable
// model or an out-of-vocabulary token falls back to open conversation,
// with the cause in the returned descriptor.
func (r *Router) Route(ctx context.Context, input string, profile *store.Profile) (Decision, *TurnError) {
	prompt := r.lib.Render(prompts.NameRouter, map[string]string{
		"user_facts": profileSummary(profile),
		"input":      input,
	})

	raw, err := r.client.Complete(ctx, prompt)
	if err != nil {
		r.log.Warn("routing model unavailable", zap.Error(err))
		return DecisionRespond, &TurnError{
			Stage:   StageRoute,
			Kind:    KindConfig,
			Message: "the routing step was unavailable",
			Err:     err,
		}
	}

	token := decisionToken(raw)
	if d, ok := decisions[token]; ok {
		r.log.Debug("turn routed", zap.String("token", token), zap.String("decision", string(d)))
		return d, nil
	}

	r.log.Warn("unexpected routing token", zap.String("token", token))
	return DecisionRespond, &TurnError{
		Stage:   StageRoute,
		Kind:    KindRouting,
		Message: "the request could not be classified",
		Err:     fmt.Errorf("unexpected routing token %q", token),
	}
}

// decisionToken reduces a raw completion to its decision keyword: drop
// any reasoning sidecar, keep the first word, fold case, trim stray
// punctuation.
func decisionToken(raw string) string {
	fields := strings.Fields(extract.StripReasoning(raw))
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(strings.ToLower(fields[0]), ".,:;!?\"'`")
}
