package dialogue

import (
	"context"

	"go.uber.org/zap"

	"parley/internal/facts"
	"parley/internal/prompts"
)

// runQuery parses the question into a structured query and resolves it
// against stored facts. st.Facts ends up empty, never nil, on every
// path; finding nothing is not an error.
func (e *Engine) runQuery(ctx context.Context, st *TurnState) {
	st.Facts = []facts.Fact{}

	prompt := e.lib.Render(prompts.NameQuery, map[string]string{"input": st.Input})
	raw, err := e.client.Complete(ctx, prompt)
	if err != nil {
		st.Err = &TurnError{
			Stage:   StageQuery,
			Kind:    KindConfig,
			Message: "the question lookup step was unavailable",
			Err:     err,
		}
		return
	}

	res, err := e.ext.Extract(raw, facts.QuerySchema)
	if err != nil {
		st.Err = &TurnError{
			Stage:   StageQuery,
			Kind:    KindExtraction,
			Message: "the question could not be understood",
			Err:     err,
		}
		return
	}

	q := facts.QueryFromObject(res.Object)
	found, err := e.resolver.Resolve(ctx, st.UserID, q)
	if err != nil {
		st.Err = &TurnError{
			Stage:   StageQuery,
			Kind:    KindExtraction,
			Message: "the stored information could not be read",
			Err:     err,
		}
		return
	}

	st.Facts = found
	e.log.Info("facts resolved",
		zap.String("entity_type", q.EntityType),
		zap.String("identifier", q.Identifier),
		zap.Int("count", len(found)))
}
