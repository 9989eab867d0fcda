package dialogue

import (
	"context"

	"go.uber.org/zap"

	"parley/internal/extract"
	"parley/internal/prompts"
	"parley/internal/temporal"
)

// extractionSchema accepts the envelope of the fact-extraction prompt.
// Item shape is checked per entity so one malformed item cannot sink the
// batch.
var extractionSchema = extract.Schema{
	Required: []extract.Field{{Key: "identified_entities", Kind: extract.KindList}},
}

// runExtraction identifies facts in the input and persists each as an
// entity. Failures degrade: a parse failure yields zero entities, a
// persistence failure skips that entity, and the first cause is recorded
// for the composer's soft acknowledgment.
func (e *Engine) runExtraction(ctx context.Context, st *TurnState) {
	prompt := e.lib.Render(prompts.NameExtraction, map[string]string{"input": st.Input})
	raw, err := e.client.Complete(ctx, prompt)
	if err != nil {
		st.Err = &TurnError{
			Stage:   StageExtract,
			Kind:    KindConfig,
			Message: "the fact extraction step was unavailable",
			Err:     err,
		}
		return
	}

	res, err := e.ext.Extract(raw, extractionSchema)
	if err != nil {
		st.Err = &TurnError{
			Stage:   StageExtract,
			Kind:    KindExtraction,
			Message: "the shared information could not be understood",
			Err:     err,
		}
		return
	}

	items, _ := res.Object["identified_entities"].([]any)
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			e.log.Warn("skipping malformed extracted item")
			continue
		}
		entityType := extract.StringField(entry, "entity_type")
		details := extract.MapField(entry, "details")
		if entityType == "" || details == nil {
			e.log.Warn("skipping extracted item without type or details")
			continue
		}

		e.attachTemporal(details)

		entity, err := e.store.CreateEntity(ctx, st.UserID, entityType, details)
		if err != nil {
			e.log.Warn("entity not persisted",
				zap.String("entity_type", entityType), zap.Error(err))
			if st.Err == nil {
				st.Err = &TurnError{
					Stage:   StageExtract,
					Kind:    KindExtraction,
					Message: "some of the information could not be saved",
					Err:     err,
				}
			}
			continue
		}
		st.Entities = append(st.Entities, entity)

		changed, err := e.resolver.FoldIntoProfile(ctx, st.UserID, entityType, details)
		if err != nil {
			e.log.Warn("profile fold failed", zap.String("entity_type", entityType), zap.Error(err))
			continue
		}
		if changed {
			if fresh, err := e.store.GetProfile(ctx, st.UserID); err == nil {
				st.Profile = fresh
			}
		}
	}

	e.log.Info("facts extracted",
		zap.Int64("user_id", st.UserID), zap.Int("count", len(st.Entities)))
}

// attachTemporal resolves a free-text date riding on a dated fact. The
// original phrasing stays in place; the interpretation is attached
// alongside it.
func (e *Engine) attachTemporal(details map[string]any) {
	dateText := extract.StringField(details, "date_text")
	if dateText == "" {
		return
	}
	details[temporal.Key] = temporal.Interpret(dateText, e.now())
}
