// Package facts answers parsed questions about stored user information.
//
// Two sources back a query: the denormalized profile row for
// profile-shaped entity types, and the entity store for everything else.
// The package also folds freshly extracted profile-shaped facts back into
// the profile row so the profile summary seen by later turns stays
// current.
package facts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"parley/internal/extract"
	"parley/internal/store"
)

// Entity types answered from the profile row rather than the entity store.
var profileTypes = map[string]struct{}{
	"personal_info":           {},
	"user_location":           {},
	"user_hobby":              {},
	"user_job":                {},
	"user_preference_general": {},
}

// IsProfileType reports whether entityType is answered from the profile.
func IsProfileType(entityType string) bool {
	_, ok := profileTypes[entityType]
	return ok
}

// ParsedQuery is the structured form of a question about stored facts.
// Every field is optional; a query with no entity type resolves to no
// facts.
type ParsedQuery struct {
	EntityType string
	Identifier string
	Attributes []string
}

// QuerySchema is the shape the query-analysis model is asked to produce.
var QuerySchema = extract.Schema{
	Optional: []extract.Field{
		{Key: "query_entity_type", Kind: extract.KindString},
		{Key: "query_identifier", Kind: extract.KindString},
		{Key: "query_attributes", Kind: extract.KindList},
	},
}

// QueryFromObject maps a decoded query-analysis object onto a ParsedQuery.
func QueryFromObject(obj map[string]any) ParsedQuery {
	return ParsedQuery{
		EntityType: extract.StringField(obj, "query_entity_type"),
		Identifier: extract.StringField(obj, "query_identifier"),
		Attributes: extract.StringList(obj, "query_attributes"),
	}
}

// Fact is one rendered query result row. Type is the stored entity type,
// or a profile field name ("location", "hobbies") for profile-backed
// facts. Details holds a detail map for stored entities and a scalar or
// list for profile facts.
type Fact struct {
	Type    string `json:"type"`
	Details any    `json:"details"`
}

// String renders the fact as one context line for response composition.
// Map details print as sorted "key: value" pairs so the output is stable.
func (f Fact) String() string {
	switch d := f.Details.(type) {
	case map[string]any:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s: %v", k, d[k]))
		}
		return fmt.Sprintf("- %s: %s", f.Type, strings.Join(pairs, ", "))
	case []string:
		return fmt.Sprintf("- %s: %s", f.Type, strings.Join(d, ", "))
	case []any:
		parts := make([]string, 0, len(d))
		for _, item := range d {
			parts = append(parts, fmt.Sprint(item))
		}
		return fmt.Sprintf("- %s: %s", f.Type, strings.Join(parts, ", "))
	default:
		return fmt.Sprintf("- %s: %v", f.Type, d)
	}
}

// Resolver answers ParsedQuery requests against a store.
type Resolver struct {
	store store.Store
	log   *zap.Logger
}

// NewResolver builds a Resolver. A nil logger disables logging.
func NewResolver(st store.Store, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{store: st, log: log}
}

// Resolve returns the facts matching q, in store order. No match yields
// an empty list, never nil; resolution is read-only, so asking twice
// against the same store state returns the same list.
func (r *Resolver) Resolve(ctx context.Context, userID int64, q ParsedQuery) ([]Fact, error) {
	facts := make([]Fact, 0, 4)
	if q.EntityType == "" {
		return facts, nil
	}
	if IsProfileType(q.EntityType) {
		return r.resolveProfile(ctx, userID, q, facts)
	}
	return r.resolveEntities(ctx, userID, q, facts)
}

func (r *Resolver) resolveProfile(ctx context.Context, userID int64, q ParsedQuery, facts []Fact) ([]Fact, error) {
	profile, err := r.store.GetProfile(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return facts, nil
	}
	if err != nil {
		return facts, err
	}

	wantsAll := len(q.Attributes) == 0
	switch q.EntityType {
	case "personal_info", "user_location":
		if (wantsAll || hasAttribute(q.Attributes, "location")) && profile.Location != "" {
			facts = append(facts, Fact{Type: "location", Details: profile.Location})
		}
	case "user_hobby":
		if wantsAll && len(profile.Hobbies) > 0 {
			facts = append(facts, Fact{Type: "hobbies", Details: profile.Hobbies})
		}
	case "user_job":
		if wantsAll && len(profile.Jobs) > 0 {
			facts = append(facts, Fact{Type: "jobs", Details: profile.Jobs})
		}
	case "user_preference_general":
		if wantsAll && len(profile.Preferences) > 0 {
			facts = append(facts, Fact{Type: "preferences", Details: profile.Preferences})
		}
	}
	return facts, nil
}

func (r *Resolver) resolveEntities(ctx context.Context, userID int64, q ParsedQuery, facts []Fact) ([]Fact, error) {
	entities, err := r.store.ListEntities(ctx, userID, store.ListOptions{EntityType: q.EntityType})
	if err != nil {
		return facts, err
	}

	idLower := strings.ToLower(q.Identifier)
	for _, e := range entities {
		if q.Identifier != "" && !matchesIdentifier(e, idLower) {
			continue
		}
		details := e.Details
		if len(q.Attributes) > 0 {
			projected := make(map[string]any, len(q.Attributes))
			for _, attr := range q.Attributes {
				if v, ok := e.Details[attr]; ok {
					projected[attr] = v
				}
			}
			// An entity holding none of the requested attributes is
			// not an answer to the question.
			if len(projected) == 0 {
				continue
			}
			details = projected
		}
		if len(details) == 0 {
			continue
		}
		facts = append(facts, Fact{Type: e.EntityType, Details: details})
	}

	r.log.Debug("fact query resolved",
		zap.String("entity_type", q.EntityType),
		zap.String("identifier", q.Identifier),
		zap.Int("matches", len(facts)))
	return facts, nil
}

// matchesIdentifier checks idLower against the entity's name, description,
// and title. Events additionally match on a date_text substring, so "next
// Friday" finds the appointment stored with that phrasing.
func matchesIdentifier(e *store.Entity, idLower string) bool {
	for _, key := range []string{"name", "description", "title"} {
		if s := detailString(e.Details, key); s != "" && strings.ToLower(s) == idLower {
			return true
		}
	}
	if e.EntityType == "event" {
		if s := detailString(e.Details, "date_text"); s != "" {
			return strings.Contains(strings.ToLower(s), idLower)
		}
	}
	return false
}

func hasAttribute(attrs []string, name string) bool {
	for _, a := range attrs {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}

func detailString(details map[string]any, key string) string {
	v, ok := details[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
