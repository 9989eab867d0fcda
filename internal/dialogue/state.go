// Package dialogue runs single conversational turns: classify the input,
// run the chosen path, and always converge on one composed reply. A turn
// is owned by exactly one RunTurn call; nothing here is shared across
// concurrent turns.
package dialogue

import (
	"encoding/json"

	"parley/internal/facts"
	"parley/internal/store"
	"parley/internal/tools"
)

// Speaker roles in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Goodbye is the farewell surfaces show when a turn ends the
// conversation. The engine itself returns no reply on exit.
const Goodbye = "It was lovely chatting with you. Goodbye for now!"

// Utterance is one speaker-tagged line of conversation history.
type Utterance struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnInput is everything a caller supplies for one turn. History and
// SearchContext come from the caller's copy of the previous TurnResult.
type TurnInput struct {
	Text    string
	UserID  int64
	Profile *store.Profile // optional; loaded from the store when nil
	History []Utterance
	// SearchContext is the numbered listing from an earlier message
	// search, so "read the second one" can resolve by position.
	SearchContext string
}

// TurnResult is what one turn produces.
type TurnResult struct {
	Reply         string
	History       []Utterance // input history plus this turn's lines
	SearchContext string      // context the next turn should carry
	Exit          bool        // user asked to end the session
	// Err is non-nil only when the composer's own generation failed;
	// every upstream error is consumed into the reply instead.
	Err *TurnError
}

// TurnState is the working state of one turn.
type TurnState struct {
	Input         string
	UserID        int64
	Profile       *store.Profile
	History       []Utterance
	SearchContext string

	Decision        Decision
	Entities        []*store.Entity
	Facts           []facts.Fact
	Outcome         *tools.Outcome
	PendingQuestion string
	Reply           string
	Err             *TurnError
}

// profileSummary renders the profile as the compact JSON the routing and
// composer prompts expect.
func profileSummary(p *store.Profile) string {
	if p == nil {
		return "{}"
	}
	summary := map[string]any{
		"username":    p.Username,
		"location":    p.Location,
		"hobbies":     p.Hobbies,
		"jobs":        p.Jobs,
		"preferences": p.Preferences,
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func roleLabel(role string) string {
	if role == RoleAssistant {
		return "Assistant"
	}
	return "User"
}

// appendHistory copies before appending so the caller's slice is never
// aliased by the result.
func appendHistory(history []Utterance, lines ...Utterance) []Utterance {
	out := make([]Utterance, 0, len(history)+len(lines))
	out = append(out, history...)
	return append(out, lines...)
}
