package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"parley/internal/extract"
	"parley/internal/llm"
	"parley/internal/prompts"
)

// Fallback replies. The first covers a missing model configuration, the
// second any other failure inside the composer itself.
const (
	replyNoModel  = "I'm having a little trouble thinking right now. Please try again later."
	replyFallback = "I'm sorry, I encountered an issue and couldn't fully process that."
)

const (
	noProfileContext = "No specific user profile information available."
	noFactsContext   = "No specific facts were retrieved for this query."
	factsHeader      = "Based on your question, I found these related facts:\n"
)

// Composer produces the terminal reply of a turn.
type Composer struct {
	client llm.Client
	lib    *prompts.Library
	name   string
	style  string
	log    *zap.Logger
}

// NewComposer builds a Composer speaking as name, with an optional extra
// style line woven into the system prompt.
func NewComposer(client llm.Client, lib *prompts.Library, name, style string, log *zap.Logger) *Composer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Composer{client: client, lib: lib, name: name, style: style, log: log}
}

// Compose fills st.Reply. A pending slot question passes through as the
// reply verbatim; everything else goes through one generation call. The
// carried error is cleared unless generation itself failed.
func (c *Composer) Compose(ctx context.Context, st *TurnState) {
	if st.PendingQuestion != "" {
		st.Reply = st.PendingQuestion
		st.Err = nil
		return
	}

	system := c.lib.Render(prompts.NameSystem, map[string]string{
		"assistant_name": c.name,
		"style":          c.style,
	})

	raw, err := c.client.CompleteWithSystem(ctx, system, c.userPrompt(st))
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			c.log.Error("conversational model not configured", zap.Error(err))
			st.Reply = replyNoModel
			st.Err = &TurnError{
				Stage:   StageCompose,
				Kind:    KindConfig,
				Message: "the conversational model is not configured",
				Err:     err,
			}
			return
		}
		c.log.Error("reply generation failed", zap.Error(err))
		st.Reply = replyFallback
		st.Err = &TurnError{
			Stage:   StageCompose,
			Kind:    KindCompose,
			Message: "the reply could not be generated",
			Err:     err,
		}
		return
	}

	reply := extract.StripReasoning(raw)
	if reply == "" {
		c.log.Error("model produced an empty reply")
		st.Reply = replyFallback
		st.Err = &TurnError{
			Stage:   StageCompose,
			Kind:    KindCompose,
			Message: "the model produced an empty reply",
		}
		return
	}

	st.Reply = reply
	st.Err = nil
}

// userPrompt assembles the single generation context: known profile
// facts, what this turn learned or did, the conversation so far, and the
// input line.
func (c *Composer) userPrompt(st *TurnState) string {
	var b strings.Builder

	b.WriteString("Known user facts: ")
	if st.Profile != nil {
		b.WriteString(profileSummary(st.Profile))
	} else {
		b.WriteString(noProfileContext)
	}
	b.WriteString("\n\n")

	b.WriteString(factsContext(st))
	b.WriteString("\n\n")

	if len(st.History) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, u := range st.History {
			fmt.Fprintf(&b, "%s: %s\n", roleLabel(u.Role), u.Content)
		}
		b.WriteString("\n")
	}

	b.WriteString("User: ")
	b.WriteString(inputLine(st))
	b.WriteString("\nAssistant:")
	return b.String()
}

// factsContext renders what the turn's path produced: a tool outcome
// takes priority over retrieved facts.
func factsContext(st *TurnState) string {
	if st.Outcome != nil {
		return "Action result: " + st.Outcome.Message
	}
	if len(st.Facts) > 0 {
		lines := make([]string, 0, len(st.Facts))
		for _, f := range st.Facts {
			lines = append(lines, f.String())
		}
		return factsHeader + strings.Join(lines, "\n")
	}
	return noFactsContext
}

// inputLine is the user's input, rewritten with a soft system note when
// an upstream error was not already surfaced through a tool outcome.
func inputLine(st *TurnState) string {
	if st.Err == nil || st.Outcome != nil {
		return st.Input
	}
	return fmt.Sprintf(
		"(System note: There was an issue: %s. Please respond to the user appropriately regarding their original input: '%s')",
		st.Err.Message, st.Input)
}
