package slots

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"parley/internal/llm"
	"parley/internal/prompts"
)

func newManager(script *llm.Script) *Manager {
	return NewManager(script, prompts.NewLibrary("", nil), nil)
}

func TestExtractPlaybackStart(t *testing.T) {
	script := llm.NewScript(`{"action": "start", "song_title": "Shape of You", "artist_name": "Ed Sheeran"}`)
	m := newManager(script)

	res, err := m.Extract(context.Background(), KindPlayback, "play shape of you by ed sheeran", "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !res.Complete() {
		t.Fatalf("expected a complete set, got question %q", res.Question)
	}
	want := PlaybackParams{Action: "start", SongTitle: "Shape of You", ArtistName: "Ed Sheeran"}
	if diff := cmp.Diff(want, res.Params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}

	calls := script.Calls()
	if len(calls) != 1 {
		t.Fatalf("llm calls = %d, want 1", len(calls))
	}
	if !strings.Contains(calls[0].User, "play shape of you by ed sheeran") {
		t.Error("prompt does not carry the user input")
	}
}

func TestExtractPlaybackPauseNeedsNoTarget(t *testing.T) {
	script := llm.NewScript(`{"action": "pause", "song_title": null, "artist_name": null}`)
	m := newManager(script)

	res, err := m.Extract(context.Background(), KindPlayback, "pause the music", "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !res.Complete() {
		t.Fatalf("pause must not require a target, got question %q", res.Question)
	}
	if p := res.Params.(PlaybackParams); p.Action != "pause" {
		t.Errorf("action = %q", p.Action)
	}
}

func TestExtractPlaybackStartWithoutTargetAsks(t *testing.T) {
	script := llm.NewScript(`{"action": "start", "song_title": null, "artist_name": null}`)
	m := newManager(script)

	res, err := m.Extract(context.Background(), KindPlayback, "play something", "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Complete() {
		t.Fatal("start without a target must not produce a dispatchable set")
	}
	if res.Missing != "target" || res.Question == "" {
		t.Errorf("Missing = %q, Question = %q", res.Missing, res.Question)
	}
}

func TestExtractPlaybackRejectsUnknownAction(t *testing.T) {
	script := llm.NewScript(`{"action": "dance", "song_title": null, "artist_name": null}`)
	m := newManager(script)

	if _, err := m.Extract(context.Background(), KindPlayback, "do a dance", ""); err == nil {
		t.Fatal("unknown action must fail validation")
	}
}

func TestExtractSendComplete(t *testing.T) {
	script := llm.NewScript(`{"to": ["priya@example.com"], "subject": "Catch up later", "body": "I'll call you this evening."}`)
	m := newManager(script)

	res, err := m.Extract(context.Background(), KindSend, "email priya I'll call this evening", "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !res.Complete() {
		t.Fatalf("expected a complete set, got question %q", res.Question)
	}
	want := SendParams{To: []string{"priya@example.com"}, Subject: "Catch up later", Body: "I'll call you this evening."}
	if diff := cmp.Diff(want, res.Params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractSendAsksInPriorityOrder(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		missing string
	}{
		{
			name:    "recipient before subject and body",
			reply:   `{"to": null, "subject": "Report", "body": "Here it is."}`,
			missing: "recipient",
		},
		{
			name:    "subject before body",
			reply:   `{"to": ["David"], "subject": null, "body": null}`,
			missing: "subject",
		},
		{
			name:    "body last",
			reply:   `{"to": ["David"], "subject": "Report", "body": null}`,
			missing: "body",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager(llm.NewScript(tt.reply))
			res, err := m.Extract(context.Background(), KindSend, "email David", "")
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if res.Complete() {
				t.Fatal("incomplete send must not produce a dispatchable set")
			}
			if res.Missing != tt.missing {
				t.Errorf("Missing = %q, want %q", res.Missing, tt.missing)
			}
			if res.Question == "" {
				t.Error("no follow-up question")
			}
		})
	}
}

func TestExtractSearch(t *testing.T) {
	script := llm.NewScript(`{"query": "from:doctor subject:(test results)"}`)
	m := newManager(script)

	res, err := m.Extract(context.Background(), KindSearch, "find emails from my doctor about test results", "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !res.Complete() {
		t.Fatalf("expected a complete set, got question %q", res.Question)
	}
	if p := res.Params.(SearchParams); p.Query != "from:doctor subject:(test results)" {
		t.Errorf("query = %q", p.Query)
	}
}

func TestExtractSearchEmptyQueryAsks(t *testing.T) {
	script := llm.NewScript(`{"query": null}`)
	m := newManager(script)

	res, err := m.Extract(context.Background(), KindSearch, "search my mail", "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Complete() || res.Missing != "query" {
		t.Errorf("Missing = %q, Complete = %v", res.Missing, res.Complete())
	}
}

func TestExtractReadUsesSearchContext(t *testing.T) {
	script := llm.NewScript(`{"message_id": "msg123"}`)
	m := newManager(script)

	searchContext := "1. ID: msg123, Subject: 'Hello', From: jane@example.com"
	res, err := m.Extract(context.Background(), KindRead, "open the first one", searchContext)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !res.Complete() {
		t.Fatalf("expected a complete set, got question %q", res.Question)
	}
	if p := res.Params.(ReadParams); p.MessageID != "msg123" {
		t.Errorf("message id = %q", p.MessageID)
	}
	if !strings.Contains(script.Calls()[0].User, searchContext) {
		t.Error("prompt does not carry the search context")
	}
}

func TestExtractReadWithoutContextNotesAbsence(t *testing.T) {
	script := llm.NewScript(`{"message_id": null}`)
	m := newManager(script)

	res, err := m.Extract(context.Background(), KindRead, "what's in that mail?", "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Complete() || res.Missing != "message_id" {
		t.Errorf("Missing = %q, Complete = %v", res.Missing, res.Complete())
	}
	if !strings.Contains(script.Calls()[0].User, noSearchContext) {
		t.Error("prompt does not note the missing search context")
	}
}

func TestExtractToleratesReasoningAndFences(t *testing.T) {
	reply := "<think>the user wants music</think>\nSure thing:\n```json\n{\"action\": \"get\", \"song_title\": null, \"artist_name\": null}\n```"
	m := newManager(llm.NewScript(reply))

	res, err := m.Extract(context.Background(), KindPlayback, "what song is playing?", "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if p := res.Params.(PlaybackParams); p.Action != "get" {
		t.Errorf("action = %q", p.Action)
	}
}

func TestExtractFailsOnProse(t *testing.T) {
	m := newManager(llm.NewScript("I am not sure what you mean."))

	if _, err := m.Extract(context.Background(), KindSend, "email someone", ""); err == nil {
		t.Fatal("prose without an object must fail extraction")
	}
}

func TestExtractUnknownKind(t *testing.T) {
	m := newManager(llm.NewScript())

	if _, err := m.Extract(context.Background(), Kind("fax"), "send a fax", ""); err == nil {
		t.Fatal("unknown kind must fail")
	}
}
