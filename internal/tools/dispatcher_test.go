package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"parley/internal/slots"
)

func playbackDispatcher(inv Invoker) *Dispatcher {
	return NewDispatcher(NewPlayback(inv, nil), nil, nil)
}

func messagingDispatcher(inv Invoker) *Dispatcher {
	return NewDispatcher(nil, NewMessaging(inv, nil), nil)
}

func TestDispatchPlaybackStart(t *testing.T) {
	inv := &recordingInvoker{results: map[string]map[string]any{
		"SpotifySearch": {
			"tracks": []any{map[string]any{"name": "Happy", "artist": "Pharrell Williams", "uri": "spotify:track:h1"}},
		},
		"SpotifyPlayback": {"status": "playing"},
	}}
	d := playbackDispatcher(inv)

	outcome, searchContext := d.Dispatch(context.Background(), slots.PlaybackParams{
		Action: "start", SongTitle: "Happy", ArtistName: "Pharrell Williams",
	})
	if !outcome.Success {
		t.Fatalf("outcome = %+v", outcome)
	}
	if !strings.Contains(outcome.Message, "Now playing 'Happy by Pharrell Williams'") {
		t.Errorf("message = %q", outcome.Message)
	}
	if searchContext != "" {
		t.Errorf("playback must not produce search context, got %q", searchContext)
	}

	if len(inv.calls) != 2 {
		t.Fatalf("calls = %d, want search then play", len(inv.calls))
	}
	if inv.calls[0].Tool != "SpotifySearch" || inv.calls[1].Tool != "SpotifyPlayback" {
		t.Errorf("call order = %s, %s", inv.calls[0].Tool, inv.calls[1].Tool)
	}
}

func TestDispatchPlaybackStartNotFound(t *testing.T) {
	inv := &recordingInvoker{results: map[string]map[string]any{
		"SpotifySearch": {"tracks": []any{}},
	}}
	d := playbackDispatcher(inv)

	outcome, _ := d.Dispatch(context.Background(), slots.PlaybackParams{Action: "start", SongTitle: "Unheard Song"})
	if outcome.Success {
		t.Fatal("missing search hit must not claim success")
	}
	if !strings.Contains(outcome.Message, "couldn't find 'Unheard Song'") {
		t.Errorf("message = %q", outcome.Message)
	}

	// No playback attempt without a playable target.
	for _, call := range inv.calls {
		if call.Tool == "SpotifyPlayback" {
			t.Error("playback attempted despite missing target")
		}
	}
}

func TestDispatchPlaybackErrorIsNormalized(t *testing.T) {
	inv := &recordingInvoker{err: errors.New("bridge down")}
	d := playbackDispatcher(inv)

	outcome, _ := d.Dispatch(context.Background(), slots.PlaybackParams{Action: "pause"})
	if outcome.Success {
		t.Fatal("capability error must yield a failed outcome")
	}
	if !strings.Contains(outcome.Message, "Could not pause") {
		t.Errorf("message = %q", outcome.Message)
	}
}

func TestDispatchPlaybackGet(t *testing.T) {
	inv := &recordingInvoker{results: map[string]map[string]any{
		"SpotifyPlayback": {"track": map[string]any{"name": "Happy", "artist": "Pharrell Williams"}},
	}}
	d := playbackDispatcher(inv)

	outcome, _ := d.Dispatch(context.Background(), slots.PlaybackParams{Action: "get"})
	if !outcome.Success || !strings.Contains(outcome.Message, "Currently playing") {
		t.Errorf("outcome = %+v", outcome)
	}
}

func TestDispatchPlaybackGetIdle(t *testing.T) {
	inv := &recordingInvoker{results: map[string]map[string]any{"SpotifyPlayback": {}}}
	d := playbackDispatcher(inv)

	outcome, _ := d.Dispatch(context.Background(), slots.PlaybackParams{Action: "get"})
	if !outcome.Success || !strings.Contains(outcome.Message, "Nothing is playing") {
		t.Errorf("outcome = %+v", outcome)
	}
}

func TestDispatchSend(t *testing.T) {
	inv := &recordingInvoker{results: map[string]map[string]any{}}
	d := messagingDispatcher(inv)

	outcome, _ := d.Dispatch(context.Background(), slots.SendParams{
		To: []string{"priya@example.com"}, Subject: "Catch up", Body: "I'll call this evening.",
	})
	if !outcome.Success {
		t.Fatalf("outcome = %+v", outcome)
	}
	if !strings.Contains(outcome.Message, "priya@example.com") || !strings.Contains(outcome.Message, "Catch up") {
		t.Errorf("confirmation must name recipient and subject, got %q", outcome.Message)
	}
}

func TestDispatchSendFailure(t *testing.T) {
	inv := &recordingInvoker{err: errors.New("Recipient email address is invalid: David")}
	d := messagingDispatcher(inv)

	outcome, _ := d.Dispatch(context.Background(), slots.SendParams{To: []string{"David"}, Subject: "Report", Body: "Here."})
	if outcome.Success {
		t.Fatal("send failure must not claim success")
	}
	if !strings.Contains(outcome.Message, "invalid") {
		t.Errorf("message = %q, must summarize the cause", outcome.Message)
	}
}

func TestDispatchSearchCarriesContext(t *testing.T) {
	inv := &recordingInvoker{results: map[string]map[string]any{
		"search_emails": {
			"messages": []any{
				map[string]any{"id": "msg123", "subject": "Hello", "from": "jane@example.com"},
				map[string]any{"id": "msg456", "subject": "Update", "from": "team@example.com"},
			},
		},
	}}
	d := messagingDispatcher(inv)

	outcome, searchContext := d.Dispatch(context.Background(), slots.SearchParams{Query: "from:jane"})
	if !outcome.Success {
		t.Fatalf("outcome = %+v", outcome)
	}
	if !strings.Contains(outcome.Message, "Found 2 message(s)") {
		t.Errorf("message = %q", outcome.Message)
	}

	wantContext := "1. ID: msg123, Subject: 'Hello', From: jane@example.com\n2. ID: msg456, Subject: 'Update', From: team@example.com"
	if searchContext != wantContext {
		t.Errorf("search context = %q, want %q", searchContext, wantContext)
	}
}

func TestDispatchSearchNoHits(t *testing.T) {
	inv := &recordingInvoker{results: map[string]map[string]any{
		"search_emails": {"messages": []any{}},
	}}
	d := messagingDispatcher(inv)

	outcome, searchContext := d.Dispatch(context.Background(), slots.SearchParams{Query: "is:unread"})
	if !outcome.Success {
		t.Error("an empty search is still a successful search")
	}
	if searchContext != "" {
		t.Errorf("no hits must carry no context, got %q", searchContext)
	}
}

func TestDispatchRead(t *testing.T) {
	inv := &recordingInvoker{results: map[string]map[string]any{
		"read_email": {
			"id": "msg123", "subject": "Hello", "from": "jane@example.com",
			"date": "2026-08-20", "body": "Just saying hi.",
		},
	}}
	d := messagingDispatcher(inv)

	outcome, _ := d.Dispatch(context.Background(), slots.ReadParams{MessageID: "msg123"})
	if !outcome.Success {
		t.Fatalf("outcome = %+v", outcome)
	}
	for _, part := range []string{"From: jane@example.com", "Subject: Hello", "Just saying hi."} {
		if !strings.Contains(outcome.Message, part) {
			t.Errorf("message missing %q:\n%s", part, outcome.Message)
		}
	}
}

func TestDispatchReadExcerptBounded(t *testing.T) {
	long := strings.Repeat("a", 2*maxBodyExcerpt)
	inv := &recordingInvoker{results: map[string]map[string]any{
		"read_email": {"id": "m", "subject": "s", "from": "f", "date": "d", "body": long},
	}}
	d := messagingDispatcher(inv)

	outcome, _ := d.Dispatch(context.Background(), slots.ReadParams{MessageID: "m"})
	if !strings.HasSuffix(outcome.Message, "...") {
		t.Error("long body must be cut with an ellipsis")
	}
	if len(outcome.Message) > maxBodyExcerpt+100 {
		t.Errorf("message length = %d, excerpt not bounded", len(outcome.Message))
	}
}

func TestDispatchUnconfiguredCapability(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)

	outcome, _ := d.Dispatch(context.Background(), slots.PlaybackParams{Action: "pause"})
	if outcome.Success {
		t.Fatal("missing capability must not claim success")
	}

	if d.Supports(slots.KindPlayback) || d.Supports(slots.KindSend) {
		t.Error("Supports must be false with no capabilities wired")
	}
}

func TestSupports(t *testing.T) {
	d := NewDispatcher(NewPlayback(&recordingInvoker{}, nil), nil, nil)
	if !d.Supports(slots.KindPlayback) {
		t.Error("playback wired but not supported")
	}
	for _, kind := range []slots.Kind{slots.KindSend, slots.KindSearch, slots.KindRead} {
		if d.Supports(kind) {
			t.Errorf("%s must need the messaging capability", kind)
		}
	}
}
