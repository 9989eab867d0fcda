package tools

import (
	"context"
	"errors"
	"testing"
)

// recordingInvoker captures calls and replays canned results per tool.
type recordingInvoker struct {
	calls   []invokeRequest
	results map[string]map[string]any
	err     error
}

func (r *recordingInvoker) Invoke(ctx context.Context, tool string, input map[string]any) (map[string]any, error) {
	r.calls = append(r.calls, invokeRequest{Tool: tool, Input: input})
	if r.err != nil {
		return nil, r.err
	}
	return r.results[tool], nil
}

func TestSearchTrackBestMatch(t *testing.T) {
	inv := &recordingInvoker{results: map[string]map[string]any{
		"SpotifySearch": {
			"tracks": []any{
				map[string]any{"id": "t1", "name": "Shape of You", "artist": "Ed Sheeran", "uri": "spotify:track:t1"},
			},
		},
	}}
	p := NewPlayback(inv, nil)

	track, err := p.SearchTrack(context.Background(), "Shape of You", "Ed Sheeran")
	if err != nil {
		t.Fatalf("SearchTrack: %v", err)
	}
	if track == nil || track.URI != "spotify:track:t1" {
		t.Fatalf("track = %+v", track)
	}
	if track.String() != "Shape of You by Ed Sheeran" {
		t.Errorf("String() = %q", track.String())
	}

	call := inv.calls[0]
	if call.Input["query"] != "Shape of You Ed Sheeran" {
		t.Errorf("query = %v", call.Input["query"])
	}
	if call.Input["limit"] != 1 {
		t.Errorf("limit = %v, search must be bounded to the single best match", call.Input["limit"])
	}
}

func TestSearchTrackMissIsNotAnError(t *testing.T) {
	inv := &recordingInvoker{results: map[string]map[string]any{
		"SpotifySearch": {"tracks": []any{}},
	}}
	p := NewPlayback(inv, nil)

	track, err := p.SearchTrack(context.Background(), "Unheard Song", "")
	if err != nil {
		t.Fatalf("SearchTrack: %v", err)
	}
	if track != nil {
		t.Errorf("track = %+v, want nil", track)
	}
}

func TestPlaybackActions(t *testing.T) {
	inv := &recordingInvoker{results: map[string]map[string]any{}}
	p := NewPlayback(inv, nil)
	ctx := context.Background()

	if err := p.Play(ctx, "spotify:track:t1"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := p.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := p.Skip(ctx, 0); err != nil {
		t.Fatalf("Skip: %v", err)
	}

	if len(inv.calls) != 3 {
		t.Fatalf("calls = %d", len(inv.calls))
	}
	if inv.calls[0].Input["action"] != "start" || inv.calls[0].Input["spotify_uri"] != "spotify:track:t1" {
		t.Errorf("start call = %v", inv.calls[0].Input)
	}
	if inv.calls[1].Input["action"] != "pause" {
		t.Errorf("pause call = %v", inv.calls[1].Input)
	}
	if inv.calls[2].Input["action"] != "skip" || inv.calls[2].Input["num_skips"] != 1 {
		t.Errorf("skip call = %v, count below 1 must default to 1", inv.calls[2].Input)
	}
}

func TestNowPlaying(t *testing.T) {
	inv := &recordingInvoker{results: map[string]map[string]any{
		"SpotifyPlayback": {"track": map[string]any{"name": "Happy", "artist": "Pharrell Williams"}},
	}}
	p := NewPlayback(inv, nil)

	track, err := p.NowPlaying(context.Background())
	if err != nil {
		t.Fatalf("NowPlaying: %v", err)
	}
	if track == nil || track.Title != "Happy" {
		t.Fatalf("track = %+v", track)
	}
}

func TestNowPlayingIdle(t *testing.T) {
	inv := &recordingInvoker{results: map[string]map[string]any{
		"SpotifyPlayback": {},
	}}
	p := NewPlayback(inv, nil)

	track, err := p.NowPlaying(context.Background())
	if err != nil {
		t.Fatalf("NowPlaying: %v", err)
	}
	if track != nil {
		t.Errorf("track = %+v, want nil when idle", track)
	}
}

func TestSearchTrackPropagatesInvokerError(t *testing.T) {
	inv := &recordingInvoker{err: errors.New("bridge down")}
	p := NewPlayback(inv, nil)

	if _, err := p.SearchTrack(context.Background(), "Happy", ""); err == nil {
		t.Fatal("invoker error must propagate")
	}
}
