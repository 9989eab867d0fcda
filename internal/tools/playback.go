package tools

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Track is one playable item from the catalog.
type Track struct {
	ID     string
	Title  string
	Artist string
	URI    string
}

// String renders the track for display.
func (t *Track) String() string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Title + " by " + t.Artist
}

// Playback wraps the playback tools of a bridge.
type Playback struct {
	inv Invoker
	log *zap.Logger
}

// NewPlayback builds a Playback over inv.
func NewPlayback(inv Invoker, log *zap.Logger) *Playback {
	if log == nil {
		log = zap.NewNop()
	}
	return &Playback{inv: inv, log: log}
}

// SearchTrack returns the single best match for the title/artist pair, or
// nil when the catalog has nothing playable for it. A miss is not an
// error.
func (p *Playback) SearchTrack(ctx context.Context, title, artist string) (*Track, error) {
	query := strings.TrimSpace(title + " " + artist)
	result, err := p.inv.Invoke(ctx, "SpotifySearch", map[string]any{
		"query": query,
		"qtype": "track",
		"limit": 1,
	})
	if err != nil {
		return nil, err
	}

	tracks, ok := result["tracks"].([]any)
	if !ok || len(tracks) == 0 {
		p.log.Debug("no playable match", zap.String("query", query))
		return nil, nil
	}
	first, ok := tracks[0].(map[string]any)
	if !ok {
		return nil, nil
	}
	return trackFromResult(first), nil
}

// Play starts playback of the track at uri.
func (p *Playback) Play(ctx context.Context, uri string) error {
	_, err := p.inv.Invoke(ctx, "SpotifyPlayback", map[string]any{
		"action":      "start",
		"spotify_uri": uri,
	})
	return err
}

// Pause pauses the current playback.
func (p *Playback) Pause(ctx context.Context) error {
	_, err := p.inv.Invoke(ctx, "SpotifyPlayback", map[string]any{"action": "pause"})
	return err
}

// Skip advances count tracks forward. count below 1 means one.
func (p *Playback) Skip(ctx context.Context, count int) error {
	if count < 1 {
		count = 1
	}
	_, err := p.inv.Invoke(ctx, "SpotifyPlayback", map[string]any{
		"action":    "skip",
		"num_skips": count,
	})
	return err
}

// NowPlaying returns the current track, or nil when nothing is playing.
func (p *Playback) NowPlaying(ctx context.Context) (*Track, error) {
	result, err := p.inv.Invoke(ctx, "SpotifyPlayback", map[string]any{"action": "get"})
	if err != nil {
		return nil, err
	}
	current, ok := result["track"].(map[string]any)
	if !ok {
		return nil, nil
	}
	return trackFromResult(current), nil
}

func trackFromResult(m map[string]any) *Track {
	return &Track{
		ID:     resultString(m, "id"),
		Title:  resultString(m, "name"),
		Artist: resultString(m, "artist"),
		URI:    resultString(m, "uri"),
	}
}

func resultString(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
