package tools

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"parley/internal/slots"
)

// Outcome is the normalized result of one tool action. Message is written
// for the user; the composer rephrases it but never contradicts it.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Dispatcher routes complete parameter sets to the underlying
// capabilities. Capability errors never escape it; every path ends in an
// Outcome.
type Dispatcher struct {
	playback  *Playback
	messaging *Messaging
	log       *zap.Logger
}

// NewDispatcher builds a Dispatcher. Either capability may be nil when
// its bridge is not configured.
func NewDispatcher(playback *Playback, messaging *Messaging, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{playback: playback, messaging: messaging, log: log}
}

// HasPlayback reports whether the playback capability is configured.
func (d *Dispatcher) HasPlayback() bool { return d != nil && d.playback != nil }

// HasMessaging reports whether the messaging capability is configured.
func (d *Dispatcher) HasMessaging() bool { return d != nil && d.messaging != nil }

// Supports reports whether the capability behind kind is configured.
func (d *Dispatcher) Supports(kind slots.Kind) bool {
	switch kind {
	case slots.KindPlayback:
		return d.HasPlayback()
	case slots.KindSend, slots.KindSearch, slots.KindRead:
		return d.HasMessaging()
	}
	return false
}

// Dispatch runs one complete parameter set and normalizes the result.
// searchContext is non-empty only after a message search; the caller
// carries it into the next turn so "read the second one" can resolve.
func (d *Dispatcher) Dispatch(ctx context.Context, params slots.ParamSet) (outcome Outcome, searchContext string) {
	switch p := params.(type) {
	case slots.PlaybackParams:
		return d.dispatchPlayback(ctx, p), ""
	case slots.SendParams:
		return d.dispatchSend(ctx, p), ""
	case slots.SearchParams:
		return d.dispatchSearch(ctx, p)
	case slots.ReadParams:
		return d.dispatchRead(ctx, p), ""
	default:
		d.log.Warn("unknown parameter set", zap.String("kind", string(params.Kind())))
		return Outcome{Success: false, Message: "I don't know how to perform that action."}, ""
	}
}

// ===== PLAYBACK =====

func (d *Dispatcher) dispatchPlayback(ctx context.Context, p slots.PlaybackParams) Outcome {
	if d.playback == nil {
		return Outcome{Success: false, Message: "Music playback is not set up right now."}
	}

	switch p.Action {
	case "start":
		return d.startPlayback(ctx, p)
	case "pause":
		if err := d.playback.Pause(ctx); err != nil {
			return Outcome{Success: false, Message: fmt.Sprintf("Could not pause playback. %v", err)}
		}
		return Outcome{Success: true, Message: "Playback paused."}
	case "skip":
		if err := d.playback.Skip(ctx, 1); err != nil {
			return Outcome{Success: false, Message: fmt.Sprintf("Could not skip the track. %v", err)}
		}
		return Outcome{Success: true, Message: "Skipped to the next track."}
	case "get":
		track, err := d.playback.NowPlaying(ctx)
		if err != nil {
			return Outcome{Success: false, Message: fmt.Sprintf("Could not check what's playing. %v", err)}
		}
		if track == nil || track.Title == "" {
			return Outcome{Success: true, Message: "Nothing is playing right now."}
		}
		return Outcome{Success: true, Message: fmt.Sprintf("Currently playing '%s'.", track)}
	default:
		return Outcome{Success: false, Message: fmt.Sprintf("I can't do '%s' with the music player.", p.Action)}
	}
}

// startPlayback searches for the single best match and plays it only if
// something playable came back. A miss is a clean "not found", not a
// failure of the dispatch itself.
func (d *Dispatcher) startPlayback(ctx context.Context, p slots.PlaybackParams) Outcome {
	track, err := d.playback.SearchTrack(ctx, p.SongTitle, p.ArtistName)
	if err != nil {
		return Outcome{Success: false, Message: fmt.Sprintf("Could not search for the song. %v", err)}
	}
	if track == nil || track.URI == "" {
		return Outcome{Success: false, Message: fmt.Sprintf("Sorry, I couldn't find %s to play.", describeTarget(p))}
	}
	if err := d.playback.Play(ctx, track.URI); err != nil {
		return Outcome{Success: false, Message: fmt.Sprintf("I found '%s' but could not start playback. %v", track, err)}
	}
	return Outcome{Success: true, Message: fmt.Sprintf("Now playing '%s'.", track)}
}

func describeTarget(p slots.PlaybackParams) string {
	switch {
	case p.SongTitle != "" && p.ArtistName != "":
		return fmt.Sprintf("'%s' by %s", p.SongTitle, p.ArtistName)
	case p.SongTitle != "":
		return fmt.Sprintf("'%s'", p.SongTitle)
	case p.ArtistName != "":
		return fmt.Sprintf("a song by %s", p.ArtistName)
	default:
		return "that song"
	}
}

// ===== MESSAGING =====

func (d *Dispatcher) dispatchSend(ctx context.Context, p slots.SendParams) Outcome {
	if d.messaging == nil {
		return Outcome{Success: false, Message: "Messaging is not set up right now."}
	}
	if err := d.messaging.Send(ctx, p.To, p.Subject, p.Body); err != nil {
		return Outcome{Success: false, Message: fmt.Sprintf("Could not send the message. %v", err)}
	}
	return Outcome{
		Success: true,
		Message: fmt.Sprintf("Message sent to %s with subject '%s'.", strings.Join(p.To, ", "), p.Subject),
	}
}

func (d *Dispatcher) dispatchSearch(ctx context.Context, p slots.SearchParams) (Outcome, string) {
	if d.messaging == nil {
		return Outcome{Success: false, Message: "Messaging is not set up right now."}, ""
	}
	summaries, err := d.messaging.Search(ctx, p.Query, 10)
	if err != nil {
		return Outcome{Success: false, Message: fmt.Sprintf("Could not search your messages. %v", err)}, ""
	}
	if len(summaries) == 0 {
		return Outcome{Success: true, Message: "No messages matched that search."}, ""
	}

	listing := RenderSearchContext(summaries)
	outcome := Outcome{
		Success: true,
		Message: fmt.Sprintf("Found %d message(s):\n%s", len(summaries), listing),
	}
	return outcome, listing
}

func (d *Dispatcher) dispatchRead(ctx context.Context, p slots.ReadParams) Outcome {
	if d.messaging == nil {
		return Outcome{Success: false, Message: "Messaging is not set up right now."}
	}
	detail, err := d.messaging.Read(ctx, p.MessageID)
	if err != nil {
		return Outcome{Success: false, Message: fmt.Sprintf("Could not read that message. %v", err)}
	}

	body := strings.TrimSpace(detail.Body)
	if len(body) > maxBodyExcerpt {
		body = body[:maxBodyExcerpt] + "..."
	}
	msg := fmt.Sprintf("From: %s\nSubject: %s\nDate: %s\n\n%s", detail.From, detail.Subject, detail.Date, body)
	return Outcome{Success: true, Message: msg}
}

// maxBodyExcerpt bounds how much of a message body the outcome carries.
const maxBodyExcerpt = 500

// RenderSearchContext renders search hits as a numbered list. The read
// prompt expects exactly this layout when resolving "read the second one".
func RenderSearchContext(summaries []MessageSummary) string {
	lines := make([]string, 0, len(summaries))
	for i, s := range summaries {
		lines = append(lines, fmt.Sprintf("%d. ID: %s, Subject: '%s', From: %s", i+1, s.ID, s.Subject, s.From))
	}
	return strings.Join(lines, "\n")
}
