// Package slots turns user text into validated tool parameter sets.
//
// Extraction is per turn and stateless: nothing partial is remembered
// between turns. When a multi-field action is still missing a required
// field, the manager returns the follow-up question to ask instead of a
// parameter set, checking fields in a fixed priority order so the
// conversation converges one answer at a time. The conversation history
// carried in later prompts is what lets the model merge slots answered
// on earlier turns.
package slots

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"parley/internal/extract"
	"parley/internal/llm"
	"parley/internal/prompts"
)

// Kind names a tool capability.
type Kind string

const (
	KindPlayback Kind = "playback"
	KindSend     Kind = "send_message"
	KindSearch   Kind = "search_messages"
	KindRead     Kind = "read_message"
)

// ParamSet is a complete, validated parameter set for one tool kind.
// Only the dispatcher consumes these.
type ParamSet interface {
	Kind() Kind
}

// PlaybackParams drive the playback tool. Action is one of start, pause,
// skip, get. SongTitle and ArtistName describe the target for start.
type PlaybackParams struct {
	Action     string
	SongTitle  string
	ArtistName string
}

func (PlaybackParams) Kind() Kind { return KindPlayback }

// SendParams describe an outbound message.
type SendParams struct {
	To      []string
	Subject string
	Body    string
}

func (SendParams) Kind() Kind { return KindSend }

// SearchParams hold a mailbox search query.
type SearchParams struct {
	Query string
}

func (SearchParams) Kind() Kind { return KindSearch }

// ReadParams identify one message to read.
type ReadParams struct {
	MessageID string
}

func (ReadParams) Kind() Kind { return KindRead }

// Result is one extraction attempt. Either Params is set and the action
// can be dispatched, or Question carries the follow-up to ask for the
// first missing required field, named by Missing.
type Result struct {
	Params   ParamSet
	Question string
	Missing  string
}

// Complete reports whether the set is ready for dispatch.
func (r *Result) Complete() bool { return r.Params != nil }

// Manager extracts tool parameters through per-kind prompts.
type Manager struct {
	client llm.Client
	lib    *prompts.Library
	ext    *extract.Extractor
	log    *zap.Logger
}

// NewManager builds a Manager. A nil logger disables logging.
func NewManager(client llm.Client, lib *prompts.Library, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{client: client, lib: lib, ext: extract.New(log), log: log}
}

// Extract runs the parameter prompt for kind over input and validates
// the decoded object. searchContext carries the numbered results of a
// prior message search so positional references resolve; only the read
// kind uses it.
func (m *Manager) Extract(ctx context.Context, kind Kind, input, searchContext string) (*Result, error) {
	switch kind {
	case KindPlayback:
		return m.extractPlayback(ctx, input)
	case KindSend:
		return m.extractSend(ctx, input)
	case KindSearch:
		return m.extractSearch(ctx, input)
	case KindRead:
		return m.extractRead(ctx, input, searchContext)
	default:
		return nil, fmt.Errorf("unknown tool kind %q", kind)
	}
}

func (m *Manager) completeObject(ctx context.Context, name string, vars map[string]string, schema extract.Schema) (map[string]any, error) {
	raw, err := m.client.Complete(ctx, m.lib.Render(name, vars))
	if err != nil {
		return nil, fmt.Errorf("parameter extraction call failed: %w", err)
	}
	res, err := m.ext.Extract(raw, schema)
	if err != nil {
		return nil, err
	}
	return res.Object, nil
}

// ===== PLAYBACK =====

var playbackSchema = extract.Schema{
	Required: []extract.Field{
		{Key: "action", Kind: extract.KindString},
	},
	Optional: []extract.Field{
		{Key: "song_title", Kind: extract.KindString},
		{Key: "artist_name", Kind: extract.KindString},
	},
}

var playbackActions = map[string]struct{}{
	"start": {},
	"pause": {},
	"skip":  {},
	"get":   {},
}

func (m *Manager) extractPlayback(ctx context.Context, input string) (*Result, error) {
	obj, err := m.completeObject(ctx, prompts.NamePlayback, map[string]string{"input": input}, playbackSchema)
	if err != nil {
		return nil, err
	}
	p := PlaybackParams{
		Action:     strings.ToLower(extract.StringField(obj, "action")),
		SongTitle:  extract.StringField(obj, "song_title"),
		ArtistName: extract.StringField(obj, "artist_name"),
	}
	if _, ok := playbackActions[p.Action]; !ok {
		return nil, fmt.Errorf("unsupported playback action %q", p.Action)
	}
	if p.Action == "start" && p.SongTitle == "" && p.ArtistName == "" {
		return &Result{
			Missing:  "target",
			Question: "What would you like me to play? A song, an artist, or even just a mood works.",
		}, nil
	}
	return &Result{Params: p}, nil
}

// ===== SEND =====

var sendSchema = extract.Schema{
	Optional: []extract.Field{
		{Key: "to", Kind: extract.KindList},
		{Key: "subject", Kind: extract.KindString},
		{Key: "body", Kind: extract.KindString},
	},
}

// Send fields in the order they should be asked for.
var sendFields = []struct {
	name     string
	question string
}{
	{"recipient", "Who would you like to send the message to?"},
	{"subject", "What should the subject line be?"},
	{"body", "What would you like the message to say?"},
}

func (m *Manager) extractSend(ctx context.Context, input string) (*Result, error) {
	obj, err := m.completeObject(ctx, prompts.NameSend, map[string]string{"input": input}, sendSchema)
	if err != nil {
		return nil, err
	}
	p := SendParams{
		To:      extract.StringList(obj, "to"),
		Subject: extract.StringField(obj, "subject"),
		Body:    extract.StringField(obj, "body"),
	}
	for _, f := range sendFields {
		var missing bool
		switch f.name {
		case "recipient":
			missing = len(p.To) == 0
		case "subject":
			missing = p.Subject == ""
		case "body":
			missing = p.Body == ""
		}
		if missing {
			m.log.Debug("send parameters incomplete", zap.String("missing", f.name))
			return &Result{Missing: f.name, Question: f.question}, nil
		}
	}
	return &Result{Params: p}, nil
}

// ===== SEARCH =====

var searchSchema = extract.Schema{
	Optional: []extract.Field{
		{Key: "query", Kind: extract.KindString},
	},
}

func (m *Manager) extractSearch(ctx context.Context, input string) (*Result, error) {
	obj, err := m.completeObject(ctx, prompts.NameSearch, map[string]string{"input": input}, searchSchema)
	if err != nil {
		return nil, err
	}
	query := extract.StringField(obj, "query")
	if query == "" {
		return &Result{
			Missing:  "query",
			Question: "What should I look for in your messages?",
		}, nil
	}
	return &Result{Params: SearchParams{Query: query}}, nil
}

// ===== READ =====

var readSchema = extract.Schema{
	Optional: []extract.Field{
		{Key: "message_id", Kind: extract.KindString},
	},
}

// noSearchContext stands in when no prior search results are available to
// reference by position.
const noSearchContext = "No recent message search results available to reference by position."

func (m *Manager) extractRead(ctx context.Context, input, searchContext string) (*Result, error) {
	if strings.TrimSpace(searchContext) == "" {
		searchContext = noSearchContext
	}
	obj, err := m.completeObject(ctx, prompts.NameRead, map[string]string{
		"input":          input,
		"search_context": searchContext,
	}, readSchema)
	if err != nil {
		return nil, err
	}
	id := extract.StringField(obj, "message_id")
	if id == "" {
		return &Result{
			Missing:  "message_id",
			Question: "Which message would you like me to read? You can give me its number from the last search, or its ID.",
		}, nil
	}
	return &Result{Params: ReadParams{MessageID: id}}, nil
}
