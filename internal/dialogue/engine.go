package dialogue

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"parley/internal/extract"
	"parley/internal/facts"
	"parley/internal/llm"
	"parley/internal/prompts"
	"parley/internal/slots"
	"parley/internal/store"
	"parley/internal/tools"
)

// Options configures an Engine. Client and Store are required; a nil
// Dispatcher means no tool capability is configured.
type Options struct {
	Client        llm.Client
	Store         store.Store
	Dispatcher    *tools.Dispatcher
	Prompts       *prompts.Library
	AssistantName string
	Style         string
	Logger        *zap.Logger
	Now           func() time.Time
}

// Engine sequences one conversational turn end to end: route, run the
// chosen path, compose. Safe for concurrent turns of different users.
type Engine struct {
	client     llm.Client
	store      store.Store
	dispatcher *tools.Dispatcher
	lib        *prompts.Library
	router     *Router
	ext        *extract.Extractor
	resolver   *facts.Resolver
	slots      *slots.Manager
	composer   *Composer
	log        *zap.Logger
	now        func() time.Time
}

// NewEngine wires the turn collaborators together.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Client == nil {
		return nil, errors.New("dialogue: llm client is required")
	}
	if opts.Store == nil {
		return nil, errors.New("dialogue: store is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	lib := opts.Prompts
	if lib == nil {
		lib = prompts.NewLibrary("", log)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	name := opts.AssistantName
	if name == "" {
		name = "Parley"
	}

	return &Engine{
		client:     opts.Client,
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		lib:        lib,
		router:     NewRouter(opts.Client, lib, log.Named("router")),
		ext:        extract.New(log.Named("extract")),
		resolver:   facts.NewResolver(opts.Store, log.Named("facts")),
		slots:      slots.NewManager(opts.Client, lib, log.Named("slots")),
		composer:   NewComposer(opts.Client, lib, name, opts.Style, log.Named("composer")),
		log:        log,
		now:        now,
	}, nil
}

// RunTurn processes one user turn to completion. It never returns an
// unhandled fault: the worst case is a generic apology reply with Err
// set for the caller to log.
func (e *Engine) RunTurn(ctx context.Context, in TurnInput) *TurnResult {
	st := &TurnState{
		Input:         strings.TrimSpace(in.Text),
		UserID:        in.UserID,
		Profile:       in.Profile,
		History:       in.History,
		SearchContext: in.SearchContext,
	}
	if st.Profile == nil {
		profile, err := e.store.GetProfile(ctx, in.UserID)
		if err != nil {
			e.log.Warn("profile unavailable for turn", zap.Int64("user_id", in.UserID), zap.Error(err))
		} else {
			st.Profile = profile
		}
	}

	e.route(ctx, st)
	e.log.Info("turn routed",
		zap.Int64("user_id", st.UserID),
		zap.String("decision", string(st.Decision)))

	switch st.Decision {
	case DecisionExit:
		return &TurnResult{
			History:       appendHistory(st.History, Utterance{Role: RoleUser, Content: st.Input}),
			SearchContext: st.SearchContext,
			Exit:          true,
		}
	case DecisionExtractFacts:
		e.runExtraction(ctx, st)
	case DecisionQueryFacts:
		e.runQuery(ctx, st)
	case DecisionPlayback, DecisionSend, DecisionSearch, DecisionRead:
		e.runTool(ctx, st)
	}

	e.composer.Compose(ctx, st)

	history := appendHistory(st.History, Utterance{Role: RoleUser, Content: st.Input})
	if st.Reply != "" {
		history = append(history, Utterance{Role: RoleAssistant, Content: st.Reply})
	}
	return &TurnResult{
		Reply:         st.Reply,
		History:       history,
		SearchContext: st.SearchContext,
		Err:           st.Err,
	}
}

// route sets the turn's decision and drops stale query results: facts
// retrieved under an earlier decision never leak into an unrelated turn.
func (e *Engine) route(ctx context.Context, st *TurnState) {
	decision, terr := e.router.Route(ctx, st.Input, st.Profile)
	st.Decision = decision
	if terr != nil {
		st.Err = terr
	}
	if decision != DecisionQueryFacts {
		st.Facts = nil
	}
}
