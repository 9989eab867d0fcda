// Package server exposes the dialogue engine over HTTP. One request is
// one turn; conversation state lives in the store (transcripts) plus a
// small per-session carry for message search listings.
package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"parley/internal/dialogue"
	"parley/internal/store"
)

// historyLimit caps how much transcript is replayed into a turn.
const historyLimit = 20

// Options configures a Server.
type Options struct {
	Engine *dialogue.Engine
	Store  store.Store
	Logger *zap.Logger
	// TurnTimeout bounds one turn end to end. Zero means no bound
	// beyond the request context.
	TurnTimeout time.Duration
}

// Server handles the HTTP API. Safe for concurrent use; each request
// builds its own turn state.
type Server struct {
	engine      *dialogue.Engine
	store       store.Store
	log         *zap.Logger
	turnTimeout time.Duration

	mu sync.Mutex
	// search listings carried between turns, keyed by session UUID.
	contexts map[string]string
}

// New builds a Server over an engine and its store.
func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("server: engine is required")
	}
	if opts.Store == nil {
		return nil, errors.New("server: store is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		engine:      opts.Engine,
		store:       opts.Store,
		log:         log,
		turnTimeout: opts.TurnTimeout,
		contexts:    make(map[string]string),
	}, nil
}

// Router returns the configured route tree. The caller owns the
// http.Server wrapped around it.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.Use(s.recoverPanics)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	v1.HandleFunc("/users/{user}/turns", s.handleTurn).Methods(http.MethodPost)
	v1.HandleFunc("/users/{user}/entities", s.handleListEntities).Methods(http.MethodGet)
	v1.HandleFunc("/users/{user}/profile", s.handleGetProfile).Methods(http.MethodGet)
	v1.HandleFunc("/users/{user}/profile", s.handleUpdateProfile).Methods(http.MethodPut)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no such route")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// searchContext returns the carried search listing for a session.
func (s *Server) searchContext(sessionUUID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contexts[sessionUUID]
}

// setSearchContext stores the listing a turn produced. An ended session
// is forgotten entirely.
func (s *Server) setSearchContext(sessionUUID, listing string, ended bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ended {
		delete(s.contexts, sessionUUID)
		return
	}
	s.contexts[sessionUUID] = listing
}
