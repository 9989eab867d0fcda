package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"parley/internal/dialogue"
	"parley/internal/store"
)

// ===== WIRE TYPES =====

type turnRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
}

type turnResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"session_id"`
	Exit      bool   `json:"exit"`
	Error     string `json:"error,omitempty"`
}

type entityJSON struct {
	ID         int64          `json:"id"`
	EntityType string         `json:"entity_type"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type profileJSON struct {
	Username    string   `json:"username"`
	Location    string   `json:"location"`
	Hobbies     []string `json:"hobbies"`
	Jobs        []string `json:"jobs"`
	Preferences []string `json:"preferences"`
}

type profileUpdateRequest struct {
	Location    *string   `json:"location"`
	Hobbies     *[]string `json:"hobbies"`
	Jobs        *[]string `json:"jobs"`
	Preferences *[]string `json:"preferences"`
}

func toEntityJSON(e *store.Entity) entityJSON {
	return entityJSON{
		ID:         e.ID,
		EntityType: e.EntityType,
		Details:    e.Details,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

func toProfileJSON(p *store.Profile) profileJSON {
	out := profileJSON{
		Username:    p.Username,
		Location:    p.Location,
		Hobbies:     p.Hobbies,
		Jobs:        p.Jobs,
		Preferences: p.Preferences,
	}
	if out.Hobbies == nil {
		out.Hobbies = []string{}
	}
	if out.Jobs == nil {
		out.Jobs = []string{}
	}
	if out.Preferences == nil {
		out.Preferences = []string{}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ===== TURNS =====

// handleTurn runs one dialogue turn. Users are created on first sight;
// a missing session_id starts a fresh session whose UUID rides back in
// the response.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["user"]

	var in turnRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	ctx := r.Context()
	profile, err := s.store.GetOrCreateUser(ctx, username)
	if err != nil {
		s.log.Error("user lookup failed", zap.String("username", username), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "user lookup failed")
		return
	}

	sess, err := s.resolveSession(ctx, profile.ID, in.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	if err != nil {
		s.log.Error("session setup failed", zap.String("username", username), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "session setup failed")
		return
	}

	history, err := s.loadHistory(ctx, sess.ID)
	if err != nil {
		s.log.Warn("history unavailable, running the turn without it",
			zap.Int64("session_id", sess.ID), zap.Error(err))
	}

	turnCtx := ctx
	if s.turnTimeout > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, s.turnTimeout)
		defer cancel()
	}
	res := s.engine.RunTurn(turnCtx, dialogue.TurnInput{
		Text:          text,
		UserID:        profile.ID,
		Profile:       profile,
		History:       history,
		SearchContext: s.searchContext(sess.UUID),
	})

	reply := res.Reply
	if res.Exit {
		reply = dialogue.Goodbye
	}

	s.persistTurn(ctx, sess.ID, text, reply)
	s.setSearchContext(sess.UUID, res.SearchContext, res.Exit)

	out := turnResponse{Reply: reply, SessionID: sess.UUID, Exit: res.Exit}
	if res.Err != nil {
		out.Error = res.Err.Message
		s.log.Warn("turn finished degraded",
			zap.Int64("session_id", sess.ID),
			zap.String("stage", string(res.Err.Stage)),
			zap.Error(res.Err))
	}
	writeJSON(w, http.StatusOK, out)
}

// resolveSession returns the named session or starts a new one. A
// session belonging to a different user reads as missing.
func (s *Server) resolveSession(ctx context.Context, userID int64, wireID string) (*store.Session, error) {
	if wireID == "" {
		return s.store.CreateSession(ctx, userID)
	}
	sess, err := s.store.SessionByUUID(ctx, wireID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, store.ErrNotFound
	}
	return sess, nil
}

// loadHistory replays the transcript tail as turn history. System lines
// are transcript bookkeeping, not conversation, and are skipped.
func (s *Server) loadHistory(ctx context.Context, sessionID int64) ([]dialogue.Utterance, error) {
	msgs, err := s.store.SessionMessages(ctx, sessionID, historyLimit)
	if err != nil {
		return nil, err
	}
	history := make([]dialogue.Utterance, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case dialogue.RoleUser, dialogue.RoleAssistant:
			history = append(history, dialogue.Utterance{Role: m.Role, Content: m.Content})
		}
	}
	return history, nil
}

// persistTurn appends both transcript lines. The reply was already
// composed, so persistence failures degrade to a warning.
func (s *Server) persistTurn(ctx context.Context, sessionID int64, text, reply string) {
	if _, err := s.store.AppendMessage(ctx, sessionID, dialogue.RoleUser, text); err != nil {
		s.log.Warn("user line not persisted", zap.Int64("session_id", sessionID), zap.Error(err))
	}
	if reply == "" {
		return
	}
	if _, err := s.store.AppendMessage(ctx, sessionID, dialogue.RoleAssistant, reply); err != nil {
		s.log.Warn("assistant line not persisted", zap.Int64("session_id", sessionID), zap.Error(err))
	}
}

// ===== ENTITIES =====

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["user"]
	profile, err := s.store.GetOrCreateUser(r.Context(), username)
	if err != nil {
		s.log.Error("user lookup failed", zap.String("username", username), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "user lookup failed")
		return
	}

	opts := store.ListOptions{EntityType: r.URL.Query().Get("type")}
	if opts.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	if opts.Offset, err = queryInt(r, "offset"); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be an integer")
		return
	}

	entities, err := s.store.ListEntities(r.Context(), profile.ID, opts)
	if err != nil {
		s.log.Error("entity listing failed", zap.Int64("user_id", profile.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "entity listing failed")
		return
	}

	out := struct {
		Entities []entityJSON `json:"entities"`
		Count    int          `json:"count"`
	}{Entities: make([]entityJSON, 0, len(entities)), Count: len(entities)}
	for _, e := range entities {
		out.Entities = append(out.Entities, toEntityJSON(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// ===== PROFILE =====

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["user"]
	profile, err := s.store.GetOrCreateUser(r.Context(), username)
	if err != nil {
		s.log.Error("user lookup failed", zap.String("username", username), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "user lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, toProfileJSON(profile))
}

// handleUpdateProfile applies a partial update. Absent fields are left
// untouched; an explicit empty value clears the field. The username is
// the path identity and cannot be changed here.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["user"]

	var in profileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	profile, err := s.store.GetOrCreateUser(r.Context(), username)
	if err != nil {
		s.log.Error("user lookup failed", zap.String("username", username), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "user lookup failed")
		return
	}

	updated, err := s.store.UpdateProfile(r.Context(), profile.ID, store.ProfileUpdate{
		Location:    in.Location,
		Hobbies:     in.Hobbies,
		Jobs:        in.Jobs,
		Preferences: in.Preferences,
	})
	if err != nil {
		s.log.Error("profile update failed", zap.Int64("user_id", profile.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "profile update failed")
		return
	}
	writeJSON(w, http.StatusOK, toProfileJSON(updated))
}

// ===== HEALTH =====

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
