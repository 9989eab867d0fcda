package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store entirely in memory. It backs ephemeral
// runs and tests; nothing survives the process.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[int64]*Profile
	usersByName  map[string]int64
	entities     map[int64]*Entity
	sessions     map[int64]*Session
	messages     map[int64][]*Message
	nextUserID   int64
	nextEntityID int64
	nextSessID   int64
	nextMsgID    int64
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[int64]*Profile),
		usersByName: make(map[string]int64),
		entities:    make(map[int64]*Entity),
		sessions:    make(map[int64]*Session),
		messages:    make(map[int64][]*Message),
	}
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// GetOrCreateUser returns the profile for username, creating an empty one
// on first sight.
func (s *MemoryStore) GetOrCreateUser(ctx context.Context, username string) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.usersByName[username]; ok {
		return copyProfile(s.users[id]), nil
	}

	s.nextUserID++
	now := time.Now().UTC()
	p := &Profile{
		ID:        s.nextUserID,
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[p.ID] = p
	s.usersByName[username] = p.ID
	return copyProfile(p), nil
}

// GetProfile loads a profile by id.
func (s *MemoryStore) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyProfile(p), nil
}

// UpdateProfile applies a partial update.
func (s *MemoryStore) UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Username != nil && *update.Username != "" && *update.Username != p.Username {
		if _, taken := s.usersByName[*update.Username]; taken {
			return nil, fmt.Errorf("username %q already in use", *update.Username)
		}
		delete(s.usersByName, p.Username)
		p.Username = *update.Username
		s.usersByName[p.Username] = p.ID
	}
	if update.Location != nil {
		p.Location = *update.Location
	}
	if update.Hobbies != nil {
		p.Hobbies = append([]string(nil), *update.Hobbies...)
	}
	if update.Jobs != nil {
		p.Jobs = append([]string(nil), *update.Jobs...)
	}
	if update.Preferences != nil {
		p.Preferences = append([]string(nil), *update.Preferences...)
	}
	p.UpdatedAt = time.Now().UTC()
	return copyProfile(p), nil
}

// CreateEntity stores a new entity for the user.
func (s *MemoryStore) CreateEntity(ctx context.Context, userID int64, entityType string, details map[string]any) (*Entity, error) {
	if details == nil {
		return nil, ErrInvalidDetails
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEntityID++
	now := time.Now().UTC()
	e := &Entity{
		ID:         s.nextEntityID,
		UserID:     userID,
		EntityType: entityType,
		Details:    copyDetails(details),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.entities[e.ID] = e
	return copyEntity(e), nil
}

// GetEntity loads an entity by id.
func (s *MemoryStore) GetEntity(ctx context.Context, entityID int64) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[entityID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyEntity(e), nil
}

// ListEntities returns the user's entities, optionally filtered by type.
func (s *MemoryStore) ListEntities(ctx context.Context, userID int64, opts ListOptions) ([]*Entity, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for id, e := range s.entities {
		if e.UserID != userID {
			continue
		}
		if opts.EntityType != "" && e.EntityType != opts.EntityType {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []*Entity
	for i, id := range ids {
		if i < opts.Offset {
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, copyEntity(s.entities[id]))
	}
	return out, nil
}

// ReplaceDetails overwrites the entity's details wholesale.
func (s *MemoryStore) ReplaceDetails(ctx context.Context, entityID int64, details map[string]any) (*Entity, error) {
	if details == nil {
		return nil, ErrInvalidDetails
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[entityID]
	if !ok {
		return nil, ErrNotFound
	}
	e.Details = copyDetails(details)
	e.UpdatedAt = time.Now().UTC()
	return copyEntity(e), nil
}

// MergeDetails shallow-merges details into the entity's existing details.
func (s *MemoryStore) MergeDetails(ctx context.Context, entityID int64, details map[string]any) (*Entity, error) {
	if details == nil {
		return nil, ErrInvalidDetails
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[entityID]
	if !ok {
		return nil, ErrNotFound
	}
	e.Details = mergeDetails(e.Details, details)
	e.UpdatedAt = time.Now().UTC()
	return copyEntity(e), nil
}

// DeleteEntity removes an entity.
func (s *MemoryStore) DeleteEntity(ctx context.Context, entityID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[entityID]; !ok {
		return ErrNotFound
	}
	delete(s.entities, entityID)
	return nil
}

// CreateSession starts a new conversation for the user.
func (s *MemoryStore) CreateSession(ctx context.Context, userID int64) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSessID++
	sess := &Session{
		ID:        s.nextSessID,
		UserID:    userID,
		UUID:      uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	s.sessions[sess.ID] = sess
	out := *sess
	return &out, nil
}

// SessionByUUID looks up a session by its wire identifier.
func (s *MemoryStore) SessionByUUID(ctx context.Context, sessionUUID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		if sess.UUID == sessionUUID {
			out := *sess
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// ListSessions returns a user's sessions, newest first.
func (s *MemoryStore) ListSessions(ctx context.Context, userID int64) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []*Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out := *sess
			sessions = append(sessions, &out)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID > sessions[j].ID })
	return sessions, nil
}

// AppendMessage records one transcript line.
func (s *MemoryStore) AppendMessage(ctx context.Context, sessionID int64, role, content string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMsgID++
	m := &Message{
		ID:        s.nextMsgID,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	s.messages[sessionID] = append(s.messages[sessionID], m)
	out := *m
	return &out, nil
}

// SessionMessages returns the most recent limit messages in chronological
// order.
func (s *MemoryStore) SessionMessages(ctx context.Context, sessionID int64, limit int) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.messages[sessionID]
	start := 0
	if limit > 0 && len(all) > limit {
		start = len(all) - limit
	}
	out := make([]*Message, 0, len(all)-start)
	for _, m := range all[start:] {
		copied := *m
		out = append(out, &copied)
	}
	return out, nil
}

func copyProfile(p *Profile) *Profile {
	out := *p
	out.Hobbies = append([]string(nil), p.Hobbies...)
	out.Jobs = append([]string(nil), p.Jobs...)
	out.Preferences = append([]string(nil), p.Preferences...)
	return &out
}

func copyEntity(e *Entity) *Entity {
	out := *e
	out.Details = copyDetails(e.Details)
	return &out
}

func copyDetails(details map[string]any) map[string]any {
	out := make(map[string]any, len(details))
	for k, v := range details {
		out[k] = v
	}
	return out
}
