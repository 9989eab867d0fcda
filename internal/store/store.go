// Package store persists user profiles, schema-free entities, and chat
// transcripts. It is a plain CRUD layer: interpretation of entity details
// belongs to the callers, never here.
package store

import (
	"context"
	"errors"
	"time"
)

// Entity is one remembered fact about a user. EntityType is an open
// vocabulary chosen at extraction time; Details carries whatever
// attributes were extracted, as free-form JSON.
type Entity struct {
	ID         int64
	UserID     int64
	EntityType string
	Details    map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Profile holds the stable top-level attributes of a user.
type Profile struct {
	ID          int64
	Username    string
	Location    string
	Hobbies     []string
	Jobs        []string
	Preferences []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProfileUpdate applies partial changes to a profile. Nil fields are left
// untouched; a pointer to an empty value clears the field. Username must
// stay unique across users.
type ProfileUpdate struct {
	Username    *string
	Location    *string
	Hobbies     *[]string
	Jobs        *[]string
	Preferences *[]string
}

// Session is one conversation.
type Session struct {
	ID        int64
	UserID    int64
	UUID      string
	StartedAt time.Time
}

// Message is one transcript line within a session.
type Message struct {
	ID        int64
	SessionID int64
	Role      string // user, assistant, system
	Content   string
	CreatedAt time.Time
}

// ListOptions filters and pages entity listings.
type ListOptions struct {
	EntityType string // empty matches every type
	Limit      int    // <= 0 means the default page size
	Offset     int
}

// DefaultListLimit caps unpaged entity listings.
const DefaultListLimit = 100

var (
	// ErrNotFound reports a missing row.
	ErrNotFound = errors.New("not found")
	// ErrInvalidDetails reports entity details that are not an object.
	ErrInvalidDetails = errors.New("entity details must be an object")
)

// Store is the persistence surface the engine depends on.
type Store interface {
	// GetOrCreateUser returns the profile for username, creating an
	// empty one on first sight.
	GetOrCreateUser(ctx context.Context, username string) (*Profile, error)
	GetProfile(ctx context.Context, userID int64) (*Profile, error)
	UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) (*Profile, error)

	// CreateEntity stores a new entity. Details must be a non-nil map.
	CreateEntity(ctx context.Context, userID int64, entityType string, details map[string]any) (*Entity, error)
	GetEntity(ctx context.Context, entityID int64) (*Entity, error)
	ListEntities(ctx context.Context, userID int64, opts ListOptions) ([]*Entity, error)
	// ReplaceDetails overwrites an entity's details wholesale.
	ReplaceDetails(ctx context.Context, entityID int64, details map[string]any) (*Entity, error)
	// MergeDetails shallow-merges details into the entity: top-level
	// keys present in details overwrite, every other key is preserved.
	MergeDetails(ctx context.Context, entityID int64, details map[string]any) (*Entity, error)
	DeleteEntity(ctx context.Context, entityID int64) error

	CreateSession(ctx context.Context, userID int64) (*Session, error)
	// SessionByUUID looks up a session by its wire identifier.
	SessionByUUID(ctx context.Context, uuid string) (*Session, error)
	// ListSessions returns a user's sessions, newest first.
	ListSessions(ctx context.Context, userID int64) ([]*Session, error)
	AppendMessage(ctx context.Context, sessionID int64, role, content string) (*Message, error)
	// SessionMessages returns the most recent limit messages in
	// chronological order. limit <= 0 returns all of them.
	SessionMessages(ctx context.Context, sessionID int64, limit int) ([]*Message, error)

	Close() error
}

// mergeDetails is the single shallow-merge implementation shared by both
// backends so they cannot drift.
func mergeDetails(current, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(current)+len(incoming))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}
