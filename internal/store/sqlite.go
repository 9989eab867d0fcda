package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	log    *zap.Logger
}

const sqliteTimeLayout = "2006-01-02 15:04:05"

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		log.Debug("failed to set busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Debug("failed to set journal_mode=WAL", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		log.Debug("failed to set synchronous=NORMAL", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		log.Debug("failed to set foreign_keys=ON", zap.Error(err))
	}

	s := &SQLiteStore{db: db, dbPath: path, log: log}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug("sqlite store ready", zap.String("path", path))
	return s, nil
}

// initialize creates the required tables.
func (s *SQLiteStore) initialize() error {
	usersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		location TEXT,
		hobbies_json TEXT NOT NULL DEFAULT '[]',
		jobs_json TEXT NOT NULL DEFAULT '[]',
		preferences_json TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
	`

	entitiesTable := `
	CREATE TABLE IF NOT EXISTS user_entities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		entity_type TEXT NOT NULL,
		details_json TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_entities_user ON user_entities(user_id);
	CREATE INDEX IF NOT EXISTS idx_entities_type ON user_entities(entity_type);
	`

	sessionsTable := `
	CREATE TABLE IF NOT EXISTS chat_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		session_uuid TEXT NOT NULL UNIQUE,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON chat_sessions(user_id);
	`

	messagesTable := `
	CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id);
	`

	for _, ddl := range []string{usersTable, entitiesTable, sessionsTable, messagesTable} {
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ===== USERS =====

// GetOrCreateUser returns the profile for username, creating an empty one
// on first sight.
func (s *SQLiteStore) GetOrCreateUser(ctx context.Context, username string) (*Profile, error) {
	profile, err := s.userByUsername(ctx, username)
	if err == nil {
		return profile, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username) VALUES (?)`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	s.log.Info("user created", zap.String("username", username), zap.Int64("id", id))
	return s.GetProfile(ctx, id)
}

// GetProfile loads a profile by id.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, COALESCE(location, ''), hobbies_json, jobs_json, preferences_json, created_at, updated_at
		 FROM users WHERE id = ?`, userID)
	return scanProfile(row)
}

func (s *SQLiteStore) userByUsername(ctx context.Context, username string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, COALESCE(location, ''), hobbies_json, jobs_json, preferences_json, created_at, updated_at
		 FROM users WHERE username = ?`, username)
	return scanProfile(row)
}

func scanProfile(row *sql.Row) (*Profile, error) {
	var p Profile
	var hobbies, jobs, prefs, createdAt, updatedAt string
	err := row.Scan(&p.ID, &p.Username, &p.Location, &hobbies, &jobs, &prefs, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if err := json.Unmarshal([]byte(hobbies), &p.Hobbies); err != nil {
		return nil, fmt.Errorf("corrupt hobbies_json: %w", err)
	}
	if err := json.Unmarshal([]byte(jobs), &p.Jobs); err != nil {
		return nil, fmt.Errorf("corrupt jobs_json: %w", err)
	}
	if err := json.Unmarshal([]byte(prefs), &p.Preferences); err != nil {
		return nil, fmt.Errorf("corrupt preferences_json: %w", err)
	}
	p.CreatedAt, _ = time.Parse(sqliteTimeLayout, createdAt)
	p.UpdatedAt, _ = time.Parse(sqliteTimeLayout, updatedAt)
	return &p, nil
}

// UpdateProfile applies a partial update and returns the fresh profile.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) (*Profile, error) {
	current, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.Username != nil && *update.Username != "" {
		current.Username = *update.Username
	}
	if update.Location != nil {
		current.Location = *update.Location
	}
	if update.Hobbies != nil {
		current.Hobbies = *update.Hobbies
	}
	if update.Jobs != nil {
		current.Jobs = *update.Jobs
	}
	if update.Preferences != nil {
		current.Preferences = *update.Preferences
	}

	hobbies, err := json.Marshal(emptyIfNil(current.Hobbies))
	if err != nil {
		return nil, err
	}
	jobs, err := json.Marshal(emptyIfNil(current.Jobs))
	if err != nil {
		return nil, err
	}
	prefs, err := json.Marshal(emptyIfNil(current.Preferences))
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET username = ?, location = ?, hobbies_json = ?, jobs_json = ?, preferences_json = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		current.Username, current.Location, string(hobbies), string(jobs), string(prefs), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return s.GetProfile(ctx, userID)
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ===== ENTITIES =====

// CreateEntity stores a new entity for the user.
func (s *SQLiteStore) CreateEntity(ctx context.Context, userID int64, entityType string, details map[string]any) (*Entity, error) {
	if details == nil {
		return nil, ErrInvalidDetails
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal details: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user_entities (user_id, entity_type, details_json) VALUES (?, ?, ?)`,
		userID, entityType, string(detailsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create entity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	s.log.Debug("entity created",
		zap.Int64("id", id), zap.Int64("user_id", userID), zap.String("entity_type", entityType))
	return s.GetEntity(ctx, id)
}

// GetEntity loads an entity by id.
func (s *SQLiteStore) GetEntity(ctx context.Context, entityID int64) (*Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, entity_type, details_json, created_at, updated_at
		 FROM user_entities WHERE id = ?`, entityID)

	var e Entity
	var detailsJSON, createdAt, updatedAt string
	err := row.Scan(&e.ID, &e.UserID, &e.EntityType, &detailsJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}
	if err := json.Unmarshal([]byte(detailsJSON), &e.Details); err != nil {
		return nil, fmt.Errorf("corrupt details_json for entity %d: %w", e.ID, err)
	}
	e.CreatedAt, _ = time.Parse(sqliteTimeLayout, createdAt)
	e.UpdatedAt, _ = time.Parse(sqliteTimeLayout, updatedAt)
	return &e, nil
}

// ListEntities returns the user's entities, optionally filtered by type.
func (s *SQLiteStore) ListEntities(ctx context.Context, userID int64, opts ListOptions) ([]*Entity, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT id, user_id, entity_type, details_json, created_at, updated_at
	          FROM user_entities WHERE user_id = ?`
	args := []any{userID}
	if opts.EntityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, opts.EntityType)
	}
	query += ` ORDER BY id LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		var e Entity
		var detailsJSON, createdAt, updatedAt string
		if err := rows.Scan(&e.ID, &e.UserID, &e.EntityType, &detailsJSON, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		if err := json.Unmarshal([]byte(detailsJSON), &e.Details); err != nil {
			return nil, fmt.Errorf("corrupt details_json for entity %d: %w", e.ID, err)
		}
		e.CreatedAt, _ = time.Parse(sqliteTimeLayout, createdAt)
		e.UpdatedAt, _ = time.Parse(sqliteTimeLayout, updatedAt)
		entities = append(entities, &e)
	}
	return entities, rows.Err()
}

// ReplaceDetails overwrites the entity's details wholesale.
func (s *SQLiteStore) ReplaceDetails(ctx context.Context, entityID int64, details map[string]any) (*Entity, error) {
	if details == nil {
		return nil, ErrInvalidDetails
	}
	return s.writeDetails(ctx, entityID, details)
}

// MergeDetails shallow-merges details into the entity's existing details.
func (s *SQLiteStore) MergeDetails(ctx context.Context, entityID int64, details map[string]any) (*Entity, error) {
	if details == nil {
		return nil, ErrInvalidDetails
	}
	current, err := s.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return s.writeDetails(ctx, entityID, mergeDetails(current.Details, details))
}

func (s *SQLiteStore) writeDetails(ctx context.Context, entityID int64, details map[string]any) (*Entity, error) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal details: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_entities SET details_json = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(detailsJSON), entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to update entity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetEntity(ctx, entityID)
}

// DeleteEntity removes an entity.
func (s *SQLiteStore) DeleteEntity(ctx context.Context, entityID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_entities WHERE id = ?`, entityID)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ===== SESSIONS =====

// CreateSession starts a new conversation for the user.
func (s *SQLiteStore) CreateSession(ctx context.Context, userID int64) (*Session, error) {
	sessionUUID := uuid.NewString()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (user_id, session_uuid) VALUES (?, ?)`, userID, sessionUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, session_uuid, started_at FROM chat_sessions WHERE id = ?`, id)
	var sess Session
	var startedAt string
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.UUID, &startedAt); err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	sess.StartedAt, _ = time.Parse(sqliteTimeLayout, startedAt)
	return &sess, nil
}

// SessionByUUID looks up a session by its wire identifier.
func (s *SQLiteStore) SessionByUUID(ctx context.Context, sessionUUID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, session_uuid, started_at FROM chat_sessions WHERE session_uuid = ?`, sessionUUID)
	var sess Session
	var startedAt string
	err := row.Scan(&sess.ID, &sess.UserID, &sess.UUID, &startedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	sess.StartedAt, _ = time.Parse(sqliteTimeLayout, startedAt)
	return &sess, nil
}

// ListSessions returns a user's sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, userID int64) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, session_uuid, started_at FROM chat_sessions WHERE user_id = ? ORDER BY id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		var startedAt string
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.UUID, &startedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.StartedAt, _ = time.Parse(sqliteTimeLayout, startedAt)
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

// AppendMessage records one transcript line.
func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID int64, role, content string) (*Message, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (session_id, role, content) VALUES (?, ?, ?)`,
		sessionID, role, content)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, role, content, created_at FROM chat_messages WHERE id = ?`, id)
	var m Message
	var createdAt string
	if err := row.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}
	m.CreatedAt, _ = time.Parse(sqliteTimeLayout, createdAt)
	return &m, nil
}

// SessionMessages returns the most recent limit messages in chronological
// order.
func (s *SQLiteStore) SessionMessages(ctx context.Context, sessionID int64, limit int) ([]*Message, error) {
	query := `SELECT id, session_id, role, content, created_at FROM chat_messages WHERE session_id = ? ORDER BY id`
	args := []any{sessionID}
	if limit > 0 {
		// Take the tail, not the head.
		query = `SELECT id, session_id, role, content, created_at FROM (
		           SELECT id, session_id, role, content, created_at FROM chat_messages
		           WHERE session_id = ? ORDER BY id DESC LIMIT ?
		         ) ORDER BY id`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.CreatedAt, _ = time.Parse(sqliteTimeLayout, createdAt)
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
