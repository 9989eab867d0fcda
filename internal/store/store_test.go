package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// forEachStore runs the same conformance checks against both backends.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), nil)
		if err != nil {
			t.Fatalf("NewSQLiteStore: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})

	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
}

func mustUser(t *testing.T, s Store) *Profile {
	t.Helper()
	p, err := s.GetOrCreateUser(context.Background(), "margaret")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	return p
}

func TestGetOrCreateUserIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		first, err := s.GetOrCreateUser(ctx, "margaret")
		if err != nil {
			t.Fatalf("first: %v", err)
		}
		second, err := s.GetOrCreateUser(ctx, "margaret")
		if err != nil {
			t.Fatalf("second: %v", err)
		}
		if first.ID != second.ID {
			t.Errorf("same username made two users: %d vs %d", first.ID, second.ID)
		}
	})
}

func TestUpdateProfilePartial(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		user := mustUser(t, s)

		loc := "Sunnyvale"
		hobbies := []string{"gardening", "reading"}
		updated, err := s.UpdateProfile(ctx, user.ID, ProfileUpdate{
			Location: &loc,
			Hobbies:  &hobbies,
		})
		if err != nil {
			t.Fatalf("UpdateProfile: %v", err)
		}
		if updated.Location != "Sunnyvale" {
			t.Errorf("Location = %q", updated.Location)
		}
		if diff := cmp.Diff(hobbies, updated.Hobbies); diff != "" {
			t.Errorf("Hobbies mismatch:\n%s", diff)
		}

		// Untouched fields survive a later partial update.
		jobs := []string{"retired teacher"}
		updated, err = s.UpdateProfile(ctx, user.ID, ProfileUpdate{Jobs: &jobs})
		if err != nil {
			t.Fatalf("second UpdateProfile: %v", err)
		}
		if updated.Location != "Sunnyvale" {
			t.Error("location lost by unrelated update")
		}
		if len(updated.Hobbies) != 2 {
			t.Error("hobbies lost by unrelated update")
		}
		if diff := cmp.Diff(jobs, updated.Jobs); diff != "" {
			t.Errorf("Jobs mismatch:\n%s", diff)
		}
	})
}

func TestUpdateProfileUsername(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		user := mustUser(t, s)

		name := "sam"
		updated, err := s.UpdateProfile(ctx, user.ID, ProfileUpdate{Username: &name})
		if err != nil {
			t.Fatalf("UpdateProfile: %v", err)
		}
		if updated.Username != "sam" {
			t.Errorf("Username = %q, want sam", updated.Username)
		}

		// The new name now resolves to the same user.
		again, err := s.GetOrCreateUser(ctx, "sam")
		if err != nil {
			t.Fatalf("GetOrCreateUser: %v", err)
		}
		if again.ID != user.ID {
			t.Errorf("renamed user not found by new name: %d vs %d", again.ID, user.ID)
		}
	})
}

func TestUpdateProfileMissingUser(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		loc := "Nowhere"
		_, err := s.UpdateProfile(context.Background(), 9999, ProfileUpdate{Location: &loc})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestCreateEntityRejectsNilDetails(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		user := mustUser(t, s)
		_, err := s.CreateEntity(context.Background(), user.ID, "pet", nil)
		if !errors.Is(err, ErrInvalidDetails) {
			t.Errorf("err = %v, want ErrInvalidDetails", err)
		}
	})
}

func TestMergeDetailsShallow(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		user := mustUser(t, s)

		e, err := s.CreateEntity(ctx, user.ID, "pet", map[string]any{
			"name":  "Buddy",
			"breed": "Golden Retriever",
			"mood":  "calm",
		})
		if err != nil {
			t.Fatalf("CreateEntity: %v", err)
		}

		merged, err := s.MergeDetails(ctx, e.ID, map[string]any{
			"breed":        "Labrador",
			"favorite_toy": "squeaky ball",
		})
		if err != nil {
			t.Fatalf("MergeDetails: %v", err)
		}

		want := map[string]any{
			"name":         "Buddy",
			"breed":        "Labrador",
			"mood":         "calm",
			"favorite_toy": "squeaky ball",
		}
		if diff := cmp.Diff(want, merged.Details); diff != "" {
			t.Errorf("merged details mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestReplaceDetailsDiscardsOldKeys(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		user := mustUser(t, s)

		e, err := s.CreateEntity(ctx, user.ID, "pet", map[string]any{
			"name":  "Buddy",
			"loves": []any{"walks", "treats"},
		})
		if err != nil {
			t.Fatalf("CreateEntity: %v", err)
		}

		replaced, err := s.ReplaceDetails(ctx, e.ID, map[string]any{"name": "Buddy II"})
		if err != nil {
			t.Fatalf("ReplaceDetails: %v", err)
		}
		if _, ok := replaced.Details["loves"]; ok {
			t.Error("replace must discard keys absent from the new details")
		}
		if replaced.Details["name"] != "Buddy II" {
			t.Errorf("name = %v", replaced.Details["name"])
		}
	})
}

func TestListEntitiesFilterAndPaging(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		user := mustUser(t, s)

		for _, item := range []string{"milk", "bread", "eggs"} {
			if _, err := s.CreateEntity(ctx, user.ID, "reminder_shopping", map[string]any{"item_name": item}); err != nil {
				t.Fatalf("CreateEntity: %v", err)
			}
		}
		if _, err := s.CreateEntity(ctx, user.ID, "pet", map[string]any{"name": "Max"}); err != nil {
			t.Fatalf("CreateEntity: %v", err)
		}

		all, err := s.ListEntities(ctx, user.ID, ListOptions{})
		if err != nil {
			t.Fatalf("ListEntities: %v", err)
		}
		if len(all) != 4 {
			t.Errorf("all = %d, want 4", len(all))
		}

		shopping, err := s.ListEntities(ctx, user.ID, ListOptions{EntityType: "reminder_shopping"})
		if err != nil {
			t.Fatalf("ListEntities filtered: %v", err)
		}
		if len(shopping) != 3 {
			t.Errorf("filtered = %d, want 3", len(shopping))
		}

		page, err := s.ListEntities(ctx, user.ID, ListOptions{EntityType: "reminder_shopping", Limit: 2, Offset: 1})
		if err != nil {
			t.Fatalf("ListEntities paged: %v", err)
		}
		if len(page) != 2 {
			t.Fatalf("page = %d, want 2", len(page))
		}
		if page[0].Details["item_name"] != "bread" {
			t.Errorf("page start = %v, want bread", page[0].Details["item_name"])
		}
	})
}

func TestListEntitiesEmptyResult(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		user := mustUser(t, s)
		got, err := s.ListEntities(context.Background(), user.ID, ListOptions{EntityType: "dragon"})
		if err != nil {
			t.Fatalf("ListEntities: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("got %d entities, want 0", len(got))
		}
	})
}

func TestDeleteEntity(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		user := mustUser(t, s)

		e, err := s.CreateEntity(ctx, user.ID, "pet", map[string]any{"name": "Max"})
		if err != nil {
			t.Fatalf("CreateEntity: %v", err)
		}
		if err := s.DeleteEntity(ctx, e.ID); err != nil {
			t.Fatalf("DeleteEntity: %v", err)
		}
		if _, err := s.GetEntity(ctx, e.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetEntity after delete = %v, want ErrNotFound", err)
		}
		if err := s.DeleteEntity(ctx, e.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("second delete = %v, want ErrNotFound", err)
		}
	})
}

func TestSessionTranscript(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		user := mustUser(t, s)

		sess, err := s.CreateSession(ctx, user.ID)
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		if sess.UUID == "" {
			t.Error("session has no uuid")
		}

		turns := []struct{ role, content string }{
			{"user", "hello"},
			{"assistant", "hi there"},
			{"user", "my name is Margaret"},
			{"assistant", "nice to meet you, Margaret"},
		}
		for _, turn := range turns {
			if _, err := s.AppendMessage(ctx, sess.ID, turn.role, turn.content); err != nil {
				t.Fatalf("AppendMessage: %v", err)
			}
		}

		all, err := s.SessionMessages(ctx, sess.ID, 0)
		if err != nil {
			t.Fatalf("SessionMessages: %v", err)
		}
		if len(all) != 4 {
			t.Fatalf("messages = %d, want 4", len(all))
		}
		if all[0].Content != "hello" || all[3].Content != "nice to meet you, Margaret" {
			t.Error("messages out of order")
		}

		tail, err := s.SessionMessages(ctx, sess.ID, 2)
		if err != nil {
			t.Fatalf("SessionMessages tail: %v", err)
		}
		if len(tail) != 2 {
			t.Fatalf("tail = %d, want 2", len(tail))
		}
		if tail[0].Content != "my name is Margaret" {
			t.Errorf("tail starts at %q, want the most recent two in order", tail[0].Content)
		}
	})
}

func TestSessionByUUID(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		user := mustUser(t, s)

		created, err := s.CreateSession(ctx, user.ID)
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}

		found, err := s.SessionByUUID(ctx, created.UUID)
		if err != nil {
			t.Fatalf("SessionByUUID: %v", err)
		}
		if found.ID != created.ID || found.UserID != user.ID {
			t.Errorf("SessionByUUID = %+v, want id %d for user %d", found, created.ID, user.ID)
		}

		if _, err := s.SessionByUUID(ctx, "no-such-session"); !errors.Is(err, ErrNotFound) {
			t.Errorf("unknown uuid = %v, want ErrNotFound", err)
		}
	})
}

func TestListSessionsNewestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		user := mustUser(t, s)

		first, err := s.CreateSession(ctx, user.ID)
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		second, err := s.CreateSession(ctx, user.ID)
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}

		other, err := s.GetOrCreateUser(ctx, "victor")
		if err != nil {
			t.Fatalf("GetOrCreateUser: %v", err)
		}
		if _, err := s.CreateSession(ctx, other.ID); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}

		sessions, err := s.ListSessions(ctx, user.ID)
		if err != nil {
			t.Fatalf("ListSessions: %v", err)
		}
		if len(sessions) != 2 {
			t.Fatalf("len(sessions) = %d, want 2", len(sessions))
		}
		if sessions[0].ID != second.ID || sessions[1].ID != first.ID {
			t.Errorf("session order = %d, %d, want %d, %d",
				sessions[0].ID, sessions[1].ID, second.ID, first.ID)
		}
	})
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	s, err := NewSQLiteStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	user, err := s.GetOrCreateUser(ctx, "margaret")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if _, err := s.CreateEntity(ctx, user.ID, "pet", map[string]any{"name": "Luna"}); err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}
	s.Close()

	reopened, err := NewSQLiteStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	pets, err := reopened.ListEntities(ctx, user.ID, ListOptions{EntityType: "pet"})
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(pets) != 1 || pets[0].Details["name"] != "Luna" {
		t.Errorf("persisted entity not found after reopen: %+v", pets)
	}
}
