package facts

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"parley/internal/store"
)

// FoldIntoProfile folds one extracted profile-shaped fact into the user's
// profile row, keeping the profile summary current for later turns.
// Non-profile types and facts that add nothing new are a no-op. List
// appends deduplicate case-insensitively. Returns true when a field
// changed.
func (r *Resolver) FoldIntoProfile(ctx context.Context, userID int64, entityType string, details map[string]any) (bool, error) {
	if !IsProfileType(entityType) || len(details) == 0 {
		return false, nil
	}
	profile, err := r.store.GetProfile(ctx, userID)
	if err != nil {
		return false, err
	}

	var update store.ProfileUpdate
	changed := false
	switch entityType {
	case "personal_info":
		if name := detailString(details, "user_name"); name != "" && name != profile.Username {
			update.Username = &name
			changed = true
		}
		if loc := detailString(details, "location"); loc != "" && loc != profile.Location {
			update.Location = &loc
			changed = true
		}
	case "user_location":
		if loc := firstDetail(details, "location", "city"); loc != "" && loc != profile.Location {
			update.Location = &loc
			changed = true
		}
	case "user_hobby":
		if hobby := detailString(details, "hobby_name"); hobby != "" {
			if appended := appendUnique(profile.Hobbies, hobby); appended != nil {
				update.Hobbies = &appended
				changed = true
			}
		}
	case "user_job":
		if job := firstDetail(details, "job_title", "job_name"); job != "" {
			if appended := appendUnique(profile.Jobs, job); appended != nil {
				update.Jobs = &appended
				changed = true
			}
		}
	case "user_preference_general":
		pref := detailString(details, "preference_value")
		if cat := detailString(details, "preference_category"); cat != "" && pref != "" {
			pref = cat + ": " + pref
		}
		if pref != "" {
			if appended := appendUnique(profile.Preferences, pref); appended != nil {
				update.Preferences = &appended
				changed = true
			}
		}
	}
	if !changed {
		return false, nil
	}

	if _, err := r.store.UpdateProfile(ctx, userID, update); err != nil {
		return false, err
	}
	r.log.Debug("profile updated from extracted fact", zap.String("entity_type", entityType))
	return true, nil
}

// appendUnique returns list plus value, or nil when an equal entry
// already exists.
func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if equalFoldTrim(existing, value) {
			return nil
		}
	}
	out := make([]string, 0, len(list)+1)
	out = append(out, list...)
	return append(out, value)
}

func equalFoldTrim(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func firstDetail(details map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := detailString(details, key); s != "" {
			return s
		}
	}
	return ""
}
