package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"parley/internal/store"
)

var (
	entitiesUser string
	entitiesType string
)

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "Inspect and manage remembered facts",
}

var entitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's remembered facts",
	RunE:  listEntities,
}

var entitiesShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one fact in full",
	Args:  cobra.ExactArgs(1),
	RunE:  showEntity,
}

var entitiesDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Forget one fact",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteEntity,
}

func init() {
	entitiesListCmd.Flags().StringVarP(&entitiesUser, "user", "u", "guest", "Username")
	entitiesListCmd.Flags().StringVarP(&entitiesType, "type", "t", "", "Filter by entity type")

	entitiesCmd.AddCommand(entitiesListCmd)
	entitiesCmd.AddCommand(entitiesShowCmd)
	entitiesCmd.AddCommand(entitiesDeleteCmd)
}

// openStore opens just the store; entity commands do not need the
// engine or a model client.
func openStore() (store.Store, error) {
	st, err := store.NewSQLiteStore(cfg.Store.DatabasePath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

func listEntities(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	profile, err := st.GetOrCreateUser(ctx, entitiesUser)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	entities, err := st.ListEntities(ctx, profile.ID, store.ListOptions{EntityType: entitiesType})
	if err != nil {
		return fmt.Errorf("failed to list entities: %w", err)
	}

	if len(entities) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No facts stored for %s\n", entitiesUser)
		return nil
	}

	for _, e := range entities {
		details, _ := json.Marshal(e.Details)
		fmt.Fprintf(cmd.OutOrStdout(), "%-6d %-16s %s\n", e.ID, e.EntityType, details)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d fact(s)\n", len(entities))
	return nil
}

func showEntity(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid entity id %q", args[0])
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	e, err := st.GetEntity(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to load entity %d: %w", id, err)
	}

	details, err := json.MarshalIndent(e.Details, "", "  ")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:      %d\n", e.ID)
	fmt.Fprintf(out, "Type:    %s\n", e.EntityType)
	fmt.Fprintf(out, "Created: %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Updated: %s\n", e.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Details:\n%s\n", details)
	return nil
}

func deleteEntity(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid entity id %q", args[0])
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteEntity(cmd.Context(), id); err != nil {
		return fmt.Errorf("failed to delete entity %d: %w", id, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted entity %d\n", id)
	return nil
}
