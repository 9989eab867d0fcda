package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"parley/internal/dialogue"
)

var sessionsUser string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List a user's chat sessions",
	Long: `Lists a user's chat sessions, newest first, with the session ID to
pass to 'parley turn --session' and the length of each transcript.`,
	RunE: listSessions,
}

func init() {
	sessionsCmd.Flags().StringVarP(&sessionsUser, "user", "u", "guest", "Username")
}

func listSessions(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	profile, err := st.GetOrCreateUser(ctx, sessionsUser)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	sessions, err := st.ListSessions(ctx, profile.ID)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No sessions for %s\n", sessionsUser)
		return nil
	}

	for _, sess := range sessions {
		lines := 0
		if msgs, err := st.SessionMessages(ctx, sess.ID, 0); err == nil {
			for _, m := range msgs {
				if m.Role == dialogue.RoleUser || m.Role == dialogue.RoleAssistant {
					lines++
				}
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d line(s)\n",
			sess.UUID, sess.StartedAt.Format("2006-01-02 15:04:05"), lines)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d session(s)\n", len(sessions))
	return nil
}
