package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"parley/internal/dialogue"
	"parley/internal/store"
)

var (
	turnUser    string
	turnSession string
)

var turnCmd = &cobra.Command{
	Use:   "turn [text]",
	Short: "Run a single turn and print the reply",
	Long: `Runs one conversational turn for a user and prints the reply.

Without --session a new session is started and its ID printed on
stderr; pass that ID to later invocations to keep the conversation
going.

Example:
  parley turn --user margaret "my cat Milo is a tabby"
  parley turn --user margaret "what breed is my cat?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTurn,
}

func init() {
	turnCmd.Flags().StringVarP(&turnUser, "user", "u", "guest", "Username to converse as")
	turnCmd.Flags().StringVar(&turnSession, "session", "", "Session ID to continue")
}

func runTurn(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.GetTurnTimeout())
	defer cancel()

	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	profile, err := rt.store.GetOrCreateUser(ctx, turnUser)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	sess, err := resolveTurnSession(ctx, rt, profile.ID)
	if err != nil {
		return err
	}

	history, err := loadTurnHistory(ctx, rt, sess.ID)
	if err != nil {
		logger.Warn("history unavailable", zap.Int64("session_id", sess.ID), zap.Error(err))
	}

	text := strings.Join(args, " ")
	res := rt.engine.RunTurn(ctx, dialogue.TurnInput{
		Text:    text,
		UserID:  profile.ID,
		Profile: profile,
		History: history,
	})

	reply := res.Reply
	if res.Exit {
		reply = dialogue.Goodbye
	}

	if _, err := rt.store.AppendMessage(ctx, sess.ID, dialogue.RoleUser, text); err != nil {
		logger.Warn("user line not persisted", zap.Error(err))
	}
	if reply != "" {
		if _, err := rt.store.AppendMessage(ctx, sess.ID, dialogue.RoleAssistant, reply); err != nil {
			logger.Warn("assistant line not persisted", zap.Error(err))
		}
	}

	if turnSession == "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", sess.UUID)
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply)

	if res.Err != nil {
		logger.Warn("turn finished degraded",
			zap.String("stage", string(res.Err.Stage)),
			zap.Error(res.Err))
	}
	return nil
}

func resolveTurnSession(ctx context.Context, rt *runtime, userID int64) (*store.Session, error) {
	if turnSession == "" {
		sess, err := rt.store.CreateSession(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to start session: %w", err)
		}
		return sess, nil
	}
	sess, err := rt.store.SessionByUUID(ctx, turnSession)
	if err != nil {
		return nil, fmt.Errorf("unknown session %q: %w", turnSession, err)
	}
	if sess.UserID != userID {
		return nil, fmt.Errorf("session %q belongs to another user", turnSession)
	}
	return sess, nil
}

func loadTurnHistory(ctx context.Context, rt *runtime, sessionID int64) ([]dialogue.Utterance, error) {
	msgs, err := rt.store.SessionMessages(ctx, sessionID, 20)
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
