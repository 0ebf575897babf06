package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loopmarked/dashboard/internal/app"
	"github.com/loopmarked/dashboard/internal/backend"
	"github.com/loopmarked/dashboard/internal/chat"
	"github.com/loopmarked/dashboard/internal/config"
	"github.com/loopmarked/dashboard/internal/console"
	"github.com/loopmarked/dashboard/internal/store"
)

func newChatCmd(root *rootOptions) *cobra.Command {
	var (
		overrides config.Config
		userID    string
		fullName  string
		token     string
		local     bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat from the terminal as a marketplace user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			cfg, logger, err := root.load(overrides)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var be chat.Backend
			if local {
				feed, err := app.OpenFeed(&cfg, logger)
				if err != nil {
					return err
				}
				defer feed.Close()
				if fullName != "" {
					if err := feed.UpsertProfile(ctx, &store.Profile{ID: userID, FullName: fullName}); err != nil {
						return fmt.Errorf("register profile: %w", err)
					}
				}
				be = backend.NewLocal(feed)
			} else {
				if token == "" {
					token, err = backend.RequestDevToken(ctx, cfg.BackendURL, userID, fullName)
					if err != nil {
						return fmt.Errorf("request dev token: %w", err)
					}
				}
				remote, err := backend.NewRemote(cfg.BackendURL, userID, token,
					backend.WithSubscriberBuffer(cfg.SubscriberBuffer),
					backend.WithLogger(logger),
				)
				if err != nil {
					return err
				}
				be = remote
			}

			c := console.New(be, console.Config{UserID: userID, HistoryLimit: cfg.HistoryLimit}, os.Stdout, logger)
			return c.Run(ctx, os.Stdin)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&userID, "user", "", "user id to chat as")
	flags.StringVar(&fullName, "name", "", "display name to register for the user")
	flags.StringVar(&token, "token", "", "bearer token (a dev token is requested when empty)")
	flags.BoolVar(&local, "local", false, "use the SQLite database in process instead of a backend")
	flags.StringVar(&overrides.BackendURL, "backend-url", "", "backend base URL")
	flags.StringVar(&overrides.DatabasePath, "db", "", "SQLite database path for --local")
	flags.IntVar(&overrides.HistoryLimit, "history", 0, "most recent messages loaded when opening a conversation (0 loads all)")
	return cmd
}
