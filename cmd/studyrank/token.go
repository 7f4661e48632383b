package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrwolf/studyrank/internal/api"
	"github.com/mrwolf/studyrank/internal/db"
)

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <user_id>",
		Short: "Issue a bearer token for an existing profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			userID := args[0]
			if _, err := a.db.GetProfile(ctx, userID); err != nil {
				if errors.Is(err, db.ErrNotFound) {
					return fmt.Errorf("no profile with id %s", userID)
				}
				return err
			}

			token, err := api.IssueToken([]byte(a.cfg.JWTSecret), userID, a.clock.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
