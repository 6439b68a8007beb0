package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCommand(a *app) *cobra.Command {
	var userID string
	var text string

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Run one message through the completion gateway and print the reply",
		Example: `  relay ask --text "早安"
  relay ask --user U123 --text "今天好累"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(text) == "" && len(args) > 0 {
				text = strings.Join(args, " ")
			}
			if strings.TrimSpace(text) == "" {
				return errors.New("--text is required")
			}

			gateway, err := setupGateway(a.cfg, a.logger)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			reply := gateway.Reply(ctx, userID, text)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, reply.Text)
			fmt.Fprintf(out, "source=%s", reply.Source)
			if reply.ModelID != "" {
				fmt.Fprintf(out, " model=%s", reply.ModelID)
			}
			if reply.Err != nil {
				fmt.Fprintf(out, " cause=%q", reply.Err.Error())
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "cli", "user id whose conversation context is used")
	cmd.Flags().StringVar(&text, "text", "", "message text")
	return cmd
}
