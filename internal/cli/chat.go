package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/soyeahso/rentdesk/internal/domain"
	"github.com/soyeahso/rentdesk/internal/session"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var (
		sessionID string
		userID    string
		token     string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send one message through the orchestrator and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// A one-shot chat never touches shared session or history state.
			a, err := newApp(ctx, cfg, log, appOptions{memoryOnly: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if token != "" {
				if err := a.sessions.SetToken(ctx, token, userID, sessionID, session.TokenOptions{}); err != nil {
					return err
				}
			}

			resp := a.orchestrator.Chat(ctx, domain.ChatRequest{
				Message:   message,
				UserID:    userID,
				SessionID: sessionID,
			})
			if err := printChat(cmd.OutOrStdout(), cmd.ErrOrStderr(), resp, asJSON); err != nil {
				return err
			}
			if !resp.Success {
				return errors.New(resp.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id (default \"default\")")
	cmd.Flags().StringVar(&userID, "user", "", "user id forwarded to tools")
	cmd.Flags().StringVar(&token, "token", "", "bearer token to authenticate tool calls")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")

	return cmd
}

// printChat writes the answer to out and a tool summary to errOut.
func printChat(out, errOut io.Writer, resp domain.ChatResponse, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	fmt.Fprintln(out, resp.Response)
	if len(resp.ToolResults) > 0 {
		fmt.Fprintln(errOut)
		for _, r := range resp.ToolResults {
			status := "ok"
			if r.Failed() {
				status = "error: " + r.ErrorMessage
			}
			fmt.Fprintf(errOut, "[tool %s %s]\n", r.Name, status)
		}
	}
	return nil
}
