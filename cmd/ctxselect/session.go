package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/ctxselect/internal/storage"
	"github.com/dshills/ctxselect/pkg/types"
)

func newSessionCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage conversation sessions",
		Long: `Sessions record the commands issued while working on a task. The
conversation strategy reads the active session's history.`,
	}

	cmd.AddCommand(
		newSessionNewCmd(flags),
		newSessionListCmd(flags),
		newSessionActivateCmd(flags),
		newSessionCloseCmd(flags),
		newSessionHistoryCmd(flags),
		newSessionRecordCmd(flags),
	)
	return cmd
}

func newSessionNewCmd(flags *rootFlags) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "new [name]",
		Short: "Create a session and make it active",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(flags, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			s, err := a.sessions.Create(ctx, name, projectID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created session %s (%s)\n", s.ID, s.Name)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&projectID, "project-id", "p", types.DefaultProjectID, "Project the session works on")
	return cmd
}

func newSessionListCmd(flags *rootFlags) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			sessions, err := a.sessions.List(ctx, all)
			if err != nil {
				return err
			}
			printSessions(cmd.OutOrStdout(), sessions)
			return nil
		}),
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include closed sessions")
	return cmd
}

func printSessions(w io.Writer, sessions []*storage.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions")
		return
	}
	for _, s := range sessions {
		marker := " "
		state := "open"
		switch {
		case s.Active:
			marker = "*"
			state = "active"
		case s.Closed:
			state = "closed"
		}
		fmt.Fprintf(w, "%s %s  %-20s  %-10s  %-6s  %s\n", marker, s.ID, s.Name, s.ProjectID, state,
			s.LastActivity.Local().Format(time.DateTime))
	}
}

func newSessionActivateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <id>",
		Short: "Make a session the active one",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			if err := a.sessions.Activate(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Activated session %s\n", args[0])
			return nil
		}),
	}
}

func newSessionCloseCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "close [id]",
		Short: "Close a session (default: the active one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(flags, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			closed, err := a.sessions.Close(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Closed session %s\n", closed)
			return nil
		}),
	}
}

func newSessionHistoryCmd(flags *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "Show the command history of a session (default: the active one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(flags, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			var (
				history []types.SessionHistoryEntry
				err     error
			)
			if len(args) == 1 {
				history, err = a.sessions.SessionHistory(ctx, args[0], limit)
			} else {
				active, aerr := a.sessions.Active(ctx)
				if aerr != nil {
					return aerr
				}
				if active == nil {
					return errors.New("no active session; pass a session id")
				}
				history, err = a.sessions.SessionHistory(ctx, active.ID, limit)
			}
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), history)
			return nil
		}),
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum entries to show")
	return cmd
}

func printHistory(w io.Writer, history []types.SessionHistoryEntry) {
	if len(history) == 0 {
		fmt.Fprintln(w, "No history")
		return
	}
	for i, e := range history {
		status := "ok"
		if e.Error != "" {
			status = "error: " + e.Error
		}
		fmt.Fprintf(w, "%d. [%s] %s %s (%s)\n", i+1, e.Timestamp.Local().Format(time.DateTime),
			e.Command, summarizeArgs(e), status)
		if out := e.OutputFile(); out != "" {
			fmt.Fprintf(w, "   output: %s\n", out)
		}
	}
}

func summarizeArgs(e types.SessionHistoryEntry) string {
	for _, key := range []string{"query", types.ArgPrompt, "path"} {
		if v := e.ArgString(key); v != "" {
			return fmt.Sprintf("%q", v)
		}
	}
	return ""
}

// newSessionRecordCmd records a generation step so the conversation
// strategy can surface it later
func newSessionRecordCmd(flags *rootFlags) *cobra.Command {
	var (
		output  string
		failure string
	)

	cmd := &cobra.Command{
		Use:   "record <prompt>",
		Short: "Record a generation in the active session",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(flags, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			prompt := strings.Join(args, " ")
			var genErr error
			if failure != "" {
				genErr = errors.New(failure)
			}
			if err := a.sessions.RecordGeneration(ctx, prompt, output, genErr); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Recorded generation")
			return nil
		}),
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "File the generated code was written to")
	cmd.Flags().StringVar(&failure, "error", "", "Record the generation as failed with this message")
	return cmd
}
