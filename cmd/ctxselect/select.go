package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/ctxselect/internal/selector"
	"github.com/dshills/ctxselect/internal/session"
	"github.com/dshills/ctxselect/pkg/types"
)

const commandSelect = "select"

func newSelectCmd(flags *rootFlags) *cobra.Command {
	var (
		projectID   string
		maxContexts int
		strategy    string
		noSession   bool
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "select <query>",
		Short: "Select context fragments for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(flags, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return errors.New("query cannot be empty")
			}

			name, err := types.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("strategy") {
				name = a.cfg.DefaultStrategy()
			}
			if maxContexts <= 0 {
				maxContexts = a.cfg.Selector.MaxContexts
			}

			req := selector.Request{
				Query:       query,
				ProjectID:   projectID,
				MaxContexts: maxContexts,
				Strategy:    name,
			}
			if !noSession {
				req.Session = a.sessions
			}
			req.Strategy = a.selector.Resolve(ctx, req)
			items := a.selector.SelectContext(ctx, req)

			if !noSession {
				recordSelect(ctx, a.sessions, req, len(items))
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"query":    query,
					"strategy": req.Strategy,
					"contexts": itemsJSON(items),
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Strategy: %s (%d results)\n", req.Strategy, len(items))
			printItems(cmd.OutOrStdout(), items)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&projectID, "project-id", "p", types.DefaultProjectID, "Project to retrieve from")
	cmd.Flags().IntVarP(&maxContexts, "max-contexts", "n", 0, "Maximum fragments to return (default: $CTXSELECT_MAX_CONTEXTS)")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", string(types.StrategyAuto), "Strategy: auto, semantic, structural, dependency, balanced, conversation")
	cmd.Flags().BoolVar(&noSession, "no-session", false, "Ignore and do not record into the active session")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}

func recordSelect(ctx context.Context, sessions *session.Manager, req selector.Request, count int) {
	err := sessions.AddToHistory(ctx, commandSelect, map[string]any{
		"query":        req.Query,
		"project_id":   req.ProjectID,
		"max_contexts": req.MaxContexts,
	}, map[string]any{
		"strategy": string(req.Strategy),
		"count":    count,
	}, "")
	if err != nil && !errors.Is(err, session.ErrNoActiveSession) {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to record session history")
	}
}

func itemsJSON(items []types.ContextItem) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(items))
	for i, item := range items {
		out = append(out, map[string]interface{}{
			"rank":     i + 1,
			"score":    item.Score,
			"text":     item.Text,
			"metadata": item.Metadata,
		})
	}
	return out
}

// printItems prints ranked fragments with their metadata
func printItems(w io.Writer, items []types.ContextItem) {
	for i, item := range items {
		fmt.Fprintf(w, "\n[%d] score=%.3f", i+1, item.Score)
		if file := item.MetaString(types.MetaFilename, ""); file != "" {
			fmt.Fprintf(w, "  %s", file)
			if start, ok := item.Metadata[types.MetaStartLine]; ok {
				fmt.Fprintf(w, ":%v-%v", start, item.Metadata[types.MetaEndLine])
			}
		}
		if kind := item.MetaString(types.MetaType, ""); kind != "" {
			fmt.Fprintf(w, "  %s", kind)
		}
		if name := item.MetaString(types.MetaName, ""); name != "" {
			fmt.Fprintf(w, " %s", name)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, strings.TrimRight(item.Text, "\n"))
	}
}
