package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/ctxselect/internal/strategy"
	"github.com/dshills/ctxselect/pkg/types"
)

// demoStrategies are run by analyze --project-id
var demoStrategies = []types.StrategyName{
	types.StrategySemantic,
	types.StrategyStructural,
	types.StrategyDependency,
	types.StrategyBalanced,
}

func newAnalyzeCmd(flags *rootFlags) *cobra.Command {
	var (
		projectID   string
		maxContexts int
	)

	cmd := &cobra.Command{
		Use:   "analyze <query>",
		Short: "Analyze a query and show the strategy auto would pick",
		Long: `Analyze a query: count words, detect the classes, functions and variables it
mentions, and report the recommended strategy.

With --project-id, every concrete strategy is also run against that project
so their results can be compared.`,
		Args: cobra.MinimumNArgs(1),
		RunE: withApp(flags, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			query := strings.Join(args, " ")
			out := cmd.OutOrStdout()

			analysis := a.selector.Analyze(query)
			printAnalysis(out, query, analysis)

			if projectID == "" {
				return nil
			}
			if maxContexts <= 0 {
				maxContexts = a.cfg.Selector.MaxContexts
			}

			fmt.Fprintln(out, "\nDemonstrating context selection with different strategies:")
			demonstrate(ctx, out, a.selector.Engine(), query, projectID, maxContexts)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&projectID, "project-id", "p", "", "Project to run each strategy against")
	cmd.Flags().IntVarP(&maxContexts, "max-contexts", "n", 0, "Maximum fragments per strategy")

	return cmd
}

func printAnalysis(w io.Writer, query string, analysis types.QueryAnalysis) {
	fmt.Fprintf(w, "Analyzing query: %q\n\n", query)
	fmt.Fprintln(w, "Query Analysis:")
	fmt.Fprintf(w, "Word count: %d\n", analysis.WordCount)
	fmt.Fprintf(w, "Structure count: %d\n", analysis.StructureCount)

	fmt.Fprintln(w, "\nDetected structures:")
	groups := []struct {
		label string
		names []string
	}{
		{"Classes", analysis.Structures.SortedClasses()},
		{"Functions", analysis.Structures.SortedFunctions()},
		{"Variables", analysis.Structures.SortedVariables()},
	}
	for _, g := range groups {
		list := "None"
		if len(g.names) > 0 {
			list = strings.Join(g.names, ", ")
		}
		fmt.Fprintf(w, "  %s: %s\n", g.label, list)
	}

	fmt.Fprintf(w, "\nRecommended context strategy: %s\n", analysis.OptimalStrategy)
}

func demonstrate(ctx context.Context, w io.Writer, engine *strategy.Engine, query, projectID string, maxContexts int) {
	for _, name := range demoStrategies {
		items := engine.Run(ctx, name, query, projectID, maxContexts, nil)

		fmt.Fprintf(w, "\n--- Strategy: %s ---\n", name)
		fmt.Fprintf(w, "Retrieved %d context fragments\n", len(items))
		for i, item := range items {
			fmt.Fprintf(w, "  %d. %s (%s) - Score: %.4f\n", i+1,
				item.MetaString(types.MetaName, "unnamed"),
				item.MetaString(types.MetaType, "unknown"),
				item.Score)
		}
	}
}
