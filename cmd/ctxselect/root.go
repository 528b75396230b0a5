package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/ctxselect/internal/storage"
)

// rootFlags are the persistent flags shared by every command
type rootFlags struct {
	dbPath string
	debug  bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "ctxselect",
		Short: "Select the most relevant code context for an LLM prompt",
		Long: `ctxselect indexes source code and picks the fragments most relevant to a
query using one of several strategies (semantic, structural, dependency,
balanced, conversation, or auto).

It runs as an MCP server for AI coding assistants (serve) or as a CLI.

Examples:
  ctxselect index ./myproject --project-id myproject
  ctxselect select "how are tokens refreshed?" --project-id myproject
  ctxselect analyze "what does UserService.login call?"
  ctxselect session new "auth refactor"`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(fmt.Sprintf(
		"ctxselect {{.Version}}\nBuild Time: %s\nBuild Mode: %s\nSQLite Driver: %s\nVector Extension: %v\n",
		buildTime, storage.BuildMode, storage.DriverName, storage.VectorExtensionAvailable))

	root.PersistentFlags().StringVar(&flags.dbPath, "db-path", "", "Database directory (default: $CTXSELECT_DB_PATH or ~/.ctxselect)")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newServeCmd(flags),
		newSelectCmd(flags),
		newAnalyzeCmd(flags),
		newIndexCmd(flags),
		newAddCmd(flags),
		newSessionCmd(flags),
		newStatusCmd(flags),
	)

	return root
}

// withApp wraps a command body with component wiring and cleanup
func withApp(flags *rootFlags, run func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		return run(a.withLogger(cmd.Context()), cmd, a, args)
	}
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
