package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/ctxselect/internal/mcp"
	"github.com/dshills/ctxselect/internal/storage"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start an MCP (Model Context Protocol) server on stdin/stdout.

Tools: select_context, analyze_query, index_code, get_status.
Logs go to stderr; stdout is reserved for the protocol.`,
		Args: cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			mcp.ServerVersion = version

			server, err := mcp.NewServer(mcp.Dependencies{
				Storage:     a.store,
				Selector:    a.selector,
				Indexer:     a.indexer,
				Sessions:    a.sessions,
				MaxContexts: a.cfg.Selector.MaxContexts,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := zerolog.Ctx(ctx)
			log.Info().
				Str("version", version).
				Str("build_mode", storage.BuildMode).
				Str("driver", storage.DriverName).
				Msg("MCP server ready, listening on stdio")

			if err := server.Serve(ctx); err != nil && ctx.Err() == nil {
				return err
			}

			log.Info().Msg("server stopped")
			return nil
		}),
	}
}
