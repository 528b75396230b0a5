package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/ctxselect/internal/chunker"
	"github.com/dshills/ctxselect/internal/indexer"
	"github.com/dshills/ctxselect/pkg/types"
)

func newIndexCmd(flags *rootFlags) *cobra.Command {
	var (
		projectID     string
		force         bool
		noTests       bool
		includeVendor bool
		workers       int
	)

	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Index a source file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("invalid path: %w", err)
			}

			cfg := indexer.DefaultConfig()
			cfg.IncludeTests = !noTests
			cfg.IncludeVendor = includeVendor
			cfg.ForceReindex = force
			cfg.Workers = a.cfg.Indexer.Workers
			if workers > 0 {
				cfg.Workers = workers
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexing %s into project %q...\n", root, projectID)

			stats, err := a.indexer.IndexPath(ctx, projectID, root, cfg)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Files discovered: %d\n", stats.FilesDiscovered)
			fmt.Fprintf(out, "Files indexed:    %d\n", stats.FilesIndexed)
			fmt.Fprintf(out, "Files skipped:    %d\n", stats.FilesSkipped)
			fmt.Fprintf(out, "Files failed:     %d\n", stats.FilesFailed)
			fmt.Fprintf(out, "Chunks created:   %d\n", stats.ChunksCreated)
			fmt.Fprintf(out, "Embeddings:       %d\n", stats.EmbeddingsCreated)
			fmt.Fprintf(out, "Duration:         %s\n", stats.Duration.Round(time.Millisecond))
			for _, msg := range stats.ErrorMessages {
				fmt.Fprintf(out, "  error: %s\n", msg)
			}
			return nil
		}),
	}

	cmd.Flags().StringVarP(&projectID, "project-id", "p", types.DefaultProjectID, "Project to index into")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-index files even if unchanged")
	cmd.Flags().BoolVar(&noTests, "no-tests", false, "Skip test files")
	cmd.Flags().BoolVar(&includeVendor, "include-vendor", false, "Index vendor directories")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent workers (default: $CTXSELECT_INDEX_WORKERS)")

	return cmd
}

// newAddCmd indexes a single snippet, read from a file or stdin
func newAddCmd(flags *rootFlags) *cobra.Command {
	var (
		projectID string
		name      string
		language  string
	)

	cmd := &cobra.Command{
		Use:   "add <file|->",
		Short: "Add a single code snippet to the index",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			source := args[0]
			text, err := readSnippet(cmd.InOrStdin(), source)
			if err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" {
				return errors.New("snippet is empty")
			}

			if source != "-" {
				if name == "" {
					name = filepath.Base(source)
				}
				if language == "" {
					language = chunker.LanguageFor(source)
				}
			}

			chunk, err := a.indexer.IndexText(ctx, projectID, name, language, text)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added snippet %q (chunk %d) to project %q\n",
				chunk.Name, chunk.ID, projectID)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&projectID, "project-id", "p", types.DefaultProjectID, "Project to add the snippet to")
	cmd.Flags().StringVar(&name, "name", "", "Snippet name (default: file name)")
	cmd.Flags().StringVar(&language, "language", "", "Snippet language (default: from file extension)")

	return cmd
}

func readSnippet(stdin io.Reader, source string) (string, error) {
	if source == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", source, err)
	}
	return string(data), nil
}
