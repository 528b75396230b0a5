package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/ctxselect/internal/storage"
	"github.com/dshills/ctxselect/pkg/types"
)

func newStatusCmd(flags *rootFlags) *cobra.Command {
	var (
		projectID string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index statistics for a project",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			out := cmd.OutOrStdout()

			status, err := a.store.GetStatus(ctx, projectID)
			if errors.Is(err, storage.ErrNotFound) {
				if asJSON {
					return printJSON(out, map[string]interface{}{"indexed": false, "project_id": projectID})
				}
				fmt.Fprintf(out, "Project %q is not indexed\n", projectID)
				return nil
			}
			if err != nil {
				return err
			}

			active, err := a.sessions.Active(ctx)
			if err != nil {
				return err
			}

			if asJSON {
				report := map[string]interface{}{
					"indexed":          true,
					"project_id":       status.Project.ID,
					"files_count":      status.FilesCount,
					"chunks_count":     status.ChunksCount,
					"embeddings_count": status.EmbeddingsCount,
					"sessions_count":   status.SessionsCount,
					"cache_entries":    status.CacheEntries,
					"index_size_mb":    status.IndexSizeMB,
					"search_mode":      a.retrieval.Mode(),
					"embedder":         a.embedder.Provider(),
					"vector_extension": status.Health.VectorExtension,
				}
				if active != nil {
					report["active_session"] = active.ID
				}
				return printJSON(out, report)
			}

			lastIndexed := "never"
			if !status.LastIndexedAt.IsZero() {
				lastIndexed = status.LastIndexedAt.Local().Format(time.RFC3339)
			}

			fmt.Fprintf(out, "Project:        %s\n", status.Project.ID)
			fmt.Fprintf(out, "Last indexed:   %s\n", lastIndexed)
			fmt.Fprintf(out, "Files:          %d\n", status.FilesCount)
			fmt.Fprintf(out, "Chunks:         %d\n", status.ChunksCount)
			fmt.Fprintf(out, "Embeddings:     %d\n", status.EmbeddingsCount)
			fmt.Fprintf(out, "Sessions:       %d\n", status.SessionsCount)
			fmt.Fprintf(out, "Cache entries:  %d\n", status.CacheEntries)
			fmt.Fprintf(out, "Index size:     %.2f MB\n", status.IndexSizeMB)
			fmt.Fprintf(out, "Search mode:    %s (%s embeddings)\n", a.retrieval.Mode(), a.embedder.Provider())
			fmt.Fprintf(out, "Vector ext:     %v\n", status.Health.VectorExtension)
			if active != nil {
				fmt.Fprintf(out, "Active session: %s (%s)\n", active.ID, active.Name)
			}
			return nil
		}),
	}

	cmd.Flags().StringVarP(&projectID, "project-id", "p", types.DefaultProjectID, "Project to report on")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
