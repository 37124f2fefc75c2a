package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/civic-go/internal/ingestion"
	"github.com/54b3r/civic-go/internal/logging"
)

// NewIngestCmd constructs the `civic ingest` command, which loads the data
// directory into the vector index.
func NewIngestCmd() *cobra.Command {
	var (
		dir     string
		withWeb bool
		watch   bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index the council documents and structured records",
		Long: `Load every .txt document and every .json / SQLite structured source in the
data directory, split them into chunks, embed them and store them in the
configured vector index. Re-running ingest replaces documents in place.

With --watch the command stays running and re-ingests whenever a file in
the directory changes.

Examples:
  civic ingest
  civic ingest --dir ./data --web
  CIVIC_VECTOR_BACKEND=qdrant civic ingest --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			a, err := newApp(ctx, log, appOptions{DataDir: dir, SkipRecords: true})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer a.close()

			p, err := a.pipeline(withWeb)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			rep, err := p.Ingest(ctx, a.dataDir)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(rep); err != nil || !watch {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return p.Watch(ctx, a.dataDir, ingestion.DefaultDebounce, func(rep *ingestion.Report, err error) {
				if err == nil {
					log.Info("ingest: re-run complete", slog.Int("documents", rep.Documents()), slog.Int("chunks", rep.Chunks))
				}
			})
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Data directory (default: $CIVIC_DATA_DIR or ./data)")
	cmd.Flags().BoolVar(&withWeb, "web", false, "Also index pages from the council website")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-ingest when files in the directory change")

	return cmd
}
