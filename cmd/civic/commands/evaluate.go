package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/civic-go/internal/evaluation"
	"github.com/54b3r/civic-go/internal/index"
	"github.com/54b3r/civic-go/internal/logging"
)

// NewEvaluateCmd constructs the `civic evaluate` command, which scores
// retrieval against labelled queries.
func NewEvaluateCmd() *cobra.Command {
	var (
		queriesPath string
		outPath     string
		topK        int
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Measure retrieval precision and recall on labelled queries",
		Long: `Run each labelled query against the index and report precision, recall,
F1 and domain classification accuracy. Queries are read from a JSON array of
{"query", "expected_domains", "expected_chunks", "relevance_threshold"}
objects; when the file does not exist a built-in sample set is used.

Examples:
  civic evaluate
  civic evaluate --queries test_queries.json --top-k 10 --out report.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			queries, err := evaluation.LoadQueries(queriesPath)
			if errors.Is(err, os.ErrNotExist) {
				log.Info("evaluate: query file not found, using sample queries", slog.String("path", queriesPath))
				queries, err = evaluation.SampleQueries(), nil
			}
			if err != nil {
				return fmt.Errorf("evaluate: %w", err)
			}

			a, err := newApp(ctx, log, appOptions{})
			if err != nil {
				return fmt.Errorf("evaluate: %w", err)
			}
			defer a.close()

			if err := a.ensureIndexed(ctx); err != nil {
				return fmt.Errorf("evaluate: %w", err)
			}

			ev, err := evaluation.New(a.index, a.cls, log)
			if err != nil {
				return fmt.Errorf("evaluate: %w", err)
			}
			rep, err := ev.Evaluate(ctx, queries, topK)
			if err != nil {
				return fmt.Errorf("evaluate: %w", err)
			}

			if outPath != "" {
				if err := evaluation.WriteReport(outPath, rep); err != nil {
					return fmt.Errorf("evaluate: %w", err)
				}
				log.Info("evaluate: report written", slog.String("path", outPath))
			}
			return evaluation.Render(cmd.OutOrStdout(), rep)
		},
	}

	cmd.Flags().StringVarP(&queriesPath, "queries", "q", "test_queries.json", "JSON file of labelled queries")
	cmd.Flags().StringVarP(&outPath, "out", "o", "evaluation_results.json", "Write the full report here (empty to skip)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", index.DefaultTopK, "Number of chunks retrieved per query")

	return cmd
}
