package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/civic-go/internal/logging"
	"github.com/54b3r/civic-go/internal/rag"
)

// NewSearchCmd constructs the `civic search` command, which prints the
// evidence retrieval finds for a query without calling an LLM.
func NewSearchCmd() *cobra.Command {
	var (
		domain string
		topK   int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Show the documents, records and web snippets matching a query",
		Long: `Classify the query, search the vector index within that domain and list
the matching chunks together with structured records and council website
snippets. Use --domain to skip classification.

Examples:
  civic search "when is refuse collected"
  civic search --domain billing --top-k 3 "payment methods"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var d rag.Domain
			if domain != "" {
				parsed, err := rag.ParseDomain(domain)
				if err != nil {
					return fmt.Errorf("search: %w", err)
				}
				d = parsed
			}
			if topK < 0 {
				return fmt.Errorf("search: --top-k must not be negative")
			}

			a, err := newApp(ctx, logging.FromContext(ctx), appOptions{})
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer a.close()

			if err := a.ensureIndexed(ctx); err != nil {
				return fmt.Errorf("search: %w", err)
			}

			res, err := a.service.Retrieve(ctx, strings.Join(args, " "), topK, d)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			return printResult(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&domain, "domain", "", "Restrict the search to one domain")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to return (default: $CIVIC_TOP_K or 5)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}
