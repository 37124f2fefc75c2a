package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/civic-go/internal/logging"
	"github.com/54b3r/civic-go/internal/webcache"
)

// NewWebCmd constructs the `civic web` command, which refreshes and
// inspects the council website cache.
func NewWebCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "web [query]",
		Short: "Refresh or search the cached council website pages",
		Long: `Fetch the council website pages listed in the vocabulary, unless the cached
copy is younger than CIVIC_WEB_TTL (default 6h), and list what is cached.
With a query argument, print the page snippets that mention it instead.

Examples:
  civic web
  civic web --force
  civic web "council tax"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, logging.FromContext(ctx), appOptions{SkipRecords: true})
			if err != nil {
				return fmt.Errorf("web: %w", err)
			}
			defer a.close()
			if a.web == nil {
				return errors.New("web: website access is disabled (CIVIC_WEB_DISABLED)")
			}

			docs, err := a.web.Fetch(ctx, force)
			if err != nil {
				return fmt.Errorf("web: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(args) > 0 {
				query := strings.Join(args, " ")
				snippets := webcache.SearchContent(query, docs)
				if len(snippets) == 0 {
					fmt.Fprintf(out, "No cached page mentions %q.\n", query)
					return nil
				}
				for _, s := range snippets {
					fmt.Fprintf(out, "%s %s\n  %s\n", headingStyle.Render(s.Title), mutedStyle.Render(s.URL), s.Snippet)
				}
				return nil
			}

			for _, key := range a.web.Keys() {
				e, ok := a.web.Entry(key)
				if !ok {
					continue
				}
				state := "fresh"
				if !a.web.Fresh(key) {
					state = "stale"
				}
				fmt.Fprintf(out, "%s %s\n", headingStyle.Render(key),
					mutedStyle.Render(fmt.Sprintf("fetched %s (%s, ttl %s)", e.FetchedAt.Local().Format(time.DateTime), state, a.web.TTL())))
				for _, d := range e.Documents {
					fmt.Fprintf(out, "- %s %s\n", d.Metadata.Title, mutedStyle.Render(d.Metadata.Source))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Refetch even when the cache is fresh")

	return cmd
}
