package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/civic-go/internal/logging"
)

// NewAskCmd constructs the `civic ask` command, which routes one question
// through the orchestrator and prints the handler's reply.
func NewAskCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Route a question to the billing, incident or licensing handler",
		Long: `Classify a question by route keywords and answer it with the matching
back-office handler. Questions that match no route get the council website
fallback or a short help text.

Examples:
  civic ask "what is the balance on account ACC-1001?"
  civic ask "there is a burst pipe on Main Street"
  civic ask --json "do I need a licence for a food truck?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, logging.FromContext(ctx), appOptions{SkipRecords: true})
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer a.close()

			orch, err := a.orchestrator(ctx)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			state, err := orch.Process(ctx, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, state)
			}
			fmt.Fprintf(out, "%s %s\n\n%s\n",
				headingStyle.Render("Route:"), tagStyle.Render(string(state.Classification)), state.Response)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full routing state as JSON")

	return cmd
}
