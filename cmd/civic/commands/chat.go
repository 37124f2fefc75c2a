package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/civic-go/internal/assistant"
	"github.com/54b3r/civic-go/internal/logging"
)

// NewChatCmd constructs the `civic chat` command, an interactive session
// with the LLM assistant.
func NewChatCmd() *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "chat [question]",
		Short: "Chat with the council assistant",
		Long: `Answer questions with the LLM assistant, grounded in retrieved documents,
structured records and the council website. With a question argument the
command answers once and exits; otherwise it reads questions from stdin.

In interactive mode, /reset clears the session history and /quit exits.

Requires MODEL_PROVIDER (ollama, openai, azure, ark or gemini).

Examples:
  civic chat "what are the library opening hours?"
  civic chat --session alice`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, logging.FromContext(ctx), appOptions{})
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer a.close()

			if err := a.ensureIndexed(ctx); err != nil {
				return fmt.Errorf("chat: %w", err)
			}

			asst, _, _, err := a.assistant(ctx)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			if asst == nil {
				return errors.New("chat: no model provider configured (set MODEL_PROVIDER)")
			}

			out := cmd.OutOrStdout()
			if len(args) > 0 {
				if err := asst.Query(ctx, session, strings.Join(args, " "), out); err != nil {
					return fmt.Errorf("chat: %w", err)
				}
				_, err := fmt.Fprintln(out)
				return err
			}
			return chatLoop(cmd, asst, session, cmd.InOrStdin(), out)
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", assistant.DefaultSession, "Conversation session identifier")

	return cmd
}

// chatLoop reads one question per line until EOF or /quit.
func chatLoop(cmd *cobra.Command, asst *assistant.Assistant, session string, in io.Reader, out io.Writer) error {
	ctx := cmd.Context()
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, headingStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := asst.Reset(ctx, session); err != nil {
				fmt.Fprintf(out, "reset failed: %v\n", err)
				continue
			}
			fmt.Fprintln(out, mutedStyle.Render("history cleared"))
			continue
		}

		fmt.Fprint(out, tagStyle.Render("civic> "))
		if err := asst.Query(ctx, session, line, out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "\nerror: %v\n", err)
			continue
		}
		fmt.Fprintln(out)
	}
}
