// Package commands defines all Cobra CLI commands for the civic binary.
package commands

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/54b3r/civic-go/internal/audit"
	"github.com/54b3r/civic-go/internal/config"
	"github.com/54b3r/civic-go/internal/logging"
	"github.com/54b3r/civic-go/internal/tracing"
)

// configPath holds the --config flag value.
var configPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	var flush func()

	root := &cobra.Command{
		Use:   "civic",
		Short: "Council information assistant",
		Long: `civic answers resident questions about council services.

It indexes the council's documents and structured records, classifies each
question into a service domain, and either routes it to a back-office
handler (billing, incidents, licensing) or answers it from retrieved
context with an LLM.

Settings come from environment variables, a .env file in the working
directory, or a YAML/TOML config file (~/.civic/config.yaml). Environment
variables always win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is normal.
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			path, err := config.Load(configPath, slog.Default())
			if err != nil {
				return err
			}

			// Built after config so LOG_LEVEL and LOG_FORMAT from the file apply.
			log := logging.New()
			slog.SetDefault(log)
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))

			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), args, path)
			flush = tracing.Install(tracing.ConfigFromEnv(), log)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if flush != nil {
				flush()
			}
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML or TOML config file (default: ~/.civic/config.yaml)")

	root.AddCommand(
		NewIngestCmd(),
		NewAskCmd(),
		NewSearchCmd(),
		NewChatCmd(),
		NewEvaluateCmd(),
		NewWebCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
