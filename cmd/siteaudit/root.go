package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nao1215/siteaudit/internal/config"
	"github.com/nao1215/siteaudit/internal/log"
)

// NewRootCmd creates the root command for siteaudit.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "siteaudit",
		Short: "Audit a nonprofit website for its stakeholders",
		Long: `siteaudit crawls a nonprofit organization's website and asks a language
model how well each page serves the organization's stakeholders: donors,
volunteers, beneficiaries, partners and so on.

Every stage of an audit is saved as a snapshot. Running the same audit again
reuses the snapshots, so an interrupted run resumes where it stopped.

Model credentials are read from the environment (GEMINI_API_KEY or
OPENAI_API_KEY). A .env file in the current directory is loaded first.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewAuditCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() {
	_ = godotenv.Load() //nolint:errcheck // .env is optional

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// logOptions reads the persistent logging flags.
func logOptions(cmd *cobra.Command) log.Options {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose = false
	}
	logJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		logJSON = false
	}
	return log.Options{Verbose: verbose, JSON: logJSON}
}

// applyLogFlags copies the logging flags into cfg.
func applyLogFlags(cmd *cobra.Command, cfg *config.Config) {
	opts := logOptions(cmd)
	cfg.Verbose = opts.Verbose
	cfg.LogJSON = opts.JSON
}
