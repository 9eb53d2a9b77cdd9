package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/config"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/debug"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/telemetry"
)

var (
	jsonOutput  bool
	verboseFlag bool
	quietFlag   bool
	docTypeFlag string

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

// runFlags are the root command's workflow flags.
var runFlags struct {
	validate          bool
	strict            bool
	validateStructure bool
	dryRun            bool
	maxSteps          int
}

func init() {
	// Initialize viper configuration
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&docTypeFlag, "doc-type", "", "Document type (default: config doc-type)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	rootCmd.Flags().BoolVar(&runFlags.validate, "validate", false, "Evaluate completion criteria without changing the document")
	rootCmd.Flags().BoolVar(&runFlags.strict, "strict", false, "With --validate, treat deferred questions as blocking")
	rootCmd.Flags().BoolVar(&runFlags.validateStructure, "validate-structure", false, "Only check document structure")
	rootCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "Run the workflow in memory without writing the document")
	rootCmd.Flags().IntVar(&runFlags.maxSteps, "max-steps", 0, "Maximum workflow steps in one run (default: config max-steps)")
	rootCmd.Flags().BoolP("version", "V", false, "Print version information")

	rootCmd.AddGroup(&cobra.Group{ID: "workflow", Title: "Working With Documents:"})
	rootCmd.AddGroup(&cobra.Group{ID: "setup", Title: "Setup & Integrations:"})
}

var rootCmd = &cobra.Command{
	Use:   "orchestrator [flags] <document>",
	Short: "orchestrator - drive a markdown document through its workflow",
	Long: `Walks a structured markdown document through its workflow order: asks
clarifying questions for unfinished sections, folds answers back in, and runs
review gates. Each run stops at the first target that needs a human.

Exit codes: 0 success or nothing to do, 1 blocked, 2 error.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			printVersion()
			return nil
		}
		if len(args) == 0 {
			return cmd.Help()
		}
		return runRoot(rootCtx, args[0])
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupSignalContext()
		debug.SetVerbose(verboseFlag)
		debug.SetQuiet(quietFlag)
		applyViperOverrides(cmd)

		if err := telemetry.Init(rootCtx, "orchestrator", Version); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: telemetry disabled: %v\n", err)
		}
		return nil
	},
}

func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// applyViperOverrides pushes explicitly set flags into the config singleton
// so getters see flag > env > file > default.
func applyViperOverrides(cmd *cobra.Command) {
	if cmd.Flags().Changed("doc-type") {
		config.Set("doc-type", docTypeFlag)
	}
	if f := cmd.Flags().Lookup("max-steps"); f != nil && f.Changed {
		config.Set("max-steps", runFlags.maxSteps)
	}
	if cmd.Flags().Changed("json") {
		config.Set("json", jsonOutput)
	} else {
		jsonOutput = config.GetBool("json")
	}
}

// finish flushes telemetry and releases the signal context.
func finish() {
	if rootCtx == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	telemetry.Shutdown(ctx)
	rootCancel()
}

func main() {
	// ORCH_NAME overrides the binary name in help text.
	if name := os.Getenv("ORCH_NAME"); name != "" {
		rootCmd.Use = name + " [flags] <document>"
	}

	err := rootCmd.Execute()
	finish()
	if err != nil {
		reportError(err)
	}
	os.Exit(exitCodeFor(err))
}
