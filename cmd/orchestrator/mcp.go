package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/config"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/debug"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/mcptools"
)

var mcpCmd = &cobra.Command{
	Use:     "mcp",
	GroupID: "setup",
	Short:   "Serve read-only workflow tools over MCP (stdio)",
	Long: `Starts a Model Context Protocol server on stdin/stdout exposing
workflow_status, validate_document, evaluate_completion and list_questions for
documents under the project directory. The tools never modify a document.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := cmd.Flags().GetString("project")
		if project == "" {
			project = config.ProjectRoot()
		}
		if project == "" {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			project = wd
		}
		svc, err := mcptools.NewService(project)
		if err != nil {
			return err
		}
		debug.Logf("mcp: serving %s\n", svc.Root())
		return mcptools.RunStdio(rootCtx, mcptools.NewServer(svc, Version))
	},
}

func init() {
	mcpCmd.Flags().String("project", "", "Project directory (default: the discovered project root or cwd)")
	rootCmd.AddCommand(mcpCmd)
}
