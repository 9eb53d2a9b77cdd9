package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/config"
	"github.com/Jmiracle76/orchestrator-agent-sub000/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Manage configuration settings",
	Long: `Manage orchestrator settings.

Values are written to .orchestrator/config.yaml in the project root. ORCH_*
environment variables and command-line flags override the file, for example
ORCH_MODEL or ORCH_MAX_STEPS.

Examples:
  orchestrator config set doc-type runbook
  orchestrator config set questions.schema simple
  orchestrator config set gates.warnings-block-strict true
  orchestrator config get model
  orchestrator config list`,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		path, err := config.SetProjectValue(key, value)
		if err != nil {
			return fmt.Errorf("setting config: %w", err)
		}
		if jsonOutput {
			outputJSON(map[string]interface{}{
				"key":      key,
				"value":    value,
				"location": path,
			})
			return nil
		}
		fmt.Printf("Set %s = %s (in %s)\n", key, value, path)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		key := args[0]
		if !config.IsKnownKey(key) {
			return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(config.KnownKeys(), ", "))
		}
		value := config.GetString(key)
		if jsonOutput {
			outputJSON(map[string]string{"key": key, "value": value})
			return nil
		}
		fmt.Println(value)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List effective configuration values",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		keys := config.KnownKeys()
		if jsonOutput {
			values := make(map[string]string, len(keys))
			for _, k := range keys {
				values[k] = config.GetString(k)
			}
			outputJSON(map[string]interface{}{
				"config_file": config.ConfigFileUsed(),
				"values":      values,
			})
			return
		}
		width := 0
		for _, k := range keys {
			if len(k) > width {
				width = len(k)
			}
		}
		for _, k := range keys {
			fmt.Printf("%s  %s\n", ui.PadRight(k, width), config.GetString(k))
		}
		if f := config.ConfigFileUsed(); f != "" {
			fmt.Printf("\n%s\n", ui.RenderMuted("from "+f))
		}
	},
}

func init() {
	configCmd.AddCommand(configSetCmd, configGetCmd, configListCmd)
	rootCmd.AddCommand(configCmd)
}
