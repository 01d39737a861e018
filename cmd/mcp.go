package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/sentinel/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP client ask sentinel for predictions and training history.
Configure it with:

  {
    "mcpServers": {
      "sentinel": { "command": "sentinel", "args": ["mcp"] }
    }
  }

Available tools: sentinel_predict, sentinel_list_runs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}

		// Stdout carries the protocol; warnings go to stderr.
		var p mcp.Predictor
		if svc, err := loadPredictor(); err != nil {
			ui.Warning("Predictions unavailable: %v", err)
		} else {
			p = svc
		}

		return mcp.NewServer(p, s, buildVersion).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
