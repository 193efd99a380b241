package cmd

import (
	"fmt"

	mcpserver "github.com/lukman83/adscout/mcp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP stdio server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func mcpDefaults() mcpserver.Defaults {
	return mcpserver.Defaults{
		MinAds:        cfg.MinAds,
		ExportMinAds:  cfg.ExportMinAds,
		MaxConcurrent: cfg.MaxConcurrent,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	runner, cleanup, err := newRunner()
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("starting mcp server on stdio", "scope", cfg.Scope)

	if err := mcpserver.Serve(runner, mcpDefaults()); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
