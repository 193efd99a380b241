package cmd

import (
	"fmt"

	mcpserver "github.com/lukman83/adscout/mcp"
	"github.com/spf13/cobra"
)

var serveHTTPCmd = &cobra.Command{
	Use:   "serve-http",
	Short: "Start MCP HTTP server",
	Long:  "Start the MCP server over HTTP for remote access (e.g. from Fly.io).",
	RunE:  runServeHTTP,
}

func init() {
	serveHTTPCmd.Flags().String("port", "", "HTTP port (default from $PORT or 8080)")
	rootCmd.AddCommand(serveHTTPCmd)
}

func runServeHTTP(cmd *cobra.Command, args []string) error {
	runner, cleanup, err := newRunner()
	if err != nil {
		return err
	}
	defer cleanup()

	port := cfg.HTTPPort
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		port = p
	}
	if cfg.APIKey == "" {
		logger.Warn("ADSCOUT_API_KEY is not set, the mcp endpoint is unauthenticated")
	}

	addr := fmt.Sprintf(":%s", port)
	return mcpserver.ServeHTTP(cmd.Context(), addr, cfg.APIKey, runner, mcpDefaults(), logger)
}
