package main

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/docudata/pkg/api"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the docudata tools over MCP on stdio",
	Long: "Run an MCP server on stdin/stdout for assistants that launch docudata as a\n" +
		"subprocess. Logs go to stderr so they never corrupt the protocol stream.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, lib, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()
		srv := api.NewMCPServer(version, api.Services{Sessions: store, Library: lib, Logger: logger})
		logger.Info("mcp server on stdio", "datasets", lib.Count())
		return server.ServeStdio(srv)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
