package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/carebot/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can retrieve
reference passages, ingest documents and talk to patients.

By default, the server communicates over stdio using JSON-RPC.

Use --port to start an HTTP server instead, which also serves Prometheus
metrics at /metrics.

Examples:
  # Stdio mode (default)
  carebot mcp serve

  # HTTP mode (MCP Inspector, remote access, metrics)
  carebot mcp serve --port 8080`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	ports := &mcp.Ports{
		Retrieval:    retrievalService,
		Ingestion:    ingestionService,
		Conversation: conversationService,
		Patients:     patientStore,
		Load:         documentLoader,
	}

	ctx := commandContext(cmd)
	stop := startScheduler(ctx)
	defer stop()

	if port > 0 {
		ports.Metrics = metricsHandler
		server, err := mcp.NewServer(ports)
		if err != nil {
			return err
		}
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}
