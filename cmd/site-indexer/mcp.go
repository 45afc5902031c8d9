package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Sriram-PR/site-indexer/pkg/mcp"
	"github.com/Sriram-PR/site-indexer/pkg/pipeline"
)

// runMcpServer handles the mcp-server subcommand
func runMcpServer(args []string) {
	fs := flag.NewFlagSet("mcp-server", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	transport := fs.String("transport", "stdio", "Transport type (stdio, sse)")
	port := fs.Int("port", 8080, "HTTP port (for sse transport)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: site-indexer mcp-server [options]

Start an MCP (Model Context Protocol) server for AI tool integration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Start with stdio transport
  site-indexer mcp-server -config config.yaml

  # Start with SSE transport on port 8080
  site-indexer mcp-server -config config.yaml -transport sse -port 8080

Available MCP Tools:
  list_sites           List configured sites and their last run
  inspect_registry     Registry statistics for a site
  build_sitemap        Generate sitemaps and robots.txt
  validate_deployment  Run the deployment checks
  notify_engines       Notify search engines (background job)
  run_site             Run the full pipeline (background job)
  get_job_status       Check a background job
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	exitCode := doMcpServer(*configFile, *transport, *port, *logLevel, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doMcpServer is the testable implementation of the MCP server
func doMcpServer(configPath, transport string, port int, logLevel string, stdout, stderr io.Writer) int {
	if transport != "stdio" && transport != "sse" {
		fmt.Fprintf(stderr, "Unknown transport: %s (supported: stdio, sse)\n", transport)
		return 1
	}

	// MCP protocol uses stdout, logs go to stderr
	log := setupLogger(logLevel, stderr)

	f := &siteFlags{configFile: configPath, allSites: true, logLevel: logLevel}
	appCfg, _, err := prepareSites(f, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	log.Infof("Serving %d site(s): %v", len(appCfg.Sites), pipeline.GetAllSiteKeys(appCfg))

	serverCfg := &mcp.ServerConfig{
		AppConfig:  appCfg,
		ConfigPath: configPath,
		Transport:  transport,
		Port:       port,
		Version:    version,
		Logger:     log,
	}

	server, err := mcp.NewServer(serverCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}

	log.Infof("Starting MCP server (transport: %s)", transport)

	if err := server.Run(); err != nil {
		fmt.Fprintf(stderr, "MCP server error: %v\n", err)
		return 1
	}

	return 0
}
