package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-indexer/pkg/config"
	"github.com/Sriram-PR/site-indexer/pkg/pipeline"
)

const serverName = "site-indexer"

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig // Sites must already be validated
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Version    string
	Logger     *logrus.Logger
}

// Server exposes the indexing pipeline as MCP tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	orch       *pipeline.Orchestrator
	jobManager *JobManager
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	mcpServer := server.NewMCPServer(
		serverName,
		cfg.Version,
		server.WithLogging(),
	)

	log := cfg.Logger.WithField("component", "mcp")
	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		log:        log,
		orch:       pipeline.NewOrchestrator(cfg.AppConfig, pipeline.GetAllSiteKeys(cfg.AppConfig), pipeline.Options{}, log),
		jobManager: NewJobManager(),
	}

	s.registerTools()

	return s, nil
}

func siteKeyParam() mcp.ToolOption {
	return mcp.WithString("site_key",
		mcp.Required(),
		mcp.Description("Site key from config file (e.g., 'default')"),
	)
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	tools := []server.ServerTool{
		{
			Tool: mcp.NewTool("list_sites",
				mcp.WithDescription("List configured sites with their last recorded run"),
			),
			Handler: s.handleListSites,
		},
		{
			Tool: mcp.NewTool("inspect_registry",
				mcp.WithDescription("Load a site's page registry and report counts by locale, category and priority"),
				siteKeyParam(),
			),
			Handler: s.handleInspectRegistry,
		},
		{
			Tool: mcp.NewTool("build_sitemap",
				mcp.WithDescription("Generate sitemaps and robots.txt for a site into its output directory"),
				siteKeyParam(),
			),
			Handler: s.handleBuildSitemap,
		},
		{
			Tool: mcp.NewTool("validate_deployment",
				mcp.WithDescription("Validate the emitted sitemaps and robots.txt and return the readiness report"),
				siteKeyParam(),
				mcp.WithString("directory",
					mcp.Description("Directory to validate (defaults to the site's output directory)"),
				),
			),
			Handler: s.handleValidateDeployment,
		},
		{
			Tool: mcp.NewTool("notify_engines",
				mcp.WithDescription("Notify search engines about the site's sitemap in the background. Returns a job ID."),
				siteKeyParam(),
			),
			Handler: s.handleNotifyEngines,
		},
		{
			Tool: mcp.NewTool("run_site",
				mcp.WithDescription("Run the full pipeline (build, robots, notify, validate) in the background. Returns a job ID."),
				siteKeyParam(),
			),
			Handler: s.handleRunSite,
		},
		{
			Tool: mcp.NewTool("get_job_status",
				mcp.WithDescription("Get the status of a background job"),
				mcp.WithString("job_id",
					mcp.Required(),
					mcp.Description("The job ID returned by notify_engines or run_site"),
				),
			),
			Handler: s.handleGetJobStatus,
		},
	}
	s.mcpServer.AddTools(tools...)

	s.log.Infof("Registered %d MCP tools", len(tools))
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running jobs
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	return nil
}
