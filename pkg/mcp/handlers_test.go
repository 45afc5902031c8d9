package mcp

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/site-indexer/pkg/config"
	"github.com/Sriram-PR/site-indexer/pkg/sitemap"
	"github.com/Sriram-PR/site-indexer/pkg/validate"
)

const testRegistry = `pages:
  - path: /
    priority: 1.0
    changefreq: daily
  - path: /es
    locale: es
    priority: 0.9
  - path: /conditions/glaucoma
    category: condition
    priority: 0.8
`

func newTestServer(t *testing.T, registryYAML string) *Server {
	t.Helper()
	root := t.TempDir()
	registryPath := filepath.Join(root, "registry.yaml")
	require.NoError(t, os.WriteFile(registryPath, []byte(registryYAML), 0644))

	cfg := &config.AppConfig{
		OutputBaseDir: filepath.Join(root, "public"),
		ReportBaseDir: filepath.Join(root, "reports"),
		StateDir:      filepath.Join(root, "state"),
		Sites: map[string]*config.SiteConfig{
			"clinic": {Domain: "https://eyecare.example", RegistryFile: registryPath},
		},
	}
	_, err := cfg.Validate()
	require.NoError(t, err)
	_, err = cfg.Sites["clinic"].Validate()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s, err := NewServer(&ServerConfig{AppConfig: cfg, ConfigPath: "config.yaml", Transport: "stdio", Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func callTool(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func decodeResult(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotNil(t, res)
	require.False(t, res.IsError, "tool returned error: %v", res.Content)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func TestNewServerRequiresConfig(t *testing.T) {
	_, err := NewServer(&ServerConfig{})
	assert.Error(t, err)
}

func TestHandleListSites(t *testing.T) {
	s := newTestServer(t, testRegistry)

	res, err := s.handleListSites(context.Background(), callTool(nil))
	require.NoError(t, err)
	out := decodeResult(t, res)

	assert.EqualValues(t, 1, out["total_sites"])
	sites := out["sites"].([]any)
	site := sites[0].(map[string]any)
	assert.Equal(t, "clinic", site["key"])
	assert.Equal(t, "https://eyecare.example", site["domain"])
	assert.NotContains(t, site, "last_run")
}

func TestSiteKeyErrors(t *testing.T) {
	s := newTestServer(t, testRegistry)
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"inspect_registry":    s.handleInspectRegistry,
		"build_sitemap":       s.handleBuildSitemap,
		"validate_deployment": s.handleValidateDeployment,
		"notify_engines":      s.handleNotifyEngines,
		"run_site":            s.handleRunSite,
	}

	for name, handler := range handlers {
		t.Run(name+" missing", func(t *testing.T) {
			res, err := handler(context.Background(), callTool(nil))
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
		t.Run(name+" unknown", func(t *testing.T) {
			res, err := handler(context.Background(), callTool(map[string]any{"site_key": "blog"}))
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
}

func TestHandleInspectRegistry(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		s := newTestServer(t, testRegistry)
		res, err := s.handleInspectRegistry(context.Background(), callTool(map[string]any{"site_key": "clinic"}))
		require.NoError(t, err)
		out := decodeResult(t, res)

		assert.Equal(t, true, out["valid"])
		stats := out["stats"].(map[string]any)
		assert.EqualValues(t, 3, stats["total"])
		assert.EqualValues(t, 1, stats["by_locale"].(map[string]any)["es"])
	})

	t.Run("duplicate path reported", func(t *testing.T) {
		s := newTestServer(t, "pages:\n  - path: /\n  - path: /\n")
		res, err := s.handleInspectRegistry(context.Background(), callTool(map[string]any{"site_key": "clinic"}))
		require.NoError(t, err)
		out := decodeResult(t, res)

		assert.Equal(t, false, out["valid"])
		assert.NotEmpty(t, out["error"])
	})
}

func TestHandleBuildThenValidate(t *testing.T) {
	s := newTestServer(t, testRegistry)
	args := map[string]any{"site_key": "clinic"}

	res, err := s.handleBuildSitemap(context.Background(), callTool(args))
	require.NoError(t, err)
	out := decodeResult(t, res)
	assert.EqualValues(t, 3, out["url_count"])
	assert.NotContains(t, out, "write_error")

	outputDir := out["output_dir"].(string)
	assert.FileExists(t, filepath.Join(outputDir, sitemap.MainName+".xml"))
	assert.FileExists(t, filepath.Join(outputDir, "robots.txt"))

	res, err = s.handleValidateDeployment(context.Background(), callTool(args))
	require.NoError(t, err)
	out = decodeResult(t, res)
	assert.Equal(t, true, out["ready"])
	assert.NotEqual(t, validate.VerdictNotReady, out["verdict"])
}

func TestHandleValidateDeploymentEmptyDirectory(t *testing.T) {
	s := newTestServer(t, testRegistry)
	res, err := s.handleValidateDeployment(context.Background(),
		callTool(map[string]any{"site_key": "clinic", "directory": t.TempDir()}))
	require.NoError(t, err)
	out := decodeResult(t, res)

	assert.Equal(t, false, out["ready"])
	assert.Equal(t, validate.VerdictNotReady, out["verdict"])
}

func TestStartJobAlreadyRunning(t *testing.T) {
	s := newTestServer(t, testRegistry)
	existing, created := s.jobManager.CreateJob("clinic", JobKindRun)
	require.True(t, created)

	res, err := s.handleNotifyEngines(context.Background(), callTool(map[string]any{"site_key": "clinic"}))
	require.NoError(t, err)
	out := decodeResult(t, res)

	assert.Equal(t, "already_running", out["status"])
	assert.Equal(t, existing.ID, out["job_id"])
}

func TestHandleGetJobStatus(t *testing.T) {
	s := newTestServer(t, testRegistry)

	t.Run("missing id", func(t *testing.T) {
		res, err := s.handleGetJobStatus(context.Background(), callTool(nil))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})

	t.Run("unknown id", func(t *testing.T) {
		res, err := s.handleGetJobStatus(context.Background(), callTool(map[string]any{"job_id": "nope"}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})

	t.Run("failed job", func(t *testing.T) {
		job, _ := s.jobManager.CreateJob("clinic", JobKindNotify)
		s.jobManager.UpdateStatus(job.ID, JobStatusFailed, "no channels reachable")

		res, err := s.handleGetJobStatus(context.Background(), callTool(map[string]any{"job_id": job.ID}))
		require.NoError(t, err)
		out := decodeResult(t, res)
		assert.Equal(t, "failed", out["status"])
		assert.Equal(t, "notify", out["kind"])
		assert.Equal(t, "no channels reachable", out["error_message"])
		assert.Contains(t, out, "completed_at")
	})
}
