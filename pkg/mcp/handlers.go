package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/site-indexer/pkg/pipeline"
	"github.com/Sriram-PR/site-indexer/pkg/registry"
	"github.com/Sriram-PR/site-indexer/pkg/watch"
)

// handleListSites handles the list_sites tool
func (s *Server) handleListSites(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keys := pipeline.GetAllSiteKeys(s.cfg.AppConfig)

	stateManager := watch.NewStateManager(s.cfg.AppConfig.StateDir)
	if err := stateManager.Load(); err != nil {
		s.log.WithError(err).Warn("Watch state unreadable, listing sites without run history")
	}

	sites := make([]map[string]any, 0, len(keys))
	for _, key := range keys {
		site, err := s.orch.Site(key)
		if err != nil {
			continue
		}
		siteInfo := map[string]any{
			"key":           key,
			"domain":        site.Config.Domain,
			"registry_file": site.Config.RegistryFile,
			"output_dir":    site.OutputDir,
			"report_dir":    site.ReportDir,
			"channels":      site.Notifier().Channels,
		}

		if state, ok := stateManager.GetSiteState(key); ok {
			siteInfo["last_run"] = state.LastRunTime.Format(time.RFC3339)
			siteInfo["last_run_success"] = state.LastRunSuccess
			if state.Verdict != "" {
				siteInfo["verdict"] = state.Verdict
			}
		}

		if s.jobManager.IsRunning(key) {
			siteInfo["status"] = "running"
		}

		sites = append(sites, siteInfo)
	}

	result := map[string]any{
		"sites":       sites,
		"config_path": s.cfg.ConfigPath,
		"total_sites": len(sites),
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// siteFromRequest resolves the site_key argument. A non-nil result is the error to return to the client.
func (s *Server) siteFromRequest(request mcp.CallToolRequest) (*pipeline.Site, *mcp.CallToolResult) {
	siteKey := request.GetString("site_key", "")
	if siteKey == "" {
		return nil, mcp.NewToolResultError("site_key parameter is required")
	}
	if err := pipeline.ValidateSiteKeys(s.cfg.AppConfig, []string{siteKey}); err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	site, err := s.orch.Site(siteKey)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return site, nil
}

// handleInspectRegistry handles the inspect_registry tool
func (s *Server) handleInspectRegistry(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	site, errResult := s.siteFromRequest(request)
	if errResult != nil {
		return errResult, nil
	}

	pages, err := registry.Load(site.Config.RegistryFile)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load registry: %v", err)), nil
	}

	result := map[string]any{
		"site_key": site.Key,
		"registry": site.Config.RegistryFile,
		"stats":    registry.ComputeStats(pages),
		"valid":    true,
	}
	if err := registry.Validate(pages); err != nil {
		result["valid"] = false
		result["error"] = err.Error()
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleBuildSitemap handles the build_sitemap tool
func (s *Server) handleBuildSitemap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	site, errResult := s.siteFromRequest(request)
	if errResult != nil {
		return errResult, nil
	}

	pages, err := site.LoadRegistry()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("registry rejected: %v", err)), nil
	}
	set, err := site.Build(pages, time.Now())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("build failed: %v", err)), nil
	}

	written := site.Write(set)
	result := map[string]any{
		"site_key":   site.Key,
		"url_count":  set.URLCount,
		"split":      set.Split(),
		"files":      written.Written,
		"output_dir": site.OutputDir,
	}
	if written.Err != nil {
		result["write_error"] = written.Err.Error()
	}

	robotsPath, err := site.WriteRobots(set)
	if err != nil {
		result["robots_error"] = err.Error()
	} else {
		result["robots"] = robotsPath
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleValidateDeployment handles the validate_deployment tool
func (s *Server) handleValidateDeployment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	site, errResult := s.siteFromRequest(request)
	if errResult != nil {
		return errResult, nil
	}
	if dir := request.GetString("directory", ""); dir != "" {
		site.OutputDir = dir
	}

	// A broken registry still validates; the URL count check then warns
	registrySize := 0
	if pages, err := registry.Load(site.Config.RegistryFile); err == nil {
		registrySize = len(pages)
	}

	report, err := site.Validate(registrySize)
	if report == nil {
		return mcp.NewToolResultError(fmt.Sprintf("validation failed: %v", err)), nil
	}

	result := map[string]any{
		"site_key":     site.Key,
		"directory":    site.OutputDir,
		"verdict":      report.Verdict,
		"ready":        report.Ready,
		"success_rate": report.SuccessRate,
		"passed":       report.Passed,
		"warned":       report.Warned,
		"failed":       report.Failed,
		"results":      report.Results,
	}
	if len(report.Errors) > 0 {
		result["errors"] = report.Errors
	}
	if err != nil {
		result["report_error"] = err.Error()
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleNotifyEngines handles the notify_engines tool
func (s *Server) handleNotifyEngines(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.startJob(request, JobKindNotify)
}

// handleRunSite handles the run_site tool
func (s *Server) handleRunSite(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.startJob(request, JobKindRun)
}

// startJob creates a background job for the requested site unless one is already active
func (s *Server) startJob(request mcp.CallToolRequest, kind JobKind) (*mcp.CallToolResult, error) {
	site, errResult := s.siteFromRequest(request)
	if errResult != nil {
		return errResult, nil
	}

	job, created := s.jobManager.CreateJob(site.Key, kind)
	if !created {
		result := map[string]any{
			"status":   "already_running",
			"message":  fmt.Sprintf("A %s job is already in progress for this site", job.Kind),
			"job_id":   job.ID,
			"site_key": site.Key,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	go s.runJob(job.ID, kind, site)

	result := map[string]any{
		"status":   "started",
		"message":  fmt.Sprintf("%s job started", kind),
		"job_id":   job.ID,
		"site_key": site.Key,
		"kind":     kind,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// runJob runs a job in the background
func (s *Server) runJob(jobID string, kind JobKind, site *pipeline.Site) {
	s.jobManager.UpdateStatus(jobID, JobStatusRunning, "")
	jobCtx := s.jobManager.GetContext(jobID)

	if kind == JobKindRun {
		s.jobManager.Finish(jobID, s.orch.RunSite(jobCtx, site.Key))
		return
	}

	result := pipeline.SiteResult{SiteKey: site.Key}
	pages, err := site.LoadRegistry()
	if err != nil {
		result.Error = err
		s.jobManager.Finish(jobID, result)
		return
	}
	result.URLCount = len(pages)
	set, err := site.Build(pages, time.Now())
	if err != nil {
		result.Error = err
		s.jobManager.Finish(jobID, result)
		return
	}
	result.Submission, result.Error = site.Notify(jobCtx, set, pages)
	result.Success = result.Error == nil
	s.jobManager.Finish(jobID, result)
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job := s.jobManager.GetJob(jobID)
	if job == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]any{
		"job_id":     job.ID,
		"site_key":   job.SiteKey,
		"kind":       job.Kind,
		"status":     job.Status,
		"started_at": job.StartedAt.Format(time.RFC3339),
		"url_count":  job.URLCount,
	}
	if job.Verdict != "" {
		result["verdict"] = job.Verdict
	}
	if job.IndexingStatus != "" {
		result["indexing_status"] = job.IndexingStatus
	}
	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]any) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
