package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/Sriram-PR/site-indexer/pkg/config"
	"github.com/Sriram-PR/site-indexer/pkg/notify"
	"github.com/Sriram-PR/site-indexer/pkg/pipeline"
	"github.com/Sriram-PR/site-indexer/pkg/registry"
)

// runBuild handles the build subcommand
func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	f := addSiteFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: site-indexer build [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  site-indexer build\n")
		fmt.Fprintf(os.Stderr, "  site-indexer build -site default -config config.yaml\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doBuild(f, false, os.Stdout, os.Stderr))
}

// runRobots handles the robots subcommand
func runRobots(args []string) {
	fs := flag.NewFlagSet("robots", flag.ExitOnError)
	f := addSiteFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: site-indexer robots [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doBuild(f, true, os.Stdout, os.Stderr))
}

// doBuild generates sitemaps (unless robotsOnly) and robots.txt for every selected site.
// Returns exit code (0 = success, 1 = a registry or required file failed).
func doBuild(f *siteFlags, robotsOnly bool, stdout, stderr io.Writer) int {
	log := setupLogger(f.logLevel, stderr)
	appCfg, siteKeys, err := prepareSites(f, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logAppConfig(appCfg, log)

	orch := pipeline.NewOrchestrator(appCfg, siteKeys, pipeline.Options{}, log.WithField("component", "build"))
	now := time.Now()
	exitCode := 0
	for _, key := range siteKeys {
		site, err := orch.Site(key)
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", key, err)
			exitCode = 1
			continue
		}
		pages, err := site.LoadRegistry()
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] registry rejected: %v\n", key, err)
			exitCode = 1
			continue
		}
		set, err := site.Build(pages, now)
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] build failed: %v\n", key, err)
			exitCode = 1
			continue
		}

		if !robotsOnly {
			res := site.Write(set)
			for _, file := range res.Written {
				fmt.Fprintf(stdout, "  %s (%d bytes)\n", file.Path, file.Bytes)
			}
			if res.Err != nil {
				fmt.Fprintf(stderr, "ERROR: [%s] %v\n", key, res.Err)
				exitCode = 1
				continue
			}
		}

		robotsPath, err := site.WriteRobots(set)
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", key, err)
			exitCode = 1
			continue
		}
		if robotsOnly {
			fmt.Fprintf(stdout, "OK: [%s] %s lists %d sitemap(s)\n", key, robotsPath, len(set.All()))
		} else {
			fmt.Fprintf(stdout, "OK: [%s] %d URLs in %d file(s), %s\n", key, set.URLCount, len(set.All()), robotsPath)
		}
	}
	return exitCode
}

// runNotify handles the notify subcommand
func runNotify(args []string) {
	fs := flag.NewFlagSet("notify", flag.ExitOnError)
	f := addSiteFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: site-indexer notify [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nSecrets come from the environment: INDEXNOW_API_KEY, GOOGLE_APPLICATION_CREDENTIALS.\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doNotify(f, os.Stdout, os.Stderr))
}

// doNotify notifies search engines for every selected site. Channel failures only show in
// the reports; the exit code is 1 for config, registry or report write failures.
func doNotify(f *siteFlags, stdout, stderr io.Writer) int {
	log := setupLogger(f.logLevel, stderr)
	appCfg, siteKeys, err := prepareSites(f, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signalContext(log, nil)
	defer stop()

	orch := pipeline.NewOrchestrator(appCfg, siteKeys, pipeline.Options{}, log.WithField("component", "notify"))
	exitCode := 0
	for _, key := range siteKeys {
		site, err := orch.Site(key)
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", key, err)
			exitCode = 1
			continue
		}
		pages, err := site.LoadRegistry()
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] registry rejected: %v\n", key, err)
			exitCode = 1
			continue
		}
		set, err := site.Build(pages, time.Now())
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] build failed: %v\n", key, err)
			exitCode = 1
			continue
		}

		report, err := site.Notify(ctx, set, pages)
		if report != nil {
			printSubmission(stdout, key, report)
			if report.ManualRequired {
				fmt.Fprintf(stdout, "  Manual steps required, see %s/%s\n", site.ReportDir, notify.InstructionsFile)
			}
		}
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", key, err)
			exitCode = 1
		}
	}
	return exitCode
}

func printSubmission(w io.Writer, key string, report *notify.SubmissionReport) {
	fmt.Fprintf(w, "[%s] %s: indexing %s (success %d, warning %d, error %d)\n",
		key, report.SitemapURL, report.IndexingStatus,
		report.Counts.Success, report.Counts.Warning, report.Counts.Error)
	for _, ch := range report.Channels {
		fmt.Fprintf(w, "  %-16s %s\n", ch.Channel, ch.Status)
	}
	if v := report.Verification; v != nil {
		fmt.Fprintf(w, "  %-16s %s (%s: %s)\n", "verify", v.Status, v.Method, v.Message)
	}
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	f := addSiteFlags(fs)
	dir := fs.String("dir", "", "Directory to validate (single site only; defaults to the site's output directory)")
	strict := fs.Bool("strict", false, "Exit 1 when the deployment is not ready")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: site-indexer validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  site-indexer validate\n")
		fmt.Fprintf(os.Stderr, "  site-indexer validate -site default -dir ./dist -strict\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doValidate(f, *dir, *strict, os.Stdout, os.Stderr))
}

// doValidate checks emitted artifacts for every selected site and writes the reports
func doValidate(f *siteFlags, dir string, strict bool, stdout, stderr io.Writer) int {
	log := setupLogger(f.logLevel, stderr)
	appCfg, siteKeys, err := prepareSites(f, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if dir != "" && len(siteKeys) > 1 {
		fmt.Fprintln(stderr, "Error: -dir requires a single site (use -site)")
		return 1
	}

	orch := pipeline.NewOrchestrator(appCfg, siteKeys, pipeline.Options{}, log.WithField("component", "validate"))
	exitCode := 0
	for _, key := range siteKeys {
		site, err := orch.Site(key)
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", key, err)
			exitCode = 1
			continue
		}
		if dir != "" {
			site.OutputDir = dir
		}

		registrySize := 0
		if pages, err := registry.Load(site.Config.RegistryFile); err != nil {
			log.WithError(err).WithField("site", key).Warn("Registry unreadable, URL count will not be compared")
		} else {
			registrySize = len(pages)
		}

		report, err := site.Validate(registrySize)
		if report == nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", key, err)
			exitCode = 1
			continue
		}
		fmt.Fprint(stdout, report.Summary())
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", key, err)
			exitCode = 1
		}
		if strict && !report.Ready {
			exitCode = 1
		}
	}
	return exitCode
}

// runPipeline handles the run subcommand
func runPipeline(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	f := addSiteFlags(fs)
	skipNotify := fs.Bool("skip-notify", false, "Build and validate without contacting search engines")
	skipValidate := fs.Bool("skip-validate", false, "Skip the deployment validation step")
	strict := fs.Bool("strict", false, "Exit 1 when a site is not ready")
	parallel := fs.Int("parallel", 0, "Maximum sites run at once (0 = all)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: site-indexer run [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  site-indexer run -site default\n")
		fmt.Fprintf(os.Stderr, "  site-indexer run -sites clinic_en,clinic_es -skip-notify\n")
		fmt.Fprintf(os.Stderr, "  site-indexer run --all-sites -strict\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	opts := pipeline.Options{SkipNotify: *skipNotify, SkipValidate: *skipValidate, MaxParallelSites: *parallel}
	os.Exit(doRun(f, opts, *strict, os.Stdout, os.Stderr))
}

// doRun executes the full pipeline for the selected sites
func doRun(f *siteFlags, opts pipeline.Options, strict bool, stdout, stderr io.Writer) int {
	log := setupLogger(f.logLevel, stderr)
	appCfg, siteKeys, err := prepareSites(f, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logAppConfig(appCfg, log)

	ctx, stop := signalContext(log, nil)
	defer stop()

	orch := pipeline.NewOrchestrator(appCfg, siteKeys, opts, log.WithField("component", "pipeline"))
	results := orch.Run(ctx)

	exitCode := 0
	for _, r := range results {
		status := "OK"
		if !r.Success {
			status = "FAILED"
			exitCode = 1
		}
		line := fmt.Sprintf("%s: [%s] %d URLs", status, r.SiteKey, r.URLCount)
		if r.Submission != nil {
			line += ", indexing " + r.Submission.IndexingStatus
		}
		if r.Validation != nil {
			line += ", " + r.Validation.Verdict
		}
		fmt.Fprintln(stdout, line)
		if r.Error != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", r.SiteKey, r.Error)
		}
		if strict && !opts.SkipValidate && !r.Ready() {
			exitCode = 1
		}
	}
	return exitCode
}

// runInspect handles the inspect subcommand
func runInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	f := addSiteFlags(fs)
	registryFile := fs.String("registry", "", "Inspect this registry file directly (no config needed)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: site-indexer inspect [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doInspect(f, *registryFile, os.Stdout, os.Stderr))
}

// doInspect prints registry statistics. Returns 1 when a registry is unreadable or invalid.
func doInspect(f *siteFlags, registryFile string, stdout, stderr io.Writer) int {
	if registryFile != "" {
		return inspectRegistry(registryFile, registryFile, stdout, stderr)
	}

	log := setupLogger(f.logLevel, stderr)
	appCfg, siteKeys, err := prepareSites(f, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	exitCode := 0
	for _, key := range siteKeys {
		if code := inspectRegistry(key, appCfg.Sites[key].RegistryFile, stdout, stderr); code != 0 {
			exitCode = code
		}
	}
	return exitCode
}

func inspectRegistry(label, path string, stdout, stderr io.Writer) int {
	pages, err := registry.Load(path)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: [%s] %v\n", label, err)
		return 1
	}
	stats := registry.ComputeStats(pages)

	fmt.Fprintf(stdout, "Registry %s (%s): %d pages\n", label, path, stats.Total)
	fmt.Fprintln(stdout, "  By locale:")
	for _, k := range sortedKeys(stats.ByLocale) {
		fmt.Fprintf(stdout, "    %-12s %d\n", k, stats.ByLocale[k])
	}
	fmt.Fprintln(stdout, "  By category:")
	for _, k := range sortedKeys(stats.ByCategory) {
		fmt.Fprintf(stdout, "    %-12s %d\n", k, stats.ByCategory[k])
	}
	fmt.Fprintln(stdout, "  By priority:")
	for _, k := range stats.PriorityKeys() {
		fmt.Fprintf(stdout, "    %-12s %d\n", k, stats.ByPriority[k])
	}

	if err := registry.Validate(pages); err != nil {
		fmt.Fprintf(stderr, "ERROR: [%s] %v\n", label, err)
		return 1
	}
	return 0
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// runCheckConfig handles the check-config subcommand
func runCheckConfig(args []string) {
	fs := flag.NewFlagSet("check-config", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	siteKey := fs.String("site", "", "Site key to validate (optional, validates all if empty)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: site-indexer check-config [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doCheckConfig(*configFile, *siteKey, os.Stdout, os.Stderr))
}

// doCheckConfig performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doCheckConfig(configPath, siteKey string, stdout, stderr io.Writer) int {
	appCfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	keys := []string{siteKey}
	if siteKey == "" {
		keys = pipeline.GetAllSiteKeys(appCfg)
	} else if _, ok := appCfg.Sites[siteKey]; !ok {
		fmt.Fprintf(stderr, "Error: site '%s' not found in config\n", siteKey)
		return 1
	}
	if len(keys) == 0 {
		fmt.Fprintln(stderr, "Error: no sites configured (set SITE_DOMAIN or add a sites entry)")
		return 1
	}

	hasError := false
	for _, key := range keys {
		siteCfg := appCfg.Sites[key]
		if siteCfg == nil {
			fmt.Fprintf(stderr, "ERROR: [%s] empty site configuration\n", key)
			hasError = true
			continue
		}
		siteWarnings, err := siteCfg.Validate()
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", key, err)
			hasError = true
			continue
		}
		for _, w := range siteWarnings {
			fmt.Fprintf(stdout, "WARN: [%s] %s\n", key, w)
		}
		if _, err := os.Stat(siteCfg.RegistryFile); errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(stdout, "WARN: [%s] registry file %s does not exist yet\n", key, siteCfg.RegistryFile)
		}
		fmt.Fprintf(stdout, "OK: [%s]\n", key)
	}
	if hasError {
		return 1
	}

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// runListSites handles the list-sites subcommand
func runListSites(args []string) {
	fs := flag.NewFlagSet("list-sites", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: site-indexer list-sites [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doListSites(*configFile, os.Stdout, os.Stderr))
}

// doListSites lists sites and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doListSites(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Sites in %s:\n\n", configPath)
	for _, key := range pipeline.GetAllSiteKeys(appCfg) {
		site := appCfg.Sites[key]
		if site == nil {
			continue
		}
		fmt.Fprintf(stdout, "  %s\n", key)
		fmt.Fprintf(stdout, "    Domain: %s\n", site.Domain)
		fmt.Fprintf(stdout, "    Registry: %s\n", site.RegistryFile)
		if site.OutputDir != "" {
			fmt.Fprintf(stdout, "    Output: %s\n", site.OutputDir)
		}
		if len(site.Notifier.Channels) > 0 {
			fmt.Fprintf(stdout, "    Channels: %v\n", site.Notifier.Channels)
		}
		fmt.Fprintln(stdout)
	}
	return 0
}
