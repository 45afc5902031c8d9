package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-indexer/pkg/config"
	"github.com/Sriram-PR/site-indexer/pkg/pipeline"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "build":
		runBuild(args)
	case "robots":
		runRobots(args)
	case "notify":
		runNotify(args)
	case "validate":
		runValidate(args)
	case "run":
		runPipeline(args)
	case "watch":
		runWatch(args)
	case "discover":
		runDiscover(args)
	case "inspect":
		runInspect(args)
	case "check-config":
		runCheckConfig(args)
	case "list-sites":
		runListSites(args)
	case "mcp-server":
		runMcpServer(args)
	case "version":
		fmt.Printf("site-indexer %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `site-indexer - Sitemap, robots.txt and search engine indexing toolkit

Usage:
  site-indexer <command> [options]

Commands:
  build         Generate sitemaps and robots.txt from the page registry
  robots        Generate robots.txt only
  notify        Notify search engines about the sitemap
  validate      Validate emitted sitemaps and robots.txt before deployment
  run           Build, notify and validate in one pass
  watch         Re-run the pipeline on a schedule or when the registry changes
  discover      Scan a built site and write a page registry
  inspect       Show registry statistics
  check-config  Validate configuration file
  list-sites    List available site keys
  mcp-server    Start MCP server for AI tool integration
  version       Show version info

Run 'site-indexer <command> -h' for command-specific help.`)
}

// siteFlags are the config and site selection flags shared by the site commands
type siteFlags struct {
	configFile string
	siteKey    string
	sites      string
	allSites   bool
	logLevel   string
}

func addSiteFlags(fs *flag.FlagSet) *siteFlags {
	f := &siteFlags{}
	fs.StringVar(&f.configFile, "config", "config.yaml", "Path to config file")
	fs.StringVar(&f.siteKey, "site", "", "Site key from config (single site)")
	fs.StringVar(&f.sites, "sites", "", "Comma-separated site keys")
	fs.BoolVar(&f.allSites, "all-sites", false, "Use all configured sites (the default when no site is named)")
	fs.StringVar(&f.logLevel, "loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	return f
}

// requestedKeys returns the named sites; nil means every configured site
func (f *siteFlags) requestedKeys() []string {
	if f.allSites {
		return nil
	}
	if f.sites != "" {
		var keys []string
		for _, s := range strings.Split(f.sites, ",") {
			if s = strings.TrimSpace(s); s != "" {
				keys = append(keys, s)
			}
		}
		return keys
	}
	if f.siteKey != "" {
		return []string{f.siteKey}
	}
	return nil
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
		log.Debugf("Setting log level to: %s", level.String())
	}
	return log
}

// loadAndValidateConfig loads the config file, validates it, and logs warnings.
func loadAndValidateConfig(configFile string, log *logrus.Logger) (*config.AppConfig, error) {
	log.Infof("Loading configuration from %s", configFile)
	appCfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	appWarnings, err := appCfg.Validate()
	for _, w := range appWarnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	return appCfg, nil
}

// validateSiteConfigs validates the configuration for each site key and logs warnings.
func validateSiteConfigs(appCfg *config.AppConfig, siteKeys []string, log *logrus.Logger) error {
	for _, key := range siteKeys {
		siteCfg := appCfg.Sites[key]
		if siteCfg == nil {
			return fmt.Errorf("site '%s' has an empty configuration", key)
		}
		siteWarnings, err := siteCfg.Validate()
		for _, w := range siteWarnings {
			log.Warnf("[%s] %s", key, w)
		}
		if err != nil {
			return fmt.Errorf("site '%s' configuration error: %w", key, err)
		}
	}
	return nil
}

// prepareSites loads the config and resolves and validates the selected sites
func prepareSites(f *siteFlags, log *logrus.Logger) (*config.AppConfig, []string, error) {
	appCfg, err := loadAndValidateConfig(f.configFile, log)
	if err != nil {
		return nil, nil, err
	}

	siteKeys := f.requestedKeys()
	if siteKeys == nil {
		siteKeys = pipeline.GetAllSiteKeys(appCfg)
		log.Debugf("All sites mode: found %d sites", len(siteKeys))
	}
	if len(siteKeys) == 0 {
		return nil, nil, fmt.Errorf("no sites configured in %s (set SITE_DOMAIN or add a sites entry)", f.configFile)
	}
	if err := pipeline.ValidateSiteKeys(appCfg, siteKeys); err != nil {
		return nil, nil, err
	}
	if err := validateSiteConfigs(appCfg, siteKeys, log); err != nil {
		return nil, nil, err
	}
	return appCfg, siteKeys, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM. A second signal forces exit.
func signalContext(log *logrus.Logger, onSignal func()) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("PANIC in signal handler: %v", r)
			}
		}()
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
		case <-ctx.Done():
			return
		}
		if onSignal != nil {
			onSignal()
		}
		cancel()

		select {
		case sig := <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// logAppConfig logs the effective global configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Debugf("Global Config: OutputDir:%s, ReportDir:%s, StateDir:%s",
		appCfg.OutputBaseDir, appCfg.ReportBaseDir, appCfg.StateDir)
	log.Debugf("Global Config Retries: Max:%d, InitialDelay:%v, MaxDelay:%v",
		appCfg.MaxRetries, appCfg.InitialRetryDelay, appCfg.MaxRetryDelay)
	log.Debugf("Global Config Notifier: Channels:%v, Concurrent:%d, PerHost:%d, PerPageDelay:%v, PingDelay:%v",
		appCfg.Notifier.Channels, appCfg.MaxConcurrentChannels, appCfg.MaxRequestsPerHost,
		appCfg.Notifier.PerPageDelay, appCfg.Notifier.PingDelay)
	log.Debugf("Global Config HTTP Client: Timeout:%v, MaxIdle:%d, MaxIdlePerHost:%d, IdleTimeout:%v, TLSTimeout:%v, DialerTimeout:%v",
		appCfg.HTTPClientSettings.Timeout, appCfg.HTTPClientSettings.MaxIdleConns, appCfg.HTTPClientSettings.MaxIdleConnsPerHost,
		appCfg.HTTPClientSettings.IdleConnTimeout, appCfg.HTTPClientSettings.TLSHandshakeTimeout, appCfg.HTTPClientSettings.DialerTimeout)
}
