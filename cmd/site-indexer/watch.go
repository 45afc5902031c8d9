package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sriram-PR/site-indexer/pkg/pipeline"
	"github.com/Sriram-PR/site-indexer/pkg/watch"
)

// runWatch handles the watch subcommand
func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	f := addSiteFlags(fs)
	interval := fs.String("interval", "24h", "Run interval (e.g., 30m, 1h, 24h, 1d)")
	skipNotify := fs.Bool("skip-notify", false, "Build and validate without contacting search engines")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: site-indexer watch [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nSites also rerun as soon as their registry file changes.\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  site-indexer watch -site default --interval 24h\n")
		fmt.Fprintf(os.Stderr, "  site-indexer watch --all-sites --interval 6h\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doWatch(f, *interval, pipeline.Options{SkipNotify: *skipNotify}, os.Stderr))
}

// doWatch runs the watch scheduler until a signal arrives
func doWatch(f *siteFlags, intervalStr string, opts pipeline.Options, stderr io.Writer) int {
	log := setupLogger(f.logLevel, stderr)

	interval, err := watch.ParseInterval(intervalStr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid interval: %v\n", err)
		return 1
	}
	log.Infof("Watch interval: %v", watch.FormatInterval(interval))

	appCfg, siteKeys, err := prepareSites(f, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	scheduler := watch.NewScheduler(appCfg, siteKeys, interval, opts, log.WithField("component", "watch"))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		sig := <-sigChan
		log.Warnf("Received signal %v, stopping watch...", sig)
		scheduler.Stop()
	}()

	if err := scheduler.Run(); err != nil {
		fmt.Fprintf(stderr, "Watch scheduler error: %v\n", err)
		return 1
	}
	log.Info("Watch mode stopped")
	return 0
}
