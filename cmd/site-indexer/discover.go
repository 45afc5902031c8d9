package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Sriram-PR/site-indexer/pkg/discover"
	"github.com/Sriram-PR/site-indexer/pkg/registry"
)

// runDiscover handles the discover subcommand
func runDiscover(args []string) {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	f := addSiteFlags(fs)
	distDir := fs.String("dist", "dist", "Built site directory to scan for HTML pages")
	baseURL := fs.String("base", "", "Site base URL (defaults to the configured site's domain)")
	out := fs.String("out", "registry.discovered.yaml", "Registry file to write")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: site-indexer discover [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  site-indexer discover -dist ./dist -base https://example.com\n")
		fmt.Fprintf(os.Stderr, "  site-indexer discover -site default -out registry.yaml\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doDiscover(f, *distDir, *baseURL, *out, os.Stdout, os.Stderr))
}

// doDiscover scans distDir and writes the inferred registry to out
func doDiscover(f *siteFlags, distDir, baseURL, out string, stdout, stderr io.Writer) int {
	log := setupLogger(f.logLevel, stderr)

	if baseURL == "" {
		appCfg, siteKeys, err := prepareSites(f, log)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v (or pass -base)\n", err)
			return 1
		}
		if len(siteKeys) != 1 {
			fmt.Fprintf(stderr, "Error: discover needs one site, got %v (use -site or -base)\n", siteKeys)
			return 1
		}
		baseURL = appCfg.Sites[siteKeys[0]].Domain
	}

	pages, err := discover.Scan(context.Background(), distDir, baseURL, log.WithField("component", "discover"))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := registry.Validate(pages); err != nil {
		log.WithError(err).Warn("Discovered registry needs manual fixes")
	}
	if err := discover.WriteRegistry(out, pages); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	stats := registry.ComputeStats(pages)
	fmt.Fprintf(stdout, "Discovered %d pages (%d en, %d es), wrote %s\n",
		stats.Total, stats.ByLocale["en"], stats.ByLocale["es"], out)
	return 0
}
