package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

// Environment variables that override file configuration
const (
	EnvSiteDomain   = "SITE_DOMAIN"
	EnvIndexNowKey  = "INDEXNOW_API_KEY"
	EnvCredentials  = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvRunTimeout   = "GLOBAL_RUN_TIMEOUT"
	EnvEnvFile      = "ENV_FILE"
	DefaultSiteKey  = "default"
	defaultRegistry = "registry.yaml"
)

// loadEnvFiles loads ENV_FILE when set, otherwise .env.local then .env.
// Variables already present in the environment are never overridden.
func loadEnvFiles() error {
	if envFile := os.Getenv(EnvEnvFile); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the YAML config at path and applies environment overrides.
// A missing file is tolerated when SITE_DOMAIN is set: a single "default" site is synthesized.
func Load(path string) (*AppConfig, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrFilesystem, err)
	}

	var cfg AppConfig
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: parse config %s: %w", utils.ErrConfigValidation, path, err)
		}
	case errors.Is(err, os.ErrNotExist) && os.Getenv(EnvSiteDomain) != "":
		// env-only mode
	default:
		return nil, fmt.Errorf("%w: read config: %w", utils.ErrFilesystem, err)
	}

	ApplyEnvOverrides(&cfg)
	return &cfg, nil
}

// ApplyEnvOverrides copies secrets, the run timeout and the site domain from the environment into cfg.
// An unparsable GLOBAL_RUN_TIMEOUT is ignored.
// SITE_DOMAIN fills every site whose domain is empty; with no sites at all it creates the "default" site.
func ApplyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv(EnvIndexNowKey); v != "" {
		cfg.Notifier.IndexNowKey = v
	}
	if v := os.Getenv(EnvCredentials); v != "" {
		cfg.Notifier.CredentialsFile = v
	}
	if v := os.Getenv(EnvRunTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.GlobalRunTimeout = d
		}
	}

	domain := os.Getenv(EnvSiteDomain)
	if domain == "" {
		return
	}
	if len(cfg.Sites) == 0 {
		cfg.Sites = map[string]*SiteConfig{
			DefaultSiteKey: {Domain: domain, RegistryFile: defaultRegistry},
		}
		return
	}
	for _, site := range cfg.Sites {
		if site != nil && site.Domain == "" {
			site.Domain = domain
		}
	}
}
