// Package cli implements the ovalmerge command-line interface.
package cli

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/ovalmerge/pkg/buildinfo"
	"github.com/matzehuels/ovalmerge/pkg/cache"
	"github.com/matzehuels/ovalmerge/pkg/config"
	"github.com/matzehuels/ovalmerge/pkg/httputil"
	"github.com/matzehuels/ovalmerge/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "ovalmerge"

	// serviceKeyPrefix keeps "serve" cache entries apart from CLI runs.
	serviceKeyPrefix = "svc:"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Config is loaded before any command runs; flags override it.
	Config *config.Config

	configPath string
	verbose    bool
	out        io.Writer
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
		out:    os.Stdout,
	}
}

// SetOutput redirects document output written to stdout.
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "ovalmerge combines OVAL vulnerability feeds into one document",
		Long: `ovalmerge combines several OVAL definition documents into one.

Documents are given in increasing priority. Every "oval:" id is first
rewritten to be unique across all inputs; then each package (the title of a
definition) is taken from the last document that defines it, together with
exactly the tests, objects, states and variables it references.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.loadConfig,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/ovalmerge/config.toml)")

	root.AddCommand(c.mergeCommand())
	root.AddCommand(c.idsCommand())
	root.AddCommand(c.packagesCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the config file and applies its log level. --verbose
// always wins.
func (c *CLI) loadConfig(cmd *cobra.Command, args []string) error {
	var (
		cfg *config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.Load(c.configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return err
	}
	c.Config = cfg

	level := parseLevel(cfg.Log.Level)
	if c.verbose {
		level = LogDebug
	}
	c.SetLogLevel(level)
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	ch, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(ch, nil, c.Logger), nil
}

// newCache opens the backend selected in the config. An unreachable Redis
// or MongoDB disables caching rather than failing the run.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	cfg := c.Config.Cache
	switch cfg.Backend {
	case config.BackendNone:
		return cache.NewNullCache(), nil
	case config.BackendRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			c.Logger.Warn("redis unavailable, caching disabled", "err", err)
			return cache.NewNullCache(), nil
		}
		return rc, nil
	case config.BackendMongo:
		mc, err := cache.NewMongoCache(ctx, cache.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
		})
		if err != nil {
			c.Logger.Warn("mongo unavailable, caching disabled", "err", err)
			return cache.NewNullCache(), nil
		}
		return mc, nil
	}
	dir, err := c.cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// newFetcher returns the downloader for http(s) sources, or nil when
// remote feeds are disabled. Bodies are cached under the cache directory
// unless noCache is set.
func (c *CLI) newFetcher(noCache bool) *httputil.Fetcher {
	fc := c.Config.Fetch
	if !fc.Enabled {
		return nil
	}
	opts := httputil.FetcherOptions{
		Client:   &http.Client{Timeout: time.Duration(fc.TimeoutSeconds) * time.Second},
		Logger:   c.Logger,
		Attempts: fc.Attempts,
		MaxBytes: int64(fc.MaxMB) << 20,
	}
	if !noCache {
		if dir, err := c.cacheDir(); err == nil {
			hc, err := httputil.NewCache(filepath.Join(dir, "feeds"), time.Duration(fc.TTLMinutes)*time.Minute)
			if err != nil {
				c.Logger.Warn("feed cache unavailable", "err", err)
			} else {
				opts.Cache = hc
			}
		}
	}
	return httputil.NewFetcher(opts)
}

// loadInputs reads local files and downloads URLs, in argument order.
func (c *CLI) loadInputs(ctx context.Context, sources []string, noCache bool) ([]pipeline.Input, error) {
	return pipeline.Load(ctx, sources, c.newFetcher(noCache))
}

// mergeOptions returns the merge defaults from the config.
func (c *CLI) mergeOptions() pipeline.Options {
	m := c.Config.Merge
	return pipeline.Options{
		Scheme:  m.Scheme,
		Width:   m.Width,
		Indent:  m.Indent,
		Workers: m.Workers,
		Logger:  c.Logger,
	}
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the configured cache directory, or the XDG default
// (~/.cache/ovalmerge/).
func (c *CLI) cacheDir() (string, error) {
	if c.Config != nil && c.Config.Cache.Dir != "" {
		return c.Config.Cache.Dir, nil
	}
	return cacheDir()
}

func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
