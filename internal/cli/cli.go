// Package cli implements the curator command-line interface.
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/curator/pkg/buildinfo"
	"github.com/matzehuels/curator/pkg/cache"
	"github.com/matzehuels/curator/pkg/catalog"
	"github.com/matzehuels/curator/pkg/config"
	"github.com/matzehuels/curator/pkg/curate"
	"github.com/matzehuels/curator/pkg/integrations/npm"
)

// =============================================================================
// Constants
// =============================================================================

const appName = "curator"

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

	configPath string
	registry   string
	noCache    bool
	cfg        *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Curator finds npm packages and curates them into an approval table",
		Long:         `Curator searches the npm registry, imports package.json dependencies and keeps a working table of packages to accept or reject.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/curator/config.toml)")
	flags.StringVar(&c.registry, "registry", "", "npm registry URL (overrides config)")
	flags.BoolVar(&c.noCache, "no-cache", false, "bypass the registry response cache")

	root.AddCommand(c.searchCommand())
	root.AddCommand(c.infoCommand())
	root.AddCommand(c.importCommand())
	root.AddCommand(c.tuiCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration
// =============================================================================

func (c *CLI) loadConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.registry != "" {
		cfg.Registry.URL = c.registry
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	c.Logger.Debug("config loaded", "registry", cfg.Registry.URL, "cache", cfg.Cache.Backend)
	c.cfg = cfg
	return nil
}

// config returns the loaded configuration, or the defaults when a command
// runs without the root pre-run (as in tests).
func (c *CLI) config() *config.Config {
	if c.cfg == nil {
		c.cfg = config.Default()
	}
	return c.cfg
}

// =============================================================================
// Registry Factory
// =============================================================================

// newRegistry opens the configured cache and returns a registry backed by
// it. The caller must call the returned close function.
func (c *CLI) newRegistry(ctx context.Context) (*catalog.RegistryFetcher, func(), error) {
	cfg := c.config()
	store, err := openCache(ctx, cfg, c.noCache)
	if err != nil {
		return nil, nil, err
	}
	client := npm.NewClient(store, cfg.Cache.TTL, npm.Options{
		BaseURL:           cfg.Registry.URL,
		Timeout:           cfg.Registry.Timeout,
		RequestsPerSecond: cfg.Registry.RequestsPerSecond,
		Retries:           cfg.Registry.Retries,
		Keyer:             cacheKeyer(cfg),
	})
	closeFn := func() {
		if err := store.Close(); err != nil {
			c.Logger.Warn("close cache", "error", err)
		}
	}
	return catalog.NewRegistryFetcher(client, false), closeFn, nil
}

// newCurator returns a curation session using the configured registry.
func (c *CLI) newCurator(ctx context.Context, includeDev bool, concurrency int) (*curate.Curator, func(), error) {
	reg, closeFn, err := c.newRegistry(ctx)
	if err != nil {
		return nil, nil, err
	}
	cfg := c.config()
	if concurrency <= 0 {
		concurrency = cfg.Import.Concurrency
	}
	cur := curate.New(reg, curate.Options{
		Debounce:          cfg.Search.Debounce,
		SearchSize:        cfg.Search.Size,
		ImportConcurrency: concurrency,
		IncludeDev:        includeDev || cfg.Import.IncludeDev,
		Logger:            c.Logger,
	})
	return cur, func() { cur.Close(); closeFn() }, nil
}

// cacheKeyer scopes cache keys with cache.prefix so that several
// deployments can share one redis or mongo instance.
func cacheKeyer(cfg *config.Config) cache.Keyer {
	if cfg.Cache.Prefix == "" {
		return cache.NewDefaultKeyer()
	}
	return cache.NewScopedKeyer(cache.NewDefaultKeyer(), cfg.Cache.Prefix)
}

func openCache(ctx context.Context, cfg *config.Config, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cfg.Cache.Backend {
	case config.BackendRedis:
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
	case config.BackendMongo:
		return cache.NewMongoCache(ctx, cache.MongoConfig{
			URI:      cfg.Cache.MongoURI,
			Database: cfg.Cache.MongoDatabase,
		})
	case config.BackendNone:
		return cache.NewNullCache(), nil
	default:
		return cache.NewFileCache(cfg.CacheDirOf())
	}
}
