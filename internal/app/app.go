package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/gustavoatec2-lang/havencomics/internal/config"
	"github.com/gustavoatec2-lang/havencomics/internal/database"
	"github.com/gustavoatec2-lang/havencomics/internal/fetch"
	apihttp "github.com/gustavoatec2-lang/havencomics/internal/http"
	"github.com/gustavoatec2-lang/havencomics/internal/notifications"
	"github.com/gustavoatec2-lang/havencomics/internal/pipeline"
	"github.com/gustavoatec2-lang/havencomics/internal/profiles"
	profiledefaults "github.com/gustavoatec2-lang/havencomics/internal/profiles/defaults"
	"github.com/gustavoatec2-lang/havencomics/internal/proxy"
	"github.com/gustavoatec2-lang/havencomics/internal/publish"
	"github.com/gustavoatec2-lang/havencomics/internal/repository"
	"github.com/gustavoatec2-lang/havencomics/internal/republish"
	"github.com/gustavoatec2-lang/havencomics/internal/scheduler"
	"github.com/gustavoatec2-lang/havencomics/internal/storage"
)

// App wires the catalog database, the scraping stack and the pipeline.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	DB       *sql.DB
	Profiles *profiles.Registry
	Proxies  *proxy.Registry
	Fetcher  *fetch.Fetcher
	Store    storage.ObjectStore
	Catalog  *repository.CatalogRepository
	Jobs     *repository.JobRepository
	Pipeline *pipeline.Pipeline
	Runner   *scheduler.Runner
}

type options struct {
	httpClient      *http.Client
	profileBaseURLs map[string]string
	store           storage.ObjectStore
}

type Option func(*options)

// WithHTTPClient replaces the client used for proxy requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithProfileBaseURLs points built-in site profiles at other hosts, by
// profile key.
func WithProfileBaseURLs(baseURLs map[string]string) Option {
	return func(o *options) {
		o.profileBaseURLs = baseURLs
	}
}

func WithStore(store storage.ObjectStore) Option {
	return func(o *options) {
		o.store = store
	}
}

func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	profileRegistry, err := profiledefaults.NewRegistry(cfg.ProfilesPath, o.profileBaseURLs)
	if err != nil {
		logger.Warn("site profiles loaded with warnings", "path", cfg.ProfilesPath, "error", err)
	}

	proxyRegistry, err := proxy.NewDefaultRegistry(cfg.ProxyKeys(), cfg.ProxyBaseURLs())
	if err != nil {
		return nil, fmt.Errorf("build proxy registry: %w", err)
	}
	if cfg.DefaultProxy != "" {
		if err := proxyRegistry.SetDefault(cfg.DefaultProxy); err != nil {
			logger.Warn("default proxy ignored", "proxy", cfg.DefaultProxy, "error", err)
		}
	}

	store := o.store
	if store == nil {
		store, err = storage.New(cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("build object store: %w", err)
		}
	}

	db, err := database.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
	}

	applied, err := database.ApplyMigrations(db, cfg.MigrationsPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", "versions", applied)
	}

	if cfg.SeedDefaultData {
		if err := database.SeedSources(db, sourceSeeds(profileRegistry)); err != nil {
			db.Close()
			return nil, fmt.Errorf("seed sources: %w", err)
		}
	}

	persistent := fetch.PersistentPolicy()
	persistent.MaxAttempts = cfg.ExtractMaxAttempts
	fetchOptions := []fetch.Option{
		fetch.WithTimeout(cfg.HTTPTimeout),
		fetch.WithLogger(logger),
		fetch.WithPersistentPolicy(persistent),
	}
	if o.httpClient != nil {
		fetchOptions = append(fetchOptions, fetch.WithHTTPClient(o.httpClient))
	}
	fetcher := fetch.New(fetchOptions...)

	catalog := repository.NewCatalogRepository(db)
	jobs := repository.NewJobRepository(db)
	republisher := republish.New(fetcher, store,
		republish.WithRateLimit(cfg.RehostRatePerSecond),
		republish.WithLogger(logger),
	)
	publisher := publish.New(catalog, republisher, fetcher, notifications.FromURL(cfg.WebhookURL), publish.Config{
		RehostCovers: cfg.RehostCovers,
	}, logger)

	defaultSource := cfg.DefaultSource
	if _, ok := profileRegistry.Get(defaultSource); !ok {
		defaultSource = ""
	}
	scrape := pipeline.New(profileRegistry, proxyRegistry, fetcher, publisher, jobs, pipeline.Config{
		DefaultSource: defaultSource,
		DefaultProxy:  defaultProxyID(proxyRegistry),
		ChapterDelay:  cfg.ChapterDelay,
	}, logger)

	return &App{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Profiles: profileRegistry,
		Proxies:  proxyRegistry,
		Fetcher:  fetcher,
		Store:    store,
		Catalog:  catalog,
		Jobs:     jobs,
		Pipeline: scrape,
		Runner:   scheduler.NewRunner(scheduler.RunnerConfig{}, logger),
	}, nil
}

// Server builds the admin API. The runner must be started separately.
func (a *App) Server() *fiber.App {
	services := apihttp.Services{
		Pipeline: a.Pipeline,
		Runner:   a.Runner,
		Profiles: a.Profiles,
		Proxies:  a.Proxies,
	}
	if local, ok := a.Store.(*storage.LocalStore); ok && a.Config.Storage.PublicBaseURL == "" {
		services.MediaRoot = local.Root()
	}
	return apihttp.NewServer(a.Config, a.DB, services)
}

func (a *App) Close() error {
	return a.DB.Close()
}

func sourceSeeds(registry *profiles.Registry) []database.SourceSeed {
	descriptors := registry.List()
	seeds := make([]database.SourceSeed, 0, len(descriptors))
	for _, descriptor := range descriptors {
		seeds = append(seeds, database.SourceSeed{
			Key:     descriptor.Key,
			Name:    descriptor.Name,
			Kind:    descriptor.Kind,
			BaseURL: descriptor.BaseURL,
		})
	}
	return seeds
}

func defaultProxyID(registry *proxy.Registry) string {
	if provider, ok := registry.Default(); ok {
		return provider.ID()
	}
	return ""
}
