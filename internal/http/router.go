package http

import (
	"database/sql"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/gustavoatec2-lang/havencomics/internal/config"
	"github.com/gustavoatec2-lang/havencomics/internal/http/handlers"
	"github.com/gustavoatec2-lang/havencomics/internal/pipeline"
	"github.com/gustavoatec2-lang/havencomics/internal/profiles"
	"github.com/gustavoatec2-lang/havencomics/internal/proxy"
	"github.com/gustavoatec2-lang/havencomics/internal/scheduler"
	"github.com/gustavoatec2-lang/havencomics/internal/storage"
)

// Services are the long-lived components the admin API drives.
type Services struct {
	Pipeline *pipeline.Pipeline
	Runner   *scheduler.Runner
	Profiles *profiles.Registry
	Proxies  *proxy.Registry
	// MediaRoot is served under /media when images are stored locally.
	MediaRoot string
}

func NewServer(cfg config.Config, db *sql.DB, services Services) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: cfg.AppName,
	})

	app.Use(recover.New())

	validate := validator.New(validator.WithRequiredStructEnabled())

	health := handlers.NewHealthHandler(db)
	sources := handlers.NewSourcesHandler(db, services.Profiles, validate)
	proxies := handlers.NewProxiesHandler(services.Proxies)
	scrape := handlers.NewScrapeHandler(db, services.Pipeline, services.Runner, validate)
	mangas := handlers.NewMangasHandler(db, validate)

	if services.MediaRoot != "" {
		app.Static(storage.LocalMediaPrefix, services.MediaRoot)
	}
	app.Get("/health", health.Check)
	app.Get("/v1/health", health.Check)

	admin := app.Group("/v1/admin", handlers.AdminAuth(cfg.AdminToken))
	admin.Get("/sources", sources.List)
	admin.Patch("/sources/:key", sources.Update)
	admin.Get("/proxies", proxies.List)

	admin.Get("/scrape", scrape.Snapshot)
	admin.Post("/scrape/config", scrape.Configure)
	admin.Post("/scrape/catalog", scrape.FetchCatalog)
	admin.Post("/scrape/mangas/:slug/select", scrape.SelectManga)
	admin.Post("/scrape/chapters/toggle", scrape.ToggleChapter)
	admin.Post("/scrape/chapters/select-all", scrape.SelectAll)
	admin.Post("/scrape/extract", scrape.Extract)
	admin.Post("/scrape/publish/:number", scrape.Publish)
	admin.Post("/scrape/publish-all", scrape.PublishAll)
	admin.Post("/scrape/cancel", scrape.Cancel)
	admin.Post("/scrape/reset", scrape.Reset)
	admin.Get("/scrape/jobs/:id", scrape.Job)

	admin.Get("/mangas", mangas.List)
	admin.Post("/mangas", mangas.Create)
	admin.Patch("/mangas/:slug", mangas.Update)
	admin.Delete("/mangas/:slug", mangas.Delete)
	admin.Get("/mangas/:slug/chapters", mangas.Chapters)
	admin.Post("/mangas/:slug/chapters", mangas.AddChapter)
	admin.Delete("/mangas/:slug/chapters/:number", mangas.DeleteChapter)
	admin.Get("/stats", mangas.Stats)

	return app
}
