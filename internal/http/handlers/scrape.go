package handlers

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/gustavoatec2-lang/havencomics/internal/pipeline"
	"github.com/gustavoatec2-lang/havencomics/internal/repository"
	"github.com/gustavoatec2-lang/havencomics/internal/scheduler"
)

type configureRequest struct {
	Source string `json:"source" validate:"omitempty,max=64"`
	Proxy  string `json:"proxy" validate:"omitempty,max=64"`
}

type toggleChapterRequest struct {
	Number float64 `json:"number" validate:"gt=0"`
}

type selectAllRequest struct {
	// Selected nil flips the current selection.
	Selected *bool `json:"selected"`
}

// ScrapeHandler exposes the scrape workflow. Network-bound steps run on the
// background runner and answer 202 with the current snapshot; progress is
// read back through GET /scrape.
type ScrapeHandler struct {
	pipeline *pipeline.Pipeline
	runner   *scheduler.Runner
	sources  *repository.SourceRepository
	jobs     *repository.JobRepository
	validate *validator.Validate
}

func NewScrapeHandler(db *sql.DB, scrape *pipeline.Pipeline, runner *scheduler.Runner, validate *validator.Validate) *ScrapeHandler {
	return &ScrapeHandler{
		pipeline: scrape,
		runner:   runner,
		sources:  repository.NewSourceRepository(db),
		jobs:     repository.NewJobRepository(db),
		validate: validate,
	}
}

func (h *ScrapeHandler) Snapshot(c *fiber.Ctx) error {
	return c.JSON(h.pipeline.Snapshot())
}

func (h *ScrapeHandler) Configure(c *fiber.Ctx) error {
	var req configureRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	if err := h.validate.Struct(req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, pipeline.KindValidation, validationMessage(err))
	}

	if source := strings.ToLower(strings.TrimSpace(req.Source)); source != "" {
		enabled, err := enabledSourceKeys(c, h.sources)
		if err != nil {
			return errorJSON(c, fiber.StatusInternalServerError, pipeline.KindInternal, "failed to load sources")
		}
		if _, ok := enabled[source]; len(enabled) > 0 && !ok {
			return errorJSON(c, fiber.StatusBadRequest, pipeline.KindValidation, "source "+strconv.Quote(source)+" is disabled")
		}
	}

	if err := h.pipeline.Configure(req.Source, req.Proxy); err != nil {
		return writeError(c, err)
	}
	return c.JSON(h.pipeline.Snapshot())
}

func (h *ScrapeHandler) FetchCatalog(c *fiber.Ctx) error {
	return h.submit(c, "fetch catalog", h.pipeline.CheckFetchCatalog, func(ctx context.Context) error {
		_, err := h.pipeline.FetchCatalog(ctx)
		return err
	})
}

func (h *ScrapeHandler) SelectManga(c *fiber.Ctx) error {
	slug := strings.TrimSpace(c.Params("slug"))
	return h.submit(c, "select manga", func() error { return h.pipeline.CheckSelect(slug) }, func(ctx context.Context) error {
		_, err := h.pipeline.SelectManga(ctx, slug)
		return err
	})
}

func (h *ScrapeHandler) ToggleChapter(c *fiber.Ctx) error {
	var req toggleChapterRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	if err := h.validate.Struct(req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, pipeline.KindValidation, validationMessage(err))
	}

	if err := h.pipeline.ToggleChapter(req.Number); err != nil {
		return writeError(c, err)
	}
	return c.JSON(h.pipeline.Snapshot())
}

func (h *ScrapeHandler) SelectAll(c *fiber.Ctx) error {
	var req selectAllRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
	}

	var err error
	if req.Selected == nil {
		err = h.pipeline.ToggleAllChapters()
	} else {
		err = h.pipeline.SetAllChapters(*req.Selected)
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(h.pipeline.Snapshot())
}

func (h *ScrapeHandler) Extract(c *fiber.Ctx) error {
	return h.submit(c, "extract pages", h.pipeline.CheckExtract, func(ctx context.Context) error {
		_, err := h.pipeline.ExtractPages(ctx)
		return err
	})
}

func (h *ScrapeHandler) Publish(c *fiber.Ctx) error {
	number, err := strconv.ParseFloat(c.Params("number"), 64)
	if err != nil || number <= 0 {
		return errorJSON(c, fiber.StatusBadRequest, pipeline.KindValidation, "invalid chapter number")
	}

	return h.submit(c, "publish chapter", func() error { return h.pipeline.CheckPublish(number) }, func(ctx context.Context) error {
		_, err := h.pipeline.Publish(ctx, number)
		return err
	})
}

func (h *ScrapeHandler) PublishAll(c *fiber.Ctx) error {
	return h.submit(c, "publish all", h.pipeline.CheckPublishAll, func(ctx context.Context) error {
		_, err := h.pipeline.PublishAll(ctx)
		return err
	})
}

func (h *ScrapeHandler) Cancel(c *fiber.Ctx) error {
	cancelled := h.pipeline.Cancel()
	return c.JSON(fiber.Map{"cancelled": cancelled, "snapshot": h.pipeline.Snapshot()})
}

func (h *ScrapeHandler) Reset(c *fiber.Ctx) error {
	h.pipeline.Reset()
	return c.JSON(h.pipeline.Snapshot())
}

func (h *ScrapeHandler) Job(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	job, err := h.jobs.GetJob(c.Context(), id)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, pipeline.KindInternal, "failed to load scrape job")
	}
	if job == nil {
		return errorJSON(c, fiber.StatusNotFound, pipeline.KindValidation, "scrape job not found")
	}

	chapters, err := h.jobs.ListChapters(c.Context(), id)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, pipeline.KindInternal, "failed to load scrape job chapters")
	}
	return c.JSON(fiber.Map{"job": job, "chapters": chapters})
}

func (h *ScrapeHandler) submit(c *fiber.Ctx, name string, check func() error, task scheduler.Task) error {
	if h.runner.Busy() {
		return errorJSON(c, fiber.StatusConflict, pipeline.KindBusy, "another scrape operation is in progress")
	}
	if err := check(); err != nil {
		return writeError(c, err)
	}

	if err := h.runner.TrySubmit(name, task); err != nil {
		if errors.Is(err, scheduler.ErrBusy) || errors.Is(err, scheduler.ErrQueueFull) {
			return errorJSON(c, fiber.StatusConflict, pipeline.KindBusy, "another scrape operation is in progress")
		}
		return errorJSON(c, fiber.StatusServiceUnavailable, pipeline.KindInternal, "background runner is not available")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": name, "snapshot": h.pipeline.Snapshot()})
}
