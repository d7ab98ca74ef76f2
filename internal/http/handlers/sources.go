package handlers

import (
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/gustavoatec2-lang/havencomics/internal/pipeline"
	"github.com/gustavoatec2-lang/havencomics/internal/profiles"
	"github.com/gustavoatec2-lang/havencomics/internal/proxy"
	"github.com/gustavoatec2-lang/havencomics/internal/repository"
)

type sourceItem struct {
	profiles.Descriptor
	Enabled bool `json:"enabled"`
}

type updateSourceRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type SourcesHandler struct {
	profiles *profiles.Registry
	repo     *repository.SourceRepository
	validate *validator.Validate
}

func NewSourcesHandler(db *sql.DB, registry *profiles.Registry, validate *validator.Validate) *SourcesHandler {
	return &SourcesHandler{
		profiles: registry,
		repo:     repository.NewSourceRepository(db),
		validate: validate,
	}
}

func (h *SourcesHandler) List(c *fiber.Ctx) error {
	enabled, err := enabledSourceKeys(c, h.repo)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, pipeline.KindInternal, "failed to list sources")
	}

	descriptors := h.profiles.List()
	items := make([]sourceItem, 0, len(descriptors))
	for _, descriptor := range descriptors {
		_, ok := enabled[descriptor.Key]
		items = append(items, sourceItem{Descriptor: descriptor, Enabled: ok})
	}
	return c.JSON(fiber.Map{"items": items})
}

func (h *SourcesHandler) Update(c *fiber.Ctx) error {
	var req updateSourceRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	if err := h.validate.Struct(req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, pipeline.KindValidation, validationMessage(err))
	}

	key := strings.ToLower(strings.TrimSpace(c.Params("key")))
	updated, err := h.repo.SetEnabled(c.Context(), key, *req.Enabled)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, pipeline.KindInternal, "failed to update source")
	}
	if !updated {
		return errorJSON(c, fiber.StatusNotFound, pipeline.KindValidation, "source not found")
	}
	return c.JSON(fiber.Map{"key": key, "enabled": *req.Enabled})
}

type ProxiesHandler struct {
	registry *proxy.Registry
}

func NewProxiesHandler(registry *proxy.Registry) *ProxiesHandler {
	return &ProxiesHandler{registry: registry}
}

func (h *ProxiesHandler) List(c *fiber.Ctx) error {
	items := h.registry.List()
	defaultID := ""
	if provider, ok := h.registry.Default(); ok {
		defaultID = provider.ID()
	}
	return c.JSON(fiber.Map{"items": items, "default": defaultID})
}

func enabledSourceKeys(c *fiber.Ctx, repo *repository.SourceRepository) (map[string]struct{}, error) {
	sources, err := repo.ListEnabled(c.Context())
	if err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(sources))
	for _, source := range sources {
		keys[source.Key] = struct{}{}
	}
	return keys, nil
}
