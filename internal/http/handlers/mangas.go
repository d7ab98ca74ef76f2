package handlers

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/gustavoatec2-lang/havencomics/internal/models"
	"github.com/gustavoatec2-lang/havencomics/internal/pipeline"
	"github.com/gustavoatec2-lang/havencomics/internal/profiles"
	"github.com/gustavoatec2-lang/havencomics/internal/repository"
	"github.com/gustavoatec2-lang/havencomics/internal/searchutil"
)

type createMangaRequest struct {
	Title    string   `json:"title" validate:"required,max=300"`
	CoverURL string   `json:"coverUrl" validate:"required,url"`
	Slug     string   `json:"slug" validate:"omitempty,max=200"`
	Type     string   `json:"type" validate:"omitempty,oneof=manga manhwa manhua novel webtoon"`
	Status   string   `json:"status" validate:"omitempty,oneof=ongoing completed hiatus cancelled"`
	Synopsis string   `json:"synopsis" validate:"max=5000"`
	Author   string   `json:"author" validate:"max=200"`
	Artist   string   `json:"artist" validate:"max=200"`
	Genres   []string `json:"genres" validate:"max=30,dive,max=60"`
}

type updateMangaRequest struct {
	Title    *string  `json:"title" validate:"omitempty,min=1,max=300"`
	CoverURL *string  `json:"coverUrl" validate:"omitempty,url"`
	Type     *string  `json:"type" validate:"omitempty,oneof=manga manhwa manhua novel webtoon"`
	Status   *string  `json:"status" validate:"omitempty,oneof=ongoing completed hiatus cancelled"`
	Synopsis *string  `json:"synopsis" validate:"omitempty,max=5000"`
	Author   *string  `json:"author" validate:"omitempty,max=200"`
	Artist   *string  `json:"artist" validate:"omitempty,max=200"`
	Genres   []string `json:"genres" validate:"omitempty,max=30,dive,max=60"`
}

// addChapterRequest lists already hosted page images in reading order.
type addChapterRequest struct {
	Number float64  `json:"number" validate:"gt=0"`
	Title  string   `json:"title" validate:"max=300"`
	Pages  []string `json:"pages" validate:"required,min=1,max=500,dive,required,http_url"`
}

type MangasHandler struct {
	mangas   *repository.MangaRepository
	chapters *repository.ChapterRepository
	validate *validator.Validate
}

func NewMangasHandler(db *sql.DB, validate *validator.Validate) *MangasHandler {
	return &MangasHandler{
		mangas:   repository.NewMangaRepository(db),
		chapters: repository.NewChapterRepository(db),
		validate: validate,
	}
}

func (h *MangasHandler) List(c *fiber.Ctx) error {
	items, total, err := h.mangas.List(c.Context(), repository.MangaListOptions{
		Query:  c.Query("q"),
		Status: c.Query("status"),
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	})
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, pipeline.KindInternal, "failed to list mangas")
	}
	return c.JSON(fiber.Map{"items": items, "total": total})
}

// Create adds a manga by hand, without scraping.
func (h *MangasHandler) Create(c *fiber.Ctx) error {
	var req createMangaRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	req.Title = strings.TrimSpace(req.Title)
	req.CoverURL = strings.TrimSpace(req.CoverURL)
	if err := h.validate.Struct(req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, pipeline.KindValidation, validationMessage(err))
	}

	manga, err := buildManga(req)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, pipeline.KindValidation, err.Error())
	}

	created, err := h.mangas.Create(c.Context(), manga)
	if err != nil {
		if errors.Is(err, repository.ErrMangaExists) {
			return errorJSON(c, fiber.StatusConflict, pipeline.KindConflict, "a manga with this slug already exists")
		}
		return errorJSON(c, fiber.StatusInternalServerError, pipeline.KindInternal, "failed to create manga")
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *MangasHandler) Chapters(c *fiber.Ctx) error {
	manga, err := h.mangas.GetBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, pipeline.KindInternal, "failed to load manga")
	}
	if manga == nil {
		return errorJSON(c, fiber.StatusNotFound, pipeline.KindValidation, "manga not found")
	}

	chapters, err := h.chapters.ListByManga(c.Context(), manga.ID)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, pipeline.KindInternal, "failed to list chapters")
	}
	return c.JSON(fiber.Map{"manga": manga, "items": chapters})
}

// Update changes the given fields of a manga. The slug never changes.
func (h *MangasHandler) Update(c *fiber.Ctx) error {
	var req updateMangaRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	for _, field := range []*string{req.Title, req.CoverURL, req.Synopsis, req.Author, req.Artist} {
		if field != nil {
			*field = strings.TrimSpace(*field)
		}
	}
	if err := h.validate.Struct(req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, pipeline.KindValidation, validationMessage(err))
	}

	update := repository.MangaUpdate{
		Title:    req.Title,
		CoverURL: req.CoverURL,
		Type:     req.Type,
		Status:   req.Status,
		Synopsis: req.Synopsis,
		Author:   req.Author,
		Artist:   req.Artist,
	}
	if req.Genres != nil {
		update.Genres = searchutil.UniqueNonEmpty(req.Genres)
	}

	manga, err := h.mangas.GetBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, pipeline.KindInternal, "failed to load manga")
	}
	if manga == nil {
		return errorJSON(c, fiber.StatusNotFound, pipeline.KindValidation, "manga not found")
	}

	updated, err := h.mangas.Update(c.Context(), manga.ID, update)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, pipeline.KindInternal, "failed to update manga")
	}
	if updated == nil {
		return errorJSON(c, fiber.StatusNotFound, pipeline.KindValidation, "manga not found")
	}
	return c.JSON(updated)
}

// Delete removes a manga and all of its chapters. Rehosted images stay in
// the object store.
func (h *MangasHandler) Delete(c *fiber.Ctx) error {
	manga, err := h.mangas.GetBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, pipeline.KindInternal, "failed to load manga")
	}
	if manga == nil {
		return errorJSON(c, fiber.StatusNotFound, pipeline.KindValidation, "manga not found")
	}

	deleted, err := h.mangas.Delete(c.Context(), manga.ID)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, pipeline.KindInternal, "failed to delete manga")
	}
	if !deleted {
		return errorJSON(c, fiber.StatusNotFound, pipeline.KindValidation, "manga not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddChapter publishes a chapter from page URLs given by the operator.
func (h *MangasHandler) AddChapter(c *fiber.Ctx) error {
	var req addChapterRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	for i := range req.Pages {
		req.Pages[i] = strings.TrimSpace(req.Pages[i])
	}
	if err := h.validate.Struct(req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, pipeline.KindValidation, validationMessage(err))
	}
	if !profiles.ValidChapterNumber(req.Number) {
		return errorJSON(c, fiber.StatusBadRequest, pipeline.KindValidation, "number must be a positive number")
	}

	manga, err := h.mangas.GetBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, pipeline.KindInternal, "failed to load manga")
	}
	if manga == nil {
		return errorJSON(c, fiber.StatusNotFound, pipeline.KindValidation, "manga not found")
	}

	created, err := h.chapters.Create(c.Context(), &models.Chapter{
		ID:      uuid.NewString(),
		MangaID: manga.ID,
		Number:  req.Number,
		Title:   optional(req.Title),
		Pages:   req.Pages,
	})
	if err != nil {
		if errors.Is(err, repository.ErrChapterExists) {
			return errorJSON(c, fiber.StatusConflict, pipeline.KindConflict, "chapter already published")
		}
		return errorJSON(c, fiber.StatusInternalServerError, pipeline.KindInternal, "failed to create chapter")
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *MangasHandler) DeleteChapter(c *fiber.Ctx) error {
	number, err := strconv.ParseFloat(c.Params("number"), 64)
	if err != nil || !profiles.ValidChapterNumber(number) {
		return errorJSON(c, fiber.StatusBadRequest, pipeline.KindValidation, "invalid chapter number")
	}

	manga, err := h.mangas.GetBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, pipeline.KindInternal, "failed to load manga")
	}
	if manga == nil {
		return errorJSON(c, fiber.StatusNotFound, pipeline.KindValidation, "manga not found")
	}

	deleted, err := h.chapters.Delete(c.Context(), manga.ID, number)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, pipeline.KindInternal, "failed to delete chapter")
	}
	if !deleted {
		return errorJSON(c, fiber.StatusNotFound, pipeline.KindValidation, "chapter not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *MangasHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.mangas.Stats(c.Context())
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, pipeline.KindInternal, "failed to load stats")
	}
	return c.JSON(stats)
}

func buildManga(req createMangaRequest) (*models.Manga, error) {
	slug := searchutil.Slugify(req.Slug)
	if slug == "" {
		slug = searchutil.Slugify(req.Title)
	}
	if slug == "" {
		return nil, errors.New("title must contain letters or digits")
	}

	manga := &models.Manga{
		ID:       uuid.NewString(),
		Title:    req.Title,
		Slug:     slug,
		CoverURL: &req.CoverURL,
		Type:     req.Type,
		Status:   req.Status,
		Genres:   searchutil.UniqueNonEmpty(req.Genres),
	}
	if manga.Type == "" {
		manga.Type = models.MangaTypeManhua
	}
	if manga.Status == "" {
		manga.Status = models.MangaStatusOngoing
	}
	manga.Synopsis = optional(req.Synopsis)
	manga.Author = optional(req.Author)
	manga.Artist = optional(req.Artist)
	return manga, nil
}

func optional(value string) *string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return &trimmed
	}
	return nil
}
