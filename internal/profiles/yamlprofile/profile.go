package yamlprofile

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gustavoatec2-lang/havencomics/internal/models"
	"github.com/gustavoatec2-lang/havencomics/internal/profiles"
)

// Profile is a site profile driven entirely by CSS selectors from a YAML
// file.
type Profile struct {
	config Config
}

func NewProfile(cfg Config) (*Profile, error) {
	if err := cfg.normalizeAndValidate(); err != nil {
		return nil, err
	}
	return &Profile{config: cfg}, nil
}

func (p *Profile) Key() string          { return p.config.Key }
func (p *Profile) Name() string         { return p.config.Name }
func (p *Profile) Kind() string         { return profiles.KindYAML }
func (p *Profile) BaseURL() string      { return p.config.BaseURL }
func (p *Profile) CatalogURL() string   { return p.config.BaseURL + p.config.CatalogPath }
func (p *Profile) NeedsRendering() bool { return p.config.NeedsRendering }

// NeedsPageRendering follows pages.needs_rendering when set and the
// listing setting otherwise.
func (p *Profile) NeedsPageRendering() bool {
	if p.config.Pages.NeedsRendering != nil {
		return *p.config.Pages.NeedsRendering
	}
	return p.config.NeedsRendering
}

func (p *Profile) ListCatalog(doc *goquery.Document) []models.CatalogEntry {
	cfg := p.config.Catalog
	entries := make([]models.CatalogEntry, 0)
	doc.Find(cfg.Item).Each(func(_ int, item *goquery.Selection) {
		title := ""
		if cfg.Title != "" {
			title = strings.TrimSpace(item.Find(cfg.Title).First().Text())
		}
		if title == "" && cfg.TitleAttr != "" {
			title = profiles.FirstAttr(item, cfg.TitleAttr)
		}

		href := profiles.FirstAttr(item, "href")
		if href == "" {
			href = profiles.FirstAttr(item.Find("a[href]").First(), "href")
		}
		href = profiles.AbsoluteURL(p.config.BaseURL, href)

		cover := profiles.FirstAttr(item.Find(cfg.Cover).First(), cfg.CoverAttrs...)
		entries = append(entries, models.CatalogEntry{
			Title:         title,
			Slug:          profiles.SlugFromURL(href),
			CoverImageURL: profiles.AbsoluteURL(p.config.BaseURL, cover),
			RemoteURL:     href,
		})
	})
	return profiles.FinalizeCatalog(entries)
}

func (p *Profile) ListChapters(doc *goquery.Document, mangaURL string) []models.ChapterRef {
	cfg := p.config.Chapters
	base := mangaURL
	if base == "" {
		base = p.config.BaseURL
	}

	chapters := make([]models.ChapterRef, 0)
	doc.Find(cfg.Item).Each(func(_ int, item *goquery.Selection) {
		label := ""
		if cfg.Label != "" {
			label = strings.TrimSpace(item.Find(cfg.Label).First().Text())
		}

		var number float64
		if cfg.NumberAttr != "" {
			if raw := profiles.FirstAttr(item, cfg.NumberAttr); raw != "" {
				if parsed, err := strconv.ParseFloat(raw, 64); err == nil && profiles.ValidChapterNumber(parsed) {
					number = parsed
				}
			}
		}
		if number == 0 {
			number = profiles.ParseChapterNumber(label)
		}
		if label == "" {
			label = "Capítulo " + strconv.FormatFloat(number, 'f', -1, 64)
		}

		href := profiles.FirstAttr(item, "href")
		if href == "" {
			href = profiles.FirstAttr(item.Find("a[href]").First(), "href")
		}

		date := ""
		if cfg.Date != "" {
			date = strings.TrimSpace(item.Find(cfg.Date).First().Text())
		}

		chapters = append(chapters, models.ChapterRef{
			Number:            number,
			Label:             label,
			RemoteURL:         profiles.AbsoluteURL(base, href),
			PublishedDateText: date,
		})
	})
	return profiles.FinalizeChapters(chapters)
}

func (p *Profile) ExtractPages(doc *goquery.Document) []models.RemotePage {
	return profiles.CollectPages(doc, p.config.Pages.Image, p.config.BaseURL)
}

func (p *Profile) ExtractMetadata(doc *goquery.Document) models.MangaMetadata {
	return profiles.ExtractStandardMetadata(doc)
}
