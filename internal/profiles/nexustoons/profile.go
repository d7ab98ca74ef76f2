package nexustoons

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gustavoatec2-lang/havencomics/internal/models"
	"github.com/gustavoatec2-lang/havencomics/internal/profiles"
)

const (
	Key            = "nexustoons"
	defaultBaseURL = "https://nexustoons.site"
)

// Profile scrapes NexusToons. Catalog and chapter listings are server-side
// rendered and skip the proxy's headless browser. The reader fills its
// images from script, so chapter pages are rendered.
type Profile struct {
	baseURL string
}

func New(baseURL string) *Profile {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Profile{baseURL: baseURL}
}

func (p *Profile) Key() string              { return Key }
func (p *Profile) Name() string             { return "NexusToons" }
func (p *Profile) Kind() string             { return profiles.KindNative }
func (p *Profile) BaseURL() string          { return p.baseURL }
func (p *Profile) CatalogURL() string       { return p.baseURL + "/" }
func (p *Profile) NeedsRendering() bool     { return false }
func (p *Profile) NeedsPageRendering() bool { return true }

func (p *Profile) ListCatalog(doc *goquery.Document) []models.CatalogEntry {
	entries := make([]models.CatalogEntry, 0)
	doc.Find(".embla__slide a.content-card").Each(func(_ int, card *goquery.Selection) {
		img := card.Find("img.content-cover").First()
		if img.Length() == 0 {
			img = card.Find("img").First()
		}
		href := profiles.AbsoluteURL(p.baseURL, profiles.FirstAttr(card, "href"))
		entries = append(entries, models.CatalogEntry{
			Title:         strings.TrimSpace(card.Find("h3").First().Text()),
			Slug:          profiles.SlugFromURL(href),
			CoverImageURL: profiles.AbsoluteURL(p.baseURL, profiles.FirstAttr(img, "src", "data-src", "data-lazy-src")),
			RemoteURL:     href,
		})
	})
	return profiles.FinalizeCatalog(entries)
}

func (p *Profile) ListChapters(doc *goquery.Document, _ string) []models.ChapterRef {
	chapters := make([]models.ChapterRef, 0)
	doc.Find("a.chapter-item").Each(func(_ int, link *goquery.Selection) {
		number := parseNumberAttr(profiles.FirstAttr(link, "data-chapter-number"))
		chapters = append(chapters, models.ChapterRef{
			Number:            number,
			Label:             fmt.Sprintf("Capítulo %s", strconv.FormatFloat(number, 'f', -1, 64)),
			RemoteURL:         profiles.AbsoluteURL(p.baseURL, profiles.FirstAttr(link, "href")),
			PublishedDateText: strings.TrimSpace(link.Find(".chapter-date").First().Text()),
		})
	})
	return profiles.FinalizeChapters(chapters)
}

func (p *Profile) ExtractPages(doc *goquery.Document) []models.RemotePage {
	return profiles.CollectPages(doc, "img.manga-page-image", p.baseURL)
}

func (p *Profile) ExtractMetadata(doc *goquery.Document) models.MangaMetadata {
	return profiles.ExtractStandardMetadata(doc)
}

// parseNumberAttr keeps the integer part, matching how the site numbers
// chapters in its listing.
func parseNumberAttr(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return profiles.ParseChapterNumber(raw)
	}
	if !profiles.ValidChapterNumber(value) {
		return 0
	}
	return math.Trunc(value)
}
