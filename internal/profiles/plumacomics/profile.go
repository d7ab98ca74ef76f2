package plumacomics

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gustavoatec2-lang/havencomics/internal/models"
	"github.com/gustavoatec2-lang/havencomics/internal/profiles"
)

const (
	Key            = "plumacomics"
	defaultBaseURL = "https://plumacomics.cloud"
)

// Profile scrapes PlumaComics, a client-rendered MangaReader theme site.
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
func (p *Profile) Name() string             { return "PlumaComics" }
func (p *Profile) Kind() string             { return profiles.KindNative }
func (p *Profile) BaseURL() string          { return p.baseURL }
func (p *Profile) CatalogURL() string       { return p.baseURL + "/" }
func (p *Profile) NeedsRendering() bool     { return true }
func (p *Profile) NeedsPageRendering() bool { return true }

func (p *Profile) ListCatalog(doc *goquery.Document) []models.CatalogEntry {
	entries := make([]models.CatalogEntry, 0)
	doc.Find(".hotslid .bs .bsx a").Each(func(_ int, card *goquery.Selection) {
		href := profiles.AbsoluteURL(p.baseURL, profiles.FirstAttr(card, "href"))
		entries = append(entries, models.CatalogEntry{
			Title:         strings.TrimSpace(profiles.FirstAttr(card, "title")),
			Slug:          profiles.SlugFromURL(href),
			CoverImageURL: profiles.AbsoluteURL(p.baseURL, profiles.FirstAttr(card.Find("img").First(), "src", "data-src")),
			RemoteURL:     href,
		})
	})
	return profiles.FinalizeCatalog(entries)
}

func (p *Profile) ListChapters(doc *goquery.Document, mangaURL string) []models.ChapterRef {
	base := mangaURL
	if base == "" {
		base = p.baseURL
	}

	chapters := make([]models.ChapterRef, 0)
	doc.Find(".chbox .eph-num a").Each(func(_ int, link *goquery.Selection) {
		label := strings.TrimSpace(link.Find(".chapternum").First().Text())
		chapters = append(chapters, models.ChapterRef{
			Number:            profiles.ParseChapterNumber(label),
			Label:             label,
			RemoteURL:         profiles.AbsoluteURL(base, profiles.FirstAttr(link, "href")),
			PublishedDateText: strings.TrimSpace(link.Find(".chapterdate").First().Text()),
		})
	})
	return profiles.FinalizeChapters(chapters)
}

func (p *Profile) ExtractPages(doc *goquery.Document) []models.RemotePage {
	return profiles.CollectPages(doc, "img.ts-main-image", p.baseURL)
}

func (p *Profile) ExtractMetadata(doc *goquery.Document) models.MangaMetadata {
	return profiles.ExtractStandardMetadata(doc)
}
