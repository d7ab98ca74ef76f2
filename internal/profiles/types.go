package profiles

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/gustavoatec2-lang/havencomics/internal/models"
)

const (
	KindNative = "native"
	KindYAML   = "yaml"
)

// SiteProfile knows the markup of one source site. Extraction methods never
// fail: unmatched selectors yield empty results.
type SiteProfile interface {
	Key() string
	Name() string
	Kind() string
	BaseURL() string
	CatalogURL() string
	// NeedsRendering applies to the catalog and manga pages.
	NeedsRendering() bool
	// NeedsPageRendering applies to chapter reader pages.
	NeedsPageRendering() bool
	ListCatalog(doc *goquery.Document) []models.CatalogEntry
	ListChapters(doc *goquery.Document, mangaURL string) []models.ChapterRef
	ExtractPages(doc *goquery.Document) []models.RemotePage
	ExtractMetadata(doc *goquery.Document) models.MangaMetadata
}
