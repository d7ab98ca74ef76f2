package profiles

import (
	"bytes"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gustavoatec2-lang/havencomics/internal/models"
)

var (
	slugPattern   = regexp.MustCompile(`/manga/([^/?#]+)/?`)
	numberPattern = regexp.MustCompile(`\d+`)
)

func ParseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// SlugFromURL returns the path segment following /manga/, or "" when the
// URL has none. Slugs name storage keys, so a segment that decodes to a
// path separator or a dot segment is rejected.
func SlugFromURL(rawURL string) string {
	match := slugPattern.FindStringSubmatch(strings.TrimSpace(rawURL))
	if len(match) < 2 {
		return ""
	}
	slug, err := url.PathUnescape(match[1])
	if err != nil {
		slug = match[1]
	}
	if slug == "." || slug == ".." || strings.ContainsAny(slug, "/\\") {
		return ""
	}
	return slug
}

// ValidChapterNumber reports whether n is a finite positive number.
func ValidChapterNumber(n float64) bool {
	return n > 0 && !math.IsInf(n, 0)
}

// ParseChapterNumber reads the first run of digits in text, so
// "Capítulo 16.5" yields 16.
func ParseChapterNumber(text string) float64 {
	match := numberPattern.FindString(text)
	if match == "" {
		return 0
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return value
}

// AbsoluteURL resolves href against base. Absolute hrefs are returned
// unchanged.
func AbsoluteURL(base string, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

func IsPlaceholder(src string) bool {
	lower := strings.ToLower(src)
	return strings.Contains(lower, "placeholder") ||
		strings.Contains(lower, "loading.gif") ||
		strings.HasPrefix(lower, "data:")
}

// FirstAttr returns the first non-empty attribute among names.
func FirstAttr(selection *goquery.Selection, names ...string) string {
	for _, name := range names {
		if value, ok := selection.Attr(name); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// FinalizeCatalog drops entries without title or slug and keeps the first
// occurrence of each slug.
func FinalizeCatalog(entries []models.CatalogEntry) []models.CatalogEntry {
	seen := map[string]struct{}{}
	out := make([]models.CatalogEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Title == "" || entry.Slug == "" {
			continue
		}
		if _, ok := seen[entry.Slug]; ok {
			continue
		}
		seen[entry.Slug] = struct{}{}
		out = append(out, entry)
	}
	return out
}

// FinalizeChapters drops invalid numbers and duplicates, newest first.
func FinalizeChapters(chapters []models.ChapterRef) []models.ChapterRef {
	seen := map[float64]struct{}{}
	out := make([]models.ChapterRef, 0, len(chapters))
	for _, chapter := range chapters {
		if !ValidChapterNumber(chapter.Number) {
			continue
		}
		if _, ok := seen[chapter.Number]; ok {
			continue
		}
		seen[chapter.Number] = struct{}{}
		out = append(out, chapter)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Number > out[j].Number
	})
	return out
}

// CollectPages reads image sources in document order. Index is the
// position among all matched images, so skipped placeholders leave gaps.
func CollectPages(doc *goquery.Document, selector string, base string) []models.RemotePage {
	pages := make([]models.RemotePage, 0)
	doc.Find(selector).Each(func(i int, img *goquery.Selection) {
		src := FirstAttr(img, "src", "data-src", "data-lazy-src")
		if src == "" || IsPlaceholder(src) {
			return
		}
		pages = append(pages, models.RemotePage{Index: i, RemoteImageURL: AbsoluteURL(base, src)})
	})
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].Index < pages[j].Index
	})
	return pages
}
