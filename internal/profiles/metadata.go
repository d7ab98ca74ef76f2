package profiles

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gustavoatec2-lang/havencomics/internal/models"
)

var (
	synopsisSelectors = []string{
		`.entry-content[itemprop="description"]`,
		`.synp p`,
		`.summary__content p`,
		`.desc p`,
	}
	infoRowSelector = `.infox .flex-wrap span, .tsinfo .imptdt`
	genreSelector   = `.mgen a, .genres-content a, .genre-item a`
	infoLabels      = regexp.MustCompile(`(?i)autor|artista|artist|author|tipo|type`)
)

// ExtractStandardMetadata reads synopsis, credits, type and genres using
// the markup shared by the WordPress manga themes most sources run.
func ExtractStandardMetadata(doc *goquery.Document) models.MangaMetadata {
	meta := models.MangaMetadata{}

	for _, selector := range synopsisSelectors {
		node := doc.Find(selector).First()
		if node.Length() == 0 {
			continue
		}
		meta.Synopsis = collapseSpace(node.Text())
		break
	}

	doc.Find(infoRowSelector).Each(func(_ int, row *goquery.Selection) {
		text := strings.ToLower(row.Text())
		value := collapseSpace(row.Find("a, i").First().Text())
		if value == "" {
			value = collapseSpace(infoLabels.ReplaceAllString(row.Text(), ""))
		}

		if strings.Contains(text, "autor") || strings.Contains(text, "author") {
			meta.Author = value
		}
		if strings.Contains(text, "artista") || strings.Contains(text, "artist") {
			meta.Artist = value
		}
		if strings.Contains(text, "tipo") || strings.Contains(text, "type") {
			if mapped := MapMangaType(value); mapped != "" {
				meta.MangaType = mapped
			}
		}
	})

	seen := map[string]struct{}{}
	doc.Find(genreSelector).Each(func(_ int, link *goquery.Selection) {
		genre := collapseSpace(link.Text())
		if genre == "" {
			return
		}
		if _, ok := seen[genre]; ok {
			return
		}
		seen[genre] = struct{}{}
		meta.Genres = append(meta.Genres, genre)
	})

	return meta
}

// MapMangaType maps free-form type text to a catalog type, or "" when it
// names none of them.
func MapMangaType(value string) string {
	lower := strings.ToLower(value)
	switch {
	case strings.Contains(lower, "manhua"):
		return models.MangaTypeManhua
	case strings.Contains(lower, "manhwa"):
		return models.MangaTypeManhwa
	case strings.Contains(lower, "manga"):
		return models.MangaTypeManga
	default:
		return ""
	}
}

func collapseSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
