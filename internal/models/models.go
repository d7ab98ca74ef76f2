package models

import "time"

const (
	MangaTypeManga   = "manga"
	MangaTypeManhwa  = "manhwa"
	MangaTypeManhua  = "manhua"
	MangaTypeNovel   = "novel"
	MangaTypeWebtoon = "webtoon"

	MangaStatusOngoing   = "ongoing"
	MangaStatusCompleted = "completed"
	MangaStatusHiatus    = "hiatus"
	MangaStatusCancelled = "cancelled"
)

type Source struct {
	ID        int64     `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	BaseURL   *string   `json:"baseUrl,omitempty"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Manga struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	CoverURL  *string   `json:"coverUrl,omitempty"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Synopsis  *string   `json:"synopsis,omitempty"`
	Author    *string   `json:"author,omitempty"`
	Artist    *string   `json:"artist,omitempty"`
	Genres    []string  `json:"genres,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	ChapterCount int64 `json:"chapterCount"`
}

type Chapter struct {
	ID        string    `json:"id"`
	MangaID   string    `json:"mangaId"`
	Number    float64   `json:"number"`
	Title     *string   `json:"title,omitempty"`
	Pages     []string  `json:"pages"`
	CreatedAt time.Time `json:"createdAt"`
}

type CatalogStats struct {
	Mangas    int64 `json:"mangas"`
	Chapters  int64 `json:"chapters"`
	Ongoing   int64 `json:"ongoing"`
	Completed int64 `json:"completed"`
}

// CatalogEntry is one title listed on a source site's catalog page.
type CatalogEntry struct {
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	CoverImageURL string `json:"coverImageUrl,omitempty"`
	RemoteURL     string `json:"remoteUrl"`
	Selected      bool   `json:"selected"`
}

// ChapterRef is one chapter listed on a source site's manga page.
type ChapterRef struct {
	Number            float64 `json:"number"`
	Label             string  `json:"label"`
	RemoteURL         string  `json:"remoteUrl"`
	PublishedDateText string  `json:"publishedDateText,omitempty"`
	Selected          bool    `json:"selected"`
}

type RemotePage struct {
	Index          int    `json:"index"`
	RemoteImageURL string `json:"remoteImageUrl"`
}

type MangaMetadata struct {
	Synopsis  string   `json:"synopsis,omitempty"`
	Author    string   `json:"author,omitempty"`
	Artist    string   `json:"artist,omitempty"`
	MangaType string   `json:"mangaType,omitempty"`
	Genres    []string `json:"genres,omitempty"`
}

// ScrapedChapter holds extracted pages until the chapter is published or
// the workflow is reset.
type ScrapedChapter struct {
	ChapterNumber  float64      `json:"chapterNumber"`
	MangaTitle     string       `json:"mangaTitle"`
	MangaSlug      string       `json:"mangaSlug"`
	MangaRemoteURL string       `json:"mangaRemoteUrl"`
	CoverImageURL  string       `json:"coverImageUrl,omitempty"`
	SourceKey      string       `json:"sourceKey"`
	Pages          []RemotePage `json:"pages"`
}

type ChapterJobStatus string

const (
	ChapterJobPending    ChapterJobStatus = "pending"
	ChapterJobExtracting ChapterJobStatus = "extracting"
	ChapterJobExtracted  ChapterJobStatus = "extracted"
	ChapterJobPublishing ChapterJobStatus = "publishing"
	ChapterJobPublished  ChapterJobStatus = "published"
	ChapterJobFailed     ChapterJobStatus = "failed"
)

type ScrapeJob struct {
	ID        string    `json:"id"`
	SourceKey string    `json:"sourceKey"`
	ProxyID   string    `json:"proxyId"`
	MangaSlug string    `json:"mangaSlug"`
	MangaURL  string    `json:"mangaUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ChapterJob struct {
	JobID         string           `json:"jobId"`
	ChapterNumber float64          `json:"chapterNumber"`
	Status        ChapterJobStatus `json:"status"`
	PageCount     int              `json:"pageCount"`
	LastError     *string          `json:"lastError,omitempty"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}
