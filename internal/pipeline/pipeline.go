package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/gustavoatec2-lang/havencomics/internal/fetch"
	"github.com/gustavoatec2-lang/havencomics/internal/models"
	"github.com/gustavoatec2-lang/havencomics/internal/profiles"
	"github.com/gustavoatec2-lang/havencomics/internal/proxy"
	"github.com/gustavoatec2-lang/havencomics/internal/publish"
)

type Step string

const (
	StepSource   Step = "source"
	StepMangas   Step = "mangas"
	StepChapters Step = "chapters"
	StepPages    Step = "pages"
	StepPublish  Step = "publish"
)

const (
	DefaultChapterDelay = time.Second
	jobWriteTimeout     = 5 * time.Second
)

type Fetcher interface {
	Get(ctx context.Context, rawURL string, progress fetch.ProgressFunc) (*fetch.Response, error)
	GetPersistent(ctx context.Context, rawURL string, progress fetch.ProgressFunc) (*fetch.Response, error)
}

type Publisher interface {
	Publish(ctx context.Context, req publish.Request) (*publish.Outcome, error)
}

// JobRecorder persists per-chapter progress. Write failures are logged and
// never interrupt the workflow.
type JobRecorder interface {
	CreateJob(ctx context.Context, job models.ScrapeJob) error
	UpsertChapterStatus(ctx context.Context, update models.ChapterJob) error
}

type Config struct {
	DefaultSource string
	DefaultProxy  string
	// ChapterDelay is the pause between two chapter page fetches.
	ChapterDelay time.Duration
}

type Snapshot struct {
	Step          Step                    `json:"step"`
	Status        string                  `json:"status"`
	Source        string                  `json:"source"`
	Proxy         string                  `json:"proxy"`
	Running       string                  `json:"running,omitempty"`
	JobID         string                  `json:"jobId,omitempty"`
	Catalog       []models.CatalogEntry   `json:"catalog"`
	SelectedManga *models.CatalogEntry    `json:"selectedManga,omitempty"`
	Chapters      []models.ChapterRef     `json:"chapters"`
	Scraped       []models.ScrapedChapter `json:"scraped"`
	Failures      []ItemFailure           `json:"failures,omitempty"`
	CanPublish    bool                    `json:"canPublish"`
	Progress      *Progress               `json:"progress,omitempty"`
}

// Progress counts the units of the running operation: chapters while
// extracting, pages while publishing.
type Progress struct {
	Unit  string `json:"unit"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

type ExtractResult struct {
	Extracted []float64     `json:"extracted"`
	Failures  []ItemFailure `json:"failures,omitempty"`
}

type PublishAllResult struct {
	Published []publish.Outcome `json:"published"`
	Failures  []ItemFailure     `json:"failures,omitempty"`
}

type state struct {
	source   string
	proxy    string
	step     Step
	status   string
	jobID    string
	catalog  []models.CatalogEntry
	selected *models.CatalogEntry
	chapters []models.ChapterRef
	scraped  []models.ScrapedChapter
	failures []ItemFailure
}

type operation struct {
	name       string
	generation uint64
	cancel     context.CancelFunc
	progress   Progress
}

type getFunc func(ctx context.Context, rawURL string, progress fetch.ProgressFunc) (*fetch.Response, error)

// Pipeline drives one scrape workflow. Long operations run one at a time;
// a Reset discards whatever an in-flight operation produces afterwards.
type Pipeline struct {
	profiles     *profiles.Registry
	proxies      *proxy.Registry
	fetcher      Fetcher
	publisher    Publisher
	jobs         JobRecorder
	logger       *slog.Logger
	chapterDelay time.Duration

	mu         sync.Mutex
	state      state
	generation uint64
	active     *operation
}

func New(profileRegistry *profiles.Registry, proxyRegistry *proxy.Registry, fetcher Fetcher, publisher Publisher, jobs JobRecorder, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChapterDelay <= 0 {
		cfg.ChapterDelay = DefaultChapterDelay
	}

	source := strings.TrimSpace(cfg.DefaultSource)
	if source == "" {
		if listed := profileRegistry.List(); len(listed) > 0 {
			source = listed[0].Key
		}
	}
	proxyID := strings.TrimSpace(cfg.DefaultProxy)
	if proxyID == "" {
		if provider, ok := proxyRegistry.Default(); ok {
			proxyID = provider.ID()
		}
	}

	return &Pipeline{
		profiles:     profileRegistry,
		proxies:      proxyRegistry,
		fetcher:      fetcher,
		publisher:    publisher,
		jobs:         jobs,
		logger:       logger,
		chapterDelay: cfg.ChapterDelay,
		state:        state{source: source, proxy: proxyID, step: StepSource},
	}
}

// Configure picks the source site and proxy provider. Empty values keep the
// current choice. Changing the source clears the workflow.
func (p *Pipeline) Configure(source string, proxyID string) error {
	const op = "configure"

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.busyLocked(op); err != nil {
		return err
	}

	source = strings.TrimSpace(source)
	proxyID = strings.TrimSpace(proxyID)
	if source != "" {
		if _, ok := p.profiles.Get(source); !ok {
			return validationError(op, "unknown source %q", source)
		}
	}
	if proxyID != "" {
		if _, ok := p.proxies.Get(proxyID); !ok {
			return validationError(op, "unknown proxy %q", proxyID)
		}
		p.state.proxy = proxyID
	}
	if source != "" && !strings.EqualFold(source, p.state.source) {
		p.state = state{source: source, proxy: p.state.proxy, step: StepSource}
	}
	return nil
}

// FetchCatalog lists the titles on the source site's catalog page. The step
// only advances when at least one entry was found.
func (p *Pipeline) FetchCatalog(ctx context.Context) ([]models.CatalogEntry, error) {
	const op = "fetch catalog"

	var (
		profile  profiles.SiteProfile
		provider proxy.Provider
	)
	ctx, run, err := p.begin(ctx, op, func(s *state) error {
		var err error
		profile, provider, err = p.resolve(s, op)
		if err != nil {
			return err
		}
		s.status = "fetching catalog from " + profile.Name()
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer p.finish(run)

	doc, err := p.fetchDocument(ctx, run, p.fetcher.Get, provider, profile.CatalogURL(), profile.NeedsRendering(), "catalog")
	if err != nil {
		return nil, p.fail(run, wrap(op, "catalog fetch failed", err))
	}

	entries := profile.ListCatalog(doc)
	if len(entries) == 0 {
		return nil, p.fail(run, newError(KindZeroResults, op, "0 found", nil))
	}

	applied := p.apply(run, func(s *state) {
		s.catalog = entries
		s.selected = nil
		s.chapters = nil
		s.scraped = nil
		s.failures = nil
		s.jobID = ""
		s.step = StepMangas
		s.status = fmt.Sprintf("%d found", len(entries))
	})
	if !applied {
		return nil, discarded(op)
	}

	p.logger.Info("catalog fetched", "source", profile.Key(), "proxy", provider.ID(), "entries", len(entries))
	return append([]models.CatalogEntry(nil), entries...), nil
}

// SelectManga loads the chapter list of a catalog entry.
func (p *Pipeline) SelectManga(ctx context.Context, slug string) ([]models.ChapterRef, error) {
	const op = "select manga"

	var (
		profile  profiles.SiteProfile
		provider proxy.Provider
		entry    models.CatalogEntry
	)
	ctx, run, err := p.begin(ctx, op, func(s *state) error {
		var err error
		if entry, err = s.catalogEntry(op, slug); err != nil {
			return err
		}
		if profile, provider, err = p.resolve(s, op); err != nil {
			return err
		}
		s.status = "loading chapters of " + entry.Title
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer p.finish(run)

	return p.openManga(ctx, run, op, profile, provider, entry)
}

// OpenManga loads a chapter list without a catalog fetch. target is a manga
// page URL or a slug on the configured source.
func (p *Pipeline) OpenManga(ctx context.Context, target string) ([]models.ChapterRef, error) {
	const op = "open manga"

	var (
		profile  profiles.SiteProfile
		provider proxy.Provider
		entry    models.CatalogEntry
	)
	ctx, run, err := p.begin(ctx, op, func(s *state) error {
		var err error
		if profile, provider, err = p.resolve(s, op); err != nil {
			return err
		}
		if entry, err = entryForTarget(op, profile, target); err != nil {
			return err
		}
		if known, ok := s.findEntry(entry.Slug); ok {
			entry = known
		}
		s.status = "loading chapters of " + entry.Slug
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer p.finish(run)

	return p.openManga(ctx, run, op, profile, provider, entry)
}

func (p *Pipeline) openManga(ctx context.Context, run *operation, op string, profile profiles.SiteProfile, provider proxy.Provider, entry models.CatalogEntry) ([]models.ChapterRef, error) {
	doc, err := p.fetchDocument(ctx, run, p.fetcher.Get, provider, entry.RemoteURL, profile.NeedsRendering(), "chapters")
	if err != nil {
		return nil, p.fail(run, wrap(op, "chapter list fetch failed", err))
	}

	chapters := profile.ListChapters(doc, entry.RemoteURL)
	if len(chapters) == 0 {
		return nil, p.fail(run, newError(KindZeroResults, op, "0 found", nil))
	}
	if entry.Title == "" {
		entry.Title = pageTitle(doc, entry.Slug)
	}
	entry.Selected = true

	jobID := p.createJob(profile.Key(), provider.ID(), entry)
	applied := p.apply(run, func(s *state) {
		for i := range s.catalog {
			s.catalog[i].Selected = s.catalog[i].Slug == entry.Slug
		}
		selected := entry
		s.selected = &selected
		s.chapters = chapters
		s.scraped = nil
		s.failures = nil
		s.jobID = jobID
		s.step = StepChapters
		s.status = fmt.Sprintf("%d chapters found", len(chapters))
	})
	if !applied {
		return nil, discarded(op)
	}

	p.logger.Info("chapters listed", "source", profile.Key(), "mangaSlug", entry.Slug, "chapters", len(chapters))
	return append([]models.ChapterRef(nil), chapters...), nil
}

func (p *Pipeline) ToggleChapter(number float64) error {
	const op = "toggle chapter"

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.busyLocked(op); err != nil {
		return err
	}
	if len(p.state.chapters) == 0 {
		return validationError(op, "no chapter list loaded")
	}
	for i := range p.state.chapters {
		if p.state.chapters[i].Number == number {
			p.state.chapters[i].Selected = !p.state.chapters[i].Selected
			return nil
		}
	}
	return validationError(op, "chapter %s is not listed", formatNumber(number))
}

func (p *Pipeline) SetAllChapters(selected bool) error {
	const op = "select all chapters"

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.busyLocked(op); err != nil {
		return err
	}
	if len(p.state.chapters) == 0 {
		return validationError(op, "no chapter list loaded")
	}
	for i := range p.state.chapters {
		p.state.chapters[i].Selected = selected
	}
	return nil
}

// ToggleAllChapters clears the selection when every chapter is selected and
// selects everything otherwise.
func (p *Pipeline) ToggleAllChapters() error {
	p.mu.Lock()
	allSelected := len(p.state.chapters) > 0 && len(p.state.selectedChapters()) == len(p.state.chapters)
	p.mu.Unlock()

	return p.SetAllChapters(!allSelected)
}

// ExtractPages fetches the page list of every selected chapter, one chapter
// at a time with ChapterDelay between them. Each chapter is added to the
// scraped set as soon as it is extracted.
func (p *Pipeline) ExtractPages(ctx context.Context) (ExtractResult, error) {
	const op = "extract pages"

	var (
		profile  profiles.SiteProfile
		provider proxy.Provider
		manga    models.CatalogEntry
		selected []models.ChapterRef
		jobID    string
	)
	ctx, run, err := p.begin(ctx, op, func(s *state) error {
		if err := s.validateExtract(op); err != nil {
			return err
		}
		var err error
		if profile, provider, err = p.resolve(s, op); err != nil {
			return err
		}
		manga = *s.selected
		selected = s.selectedChapters()
		jobID = s.jobID
		s.failures = nil
		s.step = StepPages
		s.status = fmt.Sprintf("extracting 0/%d", len(selected))
		return nil
	})
	if err != nil {
		return ExtractResult{}, err
	}
	defer p.finish(run)

	for _, chapter := range selected {
		p.recordChapter(jobID, chapter.Number, models.ChapterJobPending, 0, nil)
	}

	result := ExtractResult{}
	total := len(selected)
	p.setProgress(run, "chapters", 0, total)
	for i, chapter := range selected {
		if i > 0 {
			if err := wait(ctx, p.chapterDelay); err != nil {
				return result, p.stopExtraction(run, op, jobID, selected[i:], err)
			}
		}

		p.recordChapter(jobID, chapter.Number, models.ChapterJobExtracting, 0, nil)
		label := fmt.Sprintf("chapter %s (%d/%d)", formatNumber(chapter.Number), i+1, total)
		doc, err := p.fetchDocument(ctx, run, p.fetcher.GetPersistent, provider, chapter.RemoteURL, profile.NeedsPageRendering(), label)
		if err != nil && ctx.Err() != nil {
			return result, p.stopExtraction(run, op, jobID, selected[i:], err)
		}

		var pages []models.RemotePage
		if err == nil {
			pages = profile.ExtractPages(doc)
			if len(pages) == 0 {
				err = newError(KindZeroResults, op, "0 pages found", nil)
			}
		}
		if err != nil {
			failure := ItemFailure{Chapter: chapter.Number, Kind: kindOfItem(err), Message: err.Error()}
			result.Failures = append(result.Failures, failure)
			p.recordChapter(jobID, chapter.Number, models.ChapterJobFailed, 0, err)
			p.apply(run, func(s *state) {
				s.failures = append(s.failures, failure)
			})
			p.setProgress(run, "chapters", i+1, total)
			p.logger.Warn("chapter extraction failed", "mangaSlug", manga.Slug, "chapter", chapter.Number, "error", err)
			continue
		}

		scraped := models.ScrapedChapter{
			ChapterNumber:  chapter.Number,
			MangaTitle:     manga.Title,
			MangaSlug:      manga.Slug,
			MangaRemoteURL: manga.RemoteURL,
			CoverImageURL:  manga.CoverImageURL,
			SourceKey:      profile.Key(),
			Pages:          pages,
		}
		done := i + 1
		applied := p.apply(run, func(s *state) {
			s.scraped = upsertScraped(s.scraped, scraped)
			s.status = fmt.Sprintf("extracting %d/%d", done, total)
		})
		if !applied {
			return result, discarded(op)
		}
		p.setProgress(run, "chapters", done, total)
		p.recordChapter(jobID, chapter.Number, models.ChapterJobExtracted, len(pages), nil)
		result.Extracted = append(result.Extracted, chapter.Number)
		p.logger.Info("chapter extracted", "mangaSlug", manga.Slug, "chapter", chapter.Number, "pages", len(pages))
	}

	p.apply(run, func(s *state) {
		if len(s.scraped) > 0 {
			s.step = StepPublish
		} else {
			s.step = StepChapters
		}
		s.status = fmt.Sprintf("extracted %d of %d chapters", len(result.Extracted), total)
	})

	if len(result.Failures) > 0 {
		return result, newError(KindPartial, op, fmt.Sprintf("%d of %d chapters failed", len(result.Failures), total), nil)
	}
	return result, nil
}

func (p *Pipeline) stopExtraction(run *operation, op string, jobID string, remaining []models.ChapterRef, cause error) error {
	for _, chapter := range remaining {
		p.recordChapter(jobID, chapter.Number, models.ChapterJobFailed, 0, cause)
	}
	failure := newError(KindCancelled, op, "extraction cancelled", cause)
	p.apply(run, func(s *state) {
		if len(s.scraped) > 0 {
			s.step = StepPublish
		}
		s.status = failure.Message
	})
	return failure
}

// Publish publishes one extracted chapter. On success the chapter leaves
// the scraped set; on failure it stays there so it can be retried.
func (p *Pipeline) Publish(ctx context.Context, number float64) (*publish.Outcome, error) {
	const op = "publish chapter"

	var (
		profile  profiles.SiteProfile
		provider proxy.Provider
		chapter  models.ScrapedChapter
		jobID    string
	)
	ctx, run, err := p.begin(ctx, op, func(s *state) error {
		var err error
		if chapter, err = s.scrapedChapter(op, number); err != nil {
			return err
		}
		if profile, provider, err = p.resolve(s, op); err != nil {
			return err
		}
		jobID = s.jobID
		s.status = "publishing chapter " + formatNumber(number)
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer p.finish(run)

	return p.publishOne(ctx, run, op, profile, provider, jobID, chapter)
}

// PublishAll publishes every extracted chapter in ascending order. A failed
// chapter is reported and the batch moves on.
func (p *Pipeline) PublishAll(ctx context.Context) (PublishAllResult, error) {
	const op = "publish all"

	var (
		profile  profiles.SiteProfile
		provider proxy.Provider
		chapters []models.ScrapedChapter
		jobID    string
	)
	ctx, run, err := p.begin(ctx, op, func(s *state) error {
		if err := s.validatePublishAll(op); err != nil {
			return err
		}
		var err error
		if profile, provider, err = p.resolve(s, op); err != nil {
			return err
		}
		chapters = append([]models.ScrapedChapter(nil), s.scraped...)
		jobID = s.jobID
		s.failures = nil
		s.status = fmt.Sprintf("publishing 0/%d", len(chapters))
		return nil
	})
	if err != nil {
		return PublishAllResult{}, err
	}
	defer p.finish(run)

	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].ChapterNumber < chapters[j].ChapterNumber
	})

	result := PublishAllResult{}
	for _, chapter := range chapters {
		if err := ctx.Err(); err != nil {
			return result, newError(KindCancelled, op, "publishing cancelled", err)
		}

		outcome, err := p.publishOne(ctx, run, op, profile, provider, jobID, chapter)
		if err != nil {
			if IsKind(err, KindCancelled) {
				return result, err
			}
			result.Failures = append(result.Failures, ItemFailure{Chapter: chapter.ChapterNumber, Kind: KindOf(err), Message: err.Error()})
			continue
		}
		result.Published = append(result.Published, *outcome)
	}

	p.apply(run, func(s *state) {
		s.status = fmt.Sprintf("published %d of %d chapters", len(result.Published), len(chapters))
	})

	if len(result.Failures) > 0 {
		return result, newError(KindPartial, op, fmt.Sprintf("%d of %d chapters failed", len(result.Failures), len(chapters)), nil)
	}
	return result, nil
}

func (p *Pipeline) publishOne(ctx context.Context, run *operation, op string, profile profiles.SiteProfile, provider proxy.Provider, jobID string, chapter models.ScrapedChapter) (*publish.Outcome, error) {
	number := formatNumber(chapter.ChapterNumber)
	p.recordChapter(jobID, chapter.ChapterNumber, models.ChapterJobPublishing, len(chapter.Pages), nil)

	outcome, err := p.publisher.Publish(ctx, publish.Request{
		Chapter:  chapter,
		Profile:  profile,
		Provider: provider,
		Progress: func(done int, total int) {
			p.setProgress(run, "pages", done, total)
			p.apply(run, func(s *state) {
				s.status = fmt.Sprintf("publishing chapter %s: page %d/%d", number, done, total)
			})
		},
	})
	if err != nil {
		failure := wrap(op, "chapter "+number+" was not published", err)
		p.recordChapter(jobID, chapter.ChapterNumber, models.ChapterJobFailed, 0, err)
		p.apply(run, func(s *state) {
			s.failures = append(s.failures, ItemFailure{Chapter: chapter.ChapterNumber, Kind: failure.Kind, Message: err.Error()})
			s.status = statusText(failure)
		})
		p.logger.Warn("chapter publish failed", "mangaSlug", chapter.MangaSlug, "chapter", chapter.ChapterNumber, "kind", failure.Kind, "error", err)
		return nil, failure
	}

	p.recordChapter(jobID, chapter.ChapterNumber, models.ChapterJobPublished, len(outcome.Assets.URLs), nil)
	p.apply(run, func(s *state) {
		s.scraped = removeScraped(s.scraped, chapter.ChapterNumber)
		if len(s.scraped) == 0 {
			s.step = StepChapters
		}
		s.status = "chapter " + number + " published"
	})
	return outcome, nil
}

// Cancel aborts the running operation, if any.
func (p *Pipeline) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active == nil {
		return false
	}
	p.active.cancel()
	p.state.status = "cancelling " + p.active.name
	return true
}

// Reset cancels the running operation and returns to the source step,
// keeping the configured source and proxy.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active != nil {
		p.active.cancel()
		p.active = nil
	}
	p.generation++
	p.state = state{source: p.state.source, proxy: p.state.proxy, step: StepSource}
}

func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.state
	snapshot := Snapshot{
		Step:       s.step,
		Status:     s.status,
		Source:     s.source,
		Proxy:      s.proxy,
		JobID:      s.jobID,
		Catalog:    append([]models.CatalogEntry{}, s.catalog...),
		Chapters:   append([]models.ChapterRef{}, s.chapters...),
		Scraped:    append([]models.ScrapedChapter{}, s.scraped...),
		Failures:   append([]ItemFailure(nil), s.failures...),
		CanPublish: len(s.scraped) > 0,
	}
	if s.selected != nil {
		selected := *s.selected
		snapshot.SelectedManga = &selected
	}
	if p.active != nil {
		snapshot.Running = p.active.name
		if p.active.progress.Total > 0 {
			progress := p.active.progress
			snapshot.Progress = &progress
		}
	}
	return snapshot
}

func (p *Pipeline) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active != nil
}

// CheckFetchCatalog and the other Check methods run the synchronous
// validation of an operation without starting it.
func (p *Pipeline) CheckFetchCatalog() error {
	return p.check("fetch catalog", func(*state) error {
		return nil
	})
}

func (p *Pipeline) CheckSelect(slug string) error {
	return p.check("select manga", func(s *state) error {
		_, err := s.catalogEntry("select manga", slug)
		return err
	})
}

func (p *Pipeline) CheckExtract() error {
	return p.check("extract pages", func(s *state) error {
		return s.validateExtract("extract pages")
	})
}

func (p *Pipeline) CheckPublish(number float64) error {
	return p.check("publish chapter", func(s *state) error {
		_, err := s.scrapedChapter("publish chapter", number)
		return err
	})
}

func (p *Pipeline) CheckPublishAll() error {
	return p.check("publish all", func(s *state) error {
		return s.validatePublishAll("publish all")
	})
}

func (p *Pipeline) check(op string, validate func(s *state) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.busyLocked(op); err != nil {
		return err
	}
	if _, _, err := p.resolve(&p.state, op); err != nil {
		return err
	}
	return validate(&p.state)
}

func (p *Pipeline) begin(ctx context.Context, name string, prepare func(s *state) error) (context.Context, *operation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.busyLocked(name); err != nil {
		return nil, nil, err
	}
	if err := prepare(&p.state); err != nil {
		return nil, nil, err
	}

	opCtx, cancel := context.WithCancel(ctx)
	run := &operation{name: name, generation: p.generation, cancel: cancel}
	p.active = run
	return opCtx, run, nil
}

func (p *Pipeline) finish(run *operation) {
	run.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == run {
		p.active = nil
	}
}

// apply mutates the state unless a Reset happened since run started.
func (p *Pipeline) apply(run *operation, fn func(s *state)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if run.generation != p.generation {
		return false
	}
	fn(&p.state)
	return true
}

func (p *Pipeline) setProgress(run *operation, unit string, done int, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == run {
		run.progress = Progress{Unit: unit, Done: done, Total: total}
	}
}

func (p *Pipeline) fail(run *operation, err *Error) error {
	p.apply(run, func(s *state) {
		s.status = statusText(err)
	})
	return err
}

func (p *Pipeline) busyLocked(op string) error {
	if p.active == nil {
		return nil
	}
	return newError(KindBusy, op, p.active.name+" is still running", nil)
}

func (p *Pipeline) resolve(s *state, op string) (profiles.SiteProfile, proxy.Provider, error) {
	profile, ok := p.profiles.Get(s.source)
	if !ok {
		return nil, nil, validationError(op, "unknown source %q", s.source)
	}
	provider, ok := p.proxies.Get(s.proxy)
	if !ok {
		return nil, nil, validationError(op, "unknown proxy %q", s.proxy)
	}
	if keyed, ok := provider.(interface{ Configured() bool }); ok && !keyed.Configured() {
		return nil, nil, validationError(op, "proxy %q has no credentials configured", s.proxy)
	}
	return profile, provider, nil
}

func (p *Pipeline) fetchDocument(ctx context.Context, run *operation, get getFunc, provider proxy.Provider, target string, render bool, label string) (*goquery.Document, error) {
	progress := func(message string) {
		p.apply(run, func(s *state) {
			s.status = label + ": " + message
		})
	}

	response, err := get(ctx, provider.BuildURL(target, render), progress)
	if err != nil {
		return nil, err
	}
	return profiles.ParseDocument(response.Body)
}

func (p *Pipeline) createJob(sourceKey string, proxyID string, entry models.CatalogEntry) string {
	if p.jobs == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobWriteTimeout)
	defer cancel()

	job := models.ScrapeJob{
		ID:        uuid.NewString(),
		SourceKey: sourceKey,
		ProxyID:   proxyID,
		MangaSlug: entry.Slug,
		MangaURL:  entry.RemoteURL,
	}
	if err := p.jobs.CreateJob(ctx, job); err != nil {
		p.logger.Warn("scrape job not recorded", "mangaSlug", entry.Slug, "error", err)
		return ""
	}
	return job.ID
}

func (p *Pipeline) recordChapter(jobID string, number float64, status models.ChapterJobStatus, pageCount int, cause error) {
	if p.jobs == nil || jobID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobWriteTimeout)
	defer cancel()

	update := models.ChapterJob{
		JobID:         jobID,
		ChapterNumber: number,
		Status:        status,
		PageCount:     pageCount,
	}
	if cause != nil {
		message := cause.Error()
		update.LastError = &message
	}
	if err := p.jobs.UpsertChapterStatus(ctx, update); err != nil {
		p.logger.Warn("chapter job status not recorded", "jobId", jobID, "chapter", number, "status", status, "error", err)
	}
}

func (s *state) findEntry(slug string) (models.CatalogEntry, bool) {
	for _, entry := range s.catalog {
		if entry.Slug == slug {
			return entry, true
		}
	}
	return models.CatalogEntry{}, false
}

func (s *state) catalogEntry(op string, slug string) (models.CatalogEntry, error) {
	slug = strings.TrimSpace(slug)
	if len(s.catalog) == 0 {
		return models.CatalogEntry{}, validationError(op, "no catalog loaded")
	}
	entry, ok := s.findEntry(slug)
	if !ok {
		return models.CatalogEntry{}, validationError(op, "manga %q is not in the catalog", slug)
	}
	return entry, nil
}

func (s *state) selectedChapters() []models.ChapterRef {
	selected := make([]models.ChapterRef, 0, len(s.chapters))
	for _, chapter := range s.chapters {
		if chapter.Selected {
			selected = append(selected, chapter)
		}
	}
	return selected
}

func (s *state) validateExtract(op string) error {
	if s.selected == nil {
		return validationError(op, "no manga selected")
	}
	if len(s.selectedChapters()) == 0 {
		return validationError(op, "select at least one chapter")
	}
	return nil
}

func (s *state) validatePublishAll(op string) error {
	if len(s.scraped) == 0 {
		return validationError(op, "no extracted chapters to publish")
	}
	return nil
}

func (s *state) scrapedChapter(op string, number float64) (models.ScrapedChapter, error) {
	for _, chapter := range s.scraped {
		if chapter.ChapterNumber == number {
			return chapter, nil
		}
	}
	return models.ScrapedChapter{}, validationError(op, "chapter %s has not been extracted", formatNumber(number))
}

func entryForTarget(op string, profile profiles.SiteProfile, target string) (models.CatalogEntry, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return models.CatalogEntry{}, validationError(op, "manga url or slug is required")
	}

	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		slug := profiles.SlugFromURL(target)
		if slug == "" {
			return models.CatalogEntry{}, validationError(op, "%q is not a manga page", target)
		}
		return models.CatalogEntry{Slug: slug, RemoteURL: target}, nil
	}

	slug := strings.Trim(target, "/")
	return models.CatalogEntry{
		Slug:      slug,
		RemoteURL: strings.TrimRight(profile.BaseURL(), "/") + "/manga/" + slug + "/",
	}, nil
}

func pageTitle(doc *goquery.Document, fallback string) string {
	if title := strings.TrimSpace(doc.Find("h1").First().Text()); title != "" {
		return title
	}
	return fallback
}

func upsertScraped(items []models.ScrapedChapter, chapter models.ScrapedChapter) []models.ScrapedChapter {
	items = removeScraped(items, chapter.ChapterNumber)
	items = append(items, chapter)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ChapterNumber < items[j].ChapterNumber
	})
	return items
}

func removeScraped(items []models.ScrapedChapter, number float64) []models.ScrapedChapter {
	out := items[:0:0]
	for _, item := range items {
		if item.ChapterNumber != number {
			out = append(out, item)
		}
	}
	return out
}

func kindOfItem(err error) Kind {
	if kind := KindOf(err); kind != KindInternal {
		return kind
	}
	return classify(err)
}

func statusText(err *Error) string {
	if err.Err == nil {
		return err.Message
	}
	return err.Message + ": " + err.Err.Error()
}

func discarded(op string) error {
	return newError(KindCancelled, op, "result discarded after reset", nil)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func formatNumber(number float64) string {
	return strconv.FormatFloat(number, 'f', -1, 64)
}
