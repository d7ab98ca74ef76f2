package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gustavoatec2-lang/havencomics/internal/pipeline"
)

var (
	flagChapters string
	flagAll      bool
	flagPublish  bool
)

func init() {
	importCmd := &cobra.Command{
		Use:   "import <manga-url-or-slug>",
		Short: "Extract the pages of selected chapters and optionally publish them",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}

	importCmd.Flags().StringVar(&flagChapters, "chapters", "", "chapters to import (e.g. 1,2,5-7)")
	importCmd.Flags().BoolVar(&flagAll, "all", false, "import every listed chapter")
	importCmd.Flags().BoolVar(&flagPublish, "publish", false, "publish extracted chapters to the catalog")

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if flagChapters == "" && !flagAll {
		return fmt.Errorf("pass --chapters or --all")
	}
	var wanted chapterRange
	if !flagAll {
		parsed, err := parseChapterRange(flagChapters)
		if err != nil {
			return err
		}
		wanted = parsed
	}

	application, err := bootstrap()
	if err != nil {
		return err
	}
	defer application.Close()
	scrape := application.Pipeline

	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	chapters, err := loadChapters(ctx, scrape, args[0])
	if err != nil {
		return err
	}

	if err := scrape.SetAllChapters(false); err != nil {
		return err
	}
	selected := 0
	for _, chapter := range chapters {
		if flagAll || wanted.Contains(chapter.Number) {
			if err := scrape.ToggleChapter(chapter.Number); err != nil {
				return err
			}
			selected++
		}
	}
	if selected == 0 {
		return fmt.Errorf("none of the %d listed chapters matched %q", len(chapters), flagChapters)
	}

	done := watchProgress(scrape, "extract", selected)
	extracted, extractErr := scrape.ExtractPages(ctx)
	done()
	printFailures(extracted.Failures)
	if extractErr != nil && !pipeline.IsKind(extractErr, pipeline.KindPartial) {
		return extractErr
	}
	fmt.Printf("extracted %d of %d chapters\n", len(extracted.Extracted), selected)

	if !flagPublish || len(extracted.Extracted) == 0 {
		return extractErr
	}

	var failures []pipeline.ItemFailure
	scraped := scrape.Snapshot().Scraped
	sort.SliceStable(scraped, func(i, j int) bool {
		return scraped[i].ChapterNumber < scraped[j].ChapterNumber
	})
	for _, chapter := range scraped {
		done := watchProgress(scrape, "chapter "+formatNumber(chapter.ChapterNumber), len(chapter.Pages))
		outcome, publishErr := scrape.Publish(ctx, chapter.ChapterNumber)
		done()
		if publishErr != nil {
			if pipeline.IsKind(publishErr, pipeline.KindCancelled) {
				return publishErr
			}
			failures = append(failures, pipeline.ItemFailure{
				Chapter: chapter.ChapterNumber,
				Kind:    pipeline.KindOf(publishErr),
				Message: publishErr.Error(),
			})
			continue
		}
		fmt.Printf("chapter %s published: %d pages (%d kept remote)\n",
			formatNumber(outcome.Chapter), len(outcome.Assets.URLs), outcome.Assets.Fallbacks)
	}
	printFailures(failures)

	if len(failures) > 0 {
		return fmt.Errorf("%d chapters were not published", len(failures))
	}
	return extractErr
}

func printFailures(failures []pipeline.ItemFailure) {
	for _, failure := range failures {
		fmt.Printf("chapter %s failed (%s): %s\n", formatNumber(failure.Chapter), failure.Kind, failure.Message)
	}
}
