package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gustavoatec2-lang/havencomics/internal/models"
	"github.com/gustavoatec2-lang/havencomics/internal/pipeline"
)

func init() {
	chaptersCmd := &cobra.Command{
		Use:   "chapters <manga-url-or-slug>",
		Short: "List the chapters of one title",
		Args:  cobra.ExactArgs(1),
		RunE:  runChapters,
	}
	rootCmd.AddCommand(chaptersCmd)
}

func runChapters(cmd *cobra.Command, args []string) error {
	application, err := bootstrap()
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	chapters, err := loadChapters(ctx, application.Pipeline, args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tLABEL\tDATE")
	for _, chapter := range chapters {
		fmt.Fprintf(w, "%s\t%s\t%s\n", formatNumber(chapter.Number), chapter.Label, chapter.PublishedDateText)
	}
	return w.Flush()
}

// loadChapters opens a manga by URL directly, or by slug through the
// catalog of the configured source.
func loadChapters(ctx context.Context, scrape *pipeline.Pipeline, target string) ([]models.ChapterRef, error) {
	target = strings.TrimSpace(target)
	if strings.Contains(target, "://") {
		return scrape.OpenManga(ctx, target)
	}
	if _, err := scrape.FetchCatalog(ctx); err != nil {
		return nil, err
	}
	return scrape.SelectManga(ctx, target)
}

func formatNumber(number float64) string {
	return strconv.FormatFloat(number, 'f', -1, 64)
}
