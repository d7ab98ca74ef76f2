package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/gustavoatec2-lang/havencomics/internal/pipeline"
)

func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// watchProgress mirrors the pipeline progress counter on a bar until stop
// is called.
func watchProgress(scrape *pipeline.Pipeline, label string, total int) (stop func()) {
	p := mpb.New(
		mpb.WithWidth(52),
		mpb.WithOutput(os.Stderr),
		mpb.WithRefreshRate(120*time.Millisecond),
	)
	bar := p.New(int64(total),
		mpb.BarStyle().Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(label+"  "),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncWidth),
			decor.Any(func(_ decor.Statistics) string {
				snapshot := scrape.Snapshot()
				if snapshot.Progress == nil {
					return ""
				}
				return " | " + snapshot.Progress.Unit
			}),
			decor.Elapsed(decor.ET_STYLE_GO, decor.WCSyncSpace),
		),
	)

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if progress := scrape.Snapshot().Progress; progress != nil && progress.Total > 0 {
					bar.SetTotal(int64(progress.Total), false)
					bar.SetCurrent(int64(progress.Done))
				}
			}
		}
	}()

	return func() {
		close(done)
		<-finished
		bar.SetTotal(-1, true)
		p.Wait()
	}
}
