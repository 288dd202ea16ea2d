package cli

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/cperrin88/mediafetch/pkg/pipeline"
)

// progress renders item and media counters while a fetch runs. Totals grow
// as items are read and batches are submitted.
type progress struct {
	p     *mpb.Progress
	items *mpb.Bar
	media *mpb.Bar

	itemTotal  atomic.Int64
	mediaTotal atomic.Int64
}

func newProgress(ctx context.Context, w io.Writer) *progress {
	p := mpb.NewWithContext(ctx, mpb.WithOutput(w), mpb.WithWidth(64))
	bar := func(name string) *mpb.Bar {
		return p.AddBar(0,
			mpb.PrependDecorators(
				decor.Name(name, decor.WC{W: len(name) + 1}),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(decor.Percentage()),
		)
	}
	return &progress{p: p, items: bar("items"), media: bar("media")}
}

func (pr *progress) itemRead() {
	pr.items.SetTotal(pr.itemTotal.Add(1), false)
}

func (pr *progress) onEvent(e pipeline.Event) {
	switch e.Phase {
	case pipeline.PhaseItem:
		pr.media.SetTotal(pr.mediaTotal.Add(int64(e.Total)), false)
	case pipeline.PhaseMedia:
		pr.media.Increment()
	case pipeline.PhaseDone:
		pr.items.Increment()
	}
}

// finish completes both bars with their current counts and waits for the
// last render.
func (pr *progress) finish() {
	pr.items.SetTotal(-1, true)
	pr.media.SetTotal(-1, true)
	pr.p.Wait()
}
