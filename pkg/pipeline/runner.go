package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultJobs is the number of items processed in parallel when none is
// configured.
const DefaultJobs = 4

// Runner feeds items through a Pipeline with a fixed number of workers.
type Runner struct {
	Pipeline *Pipeline
	Jobs     int
}

// Run processes items until the channel is closed. out receives every
// processed item with its results; calls to out are serialized. The first
// error returned by out or by the pipeline stops the run.
func (r *Runner) Run(ctx context.Context, items <-chan Item, out func(Item, []Result) error) error {
	jobs := r.Jobs
	if jobs <= 0 {
		jobs = DefaultJobs
	}

	g, ctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for i := 0; i < jobs; i++ {
		g.Go(func() error {
			for {
				var item Item
				var ok bool
				select {
				case item, ok = <-items:
					if !ok {
						return nil
					}
				case <-ctx.Done():
					return ctx.Err()
				}

				processed, results, err := r.Pipeline.ProcessItem(ctx, item)
				if err != nil {
					return err
				}
				mu.Lock()
				err = out(processed, results)
				mu.Unlock()
				if err != nil {
					return err
				}
			}
		})
	}
	return g.Wait()
}
