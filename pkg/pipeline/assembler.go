// Package pipeline connects items to the media coordinator: it submits an
// item's URLs as one batch and hands back the results in request order once
// every one of them resolved.
package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/cperrin88/mediafetch/pkg/fingerprint"
	"github.com/cperrin88/mediafetch/pkg/media"
)

// Batch tracks the requests of one item.
type Batch struct {
	ID string

	mu       sync.Mutex
	slots    []Result
	filled   []bool
	resolved int
	done     func([]Result)
	hooks    Hooks
}

func (b *Batch) resolvedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolved
}

// fill stores o in slot and completes the batch when it was the last one.
// Repeated deliveries to a slot are ignored.
func (b *Batch) fill(slot int, o media.Outcome) {
	b.mu.Lock()
	if slot < 0 || slot >= len(b.slots) || b.filled[slot] {
		b.mu.Unlock()
		return
	}
	b.slots[slot] = Result{OK: o.OK(), Outcome: o}
	b.filled[slot] = true
	b.resolved++
	complete := b.resolved == len(b.slots)
	b.mu.Unlock()

	status := string(o.Status)
	if !o.OK() {
		status = media.Reason(o.Err)
	}
	emit(b.hooks, Event{Phase: PhaseMedia, BatchID: b.ID, URL: o.URL, Status: status, Total: len(b.slots)})

	if complete {
		b.done(b.slots)
	}
}

// Assembler submits URL lists as batches.
type Assembler struct {
	coord Submitter
	hooks Hooks
}

// NewAssembler creates an Assembler on top of coord.
func NewAssembler(coord Submitter, hooks Hooks) *Assembler {
	return &Assembler{coord: coord, hooks: hooks}
}

// Submit creates a batch for urls and calls done exactly once with one Result
// per URL, in the order of urls. An empty list completes immediately.
//
// URLs sharing a fingerprint are submitted once; the later slots receive the
// first one's outcome as cached.
func (a *Assembler) Submit(ctx context.Context, urls []string, done func([]Result)) *Batch {
	b := &Batch{
		ID:     uuid.NewString(),
		slots:  make([]Result, len(urls)),
		filled: make([]bool, len(urls)),
		done:   done,
		hooks:  a.hooks,
	}
	emit(a.hooks, Event{Phase: PhaseItem, BatchID: b.ID, Total: len(urls)})
	if len(urls) == 0 {
		done([]Result{})
		return b
	}

	first := make(map[fingerprint.Key]int, len(urls))
	dups := make(map[int][]int)
	for i, u := range urls {
		key := fingerprint.Of(u)
		if j, ok := first[key]; ok {
			dups[j] = append(dups[j], i)
			continue
		}
		first[key] = i
	}

	for i, u := range urls {
		if first[fingerprint.Of(u)] != i {
			continue
		}
		slot := i
		req := media.Request{URL: u, BatchID: b.ID, Slot: slot}
		a.coord.Submit(ctx, req, func(o media.Outcome) {
			b.fill(slot, o)
			for _, d := range dups[slot] {
				b.fill(d, o.AsCached())
			}
		})
	}
	return b
}
