package pipeline

import (
	"context"

	"github.com/cperrin88/mediafetch/pkg/media"
)

// Submitter is the subset of the media coordinator used by the assembler.
type Submitter interface {
	Submit(ctx context.Context, req media.Request, deliver func(media.Outcome))
}

// Result is one slot of an item's result list.
type Result struct {
	OK      bool
	Outcome media.Outcome
}

// Item is a decoded item record.
type Item map[string]any

// Event represents a progress notification.
type Event struct {
	Phase   string // item|media|done
	BatchID string
	URL     string
	Status  string // media status or failure reason
	Total   int    // URLs in the batch
}

// Event phases.
const (
	PhaseItem  = "item"
	PhaseMedia = "media"
	PhaseDone  = "done"
)

// Hooks carries callbacks for progress events. OnEvent may be called from
// several goroutines at once.
type Hooks struct {
	OnEvent func(Event)
}

func emit(h Hooks, e Event) {
	if h.OnEvent != nil {
		h.OnEvent(e)
	}
}

// Keep reports whether an item should be kept: it has no media or at least
// one of its media resolved.
func Keep(results []Result) bool {
	if len(results) == 0 {
		return true
	}
	for _, r := range results {
		if r.OK {
			return true
		}
	}
	return false
}
