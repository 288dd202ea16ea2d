package pipeline

import (
	"context"
	"fmt"
	"strings"

	"mvdan.cc/xurls/v2"

	"github.com/cperrin88/mediafetch/pkg/errors"
	"github.com/cperrin88/mediafetch/pkg/logger"
	"github.com/cperrin88/mediafetch/pkg/media"
)

// Default field names per media kind.
const (
	FileURLsField     = "file_urls"
	FileResultsField  = "files"
	ImageURLsField    = "image_urls"
	ImageResultsField = "images"
)

var strictURL = xurls.Strict()

// Pipeline reads media URLs from one item field and writes the successful
// outcomes to another.
type Pipeline struct {
	Name         string
	URLsField    string
	ResultsField string

	assembler *Assembler
	hooks     Hooks
}

// New creates a pipeline submitting to coord.
func New(name, urlsField, resultsField string, coord Submitter, hooks Hooks) *Pipeline {
	return &Pipeline{
		Name:         name,
		URLsField:    urlsField,
		ResultsField: resultsField,
		assembler:    NewAssembler(coord, hooks),
		hooks:        hooks,
	}
}

// ProcessItem resolves every URL of item and returns a copy of item with the
// results field set, together with the full ordered result list. It blocks
// until the batch completes or ctx is done.
func (p *Pipeline) ProcessItem(ctx context.Context, item Item) (Item, []Result, error) {
	urls, err := ExtractURLs(item[p.URLsField])
	if err != nil {
		return item, nil, errors.Wrapf(err, "field %s", p.URLsField)
	}

	doneCh := make(chan []Result, 1)
	batch := p.assembler.Submit(ctx, urls, func(results []Result) { doneCh <- results })

	var results []Result
	select {
	case results = <-doneCh:
	case <-ctx.Done():
		return item, nil, ctx.Err()
	}

	out := make(Item, len(item)+1)
	for k, v := range item {
		out[k] = v
	}
	kept := make([]media.Outcome, 0, len(results))
	for _, r := range results {
		if r.OK {
			kept = append(kept, r.Outcome)
		}
	}
	out[p.ResultsField] = kept

	logger.Debug("Item media resolved", logger.Fields{
		"pipeline": p.Name,
		"batch":    batch.ID,
		"total":    len(results),
		"ok":       len(kept),
	})
	emit(p.hooks, Event{Phase: PhaseDone, BatchID: batch.ID, Total: len(results)})
	return out, results, nil
}

// ExtractURLs reads a URLs field. A list is taken element by element; a
// single string is scanned for URLs. A missing field means no URLs.
func ExtractURLs(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return strictURL.FindAllString(val, -1), nil
	case []string:
		urls := make([]string, 0, len(val))
		for _, s := range val {
			urls = appendURL(urls, s)
		}
		return urls, nil
	case []any:
		urls := make([]string, 0, len(val))
		for i, e := range val {
			s, ok := e.(string)
			if !ok {
				return nil, errors.Wrapf(errors.ErrInvalidItem, "element %d is %T, not a string", i, e)
			}
			urls = appendURL(urls, s)
		}
		return urls, nil
	default:
		return nil, fmt.Errorf("%w: unsupported URLs field type %T", errors.ErrInvalidItem, v)
	}
}

// appendURL appends s trimmed, skipping blank entries.
func appendURL(urls []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		urls = append(urls, s)
	}
	return urls
}
