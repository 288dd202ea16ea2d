package media

import (
	"context"
	"crypto/md5" //nolint:gosec // content checksum, not a security primitive
	"encoding/hex"
	"net/http"
	"net/url"

	"github.com/cperrin88/mediafetch/pkg/errors"
	"github.com/cperrin88/mediafetch/pkg/fetch"
	"github.com/cperrin88/mediafetch/pkg/hooks"
	"github.com/cperrin88/mediafetch/pkg/imageproc"
	"github.com/cperrin88/mediafetch/pkg/storage"
)

// maxIndirections bounds chains of 201 responses.
const maxIndirections = 5

// Processor validates a fetched response and persists what it yields.
type Processor interface {
	// Path returns the store path of the primary object for req. It must not
	// depend on the response, since it is used to look for a stored copy
	// before fetching.
	Path(ctx context.Context, req Request) (string, error)

	// Process turns resp into an Outcome, persisting the primary object at path.
	Process(ctx context.Context, req Request, path string, resp *fetch.Response) Outcome
}

// ProcessorOptions configure the file and image processors.
type ProcessorOptions struct {
	Store          storage.Store
	Client         fetch.Client // used to follow 201 indirections
	Script         *hooks.PathScript
	AllowRedirects bool
	Priority       int

	// Image only.
	MinWidth  int
	MinHeight int
	Thumbs    map[string]imageproc.Size
}

type base struct {
	store          storage.Store
	client         fetch.Client
	namer          Namer
	allowRedirects bool
	priority       int
}

func newBase(opts ProcessorOptions) base {
	return base{
		store:          opts.Store,
		client:         opts.Client,
		namer:          Namer{Script: opts.Script},
		allowRedirects: opts.AllowRedirects,
		priority:       opts.Priority,
	}
}

// accept classifies resp. It follows 201 indirections, recomputing the path
// for the indicated resource through p, and returns the request, path and
// response whose body should be stored.
func (b *base) accept(ctx context.Context, p Processor, req Request, path string, resp *fetch.Response) (Request, string, *fetch.Response, error) {
	for i := 0; ; i++ {
		switch {
		case resp.Status == http.StatusOK:
			if len(resp.Body) == 0 {
				return req, path, nil, errors.Wrapf(errors.ErrEmptyContent, "%s", req.URL)
			}
			return req, path, resp, nil

		case resp.Status == http.StatusCreated:
			if i >= maxIndirections {
				return req, path, nil, errors.Wrapf(errors.ErrTooManyRedirects, "%s", req.URL)
			}
			loc := resp.Header.Get("Location")
			if loc == "" {
				return req, path, nil, errors.Wrapf(errors.ErrMissingLocation, "%s", req.URL)
			}
			target, err := resolveReference(resp.URL, loc)
			if err != nil {
				return req, path, nil, errors.Wrapf(errors.ErrFetchFailure, "bad location %q: %v", loc, err)
			}

			next := req
			next.URL = target
			if req.Path == "" {
				if path, err = p.Path(ctx, next); err != nil {
					return req, path, nil, err
				}
			}
			req = next
			resp, err = b.client.Do(ctx, &fetch.Request{
				URL:             target,
				Header:          req.Header,
				Priority:        b.priority,
				FollowRedirects: b.allowRedirects,
			})
			if err != nil {
				return req, path, nil, fetchError(err)
			}

		case resp.Status >= 300 && resp.Status < 400:
			return req, path, nil, errors.Wrapf(errors.ErrRedirectRejected, "%s: status %d", req.URL, resp.Status)

		default:
			return req, path, nil, errors.Wrapf(errors.ErrFetchFailure, "%s: status %d", req.URL, resp.Status)
		}
	}
}

func resolveReference(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

// fetchError makes sure transport errors classify as fetch failures.
func fetchError(err error) error {
	if errors.Is(err, errors.ErrFetchFailure) || errors.Is(err, errors.ErrTooManyRedirects) {
		return err
	}
	return errors.Wrap(errors.ErrFetchFailure, err.Error())
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
