package media

import (
	"net/http"
)

// Status tags a successful Outcome.
type Status string

// Outcome statuses.
const (
	// StatusDownloaded is given to the request whose fetch produced the object.
	StatusDownloaded Status = "downloaded"
	// StatusUptodate means a fresh stored copy was reused without fetching.
	StatusUptodate Status = "uptodate"
	// StatusCached is given to every other request sharing the resolution.
	StatusCached Status = "cached"
)

// Request is one media URL of one item. It is never mutated after creation.
type Request struct {
	URL     string
	Header  http.Header
	Path    string // store path override for the primary object
	BatchID string
	Slot    int
}

// Thumb is the result of one thumbnail derivative.
type Thumb struct {
	Name     string `json:"name"`
	Path     string `json:"path,omitempty"`
	Checksum string `json:"checksum,omitempty"`
	Reason   string `json:"reason,omitempty"` // set when Err is non-nil
	Err      error  `json:"-"`
}

// Outcome is the terminal result of resolving one resource. A non-nil Err
// marks a failure; Thumbs may be set either way.
type Outcome struct {
	URL      string  `json:"url"`
	Path     string  `json:"path"`
	Checksum string  `json:"checksum"`
	Status   Status  `json:"status"`
	MIME     string  `json:"mime,omitempty"`
	Thumbs   []Thumb `json:"thumbs,omitempty"`
	Err      error   `json:"-"`
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool { return o.Err == nil }

// Failure returns a failed outcome for url.
func Failure(url string, err error) Outcome {
	return Outcome{URL: url, Err: err}
}

// AsCached returns o as handed to a request that shared another request's
// resolution. Failures are returned unchanged.
func (o Outcome) AsCached() Outcome {
	if o.Err == nil {
		o.Status = StatusCached
	}
	return o
}
