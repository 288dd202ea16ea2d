package media

import "github.com/cperrin88/mediafetch/pkg/errors"

// Failure reasons reported alongside failed outcomes.
const (
	ReasonDownload        = "download-error"
	ReasonRedirect        = "redirect"
	ReasonSize            = "size"
	ReasonStore           = "store-error"
	ReasonDecode          = "decode-error"
	ReasonEmptyContent    = "empty-content"
	ReasonMissingLocation = "missing-location-header"
	ReasonAborted         = "aborted"
	ReasonPath            = "path-error"
)

var reasons = []struct {
	err    error
	reason string
}{
	{errors.ErrAborted, ReasonAborted},
	{errors.ErrMissingLocation, ReasonMissingLocation},
	{errors.ErrEmptyContent, ReasonEmptyContent},
	{errors.ErrRedirectRejected, ReasonRedirect},
	{errors.ErrTooManyRedirects, ReasonRedirect},
	{errors.ErrSizeRejected, ReasonSize},
	{errors.ErrStorageFailure, ReasonStore},
	{errors.ErrDecodeFailure, ReasonDecode},
	{errors.ErrHookScript, ReasonPath},
	{errors.ErrHookExecution, ReasonPath},
}

// Reason maps err to its short reason string; "" for nil. Unclassified errors
// are download errors.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ReasonDownload
}
