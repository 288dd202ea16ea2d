package fetch

import (
	"net/http"
	"net/url"
	"strings"
)

var redirectStatuses = map[int]bool{
	http.StatusMovedPermanently:  true,
	http.StatusFound:             true,
	http.StatusSeeOther:          true,
	http.StatusTemporaryRedirect: true,
	http.StatusPermanentRedirect: true,
}

var defaultPorts = map[string]string{"http": "80", "https": "443"}

// IsRedirect reports whether status is one the client follows.
func IsRedirect(status int) bool {
	return redirectStatuses[status]
}

// nextRequest builds the request that follows resp, or returns false when
// resp is not a followable redirect.
func nextRequest(req *Request, resp *Response) (*Request, bool) {
	loc := resp.Header.Get("Location")
	if loc == "" || !IsRedirect(resp.Status) {
		return nil, false
	}

	base, err := url.Parse(req.URL)
	if err != nil {
		return nil, false
	}
	if strings.HasPrefix(loc, "//") {
		loc = base.Scheme + "://" + strings.TrimLeft(loc, "/")
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return nil, false
	}
	target := base.ResolveReference(ref)
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, false
	}

	next := req.clone()
	next.URL = target.String()

	keepMethod := resp.Status == http.StatusMovedPermanently ||
		resp.Status == http.StatusTemporaryRedirect ||
		resp.Status == http.StatusPermanentRedirect ||
		req.method() == http.MethodHead
	if !keepMethod {
		next.Method = http.MethodGet
		next.Body = nil
		next.Header.Del("Content-Type")
		next.Header.Del("Content-Length")
	}

	stripCredentials(base, target, next.Header)
	return next, true
}

// stripCredentials drops Cookie when the redirect leaves the host or
// downgrades to a non-https scheme, and Authorization when the origin changes.
func stripCredentials(from, to *url.URL, h http.Header) {
	if h.Get("Cookie") != "" {
		if (to.Scheme != from.Scheme && to.Scheme != "https") || from.Hostname() != to.Hostname() {
			h.Del("Cookie")
		}
	}
	if h.Get("Authorization") != "" {
		if from.Scheme != to.Scheme || from.Hostname() != to.Hostname() || port(from) != port(to) {
			h.Del("Authorization")
		}
	}
}

func port(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	return defaultPorts[u.Scheme]
}
