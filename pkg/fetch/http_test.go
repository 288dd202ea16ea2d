package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cperrin88/mediafetch/pkg/auth"
	"github.com/cperrin88/mediafetch/pkg/errors"
)

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		name         string
		opts         HTTPOptions
		expectedUA   string
		maxRedirects int
	}{
		{
			name:         "defaults",
			expectedUA:   DefaultUserAgent,
			maxRedirects: DefaultMaxRedirects,
		},
		{
			name:         "custom",
			opts:         HTTPOptions{Timeout: time.Second, UserAgent: "test-agent/1.0", MaxRedirects: 3},
			expectedUA:   "test-agent/1.0",
			maxRedirects: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewHTTPClient(tt.opts)
			defer c.Close()
			assert.Equal(t, tt.expectedUA, c.userAgent)
			assert.Equal(t, tt.maxRedirects, c.maxRedirects)
		})
	}
}

func newRedirectServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/image.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-UA", r.UserAgent())
		_, _ = w.Write([]byte("jpeg-bytes"))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/image.jpg", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/found", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/image.jpg", http.StatusFound)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusTemporaryRedirect)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClient_Do(t *testing.T) {
	srv := newRedirectServer(t)
	c := NewHTTPClient(HTTPOptions{UserAgent: "agent/2", MaxRedirects: 3})
	defer c.Close()

	tests := []struct {
		name      string
		req       *Request
		status    int
		finalURL  string
		body      string
		redirects []string
		method    string
		wantErr   error
	}{
		{
			name:     "plain fetch",
			req:      &Request{URL: srv.URL + "/image.jpg"},
			status:   http.StatusOK,
			finalURL: srv.URL + "/image.jpg",
			body:     "jpeg-bytes",
			method:   http.MethodGet,
		},
		{
			name:     "redirect returned when not following",
			req:      &Request{URL: srv.URL + "/moved"},
			status:   http.StatusMovedPermanently,
			finalURL: srv.URL + "/moved",
		},
		{
			name:      "redirect followed",
			req:       &Request{URL: srv.URL + "/moved", FollowRedirects: true},
			status:    http.StatusOK,
			finalURL:  srv.URL + "/image.jpg",
			body:      "jpeg-bytes",
			redirects: []string{srv.URL + "/moved"},
			method:    http.MethodGet,
		},
		{
			name:      "302 turns POST into GET",
			req:       &Request{Method: http.MethodPost, URL: srv.URL + "/found", Body: []byte("x"), FollowRedirects: true},
			status:    http.StatusOK,
			finalURL:  srv.URL + "/image.jpg",
			body:      "jpeg-bytes",
			redirects: []string{srv.URL + "/found"},
			method:    http.MethodGet,
		},
		{
			name:    "redirect loop",
			req:     &Request{URL: srv.URL + "/loop", FollowRedirects: true},
			wantErr: errors.ErrTooManyRedirects,
		},
		{
			name:     "error status is not a transport error",
			req:      &Request{URL: srv.URL + "/missing"},
			status:   http.StatusNotFound,
			finalURL: srv.URL + "/missing",
		},
		{
			name:     "body sent",
			req:      &Request{Method: http.MethodPost, URL: srv.URL + "/echo", Body: []byte("payload")},
			status:   http.StatusOK,
			finalURL: srv.URL + "/echo",
			body:     "payload",
		},
		{
			name:    "connection refused",
			req:     &Request{URL: "http://127.0.0.1:1/x"},
			wantErr: errors.ErrFetchFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := c.Do(context.Background(), tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.finalURL, resp.URL)
			assert.Equal(t, tt.redirects, resp.Redirects)
			if tt.body != "" {
				assert.Equal(t, tt.body, string(resp.Body))
			}
			if tt.method != "" {
				assert.Equal(t, tt.method, resp.Header.Get("X-Method"))
				assert.Equal(t, "agent/2", resp.Header.Get("X-UA"))
			}
		})
	}
}

func TestHTTPClient_DoAppliesHostCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/moved" {
			http.Redirect(w, r, "/final", http.StatusFound)
			return
		}
		_, _ = io.WriteString(w, r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	tests := []struct {
		name  string
		hosts auth.Hosts
		req   *Request
		want  string
	}{
		{
			name:  "matching host",
			hosts: auth.Hosts{"127.0.0.1": auth.BearerAuth{Token: "t0k"}},
			req:   &Request{URL: srv.URL + "/a"},
			want:  "Bearer t0k",
		},
		{
			name:  "every hop of a same host chain",
			hosts: auth.Hosts{"127.0.0.1": auth.BearerAuth{Token: "t0k"}},
			req:   &Request{URL: srv.URL + "/moved", FollowRedirects: true},
			want:  "Bearer t0k",
		},
		{
			name:  "other host",
			hosts: auth.Hosts{"media.example.com": auth.BearerAuth{Token: "t0k"}},
			req:   &Request{URL: srv.URL + "/a"},
			want:  "",
		},
		{
			name:  "request header wins",
			hosts: auth.Hosts{"127.0.0.1": auth.BearerAuth{Token: "t0k"}},
			req:   &Request{URL: srv.URL + "/a", Header: http.Header{"Authorization": {"Bearer mine"}}},
			want:  "Bearer mine",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewHTTPClient(HTTPOptions{Auth: tt.hosts})
			defer c.Close()

			resp, err := c.Do(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(resp.Body))
		})
	}
}

func TestHTTPClient_DoReportsRequestHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/moved" {
			http.Redirect(w, r, "/final", http.StatusFound)
			return
		}
		_, _ = io.WriteString(w, r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPOptions{
		UserAgent: "agent/2",
		Auth:      auth.Hosts{"127.0.0.1": auth.BearerAuth{Token: "t0k"}},
	})
	defer c.Close()

	resp, err := c.Do(context.Background(), &Request{
		URL:             srv.URL + "/moved",
		Header:          http.Header{"Accept": {"image/*"}},
		FollowRedirects: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "agent/2", string(resp.Body))
	assert.Equal(t, "agent/2", resp.RequestHeader.Get("User-Agent"))
	assert.Equal(t, "image/*", resp.RequestHeader.Get("Accept"))
	assert.Equal(t, "Bearer t0k", resp.RequestHeader.Get("Authorization"))
	assert.Equal(t, []string{srv.URL + "/moved"}, resp.Redirects)
}

func TestNextRequest(t *testing.T) {
	hdr := func(kv ...string) http.Header {
		h := http.Header{}
		for i := 0; i < len(kv); i += 2 {
			h.Set(kv[i], kv[i+1])
		}
		return h
	}

	tests := []struct {
		name     string
		req      *Request
		status   int
		location string
		follow   bool
		url      string
		method   string
		cookie   bool
		auth     bool
	}{
		{
			name:   "relative location",
			req:    &Request{URL: "http://a.example/x/y"},
			status: 301, location: "../z", follow: true,
			url: "http://a.example/z", method: http.MethodGet,
		},
		{
			name:   "scheme relative location takes request scheme",
			req:    &Request{URL: "https://a.example/x"},
			status: 302, location: "//b.example/img", follow: true,
			url: "https://b.example/img", method: http.MethodGet,
		},
		{
			name:   "non http target is not followed",
			req:    &Request{URL: "http://a.example/x"},
			status: 302, location: "ftp://a.example/file",
		},
		{
			name:   "status without location",
			req:    &Request{URL: "http://a.example/x"},
			status: 302,
		},
		{
			name:   "non redirect status",
			req:    &Request{URL: "http://a.example/x"},
			status: 200, location: "/y",
		},
		{
			name:   "307 keeps method",
			req:    &Request{Method: http.MethodPost, URL: "http://a.example/x"},
			status: 307, location: "/y", follow: true,
			url: "http://a.example/y", method: http.MethodPost,
		},
		{
			name:   "303 head stays head",
			req:    &Request{Method: http.MethodHead, URL: "http://a.example/x"},
			status: 303, location: "/y", follow: true,
			url: "http://a.example/y", method: http.MethodHead,
		},
		{
			name: "same origin keeps credentials",
			req: &Request{URL: "http://a.example/x",
				Header: hdr("Cookie", "a=1", "Authorization", "Basic x")},
			status: 301, location: "/y", follow: true,
			url: "http://a.example/y", method: http.MethodGet, cookie: true, auth: true,
		},
		{
			name: "upgrade to https keeps cookie drops authorization",
			req: &Request{URL: "http://a.example/x",
				Header: hdr("Cookie", "a=1", "Authorization", "Basic x")},
			status: 301, location: "https://a.example/y", follow: true,
			url: "https://a.example/y", method: http.MethodGet, cookie: true,
		},
		{
			name: "downgrade to http drops cookie",
			req: &Request{URL: "https://a.example/x",
				Header: hdr("Cookie", "a=1")},
			status: 301, location: "http://a.example/y", follow: true,
			url: "http://a.example/y", method: http.MethodGet,
		},
		{
			name: "other host drops both",
			req: &Request{URL: "http://a.example/x",
				Header: hdr("Cookie", "a=1", "Authorization", "Basic x")},
			status: 301, location: "http://b.example/y", follow: true,
			url: "http://b.example/y", method: http.MethodGet,
		},
		{
			name: "port change drops authorization",
			req: &Request{URL: "http://a.example/x",
				Header: hdr("Cookie", "a=1", "Authorization", "Basic x")},
			status: 301, location: "http://a.example:8080/y", follow: true,
			url: "http://a.example:8080/y", method: http.MethodGet, cookie: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &Response{Status: tt.status, Header: http.Header{}}
			if tt.location != "" {
				resp.Header.Set("Location", tt.location)
			}
			next, ok := nextRequest(tt.req, resp)
			require.Equal(t, tt.follow, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.url, next.URL)
			assert.Equal(t, tt.method, next.method())
			assert.Equal(t, tt.cookie, next.Header.Get("Cookie") != "")
			assert.Equal(t, tt.auth, next.Header.Get("Authorization") != "")
		})
	}
}

func TestNextRequest_DropsBodyOnMethodChange(t *testing.T) {
	req := &Request{
		Method: http.MethodPost,
		URL:    "http://a.example/x",
		Body:   []byte("form"),
		Header: http.Header{"Content-Type": {"application/x-www-form-urlencoded"}},
	}
	resp := &Response{Status: http.StatusSeeOther, Header: http.Header{"Location": {"/y"}}}

	next, ok := nextRequest(req, resp)
	require.True(t, ok)
	assert.Nil(t, next.Body)
	assert.Empty(t, next.Header.Get("Content-Type"))
	assert.Equal(t, "form", string(req.Body), "source request untouched")
	assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
}
