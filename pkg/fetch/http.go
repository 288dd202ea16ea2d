package fetch

import (
	"context"
	"net/http"
	"time"

	"resty.dev/v3"

	"github.com/cperrin88/mediafetch/pkg/auth"
	"github.com/cperrin88/mediafetch/pkg/errors"
	"github.com/cperrin88/mediafetch/pkg/logger"
)

const (
	// DefaultUserAgent is sent when none is configured.
	DefaultUserAgent = "mediafetch/1.0"
	// DefaultMaxRedirects bounds a redirect chain.
	DefaultMaxRedirects = 20
	// DefaultTimeout applies to each request of a chain.
	DefaultTimeout = 180 * time.Second
)

// HTTPOptions configure an HTTPClient.
type HTTPOptions struct {
	Timeout      time.Duration
	UserAgent    string
	MaxRedirects int
	// Auth supplies credentials by host. They are added to each hop whose
	// host matches and that carries no Authorization header of its own.
	Auth auth.Hosts
}

// HTTPClient fetches over HTTP(S). Redirects are never followed by the
// underlying client; Do walks them itself so the header policy and the
// redirect limit apply per request.
type HTTPClient struct {
	client       *resty.Client
	userAgent    string
	maxRedirects int
	auth         auth.Hosts
}

// NewHTTPClient creates a client; zero option values select the defaults.
func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetHeader("User-Agent", opts.UserAgent)
	client.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))

	return &HTTPClient{
		client:       client,
		userAgent:    opts.UserAgent,
		maxRedirects: opts.MaxRedirects,
		auth:         opts.Auth,
	}
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	return c.client.Close()
}

// Do executes req, following redirects when req.FollowRedirects is set.
func (c *HTTPClient) Do(ctx context.Context, req *Request) (*Response, error) {
	cur := req
	var chain []string
	for {
		resp, err := c.execute(ctx, cur)
		if err != nil {
			return nil, err
		}
		resp.Redirects = chain
		if !req.FollowRedirects {
			return resp, nil
		}

		next, ok := nextRequest(cur, resp)
		if !ok {
			return resp, nil
		}
		if len(chain) >= c.maxRedirects {
			logger.Debug("Discarding request, max redirections reached", logger.Fields{"url": req.URL})
			return nil, errors.Wrapf(errors.ErrTooManyRedirects, "%s", req.URL)
		}
		logger.Debug("Redirecting", logger.Fields{
			"status": resp.Status,
			"from":   cur.URL,
			"to":     next.URL,
		})
		chain = append(chain, cur.URL)
		cur = next
	}
}

func (c *HTTPClient) execute(ctx context.Context, req *Request) (*Response, error) {
	r := c.client.R().SetContext(ctx)
	for k, vs := range req.Header {
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", c.userAgent)
	}
	if a := c.auth.For(req.URL); a != nil && r.Header.Get("Authorization") == "" {
		if err := a.Apply(r.Header); err != nil {
			return nil, errors.Wrapf(errors.ErrFetchFailure, "credentials for %s: %v", req.URL, err)
		}
	}
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(req.method(), req.URL)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrFetchFailure, "%s %s: %v", req.method(), req.URL, err)
	}
	return &Response{
		URL:           req.URL,
		Status:        resp.StatusCode(),
		Header:        resp.Header(),
		Body:          resp.Bytes(),
		RequestHeader: r.Header.Clone(),
	}, nil
}
