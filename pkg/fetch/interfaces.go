//go:generate mockgen -destination=mocks/client.go . Client

// Package fetch is the transport media requests go through: an HTTP client
// with explicit redirect handling and a priority scheduler bounding how many
// requests are in flight.
package fetch

import (
	"context"
	"net/http"
)

// Client executes one request and returns the final response. A non-2xx
// status is not an error; only transport failures are.
type Client interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request describes one fetch.
type Request struct {
	Method          string // defaults to GET
	URL             string
	Header          http.Header
	Body            []byte
	Priority        int  // higher runs first when the scheduler is saturated
	FollowRedirects bool // when false 3xx responses are returned as-is
}

// Response is a fully read response.
type Response struct {
	URL       string // final URL after redirects
	Status    int
	Header    http.Header
	Body      []byte
	Redirects []string // URLs that redirected, in order
	// RequestHeader holds the headers sent on the final hop.
	RequestHeader http.Header
}

func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

func (r *Request) clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = http.Header{}
	}
	return &c
}
