// Package auth provides per-host credentials for media requests.
package auth

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Authenticator adds credentials to the headers of one request.
type Authenticator interface {
	Apply(h http.Header) error
	Type() Type
}

// BasicAuth represents HTTP Basic Authentication credentials.
type BasicAuth struct {
	Username string
	Password string
}

// HeaderAuth represents authentication via custom HTTP headers.
type HeaderAuth struct {
	Headers map[string]string
}

// BearerAuth represents Bearer token authentication.
type BearerAuth struct {
	Token string
}

// Type represents the type of authentication.
type Type string

// Authentication types.
const (
	BasicAuthType  Type = "basic"
	HeaderAuthType Type = "header"
	BearerAuthType Type = "bearer"
)

// Apply sets the Basic Authorization header.
func (b BasicAuth) Apply(h http.Header) error {
	cred := base64.StdEncoding.EncodeToString([]byte(b.Username + ":" + b.Password))
	h.Set("Authorization", "Basic "+cred)
	return nil
}

// Type returns BasicAuthType.
func (b BasicAuth) Type() Type { return BasicAuthType }

// Apply sets the configured headers.
func (a HeaderAuth) Apply(h http.Header) error {
	for k, v := range a.Headers {
		h.Set(k, v)
	}
	return nil
}

// Type returns HeaderAuthType.
func (a HeaderAuth) Type() Type { return HeaderAuthType }

// Apply sets a Bearer Authorization header.
func (b BearerAuth) Apply(h http.Header) error {
	if b.Token == "" {
		return fmt.Errorf("bearer auth without token")
	}
	h.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// Type returns BearerAuthType.
func (b BearerAuth) Type() Type { return BearerAuthType }

// Hosts maps host names to credentials. A key starting with "." also
// matches every subdomain ("." + "example.com" matches "img.example.com").
type Hosts map[string]Authenticator

// For returns the credentials for the host of rawURL, or nil.
func (h Hosts) For(rawURL string) Authenticator {
	if len(h) == 0 {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	if a, ok := h[host]; ok {
		return a
	}
	for {
		i := strings.IndexByte(host, '.')
		if i < 0 {
			return nil
		}
		host = host[i+1:]
		if a, ok := h["."+host]; ok {
			return a
		}
	}
}

// New builds an Authenticator of type t from its settings.
func New(t Type, username, password, token string, headers map[string]string) (Authenticator, error) {
	switch t {
	case BasicAuthType:
		return BasicAuth{Username: username, Password: password}, nil
	case BearerAuthType:
		if token == "" {
			return nil, fmt.Errorf("bearer auth needs a token")
		}
		return BearerAuth{Token: token}, nil
	case HeaderAuthType:
		if len(headers) == 0 {
			return nil, fmt.Errorf("header auth needs at least one header")
		}
		return HeaderAuth{Headers: headers}, nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", t)
	}
}
