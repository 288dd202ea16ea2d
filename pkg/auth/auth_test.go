package auth_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cperrin88/mediafetch/pkg/auth"
)

func TestBasicAuth(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		expected string
	}{
		{
			name:     "valid credentials",
			username: "user",
			password: "pass",
			expected: "Basic dXNlcjpwYXNz", // base64("user:pass")
		},
		{
			name:     "empty credentials",
			username: "",
			password: "",
			expected: "Basic Og==", // base64(":")
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			basicAuth := auth.BasicAuth{
				Username: tt.username,
				Password: tt.password,
			}

			require.NoError(t, basicAuth.Apply(h))
			assert.Equal(t, tt.expected, h.Get("Authorization"))
			assert.Equal(t, auth.BasicAuthType, basicAuth.Type())
		})
	}
}

func TestHeaderAuth(t *testing.T) {
	h := http.Header{}
	headerAuth := auth.HeaderAuth{Headers: map[string]string{
		"X-API-Key":   "test-key",
		"X-Client-ID": "client-123",
	}}

	require.NoError(t, headerAuth.Apply(h))
	assert.Equal(t, "test-key", h.Get("X-Api-Key"))
	assert.Equal(t, "client-123", h.Get("X-Client-Id"))
	assert.Equal(t, auth.HeaderAuthType, headerAuth.Type())
}

func TestBearerAuth(t *testing.T) {
	h := http.Header{}
	require.NoError(t, auth.BearerAuth{Token: "test-token-123"}.Apply(h))
	assert.Equal(t, "Bearer test-token-123", h.Get("Authorization"))

	assert.Error(t, auth.BearerAuth{}.Apply(http.Header{}))
}

func TestHosts_For(t *testing.T) {
	exact := auth.BearerAuth{Token: "exact"}
	wild := auth.BasicAuth{Username: "u"}
	hosts := auth.Hosts{
		"media.example.com": exact,
		".cdn.example.org":  wild,
	}

	tests := []struct {
		name string
		url  string
		want auth.Authenticator
	}{
		{"exact host", "https://media.example.com/a.jpg", exact},
		{"exact host with port", "http://MEDIA.example.com:8080/a.jpg", exact},
		{"subdomain", "https://img.eu.cdn.example.org/x.png", wild},
		{"other host", "https://example.com/a.jpg", nil},
		{"parent of wildcard", "https://example.org/a.jpg", nil},
		{"bad url", "://", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hosts.For(tt.url))
		})
	}

	assert.Nil(t, auth.Hosts(nil).For("https://media.example.com/"))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		typ     auth.Type
		token   string
		headers map[string]string
		want    auth.Type
		wantErr bool
	}{
		{name: "basic", typ: auth.BasicAuthType, want: auth.BasicAuthType},
		{name: "bearer", typ: auth.BearerAuthType, token: "t", want: auth.BearerAuthType},
		{name: "bearer without token", typ: auth.BearerAuthType, wantErr: true},
		{name: "header", typ: auth.HeaderAuthType, headers: map[string]string{"X-Key": "k"}, want: auth.HeaderAuthType},
		{name: "header without headers", typ: auth.HeaderAuthType, wantErr: true},
		{name: "unknown", typ: "digest", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := auth.New(tt.typ, "u", "p", tt.token, tt.headers)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Type())
		})
	}
}
