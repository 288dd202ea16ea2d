// Package storage provides the pluggable backends media is persisted to.
//
// Backends register a Factory for a URI scheme; Open resolves the configured
// URI once at startup and the rest of the module only sees the Store
// interface.
package storage

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/cperrin88/mediafetch/pkg/errors"
)

// ErrNotFound is returned by Stat when the object does not exist.
var ErrNotFound = errors.ErrStoreNotFound

// Factory builds a Store for a parsed store URI.
type Factory func(ctx context.Context, u *url.URL, opts Options) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available for scheme. Registering the same scheme
// twice replaces the earlier factory.
func Register(scheme string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(scheme)] = f
}

// Schemes returns the registered URI schemes in sorted order.
func Schemes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for s := range registry {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Open returns the Store for opts.URI. Plain paths (and Windows drive paths)
// select the filesystem backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	u, err := ParseURI(opts.URI)
	if err != nil {
		return nil, err
	}

	registryMu.RLock()
	f, ok := registry[u.Scheme]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnsupportedStore, "scheme %q", u.Scheme)
	}
	return f(ctx, u, opts)
}

// ParseURI parses a store URI, mapping plain paths to the file scheme.
func ParseURI(uri string) (*url.URL, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, errors.Wrap(errors.ErrInvalidStoreURI, "empty store URI")
	}
	u, err := url.Parse(uri)
	if err != nil || len(u.Scheme) <= 1 {
		// Plain path, or a Windows drive letter parsed as scheme.
		return &url.URL{Scheme: "file", Path: uri}, nil
	}
	u.Scheme = strings.ToLower(u.Scheme)
	return u, nil
}

func joinKey(prefix, path string) string {
	prefix = strings.Trim(prefix, "/")
	path = strings.TrimLeft(path, "/")
	if prefix == "" {
		return path
	}
	return prefix + "/" + path
}
