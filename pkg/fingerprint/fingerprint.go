// Package fingerprint derives stable identity keys for media resources.
//
// A Key is the hex encoded SHA-1 of the canonical form of a resource URL. It is
// used both to coalesce concurrent requests for the same resource and as the
// default file name stem in the store.
package fingerprint

import (
	"crypto/sha1" //nolint:gosec // identity hash, not a security primitive
	"encoding/hex"
	"mime"
	"net/url"
	"path"
	"sort"
	"strings"
)

// Key identifies one fetchable resource.
type Key string

// String implements fmt.Stringer.
func (k Key) String() string { return string(k) }

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ftp":   "21",
}

// Canonicalize returns a normalized form of rawURL: scheme and host are lower
// cased, the default port and the fragment are dropped and query parameters
// are sorted. URLs that cannot be parsed are returned unchanged.
func Canonicalize(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") { // IPv6 literal
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" && port != defaultPorts[u.Scheme] {
		host += ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawQuery = sortedQuery(u.RawQuery)
	return u.String()
}

// sortedQuery keeps blank values and the original encoding of each pair.
func sortedQuery(raw string) string {
	if raw == "" {
		return ""
	}
	pairs := strings.Split(raw, "&")
	kept := pairs[:0]
	for _, p := range pairs {
		if p != "" {
			kept = append(kept, p)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		ki, vi, _ := strings.Cut(kept[i], "=")
		kj, vj, _ := strings.Cut(kept[j], "=")
		if ki != kj {
			return ki < kj
		}
		return vi < vj
	})
	return strings.Join(kept, "&")
}

// Of returns the Key of rawURL.
func Of(rawURL string) Key {
	sum := sha1.Sum([]byte(Canonicalize(rawURL))) //nolint:gosec
	return Key(hex.EncodeToString(sum[:]))
}

// Ext returns the extension of the URL path (including the dot) when it maps
// to a known media type, or "" otherwise.
func Ext(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" || mime.TypeByExtension(ext) == "" {
		return ""
	}
	return ext
}

// DefaultPath returns the default store path for a primary file resource.
func DefaultPath(rawURL string) string {
	return path.Join("full", string(Of(rawURL))+Ext(rawURL))
}
