package media

import (
	"context"
	"path"

	"github.com/cperrin88/mediafetch/pkg/fingerprint"
	"github.com/cperrin88/mediafetch/pkg/hooks"
)

// Namer computes store paths. Without a script, primaries go to
// full/<key><ext> and thumbnails to thumbs/<name>/<key><ext>.
type Namer struct {
	Script *hooks.PathScript
}

// Primary returns the path of the primary object for req. A per request
// override wins over the script.
func (n Namer) Primary(ctx context.Context, req Request, kind hooks.Kind, ext string) (string, error) {
	if req.Path != "" {
		return hooks.Sanitize(req.Path)
	}
	key := fingerprint.Of(req.URL).String()
	return n.run(ctx, hooks.PathContext{URL: req.URL, Key: key, Ext: ext, Kind: kind},
		path.Join("full", key+ext))
}

// Thumb returns the path of the thumbnail called name.
func (n Namer) Thumb(ctx context.Context, req Request, name, ext string) (string, error) {
	key := fingerprint.Of(req.URL).String()
	return n.run(ctx, hooks.PathContext{URL: req.URL, Key: key, Ext: ext, Kind: hooks.KindThumb, Thumb: name},
		path.Join("thumbs", name, key+ext))
}

func (n Namer) run(ctx context.Context, pc hooks.PathContext, fallback string) (string, error) {
	if n.Script == nil {
		return fallback, nil
	}
	p, err := n.Script.Path(ctx, pc)
	if err != nil {
		return "", err
	}
	if p == "" {
		return fallback, nil
	}
	return p, nil
}
