// Package hooks runs user supplied tengo scripts that choose where media is
// stored.
package hooks

import (
	"context"
	"fmt"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/flytam/filenamify"

	"github.com/cperrin88/mediafetch/pkg/errors"
)

var scriptVars = []string{"url", "key", "ext", "kind", "thumb", "path"}

// PathScript is a compiled path script. It is safe for concurrent use; every
// call runs on its own clone of the compiled program.
//
// The script sees url, key, ext, kind and thumb and assigns the store path to
// path, e.g.
//
//	path = "covers/" + key + ext
//
// Defining err aborts with that message. Leaving path empty keeps the
// default path.
type PathScript struct {
	compiled *tengo.Compiled
	varNames map[string]bool
}

// NewPathScript compiles source. vars are extra variables made available to
// the script; their values can be overridden per call through PathContext.Vars.
func NewPathScript(source string, vars map[string]interface{}) (*PathScript, error) {
	script := tengo.NewScript([]byte(source))
	script.SetImports(stdlib.GetModuleMap("fmt", "text", "times", "hex"))

	names := make(map[string]bool, len(scriptVars)+len(vars))
	for _, name := range scriptVars {
		if err := script.Add(name, ""); err != nil {
			return nil, fmt.Errorf("failed to add %s to script: %w", name, err)
		}
		names[name] = true
	}
	for k, v := range vars {
		if err := script.Add(k, v); err != nil {
			return nil, fmt.Errorf("failed to add variable '%s' to script: %w", k, err)
		}
		names[k] = true
	}

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrHookScript, err)
	}
	return &PathScript{compiled: compiled, varNames: names}, nil
}

// Path runs the script for pc and returns the sanitized path, or "" when the
// script did not set one.
func (p *PathScript) Path(ctx context.Context, pc PathContext) (string, error) {
	run := p.compiled.Clone()

	values := map[string]interface{}{
		"url":   pc.URL,
		"key":   pc.Key,
		"ext":   pc.Ext,
		"kind":  string(pc.Kind),
		"thumb": pc.Thumb,
		"path":  "",
	}
	for k, v := range pc.Vars {
		if p.varNames[k] {
			values[k] = v
		}
	}
	for k, v := range values {
		if err := run.Set(k, v); err != nil {
			return "", fmt.Errorf("failed to set %s: %w", k, err)
		}
	}

	if err := run.RunContext(ctx); err != nil {
		return "", fmt.Errorf("%s: %w: %w", pc.URL, errors.ErrHookExecution, err)
	}

	errVar := run.Get("err")
	switch v := errVar.Value().(type) {
	case error:
		return "", fmt.Errorf("%w: %w", errors.ErrHookScript, v)
	case string:
		if v != "" {
			return "", fmt.Errorf("%w: %s", errors.ErrHookScript, v)
		}
	}

	return Sanitize(run.Get("path").String())
}

// Sanitize makes every segment of a slash separated path a safe file name.
// Empty, "." and ".." segments are dropped.
func Sanitize(p string) (string, error) {
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		clean, err := filenamify.Filenamify(seg, filenamify.Options{Replacement: "_"})
		if err != nil {
			return "", errors.Wrapf(errors.ErrHookScript, "invalid path segment %q: %v", seg, err)
		}
		parts = append(parts, clean)
	}
	return strings.Join(parts, "/"), nil
}
