package hooks

import (
	"os"
	"path/filepath"

	"github.com/cperrin88/mediafetch/pkg/errors"
)

// ScriptFileExtensions lists the supported path script file extensions.
var ScriptFileExtensions = map[string]bool{
	".tengo": true,
}

// LoadPathScript reads and compiles the path script at file.
func LoadPathScript(file string, vars map[string]interface{}) (*PathScript, error) {
	if !ScriptFileExtensions[filepath.Ext(file)] {
		return nil, errors.Wrapf(errors.ErrHookScript, "unsupported script file %s", file)
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading path script %s", file)
	}
	return NewPathScript(string(content), vars)
}

// PathScriptTemplate is written by `config init` next to the configuration.
const PathScriptTemplate = `// Path script
// Computes where a media object is stored, relative to the store root.
// Available variables:
// - url: string - the media URL
// - key: string - fingerprint of the URL
// - ext: string - extension, including the dot
// - kind: string - "file", "image" or "thumb"
// - thumb: string - thumbnail name when kind is "thumb"
//
// Assign path to override the default; define err to fail the request.

text := import("text")

if kind == "thumb" {
    path = "thumbs/" + thumb + "/" + key + ext
} else if text.contains(url, "/covers/") {
    path = "covers/" + key + ext
}
`
