// Package artifact defines the descriptors tasks emit for every file or
// document they produce. An artifact is purely descriptive: a path, a format,
// and a human-readable label. Ownership transfers to the pipeline run once a
// step emits it; nothing in this package opens the path.

package artifact

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format captures the serialization shape of a produced artifact.
type Format string

const (
	// FormatMarkdown represents a markdown text document.
	FormatMarkdown Format = "markdown"
	// FormatJSON represents a JSON document.
	FormatJSON Format = "json"
	// FormatHTML represents a rendered HTML page.
	FormatHTML Format = "html"
	// FormatImage represents a raster image (wireframe exports, diagrams).
	FormatImage Format = "image"
	// FormatOther covers anything a task emits that has no dedicated format.
	FormatOther Format = "other"
)

var knownFormats = map[Format]struct{}{
	FormatMarkdown: {},
	FormatJSON:     {},
	FormatHTML:     {},
	FormatImage:    {},
	FormatOther:    {},
}

// Artifact describes one produced file: where it lives, what shape it has,
// and what to call it when presenting it to a reviewer.
type Artifact struct {
	Path   string `json:"path" yaml:"path"`
	Format Format `json:"format" yaml:"format"`
	Label  string `json:"label" yaml:"label"`
}

// Normalized trims fields and defaults the format.
func (a Artifact) Normalized() Artifact {
	clone := Artifact{
		Path:   strings.TrimSpace(a.Path),
		Format: Format(strings.ToLower(strings.TrimSpace(string(a.Format)))),
		Label:  strings.TrimSpace(a.Label),
	}
	if clone.Path != "" {
		clone.Path = filepath.Clean(clone.Path)
	}
	if clone.Format == "" {
		clone.Format = FormatOther
	}
	return clone
}

// Validate ensures the descriptor is usable.
func (a Artifact) Validate() error {
	normalized := a.Normalized()
	if normalized.Path == "" {
		return fmt.Errorf("artifact: path is required")
	}
	if _, ok := knownFormats[normalized.Format]; !ok {
		return fmt.Errorf("artifact: unknown format %q for %s", normalized.Format, normalized.Path)
	}
	if normalized.Label == "" {
		return fmt.Errorf("artifact: label is required for %s", normalized.Path)
	}
	return nil
}

// CloneSlice deep-copies a slice of artifacts. Nil stays nil.
func CloneSlice(values []Artifact) []Artifact {
	if len(values) == 0 {
		return nil
	}
	clone := make([]Artifact, len(values))
	copy(clone, values)
	return clone
}
