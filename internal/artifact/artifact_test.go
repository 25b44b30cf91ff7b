package artifact

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestArtifactNormalized(t *testing.T) {
	a := Artifact{Path: "  out/./draft.md ", Format: " Markdown ", Label: " Draft "}
	normalized := a.Normalized()
	if normalized.Path != filepath.Clean("out/draft.md") {
		t.Fatalf("path not cleaned: %q", normalized.Path)
	}
	if normalized.Format != FormatMarkdown {
		t.Fatalf("format not lowered: %q", normalized.Format)
	}
	if normalized.Label != "Draft" {
		t.Fatalf("label not trimmed: %q", normalized.Label)
	}
}

func TestArtifactNormalizedDefaultsFormat(t *testing.T) {
	a := Artifact{Path: "blob.bin", Label: "Blob"}
	if a.Normalized().Format != FormatOther {
		t.Fatalf("empty format must default to other")
	}
}

func TestArtifactValidate(t *testing.T) {
	valid := Artifact{Path: "draft.md", Format: FormatMarkdown, Label: "Draft"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := (Artifact{Format: FormatMarkdown, Label: "x"}).Validate(); err == nil {
		t.Fatalf("expected error for missing path")
	}
	if err := (Artifact{Path: "a.bin", Format: "tarball", Label: "x"}).Validate(); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if err := (Artifact{Path: "a.md", Format: FormatMarkdown}).Validate(); err == nil {
		t.Fatalf("expected error for missing label")
	}
}

func TestManifestAppendPreservesOrder(t *testing.T) {
	m := NewManifest()
	if err := m.Append("draft",
		Artifact{Path: "draft.md", Format: FormatMarkdown, Label: "Draft"},
		Artifact{Path: "notes.md", Format: FormatMarkdown, Label: "Notes"},
	); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := m.Append("review", Artifact{Path: "review.md", Format: FormatMarkdown, Label: "Review"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	artifacts := m.Artifacts()
	if len(artifacts) != 3 || artifacts[0].Path != "draft.md" || artifacts[2].Path != "review.md" {
		t.Fatalf("order lost: %+v", artifacts)
	}
	entries := m.Entries()
	if entries[1].Step != "draft" || entries[2].Step != "review" {
		t.Fatalf("steps not recorded: %+v", entries)
	}
}

func TestManifestAppendRejectsBatchWithInvalidEntry(t *testing.T) {
	m := NewManifest()
	err := m.Append("draft",
		Artifact{Path: "draft.md", Format: FormatMarkdown, Label: "Draft"},
		Artifact{Format: FormatMarkdown, Label: "no path"},
	)
	if err == nil || !strings.Contains(err.Error(), "path is required") {
		t.Fatalf("expected validation error, got %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("partial batch must not be recorded, got %d entries", m.Len())
	}
}

func TestManifestAppendRequiresStep(t *testing.T) {
	m := NewManifest()
	if err := m.Append("", Artifact{Path: "a.md", Format: FormatMarkdown, Label: "A"}); err == nil {
		t.Fatalf("expected error for empty step id")
	}
}

func TestManifestSaveAndLoadRoundTrip(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	m := NewManifest(WithClock(func() time.Time { return fixed }))
	if err := m.Append("draft", Artifact{Path: "draft.md", Format: FormatMarkdown, Label: "Draft"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	path := filepath.Join(t.TempDir(), "runs", "manifest.json")
	if err := m.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	entries := loaded.Entries()
	if len(entries) != 1 || entries[0].Artifact.Path != "draft.md" || !entries[0].AddedAt.Equal(fixed) {
		t.Fatalf("round trip lost data: %+v", entries)
	}
}
