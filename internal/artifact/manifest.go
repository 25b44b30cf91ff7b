package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manifest accumulates artifacts in the order steps emit them. Entries are
// never removed or reordered once added. A Manifest is written only by the
// step currently executing, so it carries no locking of its own.
type Manifest struct {
	entries []Entry
	now     func() time.Time
}

// Entry records an artifact plus which step emitted it and when.
type Entry struct {
	Artifact Artifact  `json:"artifact"`
	Step     string    `json:"step"`
	AddedAt  time.Time `json:"added_at"`
}

// ManifestOption customizes a Manifest during construction.
type ManifestOption func(*Manifest)

// WithClock overrides the clock used for entry timestamps.
func WithClock(clock func() time.Time) ManifestOption {
	return func(m *Manifest) {
		if clock != nil {
			m.now = clock
		}
	}
}

// NewManifest returns an empty manifest.
func NewManifest(opts ...ManifestOption) *Manifest {
	m := &Manifest{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Append records the artifacts emitted by a step, preserving their order.
// Invalid descriptors are rejected wholesale so a manifest never holds a
// partially appended batch.
func (m *Manifest) Append(step string, artifacts ...Artifact) error {
	if step == "" {
		return fmt.Errorf("artifact: manifest append requires a step id")
	}
	normalized := make([]Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("artifact: step %s: %w", step, err)
		}
		normalized = append(normalized, a.Normalized())
	}
	at := m.now().UTC()
	for _, a := range normalized {
		m.entries = append(m.entries, Entry{Artifact: a, Step: step, AddedAt: at})
	}
	return nil
}

// Artifacts returns the accumulated descriptors in emission order.
func (m *Manifest) Artifacts() []Artifact {
	if len(m.entries) == 0 {
		return nil
	}
	out := make([]Artifact, len(m.entries))
	for i, entry := range m.entries {
		out[i] = entry.Artifact
	}
	return out
}

// Entries returns a copy of the full manifest records.
func (m *Manifest) Entries() []Entry {
	if len(m.entries) == 0 {
		return nil
	}
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len reports how many artifacts have been recorded.
func (m *Manifest) Len() int {
	return len(m.entries)
}

// manifestFile is the on-disk shape of a persisted manifest.
type manifestFile struct {
	SavedAt time.Time `json:"saved_at"`
	Entries []Entry   `json:"entries"`
}

// Save writes the manifest as indented JSON, creating parent directories.
func (m *Manifest) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("artifact: ensure manifest dir: %w", err)
	}
	payload := manifestFile{SavedAt: m.now().UTC(), Entries: m.entries}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("artifact: encode manifest: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadManifest reads a previously saved manifest.
func LoadManifest(path string, opts ...ManifestOption) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: read manifest %s: %w", path, err)
	}
	var payload manifestFile
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("artifact: decode manifest %s: %w", path, err)
	}
	m := NewManifest(opts...)
	m.entries = payload.Entries
	return m, nil
}
