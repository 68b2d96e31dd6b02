// Package staging provides scoped, ephemeral file storage for artifacts
// that exist only for the duration of one request or one workflow. Every
// artifact is acquired through Stage and removed through Release; Release
// is idempotent so both normal completion and error recovery can call it
// on the same reference.
package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned when an operation references an artifact that
// has already been released.
var ErrNotFound = errors.New("staging: artifact not found")

// Origin describes how a staged artifact came to exist.
type Origin string

const (
	// OriginInbound marks bytes downloaded from a chat platform.
	OriginInbound Origin = "inbound"
	// OriginGenerated marks bytes produced by a transform.
	OriginGenerated Origin = "generated"
)

// StagedFile is a handle to one physical artifact in ephemeral storage.
type StagedFile struct {
	Path   string // absolute location on disk, unique while live
	Name   string // original name hint, for user-facing messages
	Origin Origin
	Scope  string // owning conversation

	mu       sync.Mutex
	released bool
}

// Released reports whether the artifact has been released.
func (f *StagedFile) Released() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

// Store manages one directory of conversation-scoped artifacts.
type Store struct {
	root string

	mu   sync.Mutex
	seq  uint64
	live map[string]*StagedFile // key: path
}

// NewStore creates a Store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("staging: root dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("staging: create root %s: %w", dir, err)
	}
	return &Store{
		root: dir,
		live: make(map[string]*StagedFile),
	}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Stage persists the content of src under the given conversation scope and
// returns a handle to it. The on-disk name combines a store-wide sequence
// counter with the sanitized hint, so two live artifacts in the same scope
// can never collide. On a write failure the partially written file may
// remain; the caller must still Release the returned handle when it is
// non-nil, and Stage removes its own partial output before returning an
// error, so no handle means no artifact.
func (s *Store) Stage(scope, nameHint string, origin Origin, src io.Reader) (*StagedFile, error) {
	if scope == "" {
		return nil, fmt.Errorf("staging: scope is required")
	}

	scopeDir := filepath.Join(s.root, sanitize(scope))
	if err := os.MkdirAll(scopeDir, 0o755); err != nil {
		return nil, fmt.Errorf("staging: create scope %s: %w", scope, err)
	}

	s.mu.Lock()
	s.seq++
	n := s.seq
	s.mu.Unlock()

	name := sanitize(nameHint)
	if name == "" {
		name = "file"
	}
	path := filepath.Join(scopeDir, fmt.Sprintf("%06d_%s", n, name))

	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("staging: create %s: %w", path, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(path)
		return nil, fmt.Errorf("staging: write %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("staging: close %s: %w", path, err)
	}

	f := &StagedFile{
		Path:   path,
		Name:   nameHint,
		Origin: origin,
		Scope:  scope,
	}
	s.mu.Lock()
	s.live[path] = f
	s.mu.Unlock()
	return f, nil
}

// Release removes the artifact from disk and from the live set. Calling it
// on an already-released file is a no-op, not an error.
func (s *Store) Release(f *StagedFile) error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	if f.released {
		f.mu.Unlock()
		return nil
	}
	f.released = true
	f.mu.Unlock()

	s.mu.Lock()
	delete(s.live, f.Path)
	s.mu.Unlock()

	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("staging: remove %s: %w", f.Path, err)
	}
	// Drop the scope directory once it is empty. Best-effort: a concurrent
	// Stage for the same scope makes this fail, which is fine.
	os.Remove(filepath.Dir(f.Path))
	return nil
}

// Open returns a reader over the artifact's bytes. Returns ErrNotFound if
// the artifact was already released.
func (s *Store) Open(f *StagedFile) (io.ReadCloser, error) {
	if f == nil || f.Released() {
		return nil, ErrNotFound
	}
	rc, err := os.Open(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("staging: open %s: %w", f.Path, err)
	}
	return rc, nil
}

// Stats describes the live contents of a Store.
type Stats struct {
	Artifacts int   `json:"artifacts"`
	Bytes     int64 `json:"bytes"`
}

// Stats returns a snapshot of live artifact count and total size.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	paths := make([]string, 0, len(s.live))
	for p := range s.live {
		paths = append(paths, p)
	}
	s.mu.Unlock()

	st := Stats{Artifacts: len(paths)}
	for _, p := range paths {
		if fi, err := os.Stat(p); err == nil {
			st.Bytes += fi.Size()
		}
	}
	return st
}

// sanitize strips path separators and other unsafe characters from a name
// so scope and hint values cannot escape the store root.
func sanitize(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), ".")
}
