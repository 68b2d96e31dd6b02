// Package merge implements the multi-step PDF collection workflow. A
// conversation accumulates documents one at a time, then an explicit done
// signal drains them through a batch transform in arrival order, or a
// cancel signal discards them. All staged inputs are released on every
// exit path, success or failure.
package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/nibras/valet/internal/staging"
)

// DefaultMaxFiles caps how many documents one session may collect. The
// workflow itself has no inherent bound; the cap keeps disk use finite.
const DefaultMaxFiles = 20

var (
	// ErrNoSession is returned for done/cancel with no session in
	// progress. Benign: surfaced as an informational message.
	ErrNoSession = errors.New("merge: no merge in progress")

	// ErrNothingToMerge is returned for done on a session with zero
	// pending files. The session stays open.
	ErrNothingToMerge = errors.New("merge: nothing to merge")
)

// MalformedInputError reports which collected document broke the batch
// transform. Position is 1-based arrival order.
type MalformedInputError struct {
	Position int
	Name     string
	Err      error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("merge: input %d (%s) is not a valid PDF: %v", e.Position, e.Name, e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// Merger is the batch transform: it combines the input files, in order,
// into one output file. Implementations return *MalformedInputError when
// an input is not a valid document, using the 1-based index into paths.
type Merger interface {
	Merge(ctx context.Context, paths []string, outPath string) error
}

// State is the lifecycle phase of a conversation's merge session.
type State string

const (
	StateIdle       State = "idle"
	StateCollecting State = "collecting"
	StateFinalizing State = "finalizing"
)

// session is one in-progress collection for one conversation. Mutations
// are serialized by mu so overlapping inbound events for the same
// conversation cannot interleave their appends.
type session struct {
	mu      sync.Mutex
	state   State
	pending []*staging.StagedFile
}

// Manager owns every conversation's merge session. Exactly one session
// may exist per conversation at a time.
type Manager struct {
	store    *staging.Store
	merger   Merger
	maxFiles int

	mu       sync.Mutex
	sessions map[string]*session // key: conversation ID
}

// ManagerOpts holds parameters for creating a Manager.
type ManagerOpts struct {
	Store    *staging.Store
	Merger   Merger
	MaxFiles int // defaults to DefaultMaxFiles
}

// NewManager creates a Manager.
func NewManager(opts ManagerOpts) (*Manager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("merge: staging store is required")
	}
	if opts.Merger == nil {
		return nil, fmt.Errorf("merge: merger is required")
	}
	maxFiles := opts.MaxFiles
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	return &Manager{
		store:    opts.Store,
		merger:   opts.Merger,
		maxFiles: maxFiles,
		sessions: make(map[string]*session),
	}, nil
}

// Begin opens an empty Collecting session for the conversation. It is a
// no-op if one is already open, so "/merge" followed by documents and
// documents followed by "/merge" behave the same.
func (m *Manager) Begin(convID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[convID]; !ok {
		m.sessions[convID] = &session{state: StateCollecting}
	}
}

// State returns the conversation's session state, StateIdle if none.
func (m *Manager) State(convID string) State {
	m.mu.Lock()
	sess, ok := m.sessions[convID]
	m.mu.Unlock()
	if !ok {
		return StateIdle
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state
}

// PendingCount returns how many documents the conversation has collected.
func (m *Manager) PendingCount(convID string) int {
	m.mu.Lock()
	sess, ok := m.sessions[convID]
	m.mu.Unlock()
	if !ok {
		return 0
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return len(sess.pending)
}

// Add stages an inbound document and appends it to the conversation's
// session, creating the session if none exists. Returns the running count.
// The download/write happens before the session mutation is taken, so a
// slow upload does not block other appends from being staged, only the
// append itself is serialized.
func (m *Manager) Add(ctx context.Context, convID, name string, src io.Reader) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f, err := m.store.Stage(convID, name, staging.OriginInbound, src)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	sess, ok := m.sessions[convID]
	if !ok {
		sess = &session{state: StateCollecting}
		m.sessions[convID] = sess
	}
	m.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if len(sess.pending) >= m.maxFiles {
		m.store.Release(f)
		return len(sess.pending), fmt.Errorf("merge: session is full (%d files max)", m.maxFiles)
	}
	sess.pending = append(sess.pending, f)
	return len(sess.pending), nil
}

// Complete drains the session through the batch transform and returns the
// staged output for delivery. The caller owns the returned file and must
// Release it after delivery. Every input is released whether the transform
// succeeds or fails; on failure the error names the offending input and
// the session is cleared. Complete with zero pending files returns
// ErrNothingToMerge and leaves the session collecting.
func (m *Manager) Complete(ctx context.Context, convID string) (*staging.StagedFile, error) {
	m.mu.Lock()
	sess, ok := m.sessions[convID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNoSession
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if len(sess.pending) == 0 {
		return nil, ErrNothingToMerge
	}

	sess.state = StateFinalizing
	pending := sess.pending

	// Whatever happens next, the session and its inputs are gone.
	defer func() {
		for _, f := range pending {
			m.store.Release(f)
		}
		m.mu.Lock()
		delete(m.sessions, convID)
		m.mu.Unlock()
	}()

	paths := make([]string, len(pending))
	for i, f := range pending {
		paths[i] = f.Path
	}

	// Stage the output handle first so the transform writes straight into
	// managed storage and failure cleanup goes through the same Release
	// path as everything else.
	out, err := m.store.Stage(convID, "merged.pdf", staging.OriginGenerated, emptyReader{})
	if err != nil {
		return nil, err
	}

	if err := m.merger.Merge(ctx, paths, out.Path); err != nil {
		m.store.Release(out)
		return nil, decorate(err, pending)
	}
	return out, nil
}

// Cancel releases every collected input without producing output and
// clears the session.
func (m *Manager) Cancel(convID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[convID]
	if ok {
		delete(m.sessions, convID)
	}
	m.mu.Unlock()
	if !ok {
		return ErrNoSession
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.state = StateIdle
	for _, f := range sess.pending {
		m.store.Release(f)
	}
	sess.pending = nil
	return nil
}

// SessionInfo is a read-only snapshot of one active session.
type SessionInfo struct {
	Conversation string `json:"conversation"`
	State        State  `json:"state"`
	Pending      int    `json:"pending"`
}

// Sessions returns a snapshot of all active sessions, for the dashboard.
func (m *Manager) Sessions() []SessionInfo {
	m.mu.Lock()
	keys := make([]string, 0, len(m.sessions))
	sessions := make([]*session, 0, len(m.sessions))
	for k, s := range m.sessions {
		keys = append(keys, k)
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	infos := make([]SessionInfo, 0, len(keys))
	for i, s := range sessions {
		s.mu.Lock()
		infos = append(infos, SessionInfo{
			Conversation: keys[i],
			State:        s.state,
			Pending:      len(s.pending),
		})
		s.mu.Unlock()
	}
	return infos
}

// decorate fills in the document name on a MalformedInputError using the
// arrival-ordered pending list, when the merger only knew the index.
func decorate(err error, pending []*staging.StagedFile) error {
	var malformed *MalformedInputError
	if errors.As(err, &malformed) {
		if malformed.Name == "" && malformed.Position >= 1 && malformed.Position <= len(pending) {
			malformed.Name = pending[malformed.Position-1].Name
		}
		return malformed
	}
	return err
}

// emptyReader stages a zero-byte placeholder for a generated output.
type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, io.EOF }
