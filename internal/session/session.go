// Package session orchestrates the tree, search and widget views over one
// loaded page snapshot, tracking the fetch lifecycle as an explicit state
// machine: Idle -> Loading -> Ready | Failed.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/allanon74/kor35-app-sub002/internal/auth"
	"github.com/allanon74/kor35-app-sub002/internal/widget"
	"github.com/allanon74/kor35-app-sub002/internal/wiki"
	"go.uber.org/zap"
)

// State enumerates the snapshot lifecycle.
type State string

const (
	// StateIdle means no fetch has been issued yet.
	StateIdle State = "idle"
	// StateLoading means a fetch is in flight.
	StateLoading State = "loading"
	// StateReady means a snapshot is available and views are computable.
	StateReady State = "ready"
	// StateFailed means the last fetch failed; a prior snapshot, if any, is
	// retained for display but flagged stale.
	StateFailed State = "failed"
)

// FailureKind classifies a failed fetch per the error taxonomy.
type FailureKind string

const (
	// FailureNone is reported while no failure is pending.
	FailureNone FailureKind = ""
	// FailureNotFound marks an unresolvable slug or catalog id.
	FailureNotFound FailureKind = "not_found"
	// FailureValidation marks fields rejected before persistence.
	FailureValidation FailureKind = "validation"
	// FailureAuth marks a 401-equivalent; forwarded, never handled here.
	FailureAuth FailureKind = "auth"
	// FailureTransport marks any other collaborator failure.
	FailureTransport FailureKind = "transport"
)

var (
	errMissingFetcher = errors.New("session: fetcher is required")
	// ErrNoSnapshot indicates no snapshot has been loaded yet.
	ErrNoSnapshot = errors.New("session: snapshot unavailable")
	// ErrNotReady indicates an edit operation was attempted outside Ready.
	ErrNotReady = errors.New("session: not ready")
)

// Fetcher loads the flat page set from the backing collaborator.
type Fetcher interface {
	FetchPages(ctx context.Context) ([]wiki.Page, error)
}

// Config describes the dependencies for one page session.
type Config struct {
	Fetcher Fetcher
	Logger  *zap.Logger
	// OnAuthFailure is invoked when a fetch fails with a 401-equivalent so
	// the session owner can reset its credentials. Threaded explicitly; the
	// session keeps no ambient auth state.
	OnAuthFailure func()
}

// Session owns one snapshot and derives views from it on demand. All methods
// are safe for use from a single owner; the mutex only guards against a
// superseded fetch racing its replacement.
type Session struct {
	mu            sync.Mutex
	fetcher       Fetcher
	logger        *zap.Logger
	onAuthFailure func()

	state       State
	failure     FailureKind
	snapshot    wiki.Snapshot
	hasSnapshot bool
	stale       bool
	generation  uint64
}

// New constructs an idle session.
func New(cfg Config) (*Session, error) {
	if cfg.Fetcher == nil {
		return nil, errMissingFetcher
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		fetcher:       cfg.Fetcher,
		logger:        logger,
		onAuthFailure: cfg.OnAuthFailure,
		state:         StateIdle,
	}, nil
}

// Load issues a fetch and applies its snapshot. If another Load is issued
// while this one is in flight, the earlier result is discarded when it
// arrives: last request wins.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	fetchGeneration := s.generation
	s.state = StateLoading
	s.failure = FailureNone
	s.mu.Unlock()

	pages, err := s.fetcher.FetchPages(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if fetchGeneration != s.generation {
		s.logger.Debug("discarding superseded fetch result",
			zap.Uint64("generation", fetchGeneration))
		return nil
	}

	if err != nil {
		kind := Classify(err)
		s.state = StateFailed
		s.failure = kind
		s.stale = s.hasSnapshot
		s.logger.Warn("page snapshot fetch failed",
			zap.String("failure", string(kind)),
			zap.Error(err))
		if kind == FailureAuth && s.onAuthFailure != nil {
			s.onAuthFailure()
		}
		return err
	}

	s.snapshot = wiki.NewSnapshot(pages)
	s.hasSnapshot = true
	s.stale = false
	s.state = StateReady
	s.failure = FailureNone
	return nil
}

// Retry re-issues the fetch after a failure.
func (s *Session) Retry(ctx context.Context) error {
	return s.Load(ctx)
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Failure reports the classification of the last failed fetch.
func (s *Session) Failure() FailureKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Stale reports whether the retained snapshot predates a failed fetch.
func (s *Session) Stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale
}

// Snapshot returns the current snapshot, if one has been applied. The
// snapshot stays available through Loading and Failed so a prior view can
// keep rendering.
func (s *Session) Snapshot() (wiki.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.hasSnapshot
}

// Tree derives the ordered page forest from the current snapshot.
func (s *Session) Tree() ([]*wiki.TreeNode, error) {
	snapshot, ok := s.Snapshot()
	if !ok {
		return nil, ErrNoSnapshot
	}
	return snapshot.Tree(), nil
}

// SearchResult pairs a matching record with its resolved parent context.
type SearchResult struct {
	Page       wiki.Page
	Breadcrumb string
}

// Search derives the filtered flat view with breadcrumbs from the current
// snapshot.
func (s *Session) Search(query string) ([]SearchResult, error) {
	snapshot, ok := s.Snapshot()
	if !ok {
		return nil, ErrNoSnapshot
	}
	matches := snapshot.Search(query)
	results := make([]SearchResult, 0, len(matches))
	for _, match := range matches {
		results = append(results, SearchResult{
			Page:       match,
			Breadcrumb: snapshot.BreadcrumbFor(match),
		})
	}
	return results, nil
}

// InsertWidget appends the token to the content. Edits that depend on the
// snapshot are rejected unless the session is Ready.
func (s *Session) InsertWidget(content string, token widget.Token) (string, error) {
	s.mu.Lock()
	ready := s.state == StateReady
	s.mu.Unlock()
	if !ready {
		return "", ErrNotReady
	}
	return widget.Insert(content, token), nil
}

// Classify maps a collaborator error onto the failure taxonomy.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, auth.ErrUnauthorized):
		return FailureAuth
	case errors.Is(err, wiki.ErrPageNotFound):
		return FailureNotFound
	case errors.Is(err, wiki.ErrValidation):
		return FailureValidation
	default:
		return FailureTransport
	}
}
