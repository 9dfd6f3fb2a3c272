package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/allanon74/kor35-app-sub002/internal/auth"
	"github.com/allanon74/kor35-app-sub002/internal/widget"
	"github.com/allanon74/kor35-app-sub002/internal/wiki"
)

type funcFetcher struct {
	fn func(ctx context.Context) ([]wiki.Page, error)
}

func (f funcFetcher) FetchPages(ctx context.Context) ([]wiki.Page, error) {
	return f.fn(ctx)
}

func fixedFetcher(pages []wiki.Page, err error) Fetcher {
	return funcFetcher{fn: func(context.Context) ([]wiki.Page, error) {
		return pages, err
	}}
}

func mustSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected session error: %v", err)
	}
	return s
}

func int64Ptr(value int64) *int64 {
	return &value
}

func TestNewSessionStartsIdle(t *testing.T) {
	s := mustSession(t, Config{Fetcher: fixedFetcher(nil, nil)})

	if s.State() != StateIdle {
		t.Fatalf("expected idle state, got %s", s.State())
	}
	if _, err := s.Tree(); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected no-snapshot error, got %v", err)
	}
	if _, err := s.Search("magia"); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected no-snapshot error, got %v", err)
	}
}

func TestLoadSuccessTransitionsToReady(t *testing.T) {
	pages := []wiki.Page{
		{ID: 1, Title: "Regole"},
		{ID: 2, ParentID: int64Ptr(1), Title: "Magia"},
	}
	s := mustSession(t, Config{Fetcher: fixedFetcher(pages, nil)})

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if s.State() != StateReady {
		t.Fatalf("expected ready state, got %s", s.State())
	}
	roots, err := s.Tree()
	if err != nil {
		t.Fatalf("unexpected tree error: %v", err)
	}
	if len(roots) != 1 || len(roots[0].Children) != 1 {
		t.Fatalf("unexpected derived tree shape")
	}
	results, err := s.Search("magia")
	if err != nil {
		t.Fatalf("unexpected search error: %v", err)
	}
	if len(results) != 1 || results[0].Breadcrumb != "Regole" {
		t.Fatalf("unexpected search results: %+v", results)
	}
}

func TestLoadFailureWithoutPriorSnapshot(t *testing.T) {
	s := mustSession(t, Config{Fetcher: fixedFetcher(nil, errors.New("connection refused"))})

	if err := s.Load(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
	if s.State() != StateFailed {
		t.Fatalf("expected failed state, got %s", s.State())
	}
	if s.Failure() != FailureTransport {
		t.Fatalf("expected transport failure, got %s", s.Failure())
	}
	if s.Stale() {
		t.Fatalf("no snapshot to be stale")
	}
	if _, ok := s.Snapshot(); ok {
		t.Fatalf("failed fetch must not apply a snapshot")
	}
}

func TestLoadFailureRetainsPriorSnapshotAsStale(t *testing.T) {
	calls := 0
	fetcher := funcFetcher{fn: func(context.Context) ([]wiki.Page, error) {
		calls++
		if calls == 1 {
			return []wiki.Page{{ID: 1, Title: "Regole"}}, nil
		}
		return nil, fmt.Errorf("server error")
	}}
	s := mustSession(t, Config{Fetcher: fetcher})

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if err := s.Load(context.Background()); err == nil {
		t.Fatalf("expected second load to fail")
	}
	if s.State() != StateFailed {
		t.Fatalf("expected failed state, got %s", s.State())
	}
	if !s.Stale() {
		t.Fatalf("retained snapshot should be flagged stale")
	}
	snapshot, ok := s.Snapshot()
	if !ok || snapshot.Len() != 1 {
		t.Fatalf("prior snapshot should be retained for display")
	}
}

func TestRetryAfterFailureRecovers(t *testing.T) {
	calls := 0
	fetcher := funcFetcher{fn: func(context.Context) ([]wiki.Page, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("timeout")
		}
		return []wiki.Page{{ID: 1, Title: "Regole"}}, nil
	}}
	s := mustSession(t, Config{Fetcher: fetcher})

	if err := s.Load(context.Background()); err == nil {
		t.Fatalf("expected first load to fail")
	}
	if err := s.Retry(context.Background()); err != nil {
		t.Fatalf("unexpected retry error: %v", err)
	}
	if s.State() != StateReady || s.Stale() {
		t.Fatalf("retry should recover to a fresh ready state")
	}
}

func TestLastRequestWinsDiscardsSupersededResult(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	fetcher := funcFetcher{fn: func(context.Context) ([]wiki.Page, error) {
		mu.Lock()
		calls++
		call := calls
		mu.Unlock()
		if call == 1 {
			close(firstStarted)
			<-releaseFirst
			return []wiki.Page{{ID: 1, Title: "superseded"}}, nil
		}
		return []wiki.Page{{ID: 2, Title: "fresh"}}, nil
	}}
	s := mustSession(t, Config{Fetcher: fetcher})

	done := make(chan error, 1)
	go func() {
		done <- s.Load(context.Background())
	}()
	<-firstStarted

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	close(releaseFirst)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("superseded load should report no error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("superseded load did not return")
	}

	snapshot, ok := s.Snapshot()
	if !ok {
		t.Fatalf("expected applied snapshot")
	}
	pages := snapshot.Pages()
	if len(pages) != 1 || pages[0].ID != 2 {
		t.Fatalf("stale result overwrote the newer snapshot: %+v", pages)
	}
	if s.State() != StateReady {
		t.Fatalf("expected ready state, got %s", s.State())
	}
}

func TestAuthFailureInvokesCallback(t *testing.T) {
	invoked := false
	fetchErr := fmt.Errorf("fetch: %w", auth.ErrUnauthorized)
	s := mustSession(t, Config{
		Fetcher:       fixedFetcher(nil, fetchErr),
		OnAuthFailure: func() { invoked = true },
	})

	if err := s.Load(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
	if s.Failure() != FailureAuth {
		t.Fatalf("expected auth failure, got %s", s.Failure())
	}
	if !invoked {
		t.Fatalf("auth failure should be forwarded to the session owner")
	}
}

func TestInsertWidgetRequiresReadyState(t *testing.T) {
	s := mustSession(t, Config{Fetcher: fixedFetcher([]wiki.Page{{ID: 1, Title: "Regole"}}, nil)})

	token := widget.Token{Kind: widget.KindTier, TargetID: 7}
	if _, err := s.InsertWidget("testo", token); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected not-ready error, got %v", err)
	}

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	updated, err := s.InsertWidget("testo", token)
	if err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	recovered := widget.Scan(updated)
	if len(recovered) != 1 || recovered[0] != token {
		t.Fatalf("inserted token not recoverable: %v", recovered)
	}
}

func TestClassifyMapsErrorsToTaxonomy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{name: "nil", err: nil, want: FailureNone},
		{name: "auth", err: fmt.Errorf("x: %w", auth.ErrUnauthorized), want: FailureAuth},
		{name: "not-found", err: fmt.Errorf("x: %w", wiki.ErrPageNotFound), want: FailureNotFound},
		{name: "validation", err: fmt.Errorf("x: %w", wiki.ErrValidation), want: FailureValidation},
		{name: "transport", err: errors.New("dial tcp: refused"), want: FailureTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}
