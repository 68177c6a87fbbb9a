// Package problemstore holds the read-only problem database shared by all runs.
package problemstore

import (
	"context"
	"sync/atomic"

	"offlinejudge/internal/judge/model"
	appErr "offlinejudge/pkg/errors"
)

// Reader is the read interface the judge consumes.
type Reader interface {
	Get(ctx context.Context, id string) (*model.Problem, error)
	List(ctx context.Context) []model.Summary
}

// Snapshot is an immutable view of a problem database. Problems returned
// from a Snapshot must not be modified.
type Snapshot struct {
	problems map[string]*model.Problem
	invalid  map[string]string
	ids      []string
	version  string
}

// Version identifies the content the snapshot was loaded from.
func (s *Snapshot) Version() string { return s.version }

// Len returns the number of problems.
func (s *Snapshot) Len() int { return len(s.ids) }

// Get returns the problem with id. Problems that failed validation yield a
// TestCaseInvalid error so the run ends with a configuration fault.
func (s *Snapshot) Get(_ context.Context, id string) (*model.Problem, error) {
	p, ok := s.problems[id]
	if !ok {
		return nil, appErr.Newf(appErr.ProblemNotFound, "Question ID %s not found.", id).WithDetail("question_id", id)
	}
	if reason, bad := s.invalid[id]; bad {
		return nil, appErr.Newf(appErr.TestCaseInvalid, "question %s is misconfigured: %s", id, reason)
	}
	return p, nil
}

// List returns problem summaries ordered by id.
func (s *Snapshot) List(_ context.Context) []model.Summary {
	out := make([]model.Summary, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.problems[id].Summary())
	}
	return out
}

// Invalid returns the ids that failed validation with their reasons.
func (s *Snapshot) Invalid() map[string]string {
	out := make(map[string]string, len(s.invalid))
	for k, v := range s.invalid {
		out[k] = v
	}
	return out
}

// Store serves the current snapshot and allows it to be swapped atomically.
// A run that already fetched a problem keeps using it after a swap.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore returns a Store serving snap.
func NewStore(snap *Snapshot) *Store {
	s := &Store{}
	s.current.Store(snap)
	return s
}

// Snapshot returns the snapshot currently served.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Swap replaces the served snapshot.
func (s *Store) Swap(snap *Snapshot) {
	s.current.Store(snap)
}

func (s *Store) Get(ctx context.Context, id string) (*model.Problem, error) {
	return s.current.Load().Get(ctx, id)
}

func (s *Store) List(ctx context.Context) []model.Summary {
	return s.current.Load().List(ctx)
}
