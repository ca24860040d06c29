package session

import (
	"context"
	"sync"

	"dataexplorer/domain/workflow"
	"dataexplorer/internal"
	"dataexplorer/internal/errors"
	"dataexplorer/ports"
)

// Store is the process-wide record of the active session. It hydrates from the
// repository exactly once and has a single writer, the orchestrator; readers
// get a copy or subscribe for changes.
type Store struct {
	repo   ports.SessionRepository
	logger *internal.Logger

	hydrateOnce sync.Once
	hydrateErr  error

	mu      sync.RWMutex
	current workflow.Session
	active  bool

	subMu   sync.Mutex
	subs    map[int]func(workflow.Session)
	nextSub int
}

// NewStore creates a store over repo; nothing is read until first use
func NewStore(repo ports.SessionRepository, logger *internal.Logger) *Store {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Store{
		repo:   repo,
		logger: logger.WithComponent("SessionStore"),
		subs:   make(map[int]func(workflow.Session)),
	}
}

// Hydrate loads the persisted session. Only the first call touches the
// repository; later calls return the first call's error.
func (s *Store) Hydrate(ctx context.Context) error {
	s.hydrateOnce.Do(func() {
		id, ok, err := s.repo.Load(ctx)
		if err != nil {
			s.hydrateErr = errors.StorageError("failed to load persisted session", err)
			s.logger.Warn("hydration failed: %v", err)
			return
		}
		if !ok {
			s.logger.Debug("no persisted session")
			return
		}
		s.mu.Lock()
		s.current = workflow.Session{ID: id}
		s.active = true
		s.mu.Unlock()
		s.logger.Info("restored session %s", id)
	})
	return s.hydrateErr
}

// Get returns the active session; ok is false if none was ever set or persisted
func (s *Store) Get() (workflow.Session, bool) {
	_ = s.Hydrate(context.Background())

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.active
}

// Set overwrites the active session, persists it and notifies subscribers. The
// in-memory value is replaced even when persisting fails; the error is returned
// so the caller can report it.
func (s *Store) Set(ctx context.Context, sess workflow.Session) error {
	if sess.ID.IsEmpty() {
		return errors.InvalidInput("session id must not be empty")
	}
	// Hydrate first so a late hydration can never clobber a newer value.
	_ = s.Hydrate(ctx)

	s.mu.Lock()
	s.current = sess
	s.active = true
	s.mu.Unlock()

	var persistErr error
	if err := s.repo.Save(ctx, sess.ID); err != nil {
		persistErr = errors.StorageError("failed to persist session", err)
		s.logger.Warn("persist failed for %s: %v", sess.ID, err)
	}

	s.notify(sess)
	return persistErr
}

// Subscribe registers fn for every Set; the returned func unsubscribes
func (s *Store) Subscribe(fn func(workflow.Session)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(sess workflow.Session) {
	s.subMu.Lock()
	fns := make([]func(workflow.Session), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(sess)
	}
}
