package server

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aouyang1/go-marketmaster"
	"github.com/aouyang1/go-marketmaster/chart"
	"github.com/aouyang1/go-marketmaster/source"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is one isolated pipeline. Interactions on a session are serialized by its lock.
type Session struct {
	ID      uuid.UUID
	Created time.Time

	mu       sync.Mutex
	pipeline *marketmaster.Pipeline
	board    *chart.Board
	cache    *source.CachedFetcher
}

func newSession(template *marketmaster.Options, upstream source.Fetcher, logger *slog.Logger) *Session {
	id := uuid.New()
	s := &Session{
		ID:      id,
		Created: time.Now(),
		board:   chart.NewBoard(),
	}

	opt := *template
	opt.Logger = logger.With("session", id.String())
	opt.Presenter = s.board
	opt.Fetcher = nil
	if upstream != nil {
		s.cache = source.NewCachedFetcher(upstream)
		opt.Fetcher = s.cache
	}
	s.pipeline = marketmaster.New(&opt)
	return s
}

// Do runs fn while holding the session lock
func (s *Session) Do(fn func(p *marketmaster.Pipeline, board *chart.Board) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.pipeline, s.board)
}

// Store holds every open session in memory
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[uuid.UUID]*Session)}
}

func (st *Store) Add(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
}

func (st *Store) Get(id string) (*Session, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[uid]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete removes a session and reports whether it existed
func (st *Store) Delete(id string) bool {
	uid, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[uid]; !ok {
		return false
	}
	delete(st.sessions, uid)
	return true
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
