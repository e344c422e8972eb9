package internal

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	api "github.com/etesami/template-matching-demo/api"
	"github.com/etesami/template-matching-demo/pkg/session"

	"github.com/google/uuid"
)

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrNotComputed    = errors.New("no score computed yet")
	ErrStaleSession   = errors.New("session moved while scoring")
)

type entry struct {
	state      session.State
	comparison []byte
	lastSeen   time.Time
}

// Sessions holds the state of every open session keyed by its id. Sessions
// not touched for longer than the idle ttl are dropped by Sweep.
type Sessions struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	now     func() time.Time
}

// NewSessions creates an empty table. A ttl of zero never expires sessions.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		entries: make(map[string]*entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *Sessions) Create(pair api.PairInfo) (string, session.State) {
	id := uuid.NewString()
	st := session.NewState(pair)
	s.mu.Lock()
	s.entries[id] = &entry{state: st, lastSeen: s.now()}
	s.mu.Unlock()
	return id, st
}

// lookup returns the entry and marks it as seen. Callers hold mu.
func (s *Sessions) lookup(id string) (*entry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	e.lastSeen = s.now()
	return e, nil
}

func (s *Sessions) Get(id string) (session.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(id)
	if err != nil {
		return session.State{}, err
	}
	return e.state, nil
}

// Update applies fn to the current state of a session and stores the result.
func (s *Sessions) Update(id string, fn func(session.State) session.State) (session.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(id)
	if err != nil {
		return session.State{}, err
	}
	e.state = fn(e.state)
	return e.state, nil
}

// CompareAndSet stores st and comparison only if the session is still
// centered at center. Otherwise it returns ErrStaleSession and leaves the
// session untouched.
func (s *Sessions) CompareAndSet(id string, center image.Point, st session.State, comparison []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	if e.state.Center != center {
		return fmt.Errorf("%w: center is now (%d,%d)", ErrStaleSession, e.state.Center.X, e.state.Center.Y)
	}
	e.state = st
	if comparison != nil {
		e.comparison = comparison
	}
	return nil
}

// Comparison returns the side-by-side image of the last compute.
func (s *Sessions) Comparison(id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if e.comparison == nil {
		return nil, ErrNotComputed
	}
	return e.comparison, nil
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops sessions idle for longer than the ttl and returns how many
// were dropped.
func (s *Sessions) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	n := 0
	for id, e := range s.entries {
		if e.lastSeen.Before(cutoff) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Printf("Expired [%d] idle sessions, [%d] open\n", n, s.Len())
			}
		}
	}
}
