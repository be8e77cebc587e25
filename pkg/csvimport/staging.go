package csvimport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/valentinpelus/voiceboard/internal/logger"
	"github.com/valentinpelus/voiceboard/pkg/types"
)

// ErrStageNotFound is returned for unknown or expired staged imports.
var ErrStageNotFound = errors.New("staged import not found")

// Staged is a parsed upload waiting for the user to confirm or discard it.
type Staged struct {
	ID        string           `json:"stageId"`
	FileName  string           `json:"fileName"`
	Records   []types.Feedback `json:"-"`
	Preview   Preview          `json:"preview"`
	CreatedAt time.Time        `json:"createdAt"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

// Staging holds pending imports keyed by id until they are taken or expire.
type Staging struct {
	mu    sync.Mutex
	items map[string]*Staged
	ttl   time.Duration
	now   func() time.Time
}

// NewStaging creates an empty staging area whose entries live for ttl.
func NewStaging(ttl time.Duration) *Staging {
	return &Staging{
		items: make(map[string]*Staged),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Put stages records and returns the new entry.
func (s *Staging) Put(fileName string, records []types.Feedback) *Staged {
	now := s.now()
	st := &Staged{
		ID:        uuid.New().String(),
		FileName:  fileName,
		Records:   records,
		Preview:   Summarize(records),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.items[st.ID] = st
	s.mu.Unlock()
	return st
}

// Take removes and returns a staged import.
func (s *Staging) Take(id string) (*Staged, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.items[id]
	if !ok {
		return nil, ErrStageNotFound
	}
	delete(s.items, id)
	if s.now().After(st.ExpiresAt) {
		return nil, ErrStageNotFound
	}
	return st, nil
}

// Discard drops a staged import. Reports whether it existed.
func (s *Staging) Discard(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.items[id]
	delete(s.items, id)
	return ok
}

// Len returns the number of staged imports, expired or not.
func (s *Staging) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Sweep drops expired entries and returns how many were removed.
func (s *Staging) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, st := range s.items {
		if now.After(st.ExpiresAt) {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

// Start sweeps expired entries periodically until ctx is done.
func (s *Staging) Start(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Debug("Swept expired imports", "count", n)
			}
		}
	}
}
