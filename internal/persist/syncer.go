package persist

import (
	"context"
	"time"

	"github.com/valentinpelus/voiceboard/internal/logger"
	"github.com/valentinpelus/voiceboard/pkg/feedback"
)

// Syncer writes a fresh snapshot after store mutations. Bursts of events
// collapse into a single write; only one goroutine ever writes.
type Syncer struct {
	store       *feedback.Store
	snap        Snapshotter
	dirty       chan struct{}
	unsubscribe func()
	// saveTimeout bounds each write
	saveTimeout time.Duration
	retryDelay  time.Duration
}

// NewSyncer creates a syncer for store. The store subscription starts here,
// so mutations made before Run is scheduled are not missed.
func NewSyncer(store *feedback.Store, snap Snapshotter) *Syncer {
	s := &Syncer{
		store:       store,
		snap:        snap,
		dirty:       make(chan struct{}, 1),
		saveTimeout: 30 * time.Second,
		retryDelay:  time.Second,
	}
	s.unsubscribe = store.Subscribe(func(feedback.Event) { s.markDirty() })
	return s
}

// Restore loads the snapshot into the store. Call before Run.
func (s *Syncer) Restore(ctx context.Context) (int, error) {
	records, err := s.snap.Load(ctx)
	if err != nil {
		return 0, err
	}
	s.store.ReplaceAll(records)

	// the restored state is already on disk
	select {
	case <-s.dirty:
	default:
	}
	return len(records), nil
}

// Run persists changes until ctx is done, then writes a final snapshot
// and releases the store subscription.
func (s *Syncer) Run(ctx context.Context) {
	defer s.unsubscribe()

	// saves outlive ctx so a write in progress at shutdown completes
	saveCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			s.flush(saveCtx)
			return
		case <-s.dirty:
			if err := s.flush(saveCtx); err != nil {
				s.markDirty()
				select {
				case <-ctx.Done():
				case <-time.After(s.retryDelay):
				}
			}
		}
	}
}

func (s *Syncer) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *Syncer) flush(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.saveTimeout)
	defer cancel()

	records := s.store.All()
	if err := s.snap.Save(ctx, records); err != nil {
		logger.Error("Failed to persist feedback snapshot", "err", err, "records", len(records))
		return err
	}
	logger.Debug("Persisted feedback snapshot", "records", len(records))
	return nil
}
