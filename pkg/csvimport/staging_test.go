package csvimport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/valentinpelus/voiceboard/pkg/types"
)

func TestStagingPutTake(t *testing.T) {
	t.Parallel()

	s := NewStaging(time.Minute)
	records := []types.Feedback{{ID: "1", Type: types.CategoryAccount}}

	st := s.Put("feedback.csv", records)
	if st.ID == "" {
		t.Fatal("staged import has no id")
	}
	if st.Preview.Total != 1 {
		t.Errorf("Preview.Total = %d, want 1", st.Preview.Total)
	}

	got, err := s.Take(st.ID)
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if len(got.Records) != 1 || got.FileName != "feedback.csv" {
		t.Errorf("Take() = %+v", got)
	}

	if _, err := s.Take(st.ID); !errors.Is(err, ErrStageNotFound) {
		t.Errorf("second Take() error = %v, want ErrStageNotFound", err)
	}
}

func TestStagingExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewStaging(10 * time.Minute)
	s.now = func() time.Time { return now }

	expired := s.Put("old.csv", nil)
	now = now.Add(11 * time.Minute)
	fresh := s.Put("new.csv", nil)

	if _, err := s.Take(expired.ID); !errors.Is(err, ErrStageNotFound) {
		t.Errorf("Take(expired) error = %v, want ErrStageNotFound", err)
	}

	s.Put("old2.csv", nil)
	now = now.Add(11 * time.Minute)
	if n := s.Sweep(); n != 2 {
		t.Errorf("Sweep() = %d, want 2", n)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d after sweep", s.Len())
	}
	if s.Discard(fresh.ID) {
		t.Error("Discard() of swept entry reported true")
	}
}

func TestStagingDiscard(t *testing.T) {
	t.Parallel()

	s := NewStaging(time.Minute)
	st := s.Put("a.csv", nil)

	if !s.Discard(st.ID) {
		t.Error("Discard() = false, want true")
	}
	if s.Discard(st.ID) {
		t.Error("second Discard() = true, want false")
	}
}

func TestStagingStartStops(t *testing.T) {
	t.Parallel()

	s := NewStaging(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
