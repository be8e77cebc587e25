package feedback

import (
	"fmt"
	"sync"
	"testing"

	"github.com/valentinpelus/voiceboard/pkg/types"
)

func seed(n int) []types.Feedback {
	out := make([]types.Feedback, n)
	for i := range out {
		out[i] = types.Feedback{ID: fmt.Sprintf("fb%d", i), Type: types.CategoryFunctional, Content: "c"}
	}
	return out
}

func TestStoreMergeKeepsExisting(t *testing.T) {
	t.Parallel()

	store := New()
	store.ReplaceAll(seed(3))

	imported := []types.Feedback{{ID: "new1"}, {ID: "new2"}}
	store.Merge(imported)

	if got := store.Len(); got != 5 {
		t.Fatalf("Len() = %d, want 5", got)
	}
	all := store.All()
	if all[0].ID != "new1" || all[1].ID != "new2" {
		t.Errorf("imported records should come first, got %q, %q", all[0].ID, all[1].ID)
	}
	for _, id := range []string{"fb0", "fb1", "fb2"} {
		if _, ok := store.Get(id); !ok {
			t.Errorf("existing record %s was removed by merge", id)
		}
	}
}

func TestStoreAddPrependsAndDefaultsStatus(t *testing.T) {
	t.Parallel()

	store := New()
	store.ReplaceAll(seed(1))
	store.Add(types.Feedback{ID: "added"})

	all := store.All()
	if all[0].ID != "added" {
		t.Fatalf("first record = %q, want added", all[0].ID)
	}
	if all[0].Status != types.StatusPending {
		t.Errorf("status = %q, want pending", all[0].Status)
	}

	store.Add(types.Feedback{ID: "resolved", Status: types.StatusResolved})
	if got, _ := store.Get("resolved"); got.Status != types.StatusResolved {
		t.Errorf("explicit status overwritten: %q", got.Status)
	}
}

func TestStoreRemoveFirstMatchOnly(t *testing.T) {
	t.Parallel()

	store := New()
	store.ReplaceAll([]types.Feedback{
		{ID: "dup", Content: "first"},
		{ID: "other"},
		{ID: "dup", Content: "second"},
	})

	if !store.Remove("dup") {
		t.Fatal("Remove(dup) = false, want true")
	}
	if got := store.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
	got, ok := store.Get("dup")
	if !ok || got.Content != "second" {
		t.Errorf("remaining dup = %+v, want the second one", got)
	}

	if store.Remove("missing") {
		t.Error("Remove(missing) = true, want false")
	}
	if got := store.Len(); got != 2 {
		t.Errorf("Len() after no-op remove = %d, want 2", got)
	}
}

func TestStoreUpdate(t *testing.T) {
	t.Parallel()

	store := New()
	store.ReplaceAll(seed(2))

	status := types.StatusResolved
	content := "edited"
	if !store.Update("fb1", types.Patch{Status: &status, Content: &content}) {
		t.Fatal("Update(fb1) = false")
	}
	got, _ := store.Get("fb1")
	if got.Status != types.StatusResolved || got.Content != "edited" {
		t.Errorf("record after update = %+v", got)
	}
	if got.Type != types.CategoryFunctional {
		t.Errorf("untouched field changed: type = %q", got.Type)
	}

	if store.Update("missing", types.Patch{Status: &status}) {
		t.Error("Update(missing) = true, want false")
	}
}

func TestStoreBulkOperations(t *testing.T) {
	t.Parallel()

	store := New()
	store.ReplaceAll(seed(5))

	if n := store.SetStatus([]string{"fb0", "fb1", "nope"}, types.StatusArchived); n != 2 {
		t.Errorf("SetStatus affected %d, want 2", n)
	}
	if got, _ := store.Get("fb1"); got.Status != types.StatusArchived {
		t.Errorf("fb1 status = %q, want archived", got.Status)
	}

	if n := store.RemoveMany([]string{"fb2", "fb3", "nope"}); n != 2 {
		t.Errorf("RemoveMany removed %d, want 2", n)
	}
	if got := store.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
}

func TestStoreClear(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 50} {
		store := New()
		store.ReplaceAll(seed(n))
		store.Clear()
		if got := store.Len(); got != 0 {
			t.Errorf("Len() after Clear with %d records = %d", n, got)
		}
	}
}

func TestStoreAllReturnsCopy(t *testing.T) {
	t.Parallel()

	store := New()
	store.ReplaceAll(seed(1))
	all := store.All()
	all[0].Content = "mutated"

	if got, _ := store.Get("fb0"); got.Content == "mutated" {
		t.Error("All() exposed internal storage")
	}
}

func TestStoreSubscribe(t *testing.T) {
	t.Parallel()

	store := New()
	var events []Event
	unsubscribe := store.Subscribe(func(ev Event) {
		// Subscribers may read the store.
		if store.Len() != ev.Total {
			t.Errorf("Len() = %d inside subscriber, event total %d", store.Len(), ev.Total)
		}
		events = append(events, ev)
	})

	store.Merge(seed(3))
	store.Remove("fb0")
	store.Clear()
	unsubscribe()
	store.Add(types.Feedback{ID: "after"})

	want := []Event{
		{Kind: EventMerged, Affected: 3, Total: 3},
		{Kind: EventRemoved, Affected: 1, Total: 2},
		{Kind: EventCleared, Affected: 2, Total: 0},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}

	// Releasing twice is harmless.
	unsubscribe()
}

func TestStoreConcurrentWriters(t *testing.T) {
	t.Parallel()

	store := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Add(types.Feedback{ID: fmt.Sprintf("g%d", i)})
			_ = store.All()
		}(i)
	}
	wg.Wait()

	if got := store.Len(); got != 20 {
		t.Errorf("Len() = %d, want 20", got)
	}
}
