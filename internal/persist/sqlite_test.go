package persist

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/valentinpelus/voiceboard/pkg/types"
)

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "voiceboard.db")

	snap, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer snap.Close()

	empty, err := snap.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("fresh database has %d records", len(empty))
	}

	records := []types.Feedback{
		{ID: "dup", Type: types.CategoryAccount, Content: "第一条", Date: "2025-06-03", Product: "理财通", Status: types.StatusPending, Priority: types.PriorityHigh},
		{ID: "dup", Type: "其他", Content: "重复 id", Product: "零钱通"},
		{ID: "3", Type: types.CategoryUI, Content: "", Date: "", Product: "理财通", Status: types.StatusResolved},
	}
	if err := snap.Save(ctx, records); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := snap.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, records) {
		t.Errorf("Load() = %+v\nwant %+v", got, records)
	}

	// a smaller snapshot replaces the previous one entirely
	if err := snap.Save(ctx, records[2:]); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, _ = snap.Load(ctx)
	if len(got) != 1 || got[0].ID != "3" {
		t.Errorf("after shrink Load() = %+v", got)
	}
}

func TestSQLiteReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "voiceboard.db")

	snap, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := snap.Save(ctx, []types.Feedback{{ID: "1", Type: "其他", Product: "理财通"}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	snap.Close()

	snap, err = Open(ctx, "sqlite://"+path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer snap.Close()

	got, err := snap.Load(ctx)
	if err != nil || len(got) != 1 {
		t.Errorf("Load() = %+v, %v", got, err)
	}
}

func TestOpenEmptyDSN(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Error("Open(\"\") error = nil")
	}
}
