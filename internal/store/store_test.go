package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "nested", "chat.db")
	st, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st, dbPath
}

func TestSaveRoomAndLookup(t *testing.T) {
	t.Parallel()
	st, _ := openTestStore(t)

	in := Room{
		ID:          "35e748f1-45ef-4f12-b5e3-f17fe80326b0",
		Name:        "general",
		Description: "A fun place to chat.",
		MaxUsers:    100,
		CreatedAt:   time.UnixMilli(1_700_000_000_000).UTC(),
	}
	if err := st.SaveRoom(context.Background(), in); err != nil {
		t.Fatalf("save room: %v", err)
	}

	got, err := st.RoomByID(context.Background(), in.ID)
	if err != nil {
		t.Fatalf("lookup room: %v", err)
	}
	if got.Name != in.Name || got.Description != in.Description || got.MaxUsers != in.MaxUsers {
		t.Fatalf("unexpected room: %#v", got)
	}
	if !got.CreatedAt.Equal(in.CreatedAt) {
		t.Fatalf("expected created_at=%s got=%s", in.CreatedAt, got.CreatedAt)
	}

	if _, err := st.RoomByID(context.Background(), "missing"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestSaveRoomUpsertsAndRejectsDuplicateName(t *testing.T) {
	t.Parallel()
	st, _ := openTestStore(t)
	ctx := context.Background()

	if err := st.SaveRoom(ctx, Room{ID: "a", Name: "general", MaxUsers: 5}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.SaveRoom(ctx, Room{ID: "a", Name: "general", Description: "updated", MaxUsers: 7}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.SaveRoom(ctx, Room{ID: "b", Name: "general", MaxUsers: 5}); err == nil {
		t.Fatal("expected unique name violation")
	}

	rooms, err := st.Rooms(ctx)
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0].Description != "updated" || rooms[0].MaxUsers != 7 {
		t.Fatalf("unexpected rooms: %#v", rooms)
	}
}

func TestSaveRoomValidation(t *testing.T) {
	t.Parallel()
	st, _ := openTestStore(t)

	for _, r := range []Room{
		{Name: "x", MaxUsers: 1},
		{ID: "a", MaxUsers: 1},
		{ID: "a", Name: "x"},
	} {
		if err := st.SaveRoom(context.Background(), r); err == nil {
			t.Fatalf("expected validation error for %#v", r)
		}
	}
}

func TestRoomsSurviveReopen(t *testing.T) {
	t.Parallel()
	st, dbPath := openTestStore(t)
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000).UTC()
	for i, name := range []string{"second", "first"} {
		r := Room{ID: name, Name: name, MaxUsers: 10, CreatedAt: base.Add(-time.Duration(i) * time.Minute)}
		if err := st.SaveRoom(ctx, r); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}
	if err := st.DeleteRoom(ctx, "nope"); err != nil {
		t.Fatalf("delete unknown: %v", err)
	}
	_ = st.Close()

	reopened, err := Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	rooms, err := reopened.Rooms(ctx)
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 2 || rooms[0].Name != "first" || rooms[1].Name != "second" {
		t.Fatalf("unexpected order: %#v", rooms)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
