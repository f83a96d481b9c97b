package storage

import (
	"context"
	"encoding/json"
	"testing"
)

func TestPlayerLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	songs := json.RawMessage(`["one","two"]`)
	player := Player{UserID: "u1", RoomID: "r1", Name: "Alice", Songs: songs, SongCount: 2}
	if err := store.UpsertPlayer(ctx, player); err != nil {
		t.Fatalf("UpsertPlayer: %v", err)
	}

	got, err := store.GetPlayer(ctx, "u1")
	if err != nil {
		t.Fatalf("GetPlayer: %v", err)
	}
	if got == nil || got.Name != "Alice" || got.SongCount != 2 {
		t.Fatalf("unexpected player: %+v", got)
	}
	if string(got.Songs) != string(songs) {
		t.Fatalf("songs payload must round-trip verbatim, got %s", got.Songs)
	}
}

func TestUpsertReplacesExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := store.UpsertPlayer(ctx, Player{UserID: "u1", RoomID: "r1", Name: "Alice"}); err != nil {
		t.Fatalf("UpsertPlayer: %v", err)
	}
	if err := store.UpsertPlayer(ctx, Player{UserID: "u1", RoomID: "r2", Name: "Alice", SongCount: 3}); err != nil {
		t.Fatalf("UpsertPlayer again: %v", err)
	}

	got, err := store.GetPlayer(ctx, "u1")
	if err != nil {
		t.Fatalf("GetPlayer: %v", err)
	}
	if got == nil || got.RoomID != "r2" || got.SongCount != 3 {
		t.Fatalf("expected replaced record, got %+v", got)
	}

	players, err := store.ListRoomPlayers(ctx, "r1")
	if err != nil {
		t.Fatalf("ListRoomPlayers: %v", err)
	}
	if len(players) != 0 {
		t.Fatalf("old room should have no players, got %+v", players)
	}
}

func TestListRoomPlayers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, player := range []Player{
		{UserID: "u1", RoomID: "r1", Name: "Alice"},
		{UserID: "u2", RoomID: "r1", Name: "Bob"},
		{UserID: "u3", RoomID: "r2", Name: "Carol"},
	} {
		if err := store.UpsertPlayer(ctx, player); err != nil {
			t.Fatalf("UpsertPlayer %s: %v", player.UserID, err)
		}
	}

	players, err := store.ListRoomPlayers(ctx, "r1")
	if err != nil {
		t.Fatalf("ListRoomPlayers: %v", err)
	}
	if len(players) != 2 {
		t.Fatalf("expected 2 players in r1, got %d", len(players))
	}
}

func TestRemovePlayer(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := store.UpsertPlayer(ctx, Player{UserID: "u1", RoomID: "r1", Name: "Alice"}); err != nil {
		t.Fatalf("UpsertPlayer: %v", err)
	}
	if err := store.RemovePlayer(ctx, "u1"); err != nil {
		t.Fatalf("RemovePlayer: %v", err)
	}
	got, err := store.GetPlayer(ctx, "u1")
	if err != nil {
		t.Fatalf("GetPlayer after remove: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil player after remove, got %+v", got)
	}
	// removing what is not there is best-effort and must not error.
	if err := store.RemovePlayer(ctx, "u1"); err != nil {
		t.Fatalf("RemovePlayer absent: %v", err)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := "sqlite://file:" + t.Name() + "?mode=memory&cache=shared"
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
