package snapshot

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"techrider/internal/domain"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	store, _ := setupTestRedis(t)
	defer store.Close()
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisStoreBadURL(t *testing.T) {
	if _, err := NewRedisStore("not a url"); err == nil {
		t.Fatal("expected error for invalid url")
	}
}

func TestSaveAndLoad(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	ctx := context.Background()

	item := domain.Item{
		ID:        "6b",
		Category:  domain.CategoryBackline,
		Title:     "Drum Kit",
		Status:    domain.StatusDiscussing,
		Provider:  domain.ProviderVenue,
		CreatedBy: domain.RoleBand,
		Comments: []domain.Event{
			{ID: "c2", Type: domain.EventText, Author: "Youri", Role: domain.RoleEngineer, Text: "Which cymbals?", Timestamp: "2023-10-26T10:05:00Z"},
		},
	}
	if err := store.Save(ctx, item); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !s.Exists("brief:item:6b") {
		t.Fatalf("expected brief:item:6b key")
	}
	if ok, _ := s.SIsMember("brief:items", "6b"); !ok {
		t.Fatalf("expected id in brief:items")
	}

	got, err := store.Load(ctx, "6b")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Title != "Drum Kit" || len(got.Comments) != 1 || got.Comments[0].Author != "Youri" {
		t.Errorf("unexpected snapshot %+v", got)
	}

	if _, err := store.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListSkipsVanishedDocuments(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	ctx := context.Background()

	for _, id := range []string{"2", "1", "3"} {
		if err := store.Save(ctx, domain.Item{ID: id, Title: "item " + id}); err != nil {
			t.Fatalf("Save %s failed: %v", id, err)
		}
	}
	s.Del("brief:item:3")

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 || items[0].ID != "1" || items[1].ID != "2" {
		t.Errorf("unexpected list %+v", items)
	}
}

func TestLoadAfterServerDown(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	s.Close()
	if _, err := store.Load(context.Background(), "1"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected connection error, got %v", err)
	}
}
