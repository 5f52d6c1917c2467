package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"techrider/internal/domain"
	"techrider/internal/logging"
	"techrider/internal/repo"
	"techrider/internal/rollup"
)

func TestSeedDataset(t *testing.T) {
	items := Seed()
	if len(items) != 13 {
		t.Fatalf("expected 13 seed items, got %d", len(items))
	}
	ids := map[string]bool{}
	for _, it := range items {
		if ids[it.ID] {
			t.Fatalf("duplicate id %s", it.ID)
		}
		ids[it.ID] = true
		if !it.Category.Valid() || !it.Provider.Valid() || !it.Status.Valid() {
			t.Fatalf("invalid enum in %+v", it)
		}
		if it.PendingConfirmationFrom != "" || it.CreatedBy != domain.RoleBand {
			t.Fatalf("unexpected negotiation state in %s", it.ID)
		}
	}
	s := rollup.Summarize(items)
	if s.Agreed != 5 || s.Pending != 6 || s.Discussing != 2 || s.Progress != "5 / 13 confirmed" {
		t.Fatalf("unexpected seed summary %+v", s)
	}
	items[7].Comments[0].Text = "changed"
	if Seed()[7].Comments[0].Text == "changed" {
		t.Fatalf("Seed shares its log slices")
	}
}

func TestOpenWorkspaceSeedsOnce(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	ws, err := OpenWorkspace(ctx, dir, logging.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	r := repo.Repo{DB: ws.DB}
	n, err := r.CountItems(ctx)
	if err != nil || n != 13 {
		t.Fatalf("expected 13 seeded items, got %d (%v)", n, err)
	}
	seeded, err := EnsureSeeded(ctx, r)
	if err != nil || seeded {
		t.Fatalf("expected second seed to be skipped: %v %v", seeded, err)
	}
	items, err := r.ListItems(ctx, repo.ItemFilters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if items[0].ID != "1" || items[12].ID != "12" {
		t.Fatalf("seed order not kept: %s .. %s", items[0].ID, items[12].ID)
	}
	ws.Close()
}

func TestOpenWorkspaceSeedDisabled(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "rider.yml"), []byte("seed:\n  enabled: false\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	ws, err := OpenWorkspace(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ws.Close()
	n, err := repo.Repo{DB: ws.DB}.CountItems(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("expected empty brief, got %d (%v)", n, err)
	}
}

func TestWorkspaceEngineMirrorsToRedis(t *testing.T) {
	s := miniredis.RunT(t)
	ctx := context.Background()
	ws, err := OpenWorkspace(ctx, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ws.Close()
	e, closeMirror, err := ws.Engine("redis://"+s.Addr(), logging.Nop())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	defer closeMirror()
	if _, _, err := e.UpdateStatus(ctx, "10", domain.RoleEngineer, domain.StatusAgreed); err != nil {
		t.Fatalf("agree: %v", err)
	}
	if !s.Exists("brief:item:10") {
		t.Fatalf("expected mirrored snapshot for item 10")
	}
	if _, _, err := ws.Engine("redis://127.0.0.1:1", nil); err == nil {
		t.Fatalf("expected unreachable redis to fail")
	}
}
