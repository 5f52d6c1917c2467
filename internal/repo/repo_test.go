package repo_test

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"

	"techrider/internal/db"
	"techrider/internal/domain"
	"techrider/internal/migrate"
	"techrider/internal/repo"
)

func openRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}
}

func sampleItem(id string, cat domain.Category) domain.Item {
	title := "Bass Rig"
	return domain.Item{
		ID:                      id,
		Category:                cat,
		Title:                   "Bass Amp",
		Description:             "8x10 cab",
		Specs:                   domain.Specs{Make: "Ampeg", Model: "SVT", Quantity: 1, Notes: "with tilt-back"},
		Provider:                domain.ProviderVenue,
		Status:                  domain.StatusPending,
		RequestedBy:             "Lester",
		AssignedTo:              "Unassigned",
		CreatedBy:               domain.RoleBand,
		PendingConfirmationFrom: domain.RoleEngineer,
		Comments: []domain.Event{
			{ID: "c1", Type: domain.EventText, Author: "Lester", Role: domain.RoleBand, Text: "Needs to be loud", Timestamp: "2023-10-26T10:00:00Z"},
			{ID: "c2", Type: domain.EventItemRevision, Author: "Band", Role: domain.RoleBand, Text: "updated the brief:\nTitle: \"Bass Amp\" -> \"Bass Rig\"", Timestamp: "2023-10-26T10:05:00Z",
				WaitingFor:     domain.RoleEngineer,
				PreviousData:   &domain.FieldSet{Title: strptr("Bass Amp")},
				NewData:        &domain.FieldSet{Title: &title},
				PendingUpdates: &domain.FieldSet{Title: &title}},
			{ID: "c3", Type: domain.EventStatusChange, Author: "Engineer", Role: domain.RoleEngineer, Text: "changed status to DISCUSSING", Timestamp: "2023-10-26T10:06:00Z",
				PreviousStatus: domain.StatusPending, NewStatus: domain.StatusDiscussing},
		},
		CreatedAt: "2023-10-26T09:00:00Z",
		UpdatedAt: "2023-10-26T10:06:00Z",
	}
}

func strptr(s string) *string { return &s }

func TestItemRoundTrip(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()
	want := sampleItem("4", domain.CategoryBackline)
	if err := r.InsertItem(ctx, want); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := r.GetItem(ctx, "4")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", want, got)
	}
}

func TestSaveItemRewritesLog(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()
	item := sampleItem("4", domain.CategoryBackline)
	if err := r.InsertItem(ctx, item); err != nil {
		t.Fatalf("insert: %v", err)
	}
	item.Comments = item.Comments[:1]
	item.Status = domain.StatusAgreed
	item.PendingConfirmationFrom = ""
	if err := r.SaveItem(ctx, item); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := r.GetItem(ctx, "4")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Comments) != 1 || got.Status != domain.StatusAgreed || got.PendingConfirmationFrom != "" {
		t.Fatalf("unexpected item after save: %+v", got)
	}
	if err := r.SaveItem(ctx, sampleItem("missing", domain.CategoryPA)); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetItemNotFound(t *testing.T) {
	r := openRepo(t)
	if _, err := r.GetItem(context.Background(), "nope"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListItemsOrderAndFilters(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()
	first := sampleItem("1", domain.CategoryMicrophones)
	second := sampleItem("2", domain.CategoryBackline)
	second.Status = domain.StatusAgreed
	second.PendingConfirmationFrom = ""
	for _, it := range []domain.Item{first, second} {
		if err := r.InsertItem(ctx, it); err != nil {
			t.Fatalf("insert %s: %v", it.ID, err)
		}
	}
	items, err := r.ListItems(ctx, repo.ItemFilters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].ID != "2" || items[1].ID != "1" {
		t.Fatalf("expected newest first, got %+v", items)
	}
	if len(items[0].Comments) != 3 || items[0].Comments[2].ID != "c3" {
		t.Fatalf("log not loaded in order: %+v", items[0].Comments)
	}
	agreed, err := r.ListItems(ctx, repo.ItemFilters{Status: domain.StatusAgreed})
	if err != nil || len(agreed) != 1 || agreed[0].ID != "2" {
		t.Fatalf("status filter: %v %+v", err, agreed)
	}
	mics, err := r.ListItems(ctx, repo.ItemFilters{Category: domain.CategoryMicrophones})
	if err != nil || len(mics) != 1 || mics[0].ID != "1" {
		t.Fatalf("category filter: %v %+v", err, mics)
	}
	n, err := r.CountItems(ctx)
	if err != nil || n != 2 {
		t.Fatalf("count: %d %v", n, err)
	}
}

func TestAppendItemKeepsOrder(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		for _, id := range []string{"a", "b", "c"} {
			if err := r.AppendItemTx(ctx, tx, sampleItem(id, domain.CategoryStage)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	items, err := r.ListItems(ctx, repo.ItemFilters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if items[0].ID != "a" || items[2].ID != "c" {
		t.Fatalf("unexpected order %s %s %s", items[0].ID, items[1].ID, items[2].ID)
	}
}

func withTx(ctx context.Context, conn *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func TestListFeedFilters(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()
	if err := r.InsertItem(ctx, sampleItem("1", domain.CategoryPA)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO feed(ts,kind,role,author,text) VALUES ('2024-01-01T00:00:00Z','chat','BAND','Band','hello')`)
	if err != nil {
		t.Fatalf("insert chat: %v", err)
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO feed(ts,kind,role,author,text,item_id,item_title,update_type,snapshot_json) VALUES ('2024-01-01T00:01:00Z','update','ENGINEER','Engineer','changed status to AGREED','1','Bass Amp','STATUS_CHANGE','{}')`)
	if err != nil {
		t.Fatalf("insert update: %v", err)
	}
	all, err := r.ListFeed(ctx, repo.FeedFilters{})
	if err != nil || len(all) != 2 || all[0].Kind != domain.FeedKindChat {
		t.Fatalf("all: %v %+v", err, all)
	}
	chat, err := r.ListFeed(ctx, repo.FeedFilters{Kind: "chat"})
	if err != nil || len(chat) != 1 || chat[0].Text != "hello" {
		t.Fatalf("chat: %v %+v", err, chat)
	}
	updates, err := r.ListFeed(ctx, repo.FeedFilters{Kind: repo.FeedUpdates})
	if err != nil || len(updates) != 1 || updates[0].ItemID != "1" || updates[0].UpdateType != domain.EventStatusChange {
		t.Fatalf("updates: %v %+v", err, updates)
	}
	last, err := r.ListFeed(ctx, repo.FeedFilters{Limit: 1})
	if err != nil || len(last) != 1 || last[0].Kind != domain.FeedKindUpdate {
		t.Fatalf("limit: %v %+v", err, last)
	}
	if _, err := r.ListFeed(ctx, repo.FeedFilters{Kind: "bogus"}); err == nil {
		t.Fatalf("expected error for unknown filter")
	}
}
