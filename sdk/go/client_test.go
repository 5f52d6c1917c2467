package ridersdk_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"

	"techrider/internal/config"
	"techrider/internal/db"
	"techrider/internal/engine"
	"techrider/internal/logging"
	"techrider/internal/migrate"
	"techrider/internal/server"
	ridersdk "techrider/sdk/go"
)

func startServer(t *testing.T) string {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	e.Log = logging.Nop()
	handler, err := server.New(server.Config{Engine: e, Log: logging.Nop()})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		conn.Close()
	})
	return "http://" + ln.Addr().String()
}

func TestNegotiateThroughSDK(t *testing.T) {
	ctx := context.Background()
	band := ridersdk.New(startServer(t), "BAND")
	engineer := band.As("ENGINEER")

	item, err := engineer.CreateItem(ctx, ridersdk.NewItem{
		Category:    "MICROPHONES",
		Title:       "Kick Mic",
		Description: "Beta 91 inside the kick.",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if item.Provider != "ENGINEER" || item.PendingConfirmationFrom != "BAND" {
		t.Fatalf("unexpected defaults: %+v", item)
	}

	view, err := band.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if !view.CanAgree {
		t.Fatalf("band should be able to confirm")
	}
	if v, _ := engineer.GetItem(ctx, item.ID); v.CanAgree {
		t.Fatalf("creator should not be able to confirm")
	}

	got, applied, err := band.UpdateStatus(ctx, item.ID, "AGREED")
	if err != nil || !applied || got.Status != "AGREED" {
		t.Fatalf("agree: %v applied=%v status=%s", err, applied, got.Status)
	}

	title := "Beta 52"
	if _, err := band.ProposeRevision(ctx, item.ID, ridersdk.Revision{Title: &title}); err != nil {
		t.Fatalf("revise: %v", err)
	}
	if _, err := band.Comment(ctx, item.ID, "Beta 52 sounds better on this kit"); err != nil {
		t.Fatalf("comment: %v", err)
	}
	got, applied, err = engineer.UpdateStatus(ctx, item.ID, "AGREED")
	if err != nil || !applied || got.Title != "Beta 52" {
		t.Fatalf("accept revision: %v applied=%v title=%s", err, applied, got.Title)
	}

	sum, err := band.Summary(ctx)
	if err != nil || sum.Progress != "1 / 1 confirmed" {
		t.Fatalf("summary: %+v %v", sum, err)
	}

	if _, err := band.PostMessage(ctx, "see you at load-in"); err != nil {
		t.Fatalf("post: %v", err)
	}
	msgs, err := engineer.Feed(ctx, "CHAT", 10)
	if err != nil || len(msgs) != 1 || msgs[0].Author != "Band" {
		t.Fatalf("feed: %+v %v", msgs, err)
	}

	_, err = band.GetItem(ctx, "missing")
	var apiErr *ridersdk.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
}
