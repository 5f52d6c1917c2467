package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"techrider/internal/config"
	"techrider/internal/domain"
	"techrider/internal/events"
	"techrider/internal/metrics"
	"techrider/internal/negotiate"
	"techrider/internal/projection"
	"techrider/internal/repo"
	"techrider/internal/rollup"
)

// Mirror receives a copy of every committed item.
type Mirror interface {
	Save(ctx context.Context, item domain.Item) error
}

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
	Log    *logrus.Logger
	Mirror Mirror

	locks *itemLocks
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
		Log:    logrus.StandardLogger(),
		locks:  newItemLocks(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) log() *logrus.Logger {
	if e.Log != nil {
		return e.Log
	}
	return logrus.StandardLogger()
}

func (e Engine) names() map[domain.Role]string {
	if e.Config == nil {
		return nil
	}
	return e.Config.DisplayNames()
}

func (e Engine) negotiator() negotiate.Negotiator {
	return negotiate.Negotiator{Events: events.Builder{Names: e.names(), Now: e.now}}
}

func (e Engine) writer() events.Writer {
	w := e.Events
	w.Now = e.now
	return w
}

// CreateItem adds a new item to the top of the brief on behalf of role.
func (e Engine) CreateItem(ctx context.Context, draft negotiate.Draft, role domain.Role) (domain.Item, error) {
	item, err := e.negotiator().CreateItem(draft, role)
	if err != nil {
		e.recordFailure("create", err)
		return domain.Item{}, err
	}
	if err := e.Repo.InsertItem(ctx, item); err != nil {
		return domain.Item{}, fmt.Errorf("insert item: %w", err)
	}
	metrics.RecordIntent("create", metrics.OutcomeApplied)
	e.log().WithFields(logrus.Fields{
		"item_id": item.ID,
		"intent":  "create",
		"role":    role,
		"status":  item.Status,
	}).Info("item created")
	e.mirror(ctx, item)
	return item, nil
}

func (e Engine) ProposeRevision(ctx context.Context, id string, role domain.Role, patch domain.FieldSet) (domain.Item, error) {
	res, err := e.mutate(ctx, "revise", id, role, func(n negotiate.Negotiator, item domain.Item) (negotiate.Result, error) {
		return n.ProposeRevision(item, role, patch)
	})
	return res.Item, err
}

func (e Engine) UpdateProvider(ctx context.Context, id string, role domain.Role, provider domain.Provider) (domain.Item, error) {
	res, err := e.mutate(ctx, "provider", id, role, func(n negotiate.Negotiator, item domain.Item) (negotiate.Result, error) {
		return n.UpdateProvider(item, role, provider)
	})
	return res.Item, err
}

// UpdateStatus reports whether the request changed the item. A request the
// negotiation rules do not allow is not an error.
func (e Engine) UpdateStatus(ctx context.Context, id string, role domain.Role, status domain.Status) (domain.Item, bool, error) {
	res, err := e.mutate(ctx, "status", id, role, func(n negotiate.Negotiator, item domain.Item) (negotiate.Result, error) {
		return n.UpdateStatus(item, role, status)
	})
	return res.Item, res.Applied, err
}

// Reopen posts message and reopens the item. The message is stored even when
// the item cannot be reopened from its current status.
func (e Engine) Reopen(ctx context.Context, id string, role domain.Role, message string) (domain.Item, bool, error) {
	res, err := e.mutate(ctx, "reopen", id, role, func(n negotiate.Negotiator, item domain.Item) (negotiate.Result, error) {
		return n.Reopen(item, role, message)
	})
	return res.Item, res.Applied, err
}

func (e Engine) AddComment(ctx context.Context, id string, role domain.Role, text string) (domain.Item, error) {
	res, err := e.mutate(ctx, "comment", id, role, func(n negotiate.Negotiator, item domain.Item) (negotiate.Result, error) {
		return n.Comment(item, role, text)
	})
	return res.Item, err
}

type intentFunc func(negotiate.Negotiator, domain.Item) (negotiate.Result, error)

func (e Engine) mutate(ctx context.Context, intent, id string, role domain.Role, fn intentFunc) (negotiate.Result, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return negotiate.Result{}, err
	}
	defer tx.Rollback()

	item, err := e.Repo.GetItemTx(ctx, tx, id)
	if err != nil {
		e.recordFailure(intent, err)
		return negotiate.Result{}, err
	}
	res, err := fn(e.negotiator(), item)
	if err != nil {
		e.recordFailure(intent, err)
		return negotiate.Result{}, err
	}
	fields := logrus.Fields{
		"item_id": id,
		"intent":  intent,
		"role":    role,
		"status":  res.Item.Status,
		"applied": res.Applied,
	}
	if !res.Applied && len(res.Events) == 0 {
		metrics.RecordIntent(intent, metrics.OutcomeNoop)
		e.log().WithFields(fields).Debug("intent ignored")
		return res, nil
	}
	if err := e.Repo.SaveItemTx(ctx, tx, res.Item); err != nil {
		return negotiate.Result{}, fmt.Errorf("save item %s: %w", id, err)
	}
	w := e.writer()
	updates := 0
	for _, ev := range res.Events {
		if ev.Type == domain.EventText {
			continue
		}
		if err := w.AppendUpdate(ctx, tx, res.Item, ev); err != nil {
			return negotiate.Result{}, fmt.Errorf("append feed update: %w", err)
		}
		updates++
	}
	if err := tx.Commit(); err != nil {
		return negotiate.Result{}, err
	}
	for i := 0; i < updates; i++ {
		metrics.RecordFeedMessage(domain.FeedKindUpdate)
	}
	outcome := metrics.OutcomeApplied
	if !res.Applied {
		outcome = metrics.OutcomeNoop
	}
	metrics.RecordIntent(intent, outcome)
	e.log().WithFields(fields).Info("intent committed")
	e.mirror(ctx, res.Item)
	return res, nil
}

func (e Engine) recordFailure(intent string, err error) {
	var (
		verr *domain.ValidationError
		noop *domain.NoOpError
	)
	switch {
	case errors.As(err, &noop):
		metrics.RecordIntent(intent, metrics.OutcomeNoop)
	case errors.As(err, &verr), errors.Is(err, repo.ErrNotFound):
		metrics.RecordIntent(intent, metrics.OutcomeInvalid)
	}
}

func (e Engine) mirror(ctx context.Context, item domain.Item) {
	if e.Mirror == nil {
		return
	}
	if err := e.Mirror.Save(ctx, item); err != nil {
		metrics.RecordMirrorError()
		e.log().WithError(err).WithField("item_id", item.ID).Warn("snapshot mirror failed")
	}
}

// PostMessage writes a free-form message to the global feed.
func (e Engine) PostMessage(ctx context.Context, role domain.Role, text string) (domain.ChatMessage, error) {
	if !role.Valid() {
		return domain.ChatMessage{}, &domain.ValidationError{Field: "role", Reason: "must be BAND or ENGINEER"}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatMessage{}, &domain.ValidationError{Field: "message", Reason: "must not be blank"}
	}
	author := e.negotiator().Events.Author(role)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	defer tx.Rollback()
	msg, err := e.writer().AppendChat(ctx, tx, role, author, text)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("append chat: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.ChatMessage{}, err
	}
	metrics.RecordFeedMessage(domain.FeedKindChat)
	e.log().WithFields(logrus.Fields{"role": role, "author": author}).Info("chat message posted")
	return msg, nil
}

func (e Engine) GetItem(ctx context.Context, id string) (domain.Item, error) {
	return e.Repo.GetItem(ctx, id)
}

func (e Engine) ListItems(ctx context.Context, f repo.ItemFilters) ([]domain.Item, error) {
	if f.Category != "" && !f.Category.Valid() {
		return nil, &domain.ValidationError{Field: "category", Reason: "is not recognized"}
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Reason: "is not recognized"}
	}
	return e.Repo.ListItems(ctx, f)
}

// View projects one item for the acting role.
func (e Engine) View(ctx context.Context, id string, role domain.Role) (projection.View, error) {
	if !role.Valid() {
		return projection.View{}, &domain.ValidationError{Field: "role", Reason: "must be BAND or ENGINEER"}
	}
	item, err := e.Repo.GetItem(ctx, id)
	if err != nil {
		return projection.View{}, err
	}
	return projection.BuildView(item, role), nil
}

func (e Engine) Summary(ctx context.Context) (rollup.Summary, error) {
	items, err := e.Repo.ListItems(ctx, repo.ItemFilters{})
	if err != nil {
		return rollup.Summary{}, err
	}
	return rollup.Summarize(items), nil
}

// ShowSpec renders the shareable show document from the current brief.
func (e Engine) ShowSpec(ctx context.Context) (rollup.ShowSpec, error) {
	items, err := e.Repo.ListItems(ctx, repo.ItemFilters{})
	if err != nil {
		return rollup.ShowSpec{}, err
	}
	var meta rollup.ShowMeta
	if e.Config != nil {
		meta = rollup.ShowMeta{Artist: e.Config.Show.Artist, Event: e.Config.Show.Event}
	}
	return rollup.BuildShowSpec(meta, items), nil
}

func (e Engine) Feed(ctx context.Context, f repo.FeedFilters) ([]domain.ChatMessage, error) {
	msgs, err := e.Repo.ListFeed(ctx, f)
	if errors.Is(err, repo.ErrUnknownFeedKind) {
		return nil, &domain.ValidationError{Field: "kind", Reason: "must be ALL, CHAT or UPDATES"}
	}
	return msgs, err
}
