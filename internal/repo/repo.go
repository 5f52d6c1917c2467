package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"techrider/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownFeedKind = errors.New("unknown feed filter")
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const itemColumns = `id,category,title,description,provider,status,COALESCE(requested_by,''),COALESCE(assigned_to,''),created_by,COALESCE(pending_confirmation_from,''),specs_json,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (domain.Item, error) {
	var (
		it      domain.Item
		specs   string
		pending string
	)
	err := row.Scan(&it.ID, &it.Category, &it.Title, &it.Description, &it.Provider, &it.Status,
		&it.RequestedBy, &it.AssignedTo, &it.CreatedBy, &pending, &specs, &it.CreatedAt, &it.UpdatedAt)
	if err == sql.ErrNoRows {
		return it, ErrNotFound
	}
	if err != nil {
		return it, err
	}
	it.PendingConfirmationFrom = domain.Role(pending)
	if err := json.Unmarshal([]byte(specs), &it.Specs); err != nil {
		return it, fmt.Errorf("decode specs of %s: %w", it.ID, err)
	}
	it.Comments = []domain.Event{}
	return it, nil
}

// InsertItem stores a new item at the top of the brief.
func (r Repo) InsertItem(ctx context.Context, item domain.Item) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.InsertItemTx(ctx, tx, item); err != nil {
		return err
	}
	return tx.Commit()
}

func (r Repo) InsertItemTx(ctx context.Context, tx *sql.Tx, item domain.Item) error {
	var top sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MIN(position) FROM items`).Scan(&top); err != nil {
		return fmt.Errorf("read item position: %w", err)
	}
	pos := int64(0)
	if top.Valid {
		pos = top.Int64 - 1
	}
	return insertItemAt(ctx, tx, item, pos)
}

// AppendItemTx stores item at the bottom of the brief. Used for seeding, which
// keeps the dataset order.
func (r Repo) AppendItemTx(ctx context.Context, tx *sql.Tx, item domain.Item) error {
	var bottom sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(position) FROM items`).Scan(&bottom); err != nil {
		return fmt.Errorf("read item position: %w", err)
	}
	pos := int64(0)
	if bottom.Valid {
		pos = bottom.Int64 + 1
	}
	return insertItemAt(ctx, tx, item, pos)
}

func insertItemAt(ctx context.Context, tx *sql.Tx, item domain.Item, pos int64) error {
	specs, err := json.Marshal(item.Specs)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO items(id,position,category,title,description,provider,status,requested_by,assigned_to,created_by,pending_confirmation_from,specs_json,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		item.ID, pos, string(item.Category), item.Title, item.Description, string(item.Provider), string(item.Status),
		nullable(item.RequestedBy), nullable(item.AssignedTo), string(item.CreatedBy), nullable(string(item.PendingConfirmationFrom)),
		string(specs), item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert item %s: %w", item.ID, err)
	}
	return writeLog(ctx, tx, item.ID, item.Comments)
}

// SaveItemTx rewrites the item row and its full event log.
func (r Repo) SaveItemTx(ctx context.Context, tx *sql.Tx, item domain.Item) error {
	specs, err := json.Marshal(item.Specs)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE items SET category=?,title=?,description=?,provider=?,status=?,requested_by=?,assigned_to=?,pending_confirmation_from=?,specs_json=?,updated_at=? WHERE id=?`,
		string(item.Category), item.Title, item.Description, string(item.Provider), string(item.Status),
		nullable(item.RequestedBy), nullable(item.AssignedTo), nullable(string(item.PendingConfirmationFrom)),
		string(specs), item.UpdatedAt, item.ID)
	if err != nil {
		return fmt.Errorf("update item %s: %w", item.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM item_events WHERE item_id=?`, item.ID); err != nil {
		return fmt.Errorf("clear log of %s: %w", item.ID, err)
	}
	return writeLog(ctx, tx, item.ID, item.Comments)
}

func (r Repo) SaveItem(ctx context.Context, item domain.Item) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.SaveItemTx(ctx, tx, item); err != nil {
		return err
	}
	return tx.Commit()
}

func writeLog(ctx context.Context, tx *sql.Tx, itemID string, log []domain.Event) error {
	for seq, ev := range log {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", ev.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO item_events(item_id,seq,event_id,type,ts,payload_json) VALUES (?,?,?,?,?,?)`,
			itemID, seq, ev.ID, string(ev.Type), ev.Timestamp, string(payload)); err != nil {
			return fmt.Errorf("insert event %s: %w", ev.ID, err)
		}
	}
	return nil
}

func (r Repo) GetItem(ctx context.Context, id string) (domain.Item, error) {
	return getItem(ctx, r.DB, id)
}

func (r Repo) GetItemTx(ctx context.Context, tx *sql.Tx, id string) (domain.Item, error) {
	return getItem(ctx, tx, id)
}

func getItem(ctx context.Context, q queryer, id string) (domain.Item, error) {
	it, err := scanItem(q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id=?`, id))
	if err != nil {
		return it, err
	}
	logs, err := loadLogs(ctx, q, `WHERE item_id=?`, id)
	if err != nil {
		return it, err
	}
	if log, ok := logs[id]; ok {
		it.Comments = log
	}
	return it, nil
}

func loadLogs(ctx context.Context, q queryer, where string, args ...any) (map[string][]domain.Event, error) {
	rows, err := q.QueryContext(ctx, `SELECT item_id,payload_json FROM item_events `+where+` ORDER BY item_id, seq`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string][]domain.Event{}
	for rows.Next() {
		var itemID, payload string
		if err := rows.Scan(&itemID, &payload); err != nil {
			return nil, err
		}
		var ev domain.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decode event of %s: %w", itemID, err)
		}
		out[itemID] = append(out[itemID], ev)
	}
	return out, rows.Err()
}

type ItemFilters struct {
	Category domain.Category
	Status   domain.Status
}

func (f ItemFilters) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, string(f.Category))
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, string(f.Status))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// ListItems returns items in brief order with their logs.
func (r Repo) ListItems(ctx context.Context, f ItemFilters) ([]domain.Item, error) {
	where, args := f.where()
	rows, err := r.DB.QueryContext(ctx, `SELECT `+itemColumns+` FROM items `+where+` ORDER BY position, id`, args...)
	if err != nil {
		return nil, err
	}
	var res []domain.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, it)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return res, nil
	}
	logs, err := loadLogs(ctx, r.DB, `WHERE item_id IN (SELECT id FROM items `+where+`)`, args...)
	if err != nil {
		return nil, err
	}
	for i := range res {
		if log, ok := logs[res[i].ID]; ok {
			res[i].Comments = log
		}
	}
	return res, nil
}

func (r Repo) CountItems(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n)
	return n, err
}

func (r Repo) CountItemsTx(ctx context.Context, tx *sql.Tx) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n)
	return n, err
}

const (
	FeedAll     = "ALL"
	FeedChat    = "CHAT"
	FeedUpdates = "UPDATES"
)

type FeedFilters struct {
	Kind  string
	Limit int
}

// ListFeed returns the newest feed rows in chronological order.
func (r Repo) ListFeed(ctx context.Context, f FeedFilters) ([]domain.ChatMessage, error) {
	var (
		where string
		args  []any
	)
	switch strings.ToUpper(f.Kind) {
	case "", FeedAll:
	case FeedChat:
		where, args = "WHERE kind=?", []any{domain.FeedKindChat}
	case FeedUpdates:
		where, args = "WHERE kind=?", []any{domain.FeedKindUpdate}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFeedKind, f.Kind)
	}
	query := `SELECT id,ts,kind,role,author,text,COALESCE(item_id,''),COALESCE(item_title,''),COALESCE(item_category,''),COALESCE(update_type,''),COALESCE(snapshot_json,'') FROM feed ` + where + ` ORDER BY id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.TS, &m.Kind, &m.Role, &m.Author, &m.Text, &m.ItemID, &m.ItemTitle, &m.ItemCategory, &m.UpdateType, &m.Snapshot); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
