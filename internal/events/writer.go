package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"techrider/internal/domain"
)

// Writer appends rows to the brief-wide feed inside a caller-owned transaction.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// AppendChat records a free-form message that is not tied to an item.
func (w Writer) AppendChat(ctx context.Context, tx *sql.Tx, role domain.Role, author, text string) (domain.ChatMessage, error) {
	if w.Now == nil {
		w.Now = time.Now
	}
	msg := domain.ChatMessage{
		TS:     w.Now().UTC().Format(time.RFC3339),
		Kind:   domain.FeedKindChat,
		Role:   role,
		Author: author,
		Text:   text,
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO feed(ts,kind,role,author,text) VALUES (?,?,?,?,?)`,
		msg.TS, msg.Kind, string(role), author, text)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if msg.ID, err = res.LastInsertId(); err != nil {
		return domain.ChatMessage{}, err
	}
	return msg, nil
}

// AppendUpdate mirrors a system event of item into the feed together with a
// snapshot of what changed.
func (w Writer) AppendUpdate(ctx context.Context, tx *sql.Tx, item domain.Item, ev domain.Event) error {
	data, err := json.Marshal(UpdatePayload(ev))
	if err != nil {
		return fmt.Errorf("marshal feed payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO feed(ts,kind,role,author,text,item_id,item_title,item_category,update_type,snapshot_json) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		ev.Timestamp, domain.FeedKindUpdate, string(ev.Role), ev.Author, ev.Text,
		item.ID, item.Title, string(item.Category), string(ev.Type), string(data))
	return err
}

// UpdatePayload is the snapshot stored with a feed update.
func UpdatePayload(ev domain.Event) EventPayload {
	payload := EventPayload{}
	switch ev.Type {
	case domain.EventStatusChange:
		payload["previous_status"] = ev.PreviousStatus
		payload["new_status"] = ev.NewStatus
		if ev.WaitingFor != "" {
			payload["waiting_for"] = ev.WaitingFor
		}
	case domain.EventProviderChange:
		payload["previous_provider"] = ev.PreviousProvider
		payload["new_provider"] = ev.NewProvider
	case domain.EventItemRevision:
		lines := strings.Split(ev.Text, "\n")
		if len(lines) > 1 {
			payload["changes"] = lines[1:]
		}
		payload["waiting_for"] = ev.WaitingFor
	}
	return payload
}
