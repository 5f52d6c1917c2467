package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"techrider/internal/domain"
)

// DefaultNames are the author display names used when a Builder has none.
var DefaultNames = map[domain.Role]string{
	domain.RoleBand:     "Band",
	domain.RoleEngineer: "Engineer",
}

// Builder constructs log events. It never touches an item; callers append
// the result with Append or AppendOrCollapse.
type Builder struct {
	Names map[domain.Role]string
	Now   func() time.Time
	NewID func() string
}

// Timestamp is the builder clock formatted as RFC 3339 UTC.
func (b Builder) Timestamp() string {
	if b.Now == nil {
		return time.Now().UTC().Format(time.RFC3339)
	}
	return b.Now().UTC().Format(time.RFC3339)
}

func (b Builder) id() string {
	if b.NewID == nil {
		return uuid.NewString()
	}
	return b.NewID()
}

// Author returns the display name for role.
func (b Builder) Author(role domain.Role) string {
	if name, ok := b.Names[role]; ok && name != "" {
		return name
	}
	if name, ok := DefaultNames[role]; ok {
		return name
	}
	return string(role)
}

func (b Builder) base(typ domain.EventType, role domain.Role, text string) domain.Event {
	return domain.Event{
		ID:        b.id(),
		Type:      typ,
		Author:    b.Author(role),
		Role:      role,
		Text:      text,
		Timestamp: b.Timestamp(),
	}
}

func (b Builder) Text(role domain.Role, text string) domain.Event {
	return b.base(domain.EventText, role, text)
}

// StatusChange records from -> to. waitingFor is empty when no confirmation is outstanding.
func (b Builder) StatusChange(role domain.Role, from, to domain.Status, waitingFor domain.Role) domain.Event {
	text := fmt.Sprintf("changed status to %s", to)
	if to == domain.StatusReopened {
		text = "reopened for discussion"
	}
	ev := b.base(domain.EventStatusChange, role, text)
	ev.PreviousStatus = from
	ev.NewStatus = to
	ev.WaitingFor = waitingFor
	return ev
}

func (b Builder) ProviderChange(role domain.Role, from, to domain.Provider) domain.Event {
	ev := b.base(domain.EventProviderChange, role, providerText(to))
	ev.PreviousProvider = from
	ev.NewProvider = to
	return ev
}

func providerText(p domain.Provider) string {
	return fmt.Sprintf("changed provider to %s", p)
}

// Revision diffs patch against the item's live fields and builds an
// ITEM_REVISION event. Only changed fields land in previous/new data.
func (b Builder) Revision(item domain.Item, role domain.Role, patch domain.FieldSet) (domain.Event, error) {
	prev, next, changes := Diff(item, patch)
	if len(changes) == 0 {
		return domain.Event{}, &domain.NoOpError{ItemID: item.ID}
	}
	ev := b.base(domain.EventItemRevision, role, "updated the brief:\n"+strings.Join(changes, "\n"))
	ev.PreviousData = prev
	ev.NewData = next
	pending := patch
	ev.PendingUpdates = &pending
	ev.WaitingFor = role.Opposite()
	return ev, nil
}

// Diff compares patch with item. It returns the old and new values of every
// changed field plus one human-readable line per change.
func Diff(item domain.Item, patch domain.FieldSet) (*domain.FieldSet, *domain.FieldSet, []string) {
	prev := &domain.FieldSet{}
	next := &domain.FieldSet{}
	var changes []string

	if patch.Category != nil && *patch.Category != item.Category {
		old := item.Category
		prev.Category, next.Category = &old, ptr(*patch.Category)
		changes = append(changes, fmt.Sprintf("Category: %q -> %q", old, *patch.Category))
	}
	if patch.Title != nil && *patch.Title != item.Title {
		prev.Title, next.Title = ptr(item.Title), ptr(*patch.Title)
		changes = append(changes, fmt.Sprintf("Title: %q -> %q", item.Title, *patch.Title))
	}
	if patch.Description != nil && *patch.Description != item.Description {
		prev.Description, next.Description = ptr(item.Description), ptr(*patch.Description)
		changes = append(changes, "Description updated")
	}
	if patch.Provider != nil && *patch.Provider != item.Provider {
		old := item.Provider
		prev.Provider, next.Provider = &old, ptr(*patch.Provider)
		changes = append(changes, fmt.Sprintf("Provider: %q -> %q", old, *patch.Provider))
	}
	if s := patch.Specs; s != nil {
		ps, ns := &domain.SpecFields{}, &domain.SpecFields{}
		if s.Make != nil && *s.Make != item.Specs.Make {
			ps.Make, ns.Make = ptr(item.Specs.Make), ptr(*s.Make)
		}
		if s.Model != nil && *s.Model != item.Specs.Model {
			ps.Model, ns.Model = ptr(item.Specs.Model), ptr(*s.Model)
		}
		if s.Quantity != nil && *s.Quantity != item.Specs.Quantity {
			ps.Quantity, ns.Quantity = ptr(item.Specs.Quantity), ptr(*s.Quantity)
		}
		if s.Notes != nil && *s.Notes != item.Specs.Notes {
			ps.Notes, ns.Notes = ptr(item.Specs.Notes), ptr(*s.Notes)
		}
		if !ns.IsEmpty() {
			prev.Specs, next.Specs = ps, ns
			changes = append(changes, "Specs updated")
		}
	}
	return prev, next, changes
}

func ptr[T any](v T) *T { return &v }

// Append returns a new log with ev at the tail. A timestamp earlier than the
// current tail is raised to the tail's.
func Append(log []domain.Event, ev domain.Event) []domain.Event {
	out := make([]domain.Event, len(log), len(log)+1)
	copy(out, log)
	if len(out) > 0 {
		ev.Timestamp = clamp(out[len(out)-1].Timestamp, ev.Timestamp)
	}
	return append(out, ev)
}

// AppendOrCollapse appends candidate, folding consecutive provider changes
// into a single trailing record. Reverting to the provider that preceded the
// trailing record removes it instead, and repeating the trailing record's
// provider leaves the log as is.
func AppendOrCollapse(log []domain.Event, candidate domain.Event) []domain.Event {
	if candidate.Type != domain.EventProviderChange || len(log) == 0 {
		return Append(log, candidate)
	}
	tail := log[len(log)-1]
	if tail.Type != domain.EventProviderChange {
		return Append(log, candidate)
	}
	out := make([]domain.Event, len(log))
	copy(out, log)
	if tail.NewProvider == candidate.NewProvider {
		return out
	}
	if tail.PreviousProvider == candidate.NewProvider {
		return out[:len(out)-1]
	}
	tail.NewProvider = candidate.NewProvider
	tail.Text = providerText(candidate.NewProvider)
	tail.Timestamp = clamp(tail.Timestamp, candidate.Timestamp)
	out[len(out)-1] = tail
	return out
}

func clamp(floor, ts string) string {
	f, err := time.Parse(time.RFC3339Nano, floor)
	if err != nil {
		return ts
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil || t.Before(f) {
		return floor
	}
	return ts
}
