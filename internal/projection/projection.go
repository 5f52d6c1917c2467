package projection

import (
	"strconv"

	"techrider/internal/domain"
	"techrider/internal/negotiate"
)

// LatestRevision returns the last ITEM_REVISION in the item's log.
func LatestRevision(item domain.Item) (domain.Event, bool) {
	idx := latestRevisionIndex(item.Comments)
	if idx < 0 {
		return domain.Event{}, false
	}
	return item.Comments[idx], true
}

func latestRevisionIndex(log []domain.Event) int {
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Type == domain.EventItemRevision {
			return i
		}
	}
	return -1
}

// AgreementsSinceRevision lists the AGREED status changes of the current
// negotiation round, i.e. after the latest revision or from the start of the log.
func AgreementsSinceRevision(item domain.Item) []domain.Event {
	var out []domain.Event
	for _, ev := range item.Comments[latestRevisionIndex(item.Comments)+1:] {
		if isAgreement(ev) {
			out = append(out, ev)
		}
	}
	return out
}

func isAgreement(ev domain.Event) bool {
	return ev.Type == domain.EventStatusChange && ev.NewStatus == domain.StatusAgreed
}

// AgreedRoles is the set of roles that have confirmed in the current round,
// in order of first confirmation.
func AgreedRoles(item domain.Item) []domain.Role {
	var roles []domain.Role
	seen := map[domain.Role]bool{}
	for _, ev := range AgreementsSinceRevision(item) {
		if !seen[ev.Role] {
			seen[ev.Role] = true
			roles = append(roles, ev.Role)
		}
	}
	return roles
}

// IsFullyAgreed reports whether the last revision has been settled, in which
// case views show committed values instead of a diff.
func IsFullyAgreed(item domain.Item) bool {
	if item.Status != domain.StatusAgreed && item.Status != domain.StatusReopened {
		return false
	}
	_, ok := LatestRevision(item)
	return ok
}

type Field string

const (
	FieldProvider    Field = "provider"
	FieldCategory    Field = "category"
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldMake        Field = "make"
	FieldModel       Field = "model"
	FieldQuantity    Field = "quantity"
	FieldNotes       Field = "notes"
)

// Fields is the display order of diffable fields.
var Fields = []Field{FieldProvider, FieldCategory, FieldTitle, FieldDescription, FieldMake, FieldModel, FieldQuantity, FieldNotes}

type FieldDiff struct {
	Field Field  `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// PendingFieldDiff returns the proposed old/new pair for field, or nil when
// only the committed value should be shown.
func PendingFieldDiff(item domain.Item, field Field) *FieldDiff {
	if IsFullyAgreed(item) {
		return nil
	}
	rev, ok := LatestRevision(item)
	if !ok {
		return nil
	}
	old, ok := fieldValue(rev.PreviousData, field)
	if !ok {
		return nil
	}
	next, _ := fieldValue(rev.NewData, field)
	return &FieldDiff{Field: field, Old: old, New: next}
}

// PendingDiffs returns every non-nil PendingFieldDiff in display order.
func PendingDiffs(item domain.Item) []FieldDiff {
	var out []FieldDiff
	for _, f := range Fields {
		if d := PendingFieldDiff(item, f); d != nil {
			out = append(out, *d)
		}
	}
	return out
}

func fieldValue(fs *domain.FieldSet, field Field) (string, bool) {
	if fs == nil {
		return "", false
	}
	switch field {
	case FieldProvider:
		if fs.Provider != nil {
			return string(*fs.Provider), true
		}
	case FieldCategory:
		if fs.Category != nil {
			return string(*fs.Category), true
		}
	case FieldTitle:
		if fs.Title != nil {
			return *fs.Title, true
		}
	case FieldDescription:
		if fs.Description != nil {
			return *fs.Description, true
		}
	}
	s := fs.Specs
	if s == nil {
		return "", false
	}
	switch field {
	case FieldMake:
		if s.Make != nil {
			return *s.Make, true
		}
	case FieldModel:
		if s.Model != nil {
			return *s.Model, true
		}
	case FieldQuantity:
		if s.Quantity != nil {
			return strconv.Itoa(*s.Quantity), true
		}
	case FieldNotes:
		if s.Notes != nil {
			return *s.Notes, true
		}
	}
	return "", false
}

// CanAgree reports whether an AGREED request by role would take effect.
func CanAgree(item domain.Item, role domain.Role) bool {
	return negotiate.Decide(item, role, domain.StatusAgreed).Allowed
}

func CanReopen(item domain.Item) bool {
	return item.Status == domain.StatusPending || item.Status == domain.StatusAgreed
}

// CanAcceptRevision reports whether an AGREED request by role would apply an
// open revision.
func CanAcceptRevision(item domain.Item, role domain.Role) bool {
	if item.Status != domain.StatusPending || role == "" || role != item.PendingConfirmationFrom {
		return false
	}
	_, ok := negotiate.OpenRevision(item.Comments)
	return ok
}

// Round is one revision and the agreements recorded against it. Revision is
// nil for agreements made before the first revision.
type Round struct {
	Revision   *domain.Event  `json:"revision,omitempty"`
	Agreements []domain.Event `json:"agreements"`
}

// Rounds splits the log into negotiation rounds. A round collects AGREED
// status changes until the next revision or any other status change.
func Rounds(item domain.Item) []Round {
	var rounds []Round
	cur := Round{}
	open := true
	for i := range item.Comments {
		ev := item.Comments[i]
		switch {
		case ev.Type == domain.EventItemRevision:
			if cur.Revision != nil || len(cur.Agreements) > 0 {
				rounds = append(rounds, cur)
			}
			cur = Round{Revision: &ev}
			open = true
		case isAgreement(ev):
			if open {
				cur.Agreements = append(cur.Agreements, ev)
			}
		case ev.Type == domain.EventStatusChange:
			open = false
		}
	}
	if cur.Revision != nil || len(cur.Agreements) > 0 {
		rounds = append(rounds, cur)
	}
	return rounds
}

// View is everything a detail screen needs for one role.
type View struct {
	Item              domain.Item   `json:"item"`
	Role              domain.Role   `json:"role"`
	LatestRevision    *domain.Event `json:"latest_revision,omitempty"`
	AgreedRoles       []domain.Role `json:"agreed_roles"`
	FullyAgreed       bool          `json:"fully_agreed"`
	PendingDiffs      []FieldDiff   `json:"pending_diffs"`
	CanAgree          bool          `json:"can_agree"`
	CanReopen         bool          `json:"can_reopen"`
	CanAcceptRevision bool          `json:"can_accept_revision"`
	Rounds            []Round       `json:"rounds"`
}

func BuildView(item domain.Item, role domain.Role) View {
	v := View{
		Item:              item,
		Role:              role,
		AgreedRoles:       AgreedRoles(item),
		FullyAgreed:       IsFullyAgreed(item),
		PendingDiffs:      PendingDiffs(item),
		CanAgree:          CanAgree(item, role),
		CanReopen:         CanReopen(item),
		CanAcceptRevision: CanAcceptRevision(item, role),
		Rounds:            Rounds(item),
	}
	if rev, ok := LatestRevision(item); ok {
		v.LatestRevision = &rev
	}
	return v
}
