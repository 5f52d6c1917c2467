package negotiate

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"techrider/internal/domain"
	"techrider/internal/events"
)

var validate = validator.New()

// Negotiator runs intents against items. It holds no state besides the
// event builder, so the zero value is usable.
type Negotiator struct {
	Events events.Builder
	NewID  func() string
}

// Result is the outcome of an intent. Applied is false for a guarded no-op,
// in which case Item equals the input and Events is empty.
type Result struct {
	Item    domain.Item
	Events  []domain.Event
	Applied bool
}

// Draft carries the fields of a new item.
type Draft struct {
	Category    domain.Category `json:"category" validate:"required,oneof=MONITORING MICROPHONES PA BACKLINE LIGHTING STAGE POWER HOSPITALITY"`
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description" validate:"required"`
	Provider    domain.Provider `json:"provider,omitempty" validate:"omitempty,oneof=BAND VENUE ENGINEER"`
	Specs       domain.Specs    `json:"specs"`
	RequestedBy string          `json:"requested_by,omitempty"`
	AssignedTo  string          `json:"assigned_to,omitempty"`
}

func (d *Draft) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.RequestedBy = strings.TrimSpace(d.RequestedBy)
	d.AssignedTo = strings.TrimSpace(d.AssignedTo)
}

const unassigned = "Unassigned"

func (n Negotiator) newID() string {
	if n.NewID != nil {
		return n.NewID()
	}
	return uuid.NewString()
}

// CreateItem builds a fresh PENDING item awaiting the other party.
func (n Negotiator) CreateItem(draft Draft, actor domain.Role) (domain.Item, error) {
	if err := checkRole(actor); err != nil {
		return domain.Item{}, err
	}
	draft.Normalize()
	if err := validate.Struct(draft); err != nil {
		return domain.Item{}, toValidationError(err)
	}
	if draft.Provider == "" {
		draft.Provider = domain.DefaultProviderFor(actor)
	}
	if draft.RequestedBy == "" {
		draft.RequestedBy = n.Events.Author(actor)
	}
	if draft.AssignedTo == "" {
		draft.AssignedTo = unassigned
	}
	now := n.Events.Timestamp()
	return domain.Item{
		ID:                      n.newID(),
		Category:                draft.Category,
		Title:                   draft.Title,
		Description:             draft.Description,
		Specs:                   draft.Specs,
		Provider:                draft.Provider,
		Status:                  domain.StatusPending,
		RequestedBy:             draft.RequestedBy,
		AssignedTo:              draft.AssignedTo,
		CreatedBy:               actor,
		PendingConfirmationFrom: actor.Opposite(),
		Comments:                []domain.Event{},
		CreatedAt:               now,
		UpdatedAt:               now,
	}, nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := "is required"
		if fe.Tag() == "oneof" {
			reason = "is not recognized"
		}
		return &domain.ValidationError{Field: strings.ToLower(fe.Field()), Reason: reason}
	}
	return &domain.ValidationError{Reason: err.Error()}
}

func checkRole(role domain.Role) error {
	if !role.Valid() {
		return &domain.ValidationError{Field: "role", Reason: "must be BAND or ENGINEER"}
	}
	return nil
}

func checkPatch(patch domain.FieldSet) error {
	if patch.Category != nil && !patch.Category.Valid() {
		return &domain.ValidationError{Field: "category", Reason: "is not recognized"}
	}
	if patch.Provider != nil && !patch.Provider.Valid() {
		return &domain.ValidationError{Field: "provider", Reason: "is not recognized"}
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return &domain.ValidationError{Field: "title", Reason: "must not be blank"}
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		return &domain.ValidationError{Field: "description", Reason: "must not be blank"}
	}
	return nil
}

func (n Negotiator) touch(item *domain.Item) {
	item.UpdatedAt = n.Events.Timestamp()
}

// ProposeRevision records a proposed change to the item's descriptive fields.
// Live fields stay as they are until the other party agrees.
func (n Negotiator) ProposeRevision(item domain.Item, role domain.Role, patch domain.FieldSet) (Result, error) {
	if err := checkRole(role); err != nil {
		return Result{}, err
	}
	if err := checkPatch(patch); err != nil {
		return Result{}, err
	}
	ev, err := n.Events.Revision(item, role, patch)
	if err != nil {
		return Result{}, err
	}
	out := item.Clone()
	out.Comments = events.Append(out.Comments, ev)
	out.Status = domain.StatusPending
	out.PendingConfirmationFrom = role.Opposite()
	n.touch(&out)
	return Result{Item: out, Events: []domain.Event{tail(out.Comments)}, Applied: true}, nil
}

// UpdateProvider switches the provider immediately and moves the item back
// into discussion. Consecutive provider changes share one log record.
func (n Negotiator) UpdateProvider(item domain.Item, role domain.Role, provider domain.Provider) (Result, error) {
	if err := checkRole(role); err != nil {
		return Result{}, err
	}
	if !provider.Valid() {
		return Result{}, &domain.ValidationError{Field: "provider", Reason: "is not recognized"}
	}
	out := item.Clone()
	var emitted []domain.Event
	trailing := len(out.Comments) > 0 && tail(out.Comments).Type == domain.EventProviderChange
	if provider != item.Provider || (trailing && tail(out.Comments).NewProvider != provider) {
		before := len(out.Comments)
		out.Comments = events.AppendOrCollapse(out.Comments, n.Events.ProviderChange(role, item.Provider, provider))
		if len(out.Comments) >= before && len(out.Comments) > 0 {
			emitted = []domain.Event{tail(out.Comments)}
		}
	}
	out.Provider = provider
	out.Status = domain.StatusDiscussing
	out.PendingConfirmationFrom = ""
	n.touch(&out)
	return Result{Item: out, Events: emitted, Applied: true}, nil
}

// UpdateStatus requests a status for the item on behalf of role. Requests the
// transition table does not allow return the item unchanged with Applied false.
func (n Negotiator) UpdateStatus(item domain.Item, role domain.Role, requested domain.Status) (Result, error) {
	if err := checkRole(role); err != nil {
		return Result{}, err
	}
	if !requested.Valid() {
		return Result{}, &domain.ValidationError{Field: "status", Reason: "is not recognized"}
	}
	outcome := Decide(item, role, requested)
	if !outcome.Allowed {
		return Result{Item: item.Clone()}, nil
	}
	out := item.Clone()
	if outcome.ApplyRevision {
		if rev, ok := OpenRevision(out.Comments); ok {
			rev.PendingUpdates.ApplyTo(&out)
		}
	}
	ev := n.Events.StatusChange(role, item.Status, requested, outcome.WaitingFor)
	out.Comments = events.Append(out.Comments, ev)
	out.Status = outcome.Status
	out.PendingConfirmationFrom = outcome.PendingConfirmationFrom
	n.touch(&out)
	return Result{Item: out, Events: []domain.Event{tail(out.Comments)}, Applied: true}, nil
}

// OpenRevision returns the revision awaiting acceptance: the latest
// ITEM_REVISION with pending updates that only chat messages have followed.
func OpenRevision(log []domain.Event) (domain.Event, bool) {
	for i := len(log) - 1; i >= 0; i-- {
		switch log[i].Type {
		case domain.EventText:
			continue
		case domain.EventItemRevision:
			if log[i].PendingUpdates != nil {
				return log[i], true
			}
		}
		return domain.Event{}, false
	}
	return domain.Event{}, false
}

// Reopen posts message and then requests REOPENED. The message is kept even
// when the status request is a no-op.
func (n Negotiator) Reopen(item domain.Item, role domain.Role, message string) (Result, error) {
	res, err := n.Comment(item, role, message)
	if err != nil {
		return Result{}, err
	}
	status, err := n.UpdateStatus(res.Item, role, domain.StatusReopened)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Item:    status.Item,
		Events:  append(res.Events, status.Events...),
		Applied: status.Applied,
	}, nil
}

// Comment appends a chat message to the item's log.
func (n Negotiator) Comment(item domain.Item, role domain.Role, text string) (Result, error) {
	if err := checkRole(role); err != nil {
		return Result{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, &domain.ValidationError{Field: "message", Reason: "must not be blank"}
	}
	out := item.Clone()
	out.Comments = events.Append(out.Comments, n.Events.Text(role, text))
	n.touch(&out)
	return Result{Item: out, Events: []domain.Event{tail(out.Comments)}, Applied: true}, nil
}

func tail(log []domain.Event) domain.Event {
	return log[len(log)-1]
}
