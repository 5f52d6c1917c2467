package domain

// Role is one of the two negotiating parties.
type Role string

const (
	RoleBand     Role = "BAND"
	RoleEngineer Role = "ENGINEER"
)

var Roles = []Role{RoleBand, RoleEngineer}

// Opposite returns the other negotiating party. Unknown roles map to themselves.
func (r Role) Opposite() Role {
	switch r {
	case RoleBand:
		return RoleEngineer
	case RoleEngineer:
		return RoleBand
	}
	return r
}

func (r Role) Valid() bool {
	return r == RoleBand || r == RoleEngineer
}

// Provider is whoever supplies an item. VENUE has no negotiating standing.
type Provider string

const (
	ProviderBand     Provider = "BAND"
	ProviderVenue    Provider = "VENUE"
	ProviderEngineer Provider = "ENGINEER"
)

var Providers = []Provider{ProviderBand, ProviderVenue, ProviderEngineer}

func (p Provider) Valid() bool {
	switch p {
	case ProviderBand, ProviderVenue, ProviderEngineer:
		return true
	}
	return false
}

// DefaultProviderFor is the side an item is supplied by when its creator does not say.
func DefaultProviderFor(r Role) Provider {
	if r == RoleEngineer {
		return ProviderEngineer
	}
	return ProviderBand
}

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusDiscussing Status = "DISCUSSING"
	StatusAgreed     Status = "AGREED"
	StatusRejected   Status = "REJECTED"
	StatusReopened   Status = "REOPENED"
)

var Statuses = []Status{StatusPending, StatusDiscussing, StatusAgreed, StatusReopened, StatusRejected}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusDiscussing, StatusAgreed, StatusRejected, StatusReopened:
		return true
	}
	return false
}

type Category string

const (
	CategoryMonitoring  Category = "MONITORING"
	CategoryMicrophones Category = "MICROPHONES"
	CategoryPA          Category = "PA"
	CategoryBackline    Category = "BACKLINE"
	CategoryLighting    Category = "LIGHTING"
	CategoryStage       Category = "STAGE"
	CategoryPower       Category = "POWER"
	CategoryHospitality Category = "HOSPITALITY"
)

// Categories is the canonical display order.
var Categories = []Category{
	CategoryMonitoring,
	CategoryMicrophones,
	CategoryPA,
	CategoryBackline,
	CategoryLighting,
	CategoryStage,
	CategoryPower,
	CategoryHospitality,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Specs struct {
	Make     string `json:"make,omitempty"`
	Model    string `json:"model,omitempty"`
	Quantity int    `json:"quantity,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// Item is a single negotiable line of the brief. Scalar fields cache the last
// accepted values; Comments is the append-only history.
type Item struct {
	ID                      string   `json:"id"`
	Category                Category `json:"category"`
	Title                   string   `json:"title"`
	Description             string   `json:"description"`
	Specs                   Specs    `json:"specs"`
	Provider                Provider `json:"provider"`
	Status                  Status   `json:"status"`
	RequestedBy             string   `json:"requested_by,omitempty"`
	AssignedTo              string   `json:"assigned_to,omitempty"`
	CreatedBy               Role     `json:"created_by"`
	PendingConfirmationFrom Role     `json:"pending_confirmation_from,omitempty"`
	Comments                []Event  `json:"comments"`
	CreatedAt               string   `json:"created_at" format:"date-time"`
	UpdatedAt               string   `json:"updated_at" format:"date-time"`
}

// Clone returns a copy whose log can be modified without touching i.
func (i Item) Clone() Item {
	out := i
	out.Comments = make([]Event, len(i.Comments))
	copy(out.Comments, i.Comments)
	return out
}

type EventType string

const (
	EventText           EventType = "TEXT"
	EventStatusChange   EventType = "STATUS_CHANGE"
	EventProviderChange EventType = "PROVIDER_CHANGE"
	EventItemRevision   EventType = "ITEM_REVISION"
)

// Event is one immutable entry of an item's discussion log.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Author    string    `json:"author"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp string    `json:"timestamp" format:"date-time"`

	PreviousStatus Status `json:"previous_status,omitempty"`
	NewStatus      Status `json:"new_status,omitempty"`
	WaitingFor     Role   `json:"waiting_for,omitempty"`

	PreviousProvider Provider `json:"previous_provider,omitempty"`
	NewProvider      Provider `json:"new_provider,omitempty"`

	PreviousData   *FieldSet `json:"previous_data,omitempty"`
	NewData        *FieldSet `json:"new_data,omitempty"`
	PendingUpdates *FieldSet `json:"pending_updates,omitempty"`
}

// FieldSet is a partial item record. Nil fields are absent.
type FieldSet struct {
	Category    *Category   `json:"category,omitempty"`
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Provider    *Provider   `json:"provider,omitempty"`
	Specs       *SpecFields `json:"specs,omitempty"`
}

type SpecFields struct {
	Make     *string `json:"make,omitempty"`
	Model    *string `json:"model,omitempty"`
	Quantity *int    `json:"quantity,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

func (f *FieldSet) IsEmpty() bool {
	if f == nil {
		return true
	}
	return f.Category == nil && f.Title == nil && f.Description == nil && f.Provider == nil && f.Specs.IsEmpty()
}

func (s *SpecFields) IsEmpty() bool {
	return s == nil || (s.Make == nil && s.Model == nil && s.Quantity == nil && s.Notes == nil)
}

// ApplyTo writes every present field onto item.
func (f *FieldSet) ApplyTo(item *Item) {
	if f == nil || item == nil {
		return
	}
	if f.Category != nil {
		item.Category = *f.Category
	}
	if f.Title != nil {
		item.Title = *f.Title
	}
	if f.Description != nil {
		item.Description = *f.Description
	}
	if f.Provider != nil {
		item.Provider = *f.Provider
	}
	if s := f.Specs; s != nil {
		if s.Make != nil {
			item.Specs.Make = *s.Make
		}
		if s.Model != nil {
			item.Specs.Model = *s.Model
		}
		if s.Quantity != nil {
			item.Specs.Quantity = *s.Quantity
		}
		if s.Notes != nil {
			item.Specs.Notes = *s.Notes
		}
	}
}

// ChatMessage is an entry of the brief-wide feed: either a free chat line or a
// system update mirrored from an item's log.
type ChatMessage struct {
	ID           int64     `json:"id"`
	TS           string    `json:"ts" format:"date-time"`
	Kind         string    `json:"kind" enum:"chat,update"`
	Role         Role      `json:"role"`
	Author       string    `json:"author"`
	Text         string    `json:"text"`
	ItemID       string    `json:"item_id,omitempty"`
	ItemTitle    string    `json:"item_title,omitempty"`
	ItemCategory Category  `json:"item_category,omitempty"`
	UpdateType   EventType `json:"update_type,omitempty"`
	Snapshot     string    `json:"snapshot_json,omitempty"`
}

const (
	FeedKindChat   = "chat"
	FeedKindUpdate = "update"
)
