package server

import (
	"techrider/internal/domain"
	"techrider/internal/negotiate"
)

// Request payloads

type SpecsRequest struct {
	Make     string `json:"make,omitempty"`
	Model    string `json:"model,omitempty"`
	Quantity int    `json:"quantity,omitempty" minimum:"0"`
	Notes    string `json:"notes,omitempty"`
}

type CreateItemRequest struct {
	Category    string        `json:"category" enum:"MONITORING,MICROPHONES,PA,BACKLINE,LIGHTING,STAGE,POWER,HOSPITALITY"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Provider    string        `json:"provider,omitempty" enum:"BAND,VENUE,ENGINEER"`
	Specs       *SpecsRequest `json:"specs,omitempty"`
	RequestedBy string        `json:"requested_by,omitempty"`
	AssignedTo  string        `json:"assigned_to,omitempty"`
}

func (r CreateItemRequest) Draft() negotiate.Draft {
	d := negotiate.Draft{
		Category:    domain.Category(r.Category),
		Title:       r.Title,
		Description: r.Description,
		Provider:    domain.Provider(r.Provider),
		RequestedBy: r.RequestedBy,
		AssignedTo:  r.AssignedTo,
	}
	if r.Specs != nil {
		d.Specs = domain.Specs{Make: r.Specs.Make, Model: r.Specs.Model, Quantity: r.Specs.Quantity, Notes: r.Specs.Notes}
	}
	return d
}

type RevisionSpecsRequest struct {
	Make     *string `json:"make,omitempty"`
	Model    *string `json:"model,omitempty"`
	Quantity *int    `json:"quantity,omitempty" minimum:"0"`
	Notes    *string `json:"notes,omitempty"`
}

// RevisionRequest lists the fields to change. Omitted fields stay as they are.
type RevisionRequest struct {
	Category    *string               `json:"category,omitempty" enum:"MONITORING,MICROPHONES,PA,BACKLINE,LIGHTING,STAGE,POWER,HOSPITALITY"`
	Title       *string               `json:"title,omitempty"`
	Description *string               `json:"description,omitempty"`
	Provider    *string               `json:"provider,omitempty" enum:"BAND,VENUE,ENGINEER"`
	Specs       *RevisionSpecsRequest `json:"specs,omitempty"`
}

func (r RevisionRequest) FieldSet() domain.FieldSet {
	var fs domain.FieldSet
	if r.Category != nil {
		c := domain.Category(*r.Category)
		fs.Category = &c
	}
	if r.Provider != nil {
		p := domain.Provider(*r.Provider)
		fs.Provider = &p
	}
	fs.Title = r.Title
	fs.Description = r.Description
	if r.Specs != nil {
		fs.Specs = &domain.SpecFields{Make: r.Specs.Make, Model: r.Specs.Model, Quantity: r.Specs.Quantity, Notes: r.Specs.Notes}
	}
	return fs
}

type ProviderRequest struct {
	Provider string `json:"provider" enum:"BAND,VENUE,ENGINEER"`
}

type StatusRequest struct {
	Status string `json:"status" enum:"PENDING,DISCUSSING,AGREED,REJECTED,REOPENED"`
}

type MessageRequest struct {
	Message string `json:"message"`
}

// Response payloads

type ItemListResponse struct {
	Items []domain.Item `json:"items"`
}

// IntentResponse carries the item after a status intent. Applied is false
// when the request was not allowed and the item was left unchanged.
type IntentResponse struct {
	Item    domain.Item `json:"item"`
	Applied bool        `json:"applied"`
}

type FeedResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
}
