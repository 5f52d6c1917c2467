package app

import (
	"context"
	"fmt"

	"techrider/internal/domain"
	"techrider/internal/repo"
)

const seedTimestamp = "2023-10-26T09:00:00Z"

type seedItem struct {
	id          string
	category    domain.Category
	title       string
	description string
	provider    domain.Provider
	status      domain.Status
	requestedBy string
	specs       domain.Specs
	comments    []domain.Event
}

var seedItems = []seedItem{
	{"1", domain.CategoryMicrophones, "Lead Vocal Mic", "SM58 or comparable for Afke.", domain.ProviderEngineer, domain.StatusPending, "Afke",
		domain.Specs{Make: "Shure", Model: "SM58", Quantity: 1}, nil},
	{"2", domain.CategoryMicrophones, "Tenor Sax Mic (Acoustic)", "For acoustic sound. Prefer AEA E8 NUVO, otherwise AKG 414 XLII.", domain.ProviderEngineer, domain.StatusPending, "Fabio",
		domain.Specs{Make: "AEA", Model: "E8 NUVO", Quantity: 1}, nil},
	{"3", domain.CategoryMicrophones, "Sax FX DI", "For pedal FX sound. Stereo DI or 2x Mono.", domain.ProviderEngineer, domain.StatusPending, "Fabio",
		domain.Specs{Quantity: 2, Notes: "Stereo DI"}, nil},
	{"4", domain.CategoryMonitoring, "Sax Monitor", "Dedicated ground monitor, stereo preferred.", domain.ProviderVenue, domain.StatusPending, "Fabio",
		domain.Specs{Quantity: 1, Notes: "Stereo wedge"}, nil},
	{"5", domain.CategoryPower, "Guitar Power", "Power point for Pedalboard.", domain.ProviderVenue, domain.StatusAgreed, "Abel",
		domain.Specs{Quantity: 1}, nil},
	{"6", domain.CategoryMicrophones, "Guitar Amp Mic", "Mic for Koch Jupiter amp.", domain.ProviderEngineer, domain.StatusPending, "Abel",
		domain.Specs{Quantity: 1}, nil},
	{"6b", domain.CategoryBackline, "Koch Jupiter Amp", "Abel brings his own amp.", domain.ProviderBand, domain.StatusAgreed, "Abel",
		domain.Specs{Make: "Koch", Model: "Jupiter", Quantity: 1}, nil},
	{"7", domain.CategoryBackline, "Bass Amp", "If backline is available, we would like to use it. Otherwise we bring our own.", domain.ProviderVenue, domain.StatusDiscussing, "Lester",
		domain.Specs{Notes: "House amp preferred"},
		[]domain.Event{{ID: "c1", Type: domain.EventText, Author: "Lester", Role: domain.RoleBand, Text: "Do you have a bass amp available?", Timestamp: "2023-10-26T10:00:00Z"}}},
	{"8", domain.CategoryPower, "Bass Power", "Power point for Pedalboard.", domain.ProviderVenue, domain.StatusAgreed, "Lester",
		domain.Specs{Quantity: 1}, nil},
	{"9", domain.CategoryBackline, "Drum Kit", "If jazz drumkit is available, we would like to use it. Otherwise we bring our own.", domain.ProviderVenue, domain.StatusDiscussing, "Youri",
		domain.Specs{Notes: "Jazz kit"},
		[]domain.Event{{ID: "c2", Type: domain.EventText, Author: "Youri", Role: domain.RoleBand, Text: "Prefer house kit to save travel space.", Timestamp: "2023-10-26T10:05:00Z"}}},
	{"10", domain.CategoryStage, "Music Stands", "If available, we would like to use them.", domain.ProviderVenue, domain.StatusPending, "Band",
		domain.Specs{Quantity: 5}, nil},
	{"11", domain.CategoryHospitality, "Crew Meals", "4x no restrictions, 1x vegan.", domain.ProviderVenue, domain.StatusAgreed, "Band",
		domain.Specs{Quantity: 5}, nil},
	{"12", domain.CategoryHospitality, "Parking", "1 parking spot required.", domain.ProviderVenue, domain.StatusAgreed, "Band",
		domain.Specs{Quantity: 1}, nil},
}

// Seed returns the tour brief a fresh workspace starts from. Seeded items
// carry no explicit pending confirmation, so the engineer confirms the open ones.
func Seed() []domain.Item {
	items := make([]domain.Item, 0, len(seedItems))
	for _, s := range seedItems {
		log := make([]domain.Event, len(s.comments))
		copy(log, s.comments)
		updated := seedTimestamp
		if len(log) > 0 {
			updated = log[len(log)-1].Timestamp
		}
		items = append(items, domain.Item{
			ID:          s.id,
			Category:    s.category,
			Title:       s.title,
			Description: s.description,
			Specs:       s.specs,
			Provider:    s.provider,
			Status:      s.status,
			RequestedBy: s.requestedBy,
			AssignedTo:  "Engineer",
			CreatedBy:   domain.RoleBand,
			Comments:    log,
			CreatedAt:   seedTimestamp,
			UpdatedAt:   updated,
		})
	}
	return items
}

// EnsureSeeded inserts Seed into an empty database. It reports whether
// anything was written.
func EnsureSeeded(ctx context.Context, r repo.Repo) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	n, err := r.CountItemsTx(ctx, tx)
	if err != nil {
		return false, fmt.Errorf("count items: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	for _, item := range Seed() {
		if err := r.AppendItemTx(ctx, tx, item); err != nil {
			return false, fmt.Errorf("seed item %s: %w", item.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
