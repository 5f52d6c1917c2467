package rollup

import (
	"fmt"

	"techrider/internal/domain"
)

func CountByStatus(items []domain.Item) map[domain.Status]int {
	counts := make(map[domain.Status]int, len(domain.Statuses))
	for _, s := range domain.Statuses {
		counts[s] = 0
	}
	for _, it := range items {
		counts[it.Status]++
	}
	return counts
}

type Summary struct {
	Total      int    `json:"total"`
	Pending    int    `json:"pending"`
	Discussing int    `json:"discussing"`
	Agreed     int    `json:"agreed"`
	Reopened   int    `json:"reopened"`
	Rejected   int    `json:"rejected"`
	Progress   string `json:"progress"`
}

// Summarize rolls the brief up into the header counters, e.g. "3 / 13 confirmed".
func Summarize(items []domain.Item) Summary {
	c := CountByStatus(items)
	s := Summary{
		Total:      len(items),
		Pending:    c[domain.StatusPending],
		Discussing: c[domain.StatusDiscussing],
		Agreed:     c[domain.StatusAgreed],
		Reopened:   c[domain.StatusReopened],
		Rejected:   c[domain.StatusRejected],
	}
	s.Progress = fmt.Sprintf("%d / %d confirmed", s.Agreed, s.Total)
	return s
}

type Group struct {
	Category domain.Category `json:"category"`
	Items    []domain.Item   `json:"items"`
}

// GroupByCategory groups items in canonical category order. Empty groups are
// dropped; categories outside the canonical list go last in first-seen order.
func GroupByCategory(items []domain.Item) []Group {
	buckets := map[domain.Category][]domain.Item{}
	var extra []domain.Category
	for _, it := range items {
		if _, ok := buckets[it.Category]; !ok && !it.Category.Valid() {
			extra = append(extra, it.Category)
		}
		buckets[it.Category] = append(buckets[it.Category], it)
	}
	var groups []Group
	for _, c := range append(append([]domain.Category{}, domain.Categories...), extra...) {
		if len(buckets[c]) == 0 {
			continue
		}
		groups = append(groups, Group{Category: c, Items: buckets[c]})
	}
	return groups
}

// PartitionAgreed splits items into AGREED and everything else, keeping order.
func PartitionAgreed(items []domain.Item) (agreed, open []domain.Item) {
	for _, it := range items {
		if it.Status == domain.StatusAgreed {
			agreed = append(agreed, it)
		} else {
			open = append(open, it)
		}
	}
	return agreed, open
}

// FilterByCategory returns items in category; an empty category matches all.
func FilterByCategory(items []domain.Item, category domain.Category) []domain.Item {
	if category == "" {
		return items
	}
	var out []domain.Item
	for _, it := range items {
		if it.Category == category {
			out = append(out, it)
		}
	}
	return out
}

type CategoryFlag struct {
	Category      domain.Category `json:"category"`
	Count         int             `json:"count"`
	HasPending    bool            `json:"has_pending"`
	HasDiscussing bool            `json:"has_discussing"`
}

// CategoryFlags reports per canonical category whether anything still waits
// on a confirmation or is under discussion.
func CategoryFlags(items []domain.Item) []CategoryFlag {
	flags := make([]CategoryFlag, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		f := CategoryFlag{Category: c}
		for _, it := range items {
			if it.Category != c {
				continue
			}
			f.Count++
			switch it.Status {
			case domain.StatusPending:
				f.HasPending = true
			case domain.StatusDiscussing, domain.StatusReopened:
				f.HasDiscussing = true
			}
		}
		flags = append(flags, f)
	}
	return flags
}

type ShowMeta struct {
	Artist string `json:"artist"`
	Event  string `json:"event"`
}

// ShowSpec is the export view: agreed items by category plus what is still open.
type ShowSpec struct {
	Show    ShowMeta      `json:"show"`
	Summary Summary       `json:"summary"`
	Agreed  []Group       `json:"agreed"`
	Open    []domain.Item `json:"open"`
}

func BuildShowSpec(meta ShowMeta, items []domain.Item) ShowSpec {
	agreed, open := PartitionAgreed(items)
	return ShowSpec{
		Show:    meta,
		Summary: Summarize(items),
		Agreed:  GroupByCategory(agreed),
		Open:    open,
	}
}
