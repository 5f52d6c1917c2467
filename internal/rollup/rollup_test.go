package rollup

import (
	"testing"

	"github.com/stretchr/testify/require"

	"techrider/internal/domain"
)

func items() []domain.Item {
	return []domain.Item{
		{ID: "1", Category: domain.CategoryMicrophones, Status: domain.StatusPending},
		{ID: "2", Category: domain.CategoryBackline, Status: domain.StatusDiscussing},
		{ID: "3", Category: domain.CategoryMonitoring, Status: domain.StatusAgreed},
		{ID: "4", Category: domain.CategoryMicrophones, Status: domain.StatusAgreed},
		{ID: "5", Category: domain.CategoryHospitality, Status: domain.StatusReopened},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(items())
	require.Equal(t, 5, s.Total)
	require.Equal(t, 1, s.Pending)
	require.Equal(t, 1, s.Discussing)
	require.Equal(t, 2, s.Agreed)
	require.Equal(t, 1, s.Reopened)
	require.Equal(t, 0, s.Rejected)
	require.Equal(t, "2 / 5 confirmed", s.Progress)

	empty := Summarize(nil)
	require.Equal(t, "0 / 0 confirmed", empty.Progress)
}

func TestCountByStatusHasEveryStatus(t *testing.T) {
	c := CountByStatus(nil)
	require.Len(t, c, len(domain.Statuses))
	for _, s := range domain.Statuses {
		require.Zero(t, c[s])
	}
}

func TestGroupByCategoryCanonicalOrder(t *testing.T) {
	groups := GroupByCategory(items())
	var order []domain.Category
	for _, g := range groups {
		order = append(order, g.Category)
	}
	require.Equal(t, []domain.Category{
		domain.CategoryMonitoring,
		domain.CategoryMicrophones,
		domain.CategoryBackline,
		domain.CategoryHospitality,
	}, order)
	require.Equal(t, "1", groups[1].Items[0].ID)
	require.Equal(t, "4", groups[1].Items[1].ID)
}

func TestPartitionAgreed(t *testing.T) {
	agreed, open := PartitionAgreed(items())
	require.Len(t, agreed, 2)
	require.Len(t, open, 3)
	require.Equal(t, "3", agreed[0].ID)
	require.Equal(t, "1", open[0].ID)
}

func TestFilterByCategory(t *testing.T) {
	require.Len(t, FilterByCategory(items(), ""), 5)
	mics := FilterByCategory(items(), domain.CategoryMicrophones)
	require.Len(t, mics, 2)
	require.Empty(t, FilterByCategory(items(), domain.CategoryPower))
}

func TestCategoryFlags(t *testing.T) {
	flags := CategoryFlags(items())
	require.Len(t, flags, len(domain.Categories))
	byCat := map[domain.Category]CategoryFlag{}
	for _, f := range flags {
		byCat[f.Category] = f
	}
	require.True(t, byCat[domain.CategoryMicrophones].HasPending)
	require.Equal(t, 2, byCat[domain.CategoryMicrophones].Count)
	require.True(t, byCat[domain.CategoryBackline].HasDiscussing)
	require.True(t, byCat[domain.CategoryHospitality].HasDiscussing)
	require.False(t, byCat[domain.CategoryMonitoring].HasPending)
	require.False(t, byCat[domain.CategoryMonitoring].HasDiscussing)
}

func TestBuildShowSpec(t *testing.T) {
	spec := BuildShowSpec(ShowMeta{Artist: "Afke Flaviana", Event: "The Spoken Quintet Tour"}, items())
	require.Equal(t, "Afke Flaviana", spec.Show.Artist)
	require.Len(t, spec.Agreed, 2)
	require.Equal(t, domain.CategoryMonitoring, spec.Agreed[0].Category)
	require.Len(t, spec.Open, 3)
	require.Equal(t, 2, spec.Summary.Agreed)
}
