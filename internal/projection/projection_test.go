package projection

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"techrider/internal/domain"
	"techrider/internal/events"
	"techrider/internal/negotiate"
)

func testNegotiator() negotiate.Negotiator {
	clock := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	seq := 0
	return negotiate.Negotiator{
		Events: events.Builder{
			Now: func() time.Time {
				clock = clock.Add(time.Minute)
				return clock
			},
			NewID: func() string {
				seq++
				return fmt.Sprintf("ev-%d", seq)
			},
		},
	}
}

func strptr(s string) *string { return &s }
func intptr(i int) *int       { return &i }

func agreed(t *testing.T, n negotiate.Negotiator) domain.Item {
	t.Helper()
	item, err := n.CreateItem(negotiate.Draft{
		Category:    domain.CategoryBackline,
		Title:       "Bass Amp",
		Description: "8x10 cab with head",
		Specs:       domain.Specs{Make: "Ampeg", Model: "SVT", Quantity: 1},
	}, domain.RoleBand)
	require.NoError(t, err)
	res, err := n.UpdateStatus(item, domain.RoleEngineer, domain.StatusAgreed)
	require.NoError(t, err)
	return res.Item
}

func TestNoRevision(t *testing.T) {
	n := testNegotiator()
	item := agreed(t, n)

	_, ok := LatestRevision(item)
	require.False(t, ok)
	require.False(t, IsFullyAgreed(item))
	require.Nil(t, PendingFieldDiff(item, FieldTitle))
	require.Len(t, AgreementsSinceRevision(item), 1)
	require.Equal(t, []domain.Role{domain.RoleEngineer}, AgreedRoles(item))
}

func TestPendingRevisionDiffs(t *testing.T) {
	n := testNegotiator()
	item := agreed(t, n)
	res, err := n.ProposeRevision(item, domain.RoleBand, domain.FieldSet{
		Title: strptr("Bass Rig"),
		Specs: &domain.SpecFields{Quantity: intptr(2), Model: strptr("SVT")},
	})
	require.NoError(t, err)
	item = res.Item

	rev, ok := LatestRevision(item)
	require.True(t, ok)
	require.Equal(t, domain.EventItemRevision, rev.Type)
	require.False(t, IsFullyAgreed(item))
	require.Empty(t, AgreementsSinceRevision(item))

	require.Equal(t, &FieldDiff{Field: FieldTitle, Old: "Bass Amp", New: "Bass Rig"}, PendingFieldDiff(item, FieldTitle))
	require.Equal(t, &FieldDiff{Field: FieldQuantity, Old: "1", New: "2"}, PendingFieldDiff(item, FieldQuantity))
	require.Nil(t, PendingFieldDiff(item, FieldModel))
	require.Nil(t, PendingFieldDiff(item, FieldDescription))

	diffs := PendingDiffs(item)
	require.Len(t, diffs, 2)
	require.Equal(t, FieldTitle, diffs[0].Field)
	require.Equal(t, FieldQuantity, diffs[1].Field)

	require.True(t, CanAcceptRevision(item, domain.RoleEngineer))
	require.False(t, CanAcceptRevision(item, domain.RoleBand))
	require.True(t, CanAgree(item, domain.RoleEngineer))
	require.False(t, CanAgree(item, domain.RoleBand))
}

func TestSettledRevisionCollapsesDiff(t *testing.T) {
	n := testNegotiator()
	item := agreed(t, n)
	res, err := n.ProposeRevision(item, domain.RoleEngineer, domain.FieldSet{Description: strptr("4x10 cab")})
	require.NoError(t, err)
	res, err = n.UpdateStatus(res.Item, domain.RoleBand, domain.StatusAgreed)
	require.NoError(t, err)
	item = res.Item

	require.True(t, IsFullyAgreed(item))
	require.Nil(t, PendingFieldDiff(item, FieldDescription))
	require.Empty(t, PendingDiffs(item))
	require.Equal(t, []domain.Role{domain.RoleBand}, AgreedRoles(item))
	require.False(t, CanAcceptRevision(item, domain.RoleBand))

	res, err = n.Reopen(item, domain.RoleBand, "Can we get a backup head?")
	require.NoError(t, err)
	require.True(t, IsFullyAgreed(res.Item))
	require.Nil(t, PendingFieldDiff(res.Item, FieldDescription))
}

func TestAppliedRevisionCannotBeAcceptedAgain(t *testing.T) {
	n := testNegotiator()
	item := agreed(t, n)
	res, err := n.ProposeRevision(item, domain.RoleBand, domain.FieldSet{Title: strptr("Bass Rig")})
	require.NoError(t, err)
	res, err = n.UpdateStatus(res.Item, domain.RoleEngineer, domain.StatusAgreed)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, "Bass Rig", res.Item.Title)

	res, err = n.UpdateProvider(res.Item, domain.RoleBand, domain.ProviderVenue)
	require.NoError(t, err)
	res, err = n.UpdateStatus(res.Item, domain.RoleBand, domain.StatusAgreed)
	require.NoError(t, err)
	item = res.Item
	require.Equal(t, domain.StatusPending, item.Status)
	require.Equal(t, domain.RoleEngineer, item.PendingConfirmationFrom)

	_, open := negotiate.OpenRevision(item.Comments)
	require.False(t, open)
	require.False(t, CanAcceptRevision(item, domain.RoleEngineer))
	require.True(t, CanAgree(item, domain.RoleEngineer))
	require.False(t, BuildView(item, domain.RoleEngineer).CanAcceptRevision)
}

func TestCanReopen(t *testing.T) {
	cases := map[domain.Status]bool{
		domain.StatusPending:    true,
		domain.StatusAgreed:     true,
		domain.StatusDiscussing: false,
		domain.StatusReopened:   false,
		domain.StatusRejected:   false,
	}
	for status, want := range cases {
		require.Equal(t, want, CanReopen(domain.Item{Status: status}), string(status))
	}
}

func TestCanAgreeMatchesUpdateStatus(t *testing.T) {
	n := testNegotiator()
	base := agreed(t, n)
	for _, status := range domain.Statuses {
		for _, pending := range []domain.Role{"", domain.RoleBand, domain.RoleEngineer} {
			for _, role := range domain.Roles {
				item := base.Clone()
				item.Status = status
				item.PendingConfirmationFrom = pending
				res, err := n.UpdateStatus(item, role, domain.StatusAgreed)
				require.NoError(t, err)
				require.Equal(t, res.Applied, CanAgree(item, role))
			}
		}
	}
}

func TestRounds(t *testing.T) {
	n := testNegotiator()
	item := agreed(t, n)
	res, err := n.ProposeRevision(item, domain.RoleBand, domain.FieldSet{Title: strptr("Bass Rig")})
	require.NoError(t, err)
	res, err = n.UpdateStatus(res.Item, domain.RoleEngineer, domain.StatusAgreed)
	require.NoError(t, err)
	res, err = n.UpdateStatus(res.Item, domain.RoleBand, domain.StatusDiscussing)
	require.NoError(t, err)
	res, err = n.UpdateStatus(res.Item, domain.RoleBand, domain.StatusAgreed)
	require.NoError(t, err)

	rounds := Rounds(res.Item)
	require.Len(t, rounds, 2)
	require.Nil(t, rounds[0].Revision)
	require.Len(t, rounds[0].Agreements, 1)
	require.NotNil(t, rounds[1].Revision)
	require.Len(t, rounds[1].Agreements, 1)
	require.Equal(t, domain.RoleEngineer, rounds[1].Agreements[0].Role)
}

func TestBuildView(t *testing.T) {
	n := testNegotiator()
	item := agreed(t, n)
	res, err := n.ProposeRevision(item, domain.RoleBand, domain.FieldSet{Title: strptr("Bass Rig")})
	require.NoError(t, err)

	v := BuildView(res.Item, domain.RoleEngineer)
	require.Equal(t, domain.RoleEngineer, v.Role)
	require.NotNil(t, v.LatestRevision)
	require.True(t, v.CanAgree)
	require.True(t, v.CanAcceptRevision)
	require.True(t, v.CanReopen)
	require.False(t, v.FullyAgreed)
	require.Len(t, v.PendingDiffs, 1)

	band := BuildView(res.Item, domain.RoleBand)
	require.False(t, band.CanAgree)
	require.False(t, band.CanAcceptRevision)
}
