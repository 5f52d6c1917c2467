package negotiate

import "techrider/internal/domain"

type transition struct {
	from   []domain.Status // nil matches any current status
	except domain.Status
	to     domain.Status
	guard  func(item domain.Item, role domain.Role) bool

	result        domain.Status
	awaitOther    bool
	applyRevision bool
}

func (t transition) matches(item domain.Item, role domain.Role, requested domain.Status) bool {
	if requested != t.to {
		return false
	}
	if t.except != "" && item.Status == t.except {
		return false
	}
	if t.from != nil {
		found := false
		for _, s := range t.from {
			if s == item.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return t.guard == nil || t.guard(item, role)
}

// confirmer reports whether role may complete an agreement that is awaiting
// confirmation.
func confirmer(item domain.Item, role domain.Role) bool {
	if item.PendingConfirmationFrom != "" {
		return role == item.PendingConfirmationFrom
	}
	return role != item.CreatedBy
}

// First match wins. Anything without a match is a guarded no-op, which covers
// self-confirmation, AGREED -> AGREED, every request for PENDING or REJECTED
// and same-status requests.
var transitions = []transition{
	{from: []domain.Status{domain.StatusDiscussing}, to: domain.StatusAgreed, result: domain.StatusPending, awaitOther: true},
	{from: []domain.Status{domain.StatusPending}, to: domain.StatusAgreed, guard: confirmer, result: domain.StatusAgreed, applyRevision: true},
	{from: []domain.Status{domain.StatusReopened}, to: domain.StatusAgreed, result: domain.StatusAgreed},
	{except: domain.StatusReopened, to: domain.StatusReopened, result: domain.StatusReopened},
	{except: domain.StatusDiscussing, to: domain.StatusDiscussing, result: domain.StatusDiscussing},
}

// Outcome is the table's verdict for a status request.
type Outcome struct {
	Allowed                 bool
	Status                  domain.Status
	PendingConfirmationFrom domain.Role
	WaitingFor              domain.Role
	ApplyRevision           bool
}

// Decide looks up what UpdateStatus would do without building anything.
func Decide(item domain.Item, role domain.Role, requested domain.Status) Outcome {
	if !role.Valid() {
		return Outcome{}
	}
	for _, t := range transitions {
		if !t.matches(item, role, requested) {
			continue
		}
		out := Outcome{Allowed: true, Status: t.result, ApplyRevision: t.applyRevision}
		if t.awaitOther {
			out.PendingConfirmationFrom = role.Opposite()
			out.WaitingFor = role.Opposite()
		}
		return out
	}
	return Outcome{}
}
