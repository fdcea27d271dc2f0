// Package plan provides plan value types and pure functions.
package plan

// Limit is a daily question allowance. The Unlimited sentinel is a
// distinguished value, never a magic number that could collide with a
// real limit.
type Limit int64

// Unlimited means no daily cap applies.
const Unlimited Limit = -1

// IsUnlimited reports whether the limit imposes no cap.
func (l Limit) IsUnlimited() bool {
	return l < 0
}

// Plan represents a subscription tier (immutable value type).
// Plan identity comes from the billing system; this package only maps it
// to a daily allowance.
type Plan struct {
	ID             string
	Name           string
	DailyQuestions Limit
	IsDefault      bool // fallback tier for unknown plan IDs
}

// Find finds a plan by ID in a list.
// This is a PURE function.
func Find(plans []Plan, id string) (Plan, bool) {
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// LimitFor resolves a plan ID to its daily limit. Unknown IDs resolve to
// the most restrictive limit in the table so the system fails toward more
// restriction, not less; known reports whether the ID matched.
// This is a PURE function.
func LimitFor(plans []Plan, id string) (limit Limit, known bool) {
	if p, ok := Find(plans, id); ok {
		return p.DailyQuestions, true
	}
	return mostRestrictive(plans), false
}

// mostRestrictive returns the smallest finite limit in the table.
// A table with only unlimited plans (or no plans) yields zero: an
// unrecognized plan never gets a free pass.
func mostRestrictive(plans []Plan) Limit {
	found := false
	var min Limit
	for _, p := range plans {
		if p.DailyQuestions.IsUnlimited() {
			continue
		}
		if !found || p.DailyQuestions < min {
			min = p.DailyQuestions
			found = true
		}
	}
	if !found {
		return 0
	}
	return min
}

// Defaults is the built-in plan table, used when the configuration does
// not define one.
func Defaults() []Plan {
	return []Plan{
		{ID: "free", Name: "Free", DailyQuestions: 5, IsDefault: true},
		{ID: "creator", Name: "Creator", DailyQuestions: 25},
		{ID: "pro", Name: "Pro", DailyQuestions: 100},
		{ID: "agency", Name: "Agency", DailyQuestions: Unlimited},
	}
}
