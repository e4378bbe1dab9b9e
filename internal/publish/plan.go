package publish

import (
	"github.com/ruby/setup-msys2-gcc/internal/release"
)

// Plan is what INSPECT learned about one package's slot on the release.
// It drives every later decision of the run and is discarded afterwards.
type Plan struct {
	Names release.Names

	// Canonical is the live asset, nil before the first publish.
	Canonical *release.Asset

	// StaleOld and StaleNew are leftovers of an unfinished run.
	StaleOld []release.Asset
	StaleNew []release.Asset
}

// NewPlan classifies assets against the naming convention in names.
func NewPlan(names release.Names, assets []release.Asset) Plan {
	plan := Plan{Names: names}
	if a, ok := release.Find(assets, names.Canonical); ok {
		plan.Canonical = &a
	}
	for _, name := range names.StaleOld() {
		if a, ok := release.Find(assets, name); ok {
			plan.StaleOld = append(plan.StaleOld, a)
		}
	}
	for _, name := range names.StaleNew() {
		if a, ok := release.Find(assets, name); ok {
			plan.StaleNew = append(plan.StaleNew, a)
		}
	}
	return plan
}

// HasCanonical reports whether a live asset exists.
func (p Plan) HasCanonical() bool { return p.Canonical != nil }

// Consistent reports whether no temporary asset is present.
func (p Plan) Consistent() bool { return len(p.StaleOld) == 0 && len(p.StaleNew) == 0 }

// Check returns an *InconsistentStateError for the first temporary asset
// found, old before new.
func (p Plan) Check(pkg string) error {
	if len(p.StaleOld) > 0 {
		return staleError(pkg, p.StaleOld[0], "old artifact present")
	}
	if len(p.StaleNew) > 0 {
		return staleError(pkg, p.StaleNew[0], "new artifact present")
	}
	return nil
}

func staleError(pkg string, asset release.Asset, reason string) error {
	if !asset.Complete() {
		reason += ", upload incomplete"
	}
	return &InconsistentStateError{Package: pkg, Asset: asset.Name, Reason: reason}
}
