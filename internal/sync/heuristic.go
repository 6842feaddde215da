package sync

import (
	"strings"

	"github.com/florasync/florasync/internal/provider"
)

// Acceptance rules are enumerated and checked in order; the first rule
// that matches decides. Anything ambiguous falls through to "accept for
// manual review" so editors see it rather than the importer silently
// dropping it.

// rejectedCategories are upstream classifications we never import
var rejectedCategories = map[string]struct{}{
	"weed":     {},
	"invasive": {},
	"moss":     {},
	"algae":    {},
	"fungus":   {},
}

// Verdict is the outcome of the candidate-acceptance heuristic for one
// upstream record.
type Verdict struct {
	Accept bool
	Reason string
}

// Evaluate decides whether an upstream record is worth importing as a
// draft. It is a pure predicate, decoupled from the import loop.
func Evaluate(rec *provider.PlantRecord) Verdict {
	// Explicit human-use signal wins over everything else
	if rec.Edible != nil && *rec.Edible {
		return Verdict{Accept: true, Reason: "edible"}
	}

	for _, cat := range rec.Categories {
		if _, reject := rejectedCategories[strings.ToLower(strings.TrimSpace(cat))]; reject {
			return Verdict{Accept: false, Reason: "category " + cat}
		}
	}

	if rec.Poisonous != nil && *rec.Poisonous {
		return Verdict{Accept: false, Reason: "poisonous without edible signal"}
	}

	// No name means nothing for an editor to review against
	if rec.CommonName == "" && rec.ScientificName == "" {
		return Verdict{Accept: false, Reason: "unnamed record"}
	}

	return Verdict{Accept: true, Reason: "accepted for review"}
}
