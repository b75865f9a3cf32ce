package suggest

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/queryscope/queryscope-engine/pkg/fuzzy"
)

// Match reasons, chosen by whichever rule produced the winning score.
const (
	ReasonExact         = "exact match"
	ReasonContains      = "contains"
	ReasonPluralVariant = "singular/plural variant"
	ReasonRelated       = "related concept"
)

// semanticGroups are predefined synonym clusters. Two names that fall in the
// same cluster (after singularization) get a similarity bonus even when they
// share no characters, e.g. a query asking for "cars" against a "Vehicles"
// table.
var semanticGroups = [][]string{
	{"car", "vehicle", "auto", "automobile"},
	{"user", "person", "customer", "client", "member", "account"},
	{"order", "purchase", "transaction", "sale"},
	{"product", "item", "good", "merchandise"},
	{"student", "pupil", "learner"},
	{"teacher", "instructor", "professor", "tutor"},
	{"course", "class", "subject"},
	{"grade", "score", "mark", "result"},
	{"employee", "staff", "worker"},
	{"payment", "invoice", "bill", "charge"},
	{"company", "organization", "business", "firm"},
	{"address", "location", "place"},
}

// Similarity scores how plausibly candidate is what the author of missing
// meant, in 0..1. Exact case-insensitive equality is 1.0 and containment
// 0.9; everything else starts from a subsequence ratio and earns bonuses for
// singular/plural variance (+0.2) and shared semantic group (+0.3), capped
// at 1.0.
func Similarity(missing, candidate string) float64 {
	score, _ := similarityWithReason(missing, candidate)
	return score
}

func similarityWithReason(missing, candidate string) (float64, string) {
	a := strings.ToLower(strings.TrimSpace(missing))
	b := strings.ToLower(strings.TrimSpace(candidate))

	if a == b {
		return 1.0, ReasonExact
	}

	var score float64
	reason := ""
	if strings.Contains(a, b) || strings.Contains(b, a) {
		score = 0.9
		reason = ReasonContains
	} else {
		score = fuzzy.SequenceRatio(a, b)
	}

	if isPluralVariant(a, b) {
		score += 0.2
		if reason == "" {
			reason = ReasonPluralVariant
		}
	}
	if sameSemanticGroup(a, b) {
		score += 0.3
		reason = ReasonRelated
	}

	if score > 1.0 {
		score = 1.0
	}
	if reason == "" {
		reason = fmt.Sprintf("%d%% match", int(score*100))
	}
	return score, reason
}

// isPluralVariant reports whether a and b are singular/plural forms of the
// same word. inflection covers regular forms plus the common irregulars
// (person/people, child/children); the bare suffix-s check catches schema
// names inflection does not consider words.
func isPluralVariant(a, b string) bool {
	if a == b {
		return false
	}
	if inflection.Plural(a) == b || inflection.Singular(a) == b {
		return true
	}
	if inflection.Plural(b) == a || inflection.Singular(b) == a {
		return true
	}
	return a+"s" == b || b+"s" == a
}

// sameSemanticGroup reports whether both names (singularized) belong to one
// of the predefined synonym clusters.
func sameSemanticGroup(a, b string) bool {
	as := inflection.Singular(a)
	bs := inflection.Singular(b)
	for _, group := range semanticGroups {
		foundA, foundB := false, false
		for _, word := range group {
			if word == as {
				foundA = true
			}
			if word == bs {
				foundB = true
			}
		}
		if foundA && foundB {
			return true
		}
	}
	return false
}
