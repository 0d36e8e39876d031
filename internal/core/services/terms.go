package services

import "github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"

// ApplicableTerms returns the subset of terms that apply to a platform:
// terms with an empty target-arena set apply everywhere, terms with a
// non-empty set apply only to the platforms it names.
//
// Pure and order-preserving. Scoping is evaluated here at dispatch time,
// never baked into the term at creation time, so arena enablement can
// change independently of term definitions.
func ApplicableTerms(terms []domain.SearchTerm, platform string) []domain.SearchTerm {
	result := make([]domain.SearchTerm, 0, len(terms))
	for _, term := range terms {
		if term.AppliesTo(platform) {
			result = append(result, term)
		}
	}
	return result
}
