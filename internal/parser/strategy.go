package parser

import (
	"github.com/PuerkitoBio/goquery"
)

// strategy is one attempt at locating a value in parsed markup. Strategies
// are evaluated in order, first match wins; later entries are heuristic
// fallbacks for when the precise selectors stop matching.
type strategy[T any] struct {
	name string
	fn   func(doc *goquery.Document) (T, bool)
}

func runStrategies[T any](doc *goquery.Document, strategies []strategy[T]) (T, string, bool) {
	for _, s := range strategies {
		if v, ok := s.fn(doc); ok {
			return v, s.name, true
		}
	}
	var zero T
	return zero, "", false
}
