package classifier

import "strings"

// Weights of the weighted-sum policy.
const (
	KeywordWeight    = 10
	ContextWeight    = 5
	IndicatorWeight  = 3
	DefaultThreshold = 8
)

// Match is the entry a policy selected, with the evidence behind it.
type Match struct {
	Entry        *Entry
	Score        float64
	MatchedTerms []string
}

// Policy selects at most one lexicon entry for normalized text.
type Policy interface {
	Name() string
	Select(text string, lex *Lexicon) (Match, bool)
}

// WeightedSum scores every entry and keeps the best one at or above Threshold.
// Ties keep the earliest entry in table order.
type WeightedSum struct {
	Threshold int
}

// NewWeightedSum returns the policy used for general intent routing.
func NewWeightedSum() WeightedSum {
	return WeightedSum{Threshold: DefaultThreshold}
}

// Name implements Policy.
func (WeightedSum) Name() string { return "weighted_sum" }

// Select implements Policy.
func (p WeightedSum) Select(text string, lex *Lexicon) (Match, bool) {
	var (
		best  Match
		found bool
	)

	for i := 0; i < lex.Len(); i++ {
		e := lex.Entry(i)

		keywords := matchedTerms(text, e.Keywords)
		contexts := matchedTerms(text, e.ContextTerms)
		indicators := matchedTerms(text, lex.Indicators(e.Category))

		score := KeywordWeight*len(keywords) +
			ContextWeight*len(contexts) +
			IndicatorWeight*len(indicators) +
			e.Priority

		// Strict comparison: an equal score never displaces an earlier entry.
		if !found || float64(score) > best.Score {
			terms := make([]string, 0, len(keywords)+len(contexts)+len(indicators))
			terms = append(terms, keywords...)
			terms = append(terms, contexts...)
			terms = append(terms, indicators...)
			best = Match{Entry: e, Score: float64(score), MatchedTerms: terms}
			found = true
		}
	}

	if !found || best.Score < float64(p.Threshold) {
		return Match{}, false
	}
	return best, true
}

// ContextMatch picks the first entry whose keyword occurs in the text and that is
// confirmed either by a generic score indicator or by one of its own context terms.
type ContextMatch struct{}

// NewContextMatch returns the policy used for clinical-score detection.
func NewContextMatch() ContextMatch { return ContextMatch{} }

// Name implements Policy.
func (ContextMatch) Name() string { return "context_match" }

// Select implements Policy.
func (ContextMatch) Select(text string, lex *Lexicon) (Match, bool) {
	generic := matchedTerms(text, lex.GenericIndicators())

	for i := 0; i < lex.Len(); i++ {
		e := lex.Entry(i)

		keywords := matchedTerms(text, e.Keywords)
		if len(keywords) == 0 {
			continue
		}

		contexts := matchedTerms(text, e.ContextTerms)
		if len(generic) == 0 && len(contexts) == 0 {
			continue
		}

		terms := append(append(append([]string{}, keywords...), contexts...), generic...)
		return Match{Entry: e, Score: 1, MatchedTerms: terms}, true
	}
	return Match{}, false
}

func matchedTerms(text string, terms []string) []string {
	var out []string
	for _, t := range terms {
		if t != "" && strings.Contains(text, t) {
			out = append(out, t)
		}
	}
	return out
}
