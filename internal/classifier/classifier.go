package classifier

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/medassist/clinical-core/internal/textnorm"
)

var numberPattern = regexp.MustCompile(`\d+`)

// Result is the outcome of one classification call
type Result struct {
	Category         Category  `json:"category"`
	Slug             string    `json:"slug,omitempty"`
	CanonicalName    string    `json:"canonicalName,omitempty"`
	Confidence       float64   `json:"confidence"`
	ExtractedNumbers []float64 `json:"extractedNumbers,omitempty"`
	MatchedTerms     []string  `json:"matchedTerms,omitempty"`
	Policy           string    `json:"policy"`
}

// Unknown reports whether no entry qualified.
func (r Result) Unknown() bool { return r.Category == CategoryUnknown }

// Classifier binds a lexicon to a selection policy. It holds no mutable state and
// is safe for concurrent use.
type Classifier struct {
	lexicon        *Lexicon
	policy         Policy
	extractNumbers bool
}

// Option configures a Classifier
type Option func(*Classifier)

// WithNumberExtraction attaches numeric literals of the text to score results,
// for calculator pre-fill.
func WithNumberExtraction() Option {
	return func(c *Classifier) { c.extractNumbers = true }
}

// New creates a classifier
func New(lex *Lexicon, policy Policy, opts ...Option) (*Classifier, error) {
	if lex == nil {
		return nil, errors.New("lexicon is required")
	}
	if policy == nil {
		return nil, errors.New("policy is required")
	}
	c := &Classifier{lexicon: lex, policy: policy}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewIntentClassifier creates the weighted-sum classifier used for request routing.
func NewIntentClassifier(lex *Lexicon) (*Classifier, error) {
	return New(lex, NewWeightedSum(), WithNumberExtraction())
}

// NewScoreClassifier creates the context-confirmed classifier used for score detection.
func NewScoreClassifier(lex *Lexicon) (*Classifier, error) {
	return New(lex, NewContextMatch(), WithNumberExtraction())
}

// Lexicon returns the table the classifier was built with.
func (c *Classifier) Lexicon() *Lexicon { return c.lexicon }

// Classify normalizes text and runs the configured policy over the lexicon.
func (c *Classifier) Classify(text string) Result {
	res := Classify(text, c.lexicon, c.policy)
	if c.extractNumbers && res.Category == CategoryScore {
		res.ExtractedNumbers = ExtractNumbers(text)
	}
	return res
}

// Classify is the policy-parameterized matcher shared by every classifier.
func Classify(text string, lex *Lexicon, policy Policy) Result {
	normalized := textnorm.Normalize(text)

	m, ok := policy.Select(normalized, lex)
	if !ok {
		return Result{Category: CategoryUnknown, Confidence: 0, Policy: policy.Name()}
	}

	return Result{
		Category:      m.Entry.Category,
		Slug:          m.Entry.Slug,
		CanonicalName: m.Entry.CanonicalName,
		Confidence:    m.Score,
		MatchedTerms:  m.MatchedTerms,
		Policy:        policy.Name(),
	}
}

// ExtractNumbers returns every run of digits in text, in order of appearance.
func ExtractNumbers(text string) []float64 {
	found := numberPattern.FindAllString(text, -1)
	if len(found) == 0 {
		return nil
	}
	out := make([]float64, 0, len(found))
	for _, f := range found {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}
