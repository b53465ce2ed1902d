// Package classifier routes free-text clinician queries to calculators, scores,
// protocols or documentation flows by substring matching against a lexicon.
package classifier

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/medassist/clinical-core/internal/textnorm"
)

// Category is the routing destination of a lexicon entry
type Category string

const (
	CategoryScore         Category = "score"
	CategoryCalculator    Category = "calculator"
	CategoryProtocol      Category = "protocol"
	CategoryDocumentation Category = "documentation"
	CategoryUnknown       Category = "unknown"
)

// Valid reports whether c can label a lexicon entry.
func (c Category) Valid() bool {
	switch c {
	case CategoryScore, CategoryCalculator, CategoryProtocol, CategoryDocumentation:
		return true
	}
	return false
}

// Entry is one routable item of a lexicon
type Entry struct {
	Category      Category `yaml:"category" json:"category"`
	Slug          string   `yaml:"slug" json:"slug"`
	CanonicalName string   `yaml:"canonical_name" json:"canonicalName"`
	Keywords      []string `yaml:"keywords" json:"keywords"`
	ContextTerms  []string `yaml:"context_terms" json:"contextTerms,omitempty"`
	Priority      int      `yaml:"priority" json:"priority"`
}

// LexiconSpec is the raw, unnormalized form of a lexicon as written in code or YAML.
type LexiconSpec struct {
	Entries           []Entry               `yaml:"entries"`
	Indicators        map[Category][]string `yaml:"indicators"`
	GenericIndicators []string              `yaml:"generic_indicators"`
}

// ErrInvalidLexicon is wrapped by every lexicon construction failure.
var ErrInvalidLexicon = errors.New("invalid lexicon")

// Lexicon is an immutable, normalized lookup table. Entry order is significant:
// it breaks ties in favour of the earlier entry.
type Lexicon struct {
	entries    []Entry
	bySlug     map[string]int
	indicators map[Category][]string
	generic    []string
}

// NewLexicon validates spec and normalizes all of its terms.
func NewLexicon(spec LexiconSpec) (*Lexicon, error) {
	if len(spec.Entries) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrInvalidLexicon)
	}

	lex := &Lexicon{
		entries:    make([]Entry, 0, len(spec.Entries)),
		bySlug:     make(map[string]int, len(spec.Entries)),
		indicators: make(map[Category][]string, len(spec.Indicators)),
		generic:    normalizeTerms(spec.GenericIndicators),
	}

	for i, e := range spec.Entries {
		if e.Slug == "" {
			return nil, fmt.Errorf("%w: entry %d has no slug", ErrInvalidLexicon, i)
		}
		if _, dup := lex.bySlug[e.Slug]; dup {
			return nil, fmt.Errorf("%w: duplicate slug %q", ErrInvalidLexicon, e.Slug)
		}
		if !e.Category.Valid() {
			return nil, fmt.Errorf("%w: entry %q has category %q", ErrInvalidLexicon, e.Slug, e.Category)
		}
		if e.Priority < 0 {
			return nil, fmt.Errorf("%w: entry %q has negative priority", ErrInvalidLexicon, e.Slug)
		}

		keywords := normalizeTerms(e.Keywords)
		if len(keywords) == 0 {
			return nil, fmt.Errorf("%w: entry %q has no keywords", ErrInvalidLexicon, e.Slug)
		}

		lex.bySlug[e.Slug] = len(lex.entries)
		lex.entries = append(lex.entries, Entry{
			Category:      e.Category,
			Slug:          e.Slug,
			CanonicalName: e.CanonicalName,
			Keywords:      keywords,
			ContextTerms:  normalizeTerms(e.ContextTerms),
			Priority:      e.Priority,
		})
	}

	for cat, terms := range spec.Indicators {
		if !cat.Valid() {
			return nil, fmt.Errorf("%w: indicators for category %q", ErrInvalidLexicon, cat)
		}
		lex.indicators[cat] = normalizeTerms(terms)
	}

	return lex, nil
}

// LoadLexicon decodes a YAML lexicon.
func LoadLexicon(r io.Reader) (*Lexicon, error) {
	var spec LexiconSpec
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode lexicon: %w", err)
	}
	return NewLexicon(spec)
}

// LoadLexiconFile opens path and decodes it with LoadLexicon.
func LoadLexiconFile(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lexicon: %w", err)
	}
	defer f.Close()

	lex, err := LoadLexicon(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lex, nil
}

// Len returns the number of entries.
func (l *Lexicon) Len() int { return len(l.entries) }

// Entry returns the i-th entry in table order.
func (l *Lexicon) Entry(i int) *Entry { return &l.entries[i] }

// Lookup finds an entry by slug.
func (l *Lexicon) Lookup(slug string) (Entry, bool) {
	i, ok := l.bySlug[slug]
	if !ok {
		return Entry{}, false
	}
	return l.entries[i], true
}

// Indicators returns the category-level indicator phrases for c.
func (l *Lexicon) Indicators(c Category) []string { return l.indicators[c] }

// GenericIndicators returns the phrases that mark a request to compute a score.
func (l *Lexicon) GenericIndicators() []string { return l.generic }

// normalizeTerms folds each term and drops empties and duplicates, keeping first-seen order.
func normalizeTerms(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		n := textnorm.Normalize(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
