package resolver

import (
	"strings"

	"github.com/agropanel/agriprice-go/internal/datastore"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Match confidence tiers. An exact provider-code mapping outranks a dictionary
// synonym hit, which outranks a plain canonical-name substring.
const (
	ConfidenceCode       = 100
	ConfidenceDictionary = 95
	ConfidenceName       = 90
)

// Candidate is one unlinked source record presented to the matchers.
type Candidate struct {
	Provider string
	Code     string
	Name     string
}

// Match is a successful mapping of a candidate onto a canonical slug. For
// country matchers the slug is the ISO2 code.
type Match struct {
	Slug       string
	Confidence int
	// Seed data for lazy creation; populated only by the code matcher.
	Mapping *CodeMapping
}

// Matcher maps a source candidate onto a canonical entity. Implementations
// must be deterministic: the same candidate always yields the same match.
type Matcher interface {
	Name() string
	Match(c Candidate) (Match, bool)
}

// normalizeName lowercases and canonicalizes a provider name so substring
// matching is stable across case and Unicode composition differences. A fresh
// caser per call; cases.Caser is stateful and not safe for concurrent use.
func normalizeName(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// codeMatcher resolves candidates through the exact provider-code table.
type codeMatcher struct {
	dict *Dictionary
}

func (m *codeMatcher) Name() string { return "code" }

func (m *codeMatcher) Match(c Candidate) (Match, bool) {
	if c.Code == "" {
		return Match{}, false
	}
	mapping, ok := m.dict.codeMappingFor(c.Provider, c.Code)
	if !ok {
		return Match{}, false
	}
	return Match{Slug: mapping.Slug, Confidence: ConfidenceCode, Mapping: &mapping}, true
}

// dictEntry is one canonical target the dictionary matcher scans, with its
// synonyms and canonical display name already normalized.
type dictEntry struct {
	slug          string
	synonyms      []string
	canonicalName string
}

// dictionaryMatcher resolves candidates by name: first against the curated
// synonym lists, then against the canonical display names themselves. Entries
// are scanned in order, so the first configured entry wins ties.
type dictionaryMatcher struct {
	entries []dictEntry
}

func (m *dictionaryMatcher) Name() string { return "dictionary" }

func (m *dictionaryMatcher) Match(c Candidate) (Match, bool) {
	name := normalizeName(c.Name)
	if name == "" {
		return Match{}, false
	}
	for _, e := range m.entries {
		for _, syn := range e.synonyms {
			if syn != "" && strings.Contains(name, syn) {
				return Match{Slug: e.slug, Confidence: ConfidenceDictionary}, true
			}
		}
	}
	for _, e := range m.entries {
		if e.canonicalName != "" && strings.Contains(name, e.canonicalName) {
			return Match{Slug: e.slug, Confidence: ConfidenceName}, true
		}
	}
	return Match{}, false
}

// newProductMatchers builds the ordered matcher chain for source products.
// Synonym entries keep their file order; canonical names follow in the order
// the products were returned by the store.
func newProductMatchers(dict *Dictionary, products []datastore.GlobalProduct) []Matcher {
	nameBySlug := make(map[string]string, len(products))
	for _, p := range products {
		nameBySlug[p.Slug] = normalizeName(p.Name)
	}

	entries := make([]dictEntry, 0, len(dict.ProductSynonyms)+len(products))
	seen := make(map[string]bool, len(dict.ProductSynonyms))
	for _, s := range dict.ProductSynonyms {
		e := dictEntry{slug: s.Slug, canonicalName: nameBySlug[s.Slug]}
		for _, syn := range s.Synonyms {
			e.synonyms = append(e.synonyms, normalizeName(syn))
		}
		entries = append(entries, e)
		seen[s.Slug] = true
	}
	for _, p := range products {
		if !seen[p.Slug] {
			entries = append(entries, dictEntry{slug: p.Slug, canonicalName: normalizeName(p.Name)})
		}
	}

	return []Matcher{
		&codeMatcher{dict: dict},
		&dictionaryMatcher{entries: entries},
	}
}

// newCountryMatchers builds the ordered matcher chain for source countries.
// Matches carry the ISO2 code in the slug field.
func newCountryMatchers(dict *Dictionary, countries []datastore.GlobalCountry) []Matcher {
	nameByISO2 := make(map[string]string, len(countries))
	for _, c := range countries {
		nameByISO2[c.ISO2] = normalizeName(c.Name)
	}

	entries := make([]dictEntry, 0, len(dict.CountrySynonyms)+len(countries))
	seen := make(map[string]bool, len(dict.CountrySynonyms))
	for _, s := range dict.CountrySynonyms {
		e := dictEntry{slug: s.ISO2, canonicalName: nameByISO2[s.ISO2]}
		for _, syn := range s.Synonyms {
			e.synonyms = append(e.synonyms, normalizeName(syn))
		}
		entries = append(entries, e)
		seen[s.ISO2] = true
	}
	for _, c := range countries {
		if !seen[c.ISO2] {
			entries = append(entries, dictEntry{slug: c.ISO2, canonicalName: normalizeName(c.Name)})
		}
	}

	codes := &countryCodeMatcher{dict: dict}
	return []Matcher{codes, &dictionaryMatcher{entries: entries}}
}

// countryCodeMatcher resolves candidates through the provider country-code table.
type countryCodeMatcher struct {
	dict *Dictionary
}

func (m *countryCodeMatcher) Name() string { return "code" }

func (m *countryCodeMatcher) Match(c Candidate) (Match, bool) {
	if c.Code == "" {
		return Match{}, false
	}
	mapping, ok := m.dict.countryCodeMappingFor(c.Provider, c.Code)
	if !ok {
		return Match{}, false
	}
	return Match{Slug: mapping.ISO2, Confidence: ConfidenceCode}, true
}

// firstMatch runs the matcher chain in order and returns the first hit.
func firstMatch(matchers []Matcher, c Candidate) (Match, string, bool) {
	for _, m := range matchers {
		if match, ok := m.Match(c); ok {
			return match, m.Name(), true
		}
	}
	return Match{}, "", false
}
