// dictionary.go: static mapping tables consumed by the matchers. The YAML
// files under data/ are embedded at build time; their entry order is the
// deterministic tie-break order for matching.
package resolver

import (
	"fmt"

	"embed"

	"gopkg.in/yaml.v3"
)

//go:embed data/codemap.yaml data/synonyms.yaml
var dictionaryFiles embed.FS

// CodeMapping maps one provider-native code onto a canonical product slug.
// Name, Category and DefaultUnit seed lazy creation when the canonical product
// does not exist yet.
type CodeMapping struct {
	Provider    string `yaml:"provider"`
	Code        string `yaml:"code"`
	Slug        string `yaml:"slug"`
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	DefaultUnit string `yaml:"defaultUnit"`
}

// CountryCodeMapping maps one provider-native country code onto an ISO2 code.
type CountryCodeMapping struct {
	Provider string `yaml:"provider"`
	Code     string `yaml:"code"`
	ISO2     string `yaml:"iso2"`
}

// SynonymEntry lists provider-language name substrings for one canonical
// product, in match-priority order.
type SynonymEntry struct {
	Slug     string   `yaml:"slug"`
	Synonyms []string `yaml:"synonyms"`
}

// CountrySynonymEntry lists name substrings for one canonical country.
type CountrySynonymEntry struct {
	ISO2     string   `yaml:"iso2"`
	Synonyms []string `yaml:"synonyms"`
}

type codeMapFile struct {
	Products  []CodeMapping        `yaml:"products"`
	Countries []CountryCodeMapping `yaml:"countries"`
}

type synonymsFile struct {
	Products  []SynonymEntry        `yaml:"products"`
	Countries []CountrySynonymEntry `yaml:"countries"`
}

// Dictionary bundles the static resolver inputs: the exact code-mapping table
// and the fallback synonym lists.
type Dictionary struct {
	ProductCodes    []CodeMapping
	CountryCodes    []CountryCodeMapping
	ProductSynonyms []SynonymEntry
	CountrySynonyms []CountrySynonymEntry
}

// LoadDictionary parses the embedded mapping files.
func LoadDictionary() (*Dictionary, error) {
	codeData, err := dictionaryFiles.ReadFile("data/codemap.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded code map: %w", err)
	}
	var codes codeMapFile
	if err := yaml.Unmarshal(codeData, &codes); err != nil {
		return nil, fmt.Errorf("parsing code map: %w", err)
	}

	synData, err := dictionaryFiles.ReadFile("data/synonyms.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded synonyms: %w", err)
	}
	var synonyms synonymsFile
	if err := yaml.Unmarshal(synData, &synonyms); err != nil {
		return nil, fmt.Errorf("parsing synonyms: %w", err)
	}

	return &Dictionary{
		ProductCodes:    codes.Products,
		CountryCodes:    codes.Countries,
		ProductSynonyms: synonyms.Products,
		CountrySynonyms: synonyms.Countries,
	}, nil
}

// codeMappingFor returns the product code mapping for a provider code, if any.
func (d *Dictionary) codeMappingFor(provider, code string) (CodeMapping, bool) {
	for _, m := range d.ProductCodes {
		if m.Provider == provider && m.Code == code {
			return m, true
		}
	}
	return CodeMapping{}, false
}

// countryCodeMappingFor returns the country code mapping for a provider code, if any.
func (d *Dictionary) countryCodeMappingFor(provider, code string) (CountryCodeMapping, bool) {
	for _, m := range d.CountryCodes {
		if m.Provider == provider && m.Code == code {
			return m, true
		}
	}
	return CountryCodeMapping{}, false
}
