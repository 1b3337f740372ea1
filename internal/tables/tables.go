// Package tables loads the versioned keyword, currency and partner tables
// from a YAML file at startup. Keeping these out of the binary lets
// compliance keyword sets and partner category mappings change without a
// rebuild.
package tables

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Currency describes one supported currency pattern and its static USD rate.
type Currency struct {
	Symbols   []string `yaml:"symbols"`
	RateToUSD float64  `yaml:"rate_to_usd"`
}

// Partner is a configured buyer of leads in a fixed category.
type Partner struct {
	Name      string  `yaml:"name"`
	FlatValue float64 `yaml:"flat_value"`
	URL       string  `yaml:"url"`
}

// Location is a known place matched against message text.
type Location struct {
	Country string   `yaml:"country"`
	Region  string   `yaml:"region"`
	City    string   `yaml:"city"`
	Lat     *float64 `yaml:"lat"`
	Lon     *float64 `yaml:"lon"`
	Aliases []string `yaml:"aliases"`
}

// Keywords holds the mandatory compliance keyword sets.
type Keywords struct {
	OptOut []string `yaml:"opt_out"`
	OptIn  []string `yaml:"opt_in"`
	Help   []string `yaml:"help"`
}

// Tables is the full versioned table set.
type Tables struct {
	Version      int                          `yaml:"version"`
	Keywords     Keywords                     `yaml:"keywords"`
	Affirmatives map[string][]string          `yaml:"affirmatives"`
	Negatives    map[string][]string          `yaml:"negatives"`
	Messages     map[string]map[string]string `yaml:"messages"`
	Currencies   map[string]Currency          `yaml:"currencies"`
	Partners     map[string]Partner           `yaml:"partners"`
	Locations    []Location                   `yaml:"locations"`
}

// Load reads and validates the table file at path.
func Load(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tables file: %w", err)
	}

	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse tables file: %w", err)
	}

	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("invalid tables file %s: %w", path, err)
	}

	return &t, nil
}

func (t *Tables) validate() error {
	if len(t.Keywords.OptOut) == 0 {
		return fmt.Errorf("keywords.opt_out must not be empty")
	}
	if len(t.Keywords.OptIn) == 0 {
		return fmt.Errorf("keywords.opt_in must not be empty")
	}
	if len(t.Keywords.Help) == 0 {
		return fmt.Errorf("keywords.help must not be empty")
	}
	if len(t.Affirmatives["en"]) == 0 {
		return fmt.Errorf("affirmatives.en must not be empty")
	}
	if _, ok := t.Messages["en"]; !ok {
		return fmt.Errorf("messages.en is required as the fallback language")
	}
	for code, cur := range t.Currencies {
		if cur.RateToUSD <= 0 {
			return fmt.Errorf("currencies.%s.rate_to_usd must be positive", code)
		}
	}
	return nil
}

// Message returns the localized copy for key, falling back to English.
func (t *Tables) Message(lang, key string) string {
	if msgs, ok := t.Messages[strings.ToLower(lang)]; ok {
		if msg, ok := msgs[key]; ok {
			return msg
		}
	}
	return t.Messages["en"][key]
}

// AffirmativeSet returns the language-specific "yes" set, falling back to English.
func (t *Tables) AffirmativeSet(lang string) []string {
	if set, ok := t.Affirmatives[strings.ToLower(lang)]; ok {
		return set
	}
	return t.Affirmatives["en"]
}

// NegativeSet returns the language-specific "no" set, falling back to English.
func (t *Tables) NegativeSet(lang string) []string {
	if set, ok := t.Negatives[strings.ToLower(lang)]; ok {
		return set
	}
	return t.Negatives["en"]
}

// PartnerFor resolves the configured partner for a lead category.
func (t *Tables) PartnerFor(category string) (Partner, bool) {
	p, ok := t.Partners[strings.ToLower(strings.TrimSpace(category))]
	return p, ok
}
