// Package lexicon holds the word tables the clusterer works with:
// stopwords, naming stopwords, intent markers, competitor markers and
// the ordered minus-word categories.
//
// Tables are loaded once at startup and never modified afterwards, so a
// *Lexicon may be shared between goroutines.
package lexicon

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultRaw []byte

type MinusCategory struct {
	Key      string   `yaml:"key"`
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type Lexicon struct {
	Stopwords            []string        `yaml:"stopwords"`
	NamingStopwords      []string        `yaml:"naming_stopwords"`
	CommercialMarkers    []string        `yaml:"commercial_markers"`
	InformationalMarkers []string        `yaml:"informational_markers"`
	Competitors          []string        `yaml:"competitors"`
	MinusCategories      []MinusCategory `yaml:"minus_categories"`
}

// Default returns the embedded tables.
func Default() (*Lexicon, error) {
	lex, err := Parse(defaultRaw)
	if err != nil {
		return nil, fmt.Errorf("default lexicon: %w", err)
	}
	return lex, nil
}

// Load reads tables from path. An empty path means the embedded defaults.
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	lex, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("lexicon %s: %w", path, err)
	}
	return lex, nil
}

func Parse(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	lex.Stopwords = clean(lex.Stopwords)
	lex.NamingStopwords = clean(lex.NamingStopwords)
	lex.CommercialMarkers = clean(lex.CommercialMarkers)
	lex.InformationalMarkers = clean(lex.InformationalMarkers)
	lex.Competitors = clean(lex.Competitors)
	for i := range lex.MinusCategories {
		c := &lex.MinusCategories[i]
		c.Key = strings.ToLower(strings.TrimSpace(c.Key))
		c.Name = strings.TrimSpace(c.Name)
		c.Keywords = clean(c.Keywords)
	}

	if err := lex.Validate(); err != nil {
		return nil, err
	}
	return &lex, nil
}

func (l *Lexicon) Validate() error {
	if len(l.CommercialMarkers) == 0 || len(l.InformationalMarkers) == 0 {
		return errors.New("intent markers must not be empty")
	}
	seen := make(map[string]bool, len(l.MinusCategories))
	for _, c := range l.MinusCategories {
		if c.Key == "" {
			return errors.New("minus category without key")
		}
		if seen[c.Key] {
			return fmt.Errorf("duplicate minus category %q", c.Key)
		}
		seen[c.Key] = true
		if c.Name == "" {
			return fmt.Errorf("minus category %q without name", c.Key)
		}
		if len(c.Keywords) == 0 {
			return fmt.Errorf("minus category %q without keywords", c.Key)
		}
	}
	return nil
}

// CategoryName returns the display name of the minus category key.
func (l *Lexicon) CategoryName(key string) (string, bool) {
	for _, c := range l.MinusCategories {
		if c.Key == key {
			return c.Name, true
		}
	}
	return "", false
}

// clean приводит к нижнему регистру, убирает пустые строки и дубли
func clean(words []string) []string {
	out := make([]string, 0, len(words))
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
