// Package minus detects noise phrases that should become negative keywords
// of an ad campaign. Categories are checked in table order and the first
// category with a matching keyword wins.
package minus

import "strings"

type Category struct {
	Key      string
	Name     string
	Keywords []string
}

// Match is one non-empty category with the indexes of its phrases.
type Match struct {
	Category Category
	Indexes  []int
}

type Detector struct {
	categories []Category
}

// NewDetector expects lowercase keywords.
func NewDetector(categories []Category) *Detector {
	return &Detector{categories: categories}
}

// Categorize returns the first category matching phrase.
func (d *Detector) Categorize(phrase string) (Category, bool) {
	text := strings.ToLower(phrase)
	for _, c := range d.categories {
		for _, kw := range c.Keywords {
			if strings.Contains(text, kw) {
				return c, true
			}
		}
	}
	return Category{}, false
}

// Detect assigns every phrase to at most one category. Categories come
// back in table order, empty ones are omitted.
func (d *Detector) Detect(phrases []string) []Match {
	byKey := make(map[string][]int)
	for i, p := range phrases {
		c, ok := d.Categorize(p)
		if !ok {
			continue
		}
		byKey[c.Key] = append(byKey[c.Key], i)
	}

	out := make([]Match, 0, len(byKey))
	for _, c := range d.categories {
		if idx, ok := byKey[c.Key]; ok {
			out = append(out, Match{Category: c, Indexes: idx})
		}
	}
	return out
}

// Keywords returns the distinct keywords found in phrases, in table order.
func (d *Detector) Keywords(phrases []string) []string {
	lowered := make([]string, len(phrases))
	for i, p := range phrases {
		lowered[i] = strings.ToLower(p)
	}

	var out []string
	seen := make(map[string]bool)
	for _, c := range d.categories {
		for _, kw := range c.Keywords {
			if seen[kw] {
				continue
			}
			for _, p := range lowered {
				if strings.Contains(p, kw) {
					seen[kw] = true
					out = append(out, kw)
					break
				}
			}
		}
	}
	return out
}
