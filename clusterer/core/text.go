package core

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/lexicon"
)

const minNameRunes = 3

func phraseKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// NormalizePhrases trims phrases, drops empty ones and removes duplicates by
// case-insensitive text. The first occurrence wins.
func NormalizePhrases(in []Phrase) ([]Phrase, error) {
	out := make([]Phrase, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, p := range in {
		if p.Count < 0 {
			return nil, fmt.Errorf("%w: negative count for %q", ErrBadArguments, p.Text)
		}
		text := strings.Join(strings.Fields(p.Text), " ")
		if text == "" {
			continue
		}
		key := phraseKey(text)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Phrase{Text: text, Count: p.Count})
	}
	return out, nil
}

// splitWords разбивает фразу на слова: буквы, цифры и дефисы внутри слова
func splitWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

type lemmatized struct {
	phrase Phrase
	words  []string
	lemmas []string
}

func (l lemmatized) lemmaText() string {
	return strings.Join(l.lemmas, " ")
}

// analyzer lemmatizes phrases and knows which lemmas carry no meaning.
type analyzer struct {
	lemmatizer  Lemmatizer
	stops       map[string]bool
	namingStops map[string]bool
}

func newAnalyzer(lemmatizer Lemmatizer, lex *lexicon.Lexicon) *analyzer {
	a := &analyzer{lemmatizer: lemmatizer}
	a.stops = a.wordSet(lex.Stopwords)
	a.namingStops = a.wordSet(lex.NamingStopwords)
	return a
}

// wordSet holds both the surface form and the lemma of every word.
func (a *analyzer) wordSet(words []string) map[string]bool {
	set := make(map[string]bool, 2*len(words))
	for _, w := range words {
		set[w] = true
		if l := a.lemmatizer.Lemma(w); l != "" {
			set[l] = true
		}
	}
	return set
}

func (a *analyzer) isStop(token string) bool {
	return a.stops[token]
}

func (a *analyzer) analyze(p Phrase) lemmatized {
	words := splitWords(p.Text)
	out := lemmatized{
		phrase: p,
		words:  make([]string, 0, len(words)),
		lemmas: make([]string, 0, len(words)),
	}
	for _, w := range words {
		l := a.lemmatizer.Lemma(w)
		if l == "" {
			continue
		}
		out.words = append(out.words, w)
		out.lemmas = append(out.lemmas, l)
	}
	return out
}

func (a *analyzer) analyzeAll(phrases []Phrase) []lemmatized {
	out := make([]lemmatized, len(phrases))
	for i, p := range phrases {
		out[i] = a.analyze(p)
	}
	return out
}

// name picks the two most frequent meaningful lemmas of the members and
// renders each by its most frequent surface word. Members must be sorted by
// descending frequency.
func (a *analyzer) name(members []lemmatized) string {
	type candidate struct {
		lemma   string
		count   int
		first   int
		surface map[string]int
		order   []string
	}

	byLemma := make(map[string]*candidate)
	var cands []*candidate
	for _, m := range members {
		for i, l := range m.lemmas {
			w := m.words[i]
			if utf8.RuneCountInString(l) < minNameRunes || a.stops[l] || a.stops[w] || a.namingStops[l] || a.namingStops[w] {
				continue
			}
			c, ok := byLemma[l]
			if !ok {
				c = &candidate{lemma: l, first: len(cands), surface: make(map[string]int)}
				byLemma[l] = c
				cands = append(cands, c)
			}
			c.count++
			if c.surface[w] == 0 {
				c.order = append(c.order, w)
			}
			c.surface[w]++
		}
	}

	if len(cands) == 0 {
		return fallbackName(members)
	}

	slices.SortFunc(cands, func(x, y *candidate) int {
		if x.count != y.count {
			return cmp.Compare(y.count, x.count)
		}
		return cmp.Compare(x.first, y.first)
	})

	parts := make([]string, 0, 2)
	for _, c := range cands[:min(2, len(cands))] {
		best := c.order[0]
		for _, w := range c.order[1:] {
			if c.surface[w] > c.surface[best] {
				best = w
			}
		}
		parts = append(parts, best)
	}
	return titleCase(strings.Join(parts, " "))
}

// fallbackName - первые два слова самой частотной фразы
func fallbackName(members []lemmatized) string {
	if len(members) == 0 {
		return ""
	}
	words := strings.Fields(strings.ToLower(members[0].phrase.Text))
	return titleCase(strings.Join(words[:min(2, len(words))], " "))
}

func titleCase(s string) string {
	return cases.Title(language.Russian).String(s)
}

func sortByFrequency[T any](items []T, count func(T) int) {
	slices.SortStableFunc(items, func(a, b T) int {
		return cmp.Compare(count(b), count(a))
	})
}

// buildCluster sorts phrases by descending frequency and fills in totals.
func buildCluster(name string, it Intent, phrases []Phrase) Cluster {
	sorted := slices.Clone(phrases)
	sortByFrequency(sorted, func(p Phrase) int { return p.Count })

	c := Cluster{
		Name:    name,
		Intent:  it,
		Phrases: sorted,
	}
	if len(sorted) == 0 {
		return c
	}

	words := 0
	c.Stats.MaxFrequency = sorted[0].Count
	c.Stats.MinFrequency = sorted[len(sorted)-1].Count
	for _, p := range sorted {
		c.TotalCount += p.Count
		words += len(strings.Fields(p.Text))
	}
	c.Stats.AvgWordCount = float64(words) / float64(len(sorted))
	return c
}
