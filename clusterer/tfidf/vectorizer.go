// Package tfidf turns lemmatized phrases into sparse TF-IDF vectors and
// measures cosine similarity between them.
package tfidf

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode/utf8"
)

const minTokenRunes = 3 // токены из 1-2 символов не учитываются

type Term struct {
	Token  string
	Weight float64
}

// Vector is a sparse term vector sorted by token.
type Vector []Term

// Weight returns the weight of token, or 0 if the vector lacks it.
func (v Vector) Weight(token string) float64 {
	i, ok := slices.BinarySearchFunc(v, token, func(t Term, token string) int {
		return strings.Compare(t.Token, token)
	})
	if !ok {
		return 0
	}
	return v[i].Weight
}

func (v Vector) Norm() float64 {
	var sum float64
	for _, t := range v {
		sum += t.Weight * t.Weight
	}
	return math.Sqrt(sum)
}

type Vectorizer struct {
	isStop func(string) bool
}

// NewVectorizer returns a vectorizer that drops tokens for which isStop
// reports true. A nil isStop keeps every token.
func NewVectorizer(isStop func(string) bool) *Vectorizer {
	if isStop == nil {
		isStop = func(string) bool { return false }
	}
	return &Vectorizer{isStop: isStop}
}

// Tokens splits doc by whitespace, lowercases it and drops stopwords and
// tokens shorter than three runes.
func (v *Vectorizer) Tokens(doc string) []string {
	fields := strings.Fields(strings.ToLower(doc))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minTokenRunes || v.isStop(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Vectorize returns one vector per document, index-aligned with corpus.
// idf = ln(N/df) without smoothing, so a term present in every document
// has zero weight and is left out of the vector.
func (v *Vectorizer) Vectorize(corpus []string) []Vector {
	if len(corpus) == 0 {
		return nil
	}

	docs := make([][]string, len(corpus))
	df := make(map[string]int)
	for i, doc := range corpus {
		tokens := v.Tokens(doc)
		docs[i] = tokens
		seen := make(map[string]bool, len(tokens))
		for _, t := range tokens {
			if seen[t] {
				continue
			}
			seen[t] = true
			df[t]++
		}
	}

	n := float64(len(corpus))
	vectors := make([]Vector, len(corpus))
	for i, tokens := range docs {
		if len(tokens) == 0 {
			vectors[i] = Vector{}
			continue
		}
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		docLen := float64(len(tokens))
		vec := make(Vector, 0, len(tf))
		for token, count := range tf {
			w := float64(count) / docLen * math.Log(n/float64(df[token]))
			if w == 0 {
				continue
			}
			vec = append(vec, Term{Token: token, Weight: w})
		}
		slices.SortFunc(vec, func(a, b Term) int {
			return cmp.Compare(a.Token, b.Token)
		})
		vectors[i] = vec
	}
	return vectors
}
