package lemma

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kljensen/snowball"
	"golang.org/x/text/unicode/norm"
)

const defaultCacheSize = 50_000

// Lemmatizer maps a Russian word to its stem. Words in other scripts are
// only case-folded. Results are memoized in a bounded LRU cache, which is
// safe for concurrent use.
type Lemmatizer struct {
	log   *slog.Logger
	cache *lru.Cache[string, string]
}

func New(log *slog.Logger, cacheSize int) (*Lemmatizer, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("lemma cache: %w", err)
	}
	return &Lemmatizer{
		log:   log,
		cache: cache,
	}, nil
}

func (l *Lemmatizer) Lemma(word string) string {
	w := fold(word)
	if w == "" {
		return ""
	}
	if cached, ok := l.cache.Get(w); ok {
		return cached
	}

	lemma := w
	if isCyrillic(w) {
		stem, err := snowball.Stem(w, "russian", true)
		if err != nil {
			l.log.Debug("cannot stem word", "word", w, "error", err)
		} else if stem != "" {
			lemma = stem
		}
	}

	l.cache.Add(w, lemma)
	return lemma
}

// fold приводит слово к NFC, нижнему регистру и заменяет ё на е
func fold(word string) string {
	w := norm.NFC.String(strings.TrimSpace(word))
	w = strings.ToLower(w)
	return strings.ReplaceAll(w, "ё", "е")
}

func isCyrillic(w string) bool {
	for _, r := range w {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}
