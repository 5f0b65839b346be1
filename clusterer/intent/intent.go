// Package intent classifies search phrases as commercial, informational or
// general by counting marker substrings.
package intent

import "strings"

type Intent string

const (
	Commercial    Intent = "commercial"
	Informational Intent = "informational"
	General       Intent = "general"
)

// Parse maps s to a known intent. Unknown values report false.
func Parse(s string) (Intent, bool) {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case Commercial:
		return Commercial, true
	case Informational:
		return Informational, true
	case General:
		return General, true
	}
	return General, false
}

type Classifier struct {
	commercial    []string
	informational []string
}

// NewClassifier expects lowercase markers.
func NewClassifier(commercial, informational []string) *Classifier {
	return &Classifier{
		commercial:    commercial,
		informational: informational,
	}
}

// Classify compares the number of commercial and informational marker
// occurrences in phrase. The strictly larger side wins, a tie is general.
func (c *Classifier) Classify(phrase string) Intent {
	text := strings.ToLower(phrase)
	com := count(text, c.commercial)
	inf := count(text, c.informational)
	switch {
	case com > inf:
		return Commercial
	case inf > com:
		return Informational
	}
	return General
}

func count(text string, markers []string) int {
	n := 0
	for _, m := range markers {
		n += strings.Count(text, m)
	}
	return n
}

// Majority returns the most frequent intent. On a tie the intent seen
// first wins. An empty input is general.
func Majority(intents []Intent) Intent {
	counts := make(map[Intent]int, 3)
	order := make([]Intent, 0, 3)
	for _, it := range intents {
		if counts[it] == 0 {
			order = append(order, it)
		}
		counts[it]++
	}

	best, bestCount := General, 0
	for _, it := range order {
		if counts[it] > bestCount {
			best, bestCount = it, counts[it]
		}
	}
	return best
}
