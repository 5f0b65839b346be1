package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/intent"
)

type Intent = intent.Intent

type Phrase struct {
	Text  string `json:"phrase"`
	Count int    `json:"count"`
}

type Mode string

const (
	ModeContext Mode = "context" // контекстная реклама: узкие группы под объявления
	ModeSEO     Mode = "seo"     // SEO: широкие темы под страницы
)

// ParseMode accepts "context" and "seo". An empty string means context.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeContext:
		return ModeContext, nil
	case ModeSEO:
		return ModeSEO, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrBadArguments, s)
}

type Source string

const (
	SourceLocal      Source = "local"
	SourceGenerative Source = "generative"
)

type ClusterStats struct {
	AvgWordCount float64 `json:"avg_words"`
	MaxFrequency int     `json:"max_frequency"`
	MinFrequency int     `json:"min_frequency"`
}

type Cluster struct {
	Name       string       `json:"cluster_name"`
	Intent     Intent       `json:"intent"`
	Phrases    []Phrase     `json:"phrases"`
	TotalCount int          `json:"total_count"`
	Stats      ClusterStats `json:"stats"`
}

type MinusWordCategory struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Phrases     []Phrase `json:"phrases"`
	TotalVolume int      `json:"total_volume"`
}

type Result struct {
	ID             string                       `json:"id"`
	Mode           Mode                         `json:"mode"`
	Source         Source                       `json:"source"`
	Clusters       []Cluster                    `json:"clusters"`
	MinusWords     map[string]MinusWordCategory `json:"minus_words,omitempty"`
	FallbackReason string                       `json:"fallback_reason,omitempty"`
	CreatedAt      time.Time                    `json:"created_at"`
}

// PhraseCount returns the number of distinct phrases placed in clusters.
func (r Result) PhraseCount() int {
	n := 0
	for _, c := range r.Clusters {
		n += len(c.Phrases)
	}
	return n
}

func (r Result) MinusPhraseCount() int {
	n := 0
	for _, c := range r.MinusWords {
		n += len(c.Phrases)
	}
	return n
}

type ClusterRequest struct {
	Phrases         []Phrase
	Mode            Mode
	UseGenerative   bool
	RegionNames     []string
	SelectedIntents []string
}

type Region struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	ParentID int    `json:"parent_id"`
	Type     string `json:"type"`
}

type ChatRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	JSON        bool // просим модель вернуть json-объект
}

type ClusteringEvent struct {
	ID             string    `json:"id"`
	Mode           Mode      `json:"mode"`
	Source         Source    `json:"source"`
	Phrases        int       `json:"phrases"`
	Clusters       int       `json:"clusters"`
	MinusPhrases   int       `json:"minus_phrases"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
	FinishedAt     time.Time `json:"finished_at"`
}

type MinusSuggestion struct {
	Words    []string
	Analyzed int
	Total    int
	Source   Source
}
