package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/intent"
	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/lexicon"
)

const (
	generativeTemperature = 0.3
	otherMinusCategory    = "other"
)

var errTooManyPhrases = errors.New("too many phrases for generative clustering")

// GenerativeClusterer asks a language model to cluster phrases and accepts
// the answer only if every input phrase comes back exactly once.
type GenerativeClusterer struct {
	log        *slog.Logger
	gen        Generator
	classifier *intent.Classifier
	lex        *lexicon.Lexicon
	timeout    time.Duration
	maxPhrases int
}

type generativeHints struct {
	mode            Mode
	regionNames     []string
	selectedIntents []string
}

type generativeOutput struct {
	clusters   []Cluster
	minusWords map[string]MinusWordCategory
}

func (g *GenerativeClusterer) Cluster(ctx context.Context, phrases []Phrase, hints generativeHints) (generativeOutput, error) {
	if g.maxPhrases > 0 && len(phrases) > g.maxPhrases {
		return generativeOutput{}, fmt.Errorf("%w: %d > %d", errTooManyPhrases, len(phrases), g.maxPhrases)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	raw, err := g.gen.Complete(ctx, ChatRequest{
		System:      g.systemPrompt(hints),
		User:        userPrompt(phrases),
		Temperature: generativeTemperature,
		JSON:        true,
	})
	if err != nil {
		return generativeOutput{}, fmt.Errorf("generative call: %w", err)
	}

	resp, err := parseGenerative(raw)
	if err != nil {
		return generativeOutput{}, err
	}
	return g.accept(phrases, resp, hints.mode)
}

func (g *GenerativeClusterer) systemPrompt(h generativeHints) string {
	var b strings.Builder
	b.WriteString("Ты эксперт по семантическому ядру и контекстной рекламе. ")
	b.WriteString("Сгруппируй поисковые фразы в тематические кластеры.\n\n")
	b.WriteString("Строгие правила:\n")
	b.WriteString("1. Копируй фразы дословно, символ в символ. Не исправляй, не сокращай, не переводи.\n")
	b.WriteString("2. Не придумывай новых фраз.\n")
	b.WriteString("3. Не пропускай ни одной фразы из списка.\n")
	b.WriteString("4. Каждая фраза должна попасть ровно в один кластер.\n")
	b.WriteString("5. Название кластера - 1-3 слова по-русски, с заглавной буквы.\n")
	b.WriteString("6. intent кластера: commercial, informational или general.\n\n")

	if h.mode == ModeSEO {
		b.WriteString("Режим SEO: широкие темы под отдельные страницы сайта, 10-25 фраз в кластере.\n")
	} else {
		b.WriteString("Режим контекстной рекламы: узкие группы под объявления, 3-7 фраз в кластере.\n")
		b.WriteString("Дополнительно выдели минус-фразы (нецелевые запросы) по категориям: ")
		keys := make([]string, 0, len(g.lex.MinusCategories))
		for _, c := range g.lex.MinusCategories {
			keys = append(keys, fmt.Sprintf("%s (%s)", c.Key, c.Name))
		}
		b.WriteString(strings.Join(keys, ", "))
		b.WriteString(". Минус-фразы тоже копируй дословно из списка, каждую не более одного раза.\n")
	}
	if len(h.selectedIntents) > 0 {
		b.WriteString("Пользователя в первую очередь интересуют интенты: ")
		b.WriteString(strings.Join(h.selectedIntents, ", "))
		b.WriteString(". Всё равно распредели все фразы.\n")
	}
	if len(h.regionNames) > 0 {
		b.WriteString("Регионы показа: ")
		b.WriteString(strings.Join(h.regionNames, ", "))
		b.WriteString(".\n")
	}

	b.WriteString("\nОтвечай только JSON без пояснений в формате:\n")
	b.WriteString(`{"clusters":[{"cluster_name":"Название","intent":"commercial","phrases":[{"phrase":"фраза","count":100}]}],"minus_words":{"free":["фраза"]}}`)
	return b.String()
}

func userPrompt(phrases []Phrase) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Фразы (%d шт., в скобках частотность):\n", len(phrases))
	for _, p := range phrases {
		fmt.Fprintf(&b, "%s (%d)\n", p.Text, p.Count)
	}
	return b.String()
}

type generativeResponse struct {
	Clusters   []generativeCluster `json:"clusters"`
	MinusWords map[string][]string `json:"minus_words"`
}

type generativeCluster struct {
	Name    string             `json:"cluster_name"`
	Intent  string             `json:"intent"`
	Phrases []generativePhrase `json:"phrases"`
}

type generativePhrase struct {
	Phrase string `json:"phrase"`
	Count  int    `json:"count"`
}

// UnmarshalJSON accepts both {"phrase": ..., "count": ...} and a bare string.
func (p *generativePhrase) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &p.Phrase)
	}
	type plain generativePhrase
	return json.Unmarshal(data, (*plain)(p))
}

// stripFences убирает markdown-обёртку ```json ... ```
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func parseGenerative(raw string) (generativeResponse, error) {
	var resp generativeResponse
	dec := json.NewDecoder(bytes.NewReader([]byte(stripFences(raw))))
	if err := dec.Decode(&resp); err != nil {
		return generativeResponse{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(resp.Clusters) == 0 {
		return generativeResponse{}, fmt.Errorf("%w: no clusters", ErrMalformed)
	}
	for i, c := range resp.Clusters {
		if strings.TrimSpace(c.Name) == "" && len(c.Phrases) > 0 {
			return generativeResponse{}, fmt.Errorf("%w: cluster %d without name", ErrMalformed, i)
		}
	}
	return resp, nil
}

// validateFidelity compares the returned phrases with the input as sets of
// lowercased trimmed texts.
func validateFidelity(input []Phrase, resp generativeResponse) error {
	original := make(map[string]bool, len(input))
	for _, p := range input {
		original[phraseKey(p.Text)] = true
	}

	verr := &ValidationError{}
	returned := make(map[string]bool, len(input))
	for _, c := range resp.Clusters {
		for _, p := range c.Phrases {
			key := phraseKey(p.Phrase)
			switch {
			case !original[key]:
				verr.Added = append(verr.Added, p.Phrase)
			case returned[key]:
				verr.Duplicated = append(verr.Duplicated, p.Phrase)
			default:
				returned[key] = true
			}
		}
	}
	for _, p := range input {
		if !returned[phraseKey(p.Text)] {
			verr.Missing = append(verr.Missing, p.Text)
		}
	}

	minusSeen := make(map[string]bool)
	for _, list := range resp.MinusWords {
		for _, text := range list {
			key := phraseKey(text)
			switch {
			case !original[key]:
				verr.Added = append(verr.Added, text)
			case minusSeen[key]:
				verr.Duplicated = append(verr.Duplicated, text)
			default:
				minusSeen[key] = true
			}
		}
	}

	if len(verr.Added)+len(verr.Missing)+len(verr.Duplicated) > 0 {
		return verr
	}
	return nil
}

// accept rebuilds clusters from the input phrases so that texts and counts
// always come from the caller, never from the model.
func (g *GenerativeClusterer) accept(input []Phrase, resp generativeResponse, mode Mode) (generativeOutput, error) {
	if err := validateFidelity(input, resp); err != nil {
		return generativeOutput{}, err
	}

	byKey := make(map[string]Phrase, len(input))
	for _, p := range input {
		byKey[phraseKey(p.Text)] = p
	}

	var out generativeOutput
	for _, gc := range resp.Clusters {
		if len(gc.Phrases) == 0 {
			continue
		}
		phrases := make([]Phrase, 0, len(gc.Phrases))
		for _, p := range gc.Phrases {
			phrases = append(phrases, byKey[phraseKey(p.Phrase)])
		}
		cl := buildCluster(strings.TrimSpace(gc.Name), intent.General, phrases)
		it, ok := intent.Parse(gc.Intent)
		if !ok {
			intents := make([]Intent, len(cl.Phrases))
			for i, p := range cl.Phrases {
				intents[i] = g.classifier.Classify(p.Text)
			}
			it = intent.Majority(intents)
		}
		cl.Intent = it
		out.clusters = append(out.clusters, cl)
	}

	if mode != ModeContext {
		return out, nil
	}

	for key, list := range resp.MinusWords {
		if len(list) == 0 {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if _, ok := g.lex.CategoryName(key); !ok {
			key = otherMinusCategory
		}
		if out.minusWords == nil {
			out.minusWords = make(map[string]MinusWordCategory)
		}
		cat := out.minusWords[key]
		cat.Key = key
		cat.Name, _ = g.lex.CategoryName(key)
		for _, text := range list {
			p := byKey[phraseKey(text)]
			cat.Phrases = append(cat.Phrases, p)
			cat.TotalVolume += p.Count
		}
		out.minusWords[key] = cat
	}
	for key, cat := range out.minusWords {
		sortByFrequency(cat.Phrases, func(p Phrase) int { return p.Count })
		out.minusWords[key] = cat
	}
	return out, nil
}

// fallbackReason names the failure for logs and metrics.
func fallbackReason(err error) string {
	switch {
	case errors.Is(err, errTooManyPhrases):
		return "too_many_phrases"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrExternalService):
		return "provider"
	}
	return "transport"
}
