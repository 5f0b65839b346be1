package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	maxSuggestItems   = 100
	namesTemperature  = 0.7
	minusTemperature  = 0.3
	minSuggestedNames = 3
	maxSuggestedNames = 7
)

// SuggestMinusWords asks the generator for negative keywords. Without a
// generator, or when its answer is unusable, the lexicon keywords found in
// the phrases are returned instead.
func (s *Service) SuggestMinusWords(ctx context.Context, phrases []string) (MinusSuggestion, error) {
	phrases = cleanStrings(phrases)
	if len(phrases) == 0 {
		return MinusSuggestion{}, fmt.Errorf("%w: no phrases", ErrBadArguments)
	}
	sample := phrases[:min(maxSuggestItems, len(phrases))]

	res := MinusSuggestion{Analyzed: len(sample), Total: len(phrases)}
	if s.gen != nil {
		words, err := s.completeList(ctx, ChatRequest{
			System: "Ты эксперт по контекстной рекламе. Отвечай только JSON-массивом строк без пояснений.",
			User: "Проанализируй поисковые фразы и предложи минус-слова: нецелевые запросы " +
				"(бесплатно, своими руками, скачать, вакансии, обучение, другие города и т.п.). " +
				"Верни 10-30 слов.\n\nФразы:\n" + strings.Join(sample, "\n"),
			Temperature: minusTemperature,
		})
		if err == nil && len(words) > 0 {
			res.Words = words
			res.Source = SourceGenerative
			return res, nil
		}
		if ctx.Err() != nil {
			return MinusSuggestion{}, ctx.Err()
		}
		s.log.Warn("minus words suggestion failed, using lexicon", "error", err)
	}

	res.Words = s.detector.Keywords(sample)
	if res.Words == nil {
		res.Words = []string{}
	}
	res.Source = SourceLocal
	return res, nil
}

// SuggestClusterNames returns short group names for keywords, falling back
// to the names produced by local clustering.
func (s *Service) SuggestClusterNames(ctx context.Context, keywords []string) ([]string, error) {
	keywords = cleanStrings(keywords)
	if len(keywords) == 0 {
		return nil, fmt.Errorf("%w: no keywords", ErrBadArguments)
	}
	sample := keywords[:min(maxSuggestItems, len(keywords))]

	if s.gen != nil {
		names, err := s.completeList(ctx, ChatRequest{
			System: "Ты эксперт по семантике поисковых запросов. Отвечай только JSON-массивом строк без пояснений.",
			User: fmt.Sprintf("Предложи от %d до %d коротких (1-3 слова) названий тематических групп "+
				"для этих ключевых фраз:\n%s", minSuggestedNames, maxSuggestedNames, strings.Join(sample, "\n")),
			Temperature: namesTemperature,
		})
		if err == nil && len(names) > 0 {
			return names[:min(maxSuggestedNames, len(names))], nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Warn("cluster names suggestion failed, using local clustering", "error", err)
	}

	phrases := make([]Phrase, len(sample))
	for i, k := range sample {
		phrases[i] = Phrase{Text: k}
	}
	phrases, err := NormalizePhrases(phrases)
	if err != nil {
		return nil, err
	}

	var clusters []Cluster
	if len(phrases) < s.policy.MinPhrases {
		clusters = []Cluster{s.local.CatchAll(phrases)}
	} else {
		clusters, err = s.runLocal(ctx, phrases, ModeSEO, nil)
		if err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(clusters))
	seen := make(map[string]bool, len(clusters))
	for _, c := range clusters {
		key := strings.ToLower(c.Name)
		if c.Name == "" || seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, c.Name)
	}
	return names[:min(maxSuggestedNames, len(names))], nil
}

func (s *Service) completeList(ctx context.Context, req ChatRequest) ([]string, error) {
	raw, err := s.gen.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	var list []string
	if err := json.Unmarshal([]byte(stripFences(raw)), &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return cleanStrings(list), nil
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
