package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/intent"
	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/lexicon"
	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/minus"
)

const DefaultRegion = 213 // Москва

var errGenerativeOff = errors.New("generative clustering is off")

// Deps are the collaborators of the service. Only Lemmatizer is required.
type Deps struct {
	Lemmatizer Lemmatizer
	Generator  Generator
	Volumes    VolumeProvider
	Store      ResultStore
	Events     EventPublisher
	Metrics    Metrics
}

type Service struct {
	log        *slog.Logger
	policy     Policy
	lex        *lexicon.Lexicon
	an         *analyzer
	classifier *intent.Classifier
	detector   *minus.Detector
	local      *LocalClusterer
	generative *GenerativeClusterer
	gen        Generator
	volumes    VolumeProvider
	store      ResultStore
	events     EventPublisher
	metrics    Metrics
}

func NewService(log *slog.Logger, lex *lexicon.Lexicon, policy Policy, deps Deps) (*Service, error) {
	if log == nil {
		return nil, errors.New("nil logger")
	}
	if lex == nil {
		return nil, errors.New("nil lexicon")
	}
	if deps.Lemmatizer == nil {
		return nil, errors.New("nil lemmatizer")
	}
	if policy.MinClusters <= 0 || policy.MaxClusters < policy.MinClusters {
		return nil, fmt.Errorf("invalid cluster bounds [%d, %d]", policy.MinClusters, policy.MaxClusters)
	}

	an := newAnalyzer(deps.Lemmatizer, lex)
	classifier := intent.NewClassifier(lex.CommercialMarkers, lex.InformationalMarkers)

	categories := make([]minus.Category, 0, len(lex.MinusCategories))
	for _, c := range lex.MinusCategories {
		categories = append(categories, minus.Category{Key: c.Key, Name: c.Name, Keywords: c.Keywords})
	}

	s := &Service{
		log:        log,
		policy:     policy,
		lex:        lex,
		an:         an,
		classifier: classifier,
		detector:   minus.NewDetector(categories),
		local:      newLocalClusterer(log, an, classifier, lex.Competitors, policy),
		gen:        deps.Generator,
		volumes:    deps.Volumes,
		store:      deps.Store,
		events:     deps.Events,
		metrics:    deps.Metrics,
	}
	if deps.Generator != nil {
		s.generative = &GenerativeClusterer{
			log:        log,
			gen:        deps.Generator,
			classifier: classifier,
			lex:        lex,
			timeout:    policy.GenerativeTimeout,
			maxPhrases: policy.GenerativeMaxPhrases,
		}
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	return s, nil
}

// Cluster runs the clustering pipeline. The generative path is tried first
// when requested; any failure there falls back to the local clusterer, so
// the only errors returned are bad arguments and cancellation.
func (s *Service) Cluster(ctx context.Context, req ClusterRequest) (Result, error) {
	start := time.Now()

	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return Result{}, err
	}
	phrases, err := NormalizePhrases(req.Phrases)
	if err != nil {
		return Result{}, err
	}
	if len(phrases) == 0 {
		return Result{}, fmt.Errorf("%w: no phrases", ErrBadArguments)
	}
	if s.policy.MaxPhrases > 0 && len(phrases) > s.policy.MaxPhrases {
		return Result{}, fmt.Errorf("%w: %d phrases, at most %d allowed", ErrBadArguments, len(phrases), s.policy.MaxPhrases)
	}

	res := Result{
		ID:        ulid.Make().String(),
		Mode:      mode,
		Source:    SourceLocal,
		CreatedAt: start.UTC(),
	}

	var genMinus map[string]MinusWordCategory
	if len(phrases) < s.policy.MinPhrases {
		res.Clusters = []Cluster{s.local.CatchAll(phrases)}
	} else {
		out, err := s.tryGenerative(ctx, phrases, mode, req)
		switch {
		case err == nil:
			res.Source = SourceGenerative
			res.Clusters = out.clusters
			genMinus = out.minusWords
		case ctx.Err() != nil:
			return Result{}, ctx.Err()
		case !errors.Is(err, errGenerativeOff):
			res.FallbackReason = fallbackReason(err)
			s.metrics.GenerativeFallback(res.FallbackReason)
			s.log.Warn("generative clustering rejected, using local", "reason", res.FallbackReason, "error", err)
		}

		if res.Source == SourceLocal {
			res.Clusters, err = s.runLocal(ctx, phrases, mode, req.RegionNames)
			if err != nil {
				return Result{}, err
			}
		}
	}

	if mode == ModeContext {
		if len(genMinus) > 0 {
			res.MinusWords = genMinus
		} else {
			res.MinusWords = s.detectMinusWords(phrases)
		}
	}

	took := time.Since(start)
	s.metrics.ObserveClustering(mode, res.Source, len(phrases), took)
	s.log.Info("clustering finished",
		"id", res.ID, "mode", mode, "source", res.Source,
		"phrases", len(phrases), "clusters", len(res.Clusters), "took", took)

	s.notify(ctx, res)
	return res, nil
}

func (s *Service) tryGenerative(ctx context.Context, phrases []Phrase, mode Mode, req ClusterRequest) (generativeOutput, error) {
	if !req.UseGenerative || s.generative == nil {
		return generativeOutput{}, errGenerativeOff
	}
	return s.generative.Cluster(ctx, phrases, generativeHints{
		mode:            mode,
		regionNames:     req.RegionNames,
		selectedIntents: req.SelectedIntents,
	})
}

func (s *Service) runLocal(ctx context.Context, phrases []Phrase, mode Mode, regionNames []string) ([]Cluster, error) {
	clusters, err := s.local.Cluster(ctx, phrases, mode, regionNames)
	if err != nil {
		return nil, fmt.Errorf("local clustering: %w", err)
	}
	return clusters, nil
}

func (s *Service) detectMinusWords(phrases []Phrase) map[string]MinusWordCategory {
	texts := make([]string, len(phrases))
	for i, p := range phrases {
		texts[i] = p.Text
	}

	matches := s.detector.Detect(texts)
	out := make(map[string]MinusWordCategory, len(matches))
	for _, m := range matches {
		cat := MinusWordCategory{
			Key:  m.Category.Key,
			Name: m.Category.Name,
		}
		for _, i := range m.Indexes {
			cat.Phrases = append(cat.Phrases, phrases[i])
			cat.TotalVolume += phrases[i].Count
		}
		sortByFrequency(cat.Phrases, func(p Phrase) int { return p.Count })
		out[cat.Key] = cat
	}
	return out
}

func (s *Service) notify(ctx context.Context, res Result) {
	if s.events == nil {
		return
	}
	ev := ClusteringEvent{
		ID:             res.ID,
		Mode:           res.Mode,
		Source:         res.Source,
		Phrases:        res.PhraseCount(),
		Clusters:       len(res.Clusters),
		MinusPhrases:   res.MinusPhraseCount(),
		FallbackReason: res.FallbackReason,
		FinishedAt:     time.Now().UTC(),
	}
	if err := s.events.NotifyClustered(ctx, ev); err != nil {
		s.log.Warn("cannot publish clustering event", "id", res.ID, "error", err)
	}
}

// Collect fetches the most popular phrases containing seed.
func (s *Service) Collect(ctx context.Context, seed string, regions []int) ([]Phrase, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return nil, fmt.Errorf("%w: empty seed phrase", ErrBadArguments)
	}
	if s.volumes == nil {
		return nil, fmt.Errorf("volume provider: %w", ErrNotConfigured)
	}
	if len(regions) == 0 {
		regions = []int{DefaultRegion}
	}

	phrases, err := s.volumes.FetchTopPhrases(ctx, seed, regions)
	if err != nil {
		return nil, providerError("volume", err)
	}
	phrases, err = NormalizePhrases(phrases)
	if err != nil {
		return nil, providerError("volume", err)
	}
	s.log.Debug("phrases collected", "seed", seed, "regions", regions, "phrases", len(phrases))
	return phrases, nil
}

func (s *Service) Regions(ctx context.Context) ([]Region, error) {
	if s.volumes == nil {
		return nil, fmt.Errorf("volume provider: %w", ErrNotConfigured)
	}
	regions, err := s.volumes.Regions(ctx)
	if err != nil {
		return nil, providerError("volume", err)
	}
	return regions, nil
}

// providerError keeps provider failures typed even when the adapter
// returned a plain error.
func providerError(provider string, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Err: err}
}

func (s *Service) CreateProject(ctx context.Context, userID, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if userID == "" || name == "" {
		return 0, ErrBadArguments
	}
	if s.store == nil {
		return 0, fmt.Errorf("result store: %w", ErrNotConfigured)
	}
	id, err := s.store.CreateProject(ctx, userID, name)
	if err != nil {
		return 0, fmt.Errorf("create project: %w", err)
	}
	s.log.Info("project created", "id", id, "user", userID)
	return id, nil
}

func (s *Service) SaveResult(ctx context.Context, userID string, projectID int64, res Result) error {
	if userID == "" || projectID <= 0 {
		return ErrBadArguments
	}
	if s.store == nil {
		return fmt.Errorf("result store: %w", ErrNotConfigured)
	}
	if err := s.store.SaveResult(ctx, userID, projectID, res); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

func (s *Service) StoredResult(ctx context.Context, userID string, projectID int64) (Result, error) {
	if userID == "" || projectID <= 0 {
		return Result{}, ErrBadArguments
	}
	if s.store == nil {
		return Result{}, fmt.Errorf("result store: %w", ErrNotConfigured)
	}
	res, err := s.store.Result(ctx, userID, projectID)
	if err != nil {
		return Result{}, fmt.Errorf("load result: %w", err)
	}
	return res, nil
}

type nopMetrics struct{}

func (nopMetrics) ObserveClustering(Mode, Source, int, time.Duration) {}
func (nopMetrics) GenerativeFallback(string)                          {}
