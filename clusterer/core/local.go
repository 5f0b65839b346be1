package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/agglo"
	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/intent"
	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/tfidf"
)

const (
	CompetitorsClusterName = "Конкуренты и агрегаторы"
	GeoClusterName         = "Геозапросы"
)

// LocalClusterer groups phrases by lexical similarity without any external
// calls.
type LocalClusterer struct {
	log         *slog.Logger
	an          *analyzer
	vectorizer  *tfidf.Vectorizer
	classifier  *intent.Classifier
	competitors []string
	policy      Policy
	// общие слова топонимов, сами по себе регион не обозначают
	placeWords map[string]bool
}

var genericPlaceWords = []string{
	"область", "край", "республика", "район", "округ", "город", "поселок", "село", "автономный",
}

func newLocalClusterer(log *slog.Logger, an *analyzer, classifier *intent.Classifier, competitors []string, policy Policy) *LocalClusterer {
	return &LocalClusterer{
		log:         log,
		an:          an,
		vectorizer:  tfidf.NewVectorizer(an.isStop),
		classifier:  classifier,
		competitors: competitors,
		policy:      policy,
		placeWords:  an.wordSet(genericPlaceWords),
	}
}

// Cluster partitions phrases into named clusters. Competitor phrases and,
// when regionNames are given, phrases mentioning those regions are kept out
// of the similarity merge and appended as their own clusters.
func (c *LocalClusterer) Cluster(ctx context.Context, phrases []Phrase, mode Mode, regionNames []string) ([]Cluster, error) {
	items := c.an.analyzeAll(phrases)
	regions := c.regionLemmas(regionNames)

	var main, competitors, geo []lemmatized
	for _, it := range items {
		switch {
		case c.isCompetitor(it.phrase.Text):
			competitors = append(competitors, it)
		case mentionsRegion(it, regions):
			geo = append(geo, it)
		default:
			main = append(main, it)
		}
	}

	clusters, err := c.merge(ctx, main, c.policy.For(mode))
	if err != nil {
		return nil, err
	}
	clusters = consolidate(clusters)
	sortByFrequency(clusters, func(cl Cluster) int { return cl.TotalCount })

	if len(competitors) > 0 {
		clusters = append(clusters, c.special(CompetitorsClusterName, competitors))
	}
	if len(geo) > 0 {
		clusters = append(clusters, c.special(GeoClusterName, geo))
	}

	c.log.Debug("local clustering done",
		"phrases", len(items), "clusters", len(clusters),
		"competitors", len(competitors), "geo", len(geo))
	return clusters, nil
}

// CatchAll puts every phrase into one cluster.
func (c *LocalClusterer) CatchAll(phrases []Phrase) Cluster {
	return c.assemble(c.an.analyzeAll(phrases))
}

func (c *LocalClusterer) merge(ctx context.Context, items []lemmatized, mp ModePolicy) ([]Cluster, error) {
	if len(items) == 0 {
		return nil, nil
	}

	corpus := make([]string, len(items))
	for i, it := range items {
		corpus[i] = it.lemmaText()
	}
	vectors := c.vectorizer.Vectorize(corpus)

	sim, err := tfidf.NewMatrix(ctx, vectors, c.policy.Workers)
	if err != nil {
		return nil, fmt.Errorf("similarity matrix: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target := agglo.Target(len(items), mp.Ratio, c.policy.MinClusters, c.policy.MaxClusters)
	groups := agglo.Merge(sim, target, mp.Threshold)

	clusters := make([]Cluster, 0, len(groups))
	for _, g := range groups {
		members := make([]lemmatized, 0, len(g))
		for _, idx := range g {
			members = append(members, items[idx])
		}
		clusters = append(clusters, c.assemble(members))
	}
	return clusters, nil
}

// assemble names the members and tags them with their majority intent.
func (c *LocalClusterer) assemble(members []lemmatized) Cluster {
	sortByFrequency(members, func(l lemmatized) int { return l.phrase.Count })

	phrases := make([]Phrase, len(members))
	intents := make([]Intent, len(members))
	for i, m := range members {
		phrases[i] = m.phrase
		intents[i] = c.classifier.Classify(m.phrase.Text)
	}
	return buildCluster(c.an.name(members), intent.Majority(intents), phrases)
}

func (c *LocalClusterer) special(name string, members []lemmatized) Cluster {
	cl := c.assemble(members)
	cl.Name = name
	return cl
}

func (c *LocalClusterer) isCompetitor(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range c.competitors {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func (c *LocalClusterer) regionLemmas(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool)
	for _, n := range names {
		for _, l := range c.an.analyze(Phrase{Text: n}).lemmas {
			if utf8.RuneCountInString(l) < minNameRunes || c.an.isStop(l) || c.placeWords[l] {
				continue
			}
			set[l] = true
		}
	}
	return set
}

func mentionsRegion(it lemmatized, regions map[string]bool) bool {
	for _, l := range it.lemmas {
		if regions[l] {
			return true
		}
	}
	return false
}

// consolidate сливает кластеры с одинаковым названием и интентом
func consolidate(clusters []Cluster) []Cluster {
	out := make([]Cluster, 0, len(clusters))
	index := make(map[string]int, len(clusters))
	for _, cl := range clusters {
		key := strings.ToLower(cl.Name) + "\x00" + string(cl.Intent)
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, cl)
			continue
		}
		merged := append(out[i].Phrases, cl.Phrases...)
		out[i] = buildCluster(out[i].Name, out[i].Intent, merged)
	}
	return out
}
