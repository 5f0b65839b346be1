package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/intent"
)

func newTestLocal(t *testing.T) *LocalClusterer {
	t.Helper()
	return newTestService(t, Deps{}).local
}

func TestLocalClusterer_SofaScenario(t *testing.T) {
	for _, mode := range []Mode{ModeContext, ModeSEO} {
		t.Run(string(mode), func(t *testing.T) {
			testSofaScenario(t, mode)
		})
	}
}

func testSofaScenario(t *testing.T, mode Mode) {
	c := newTestLocal(t)

	clusters, err := c.Cluster(context.Background(), []Phrase{
		{"купить диван", 100},
		{"диван цена", 50},
		{"как почистить диван", 30},
	}, mode, nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(clusters), 2)

	clusterOf := func(text string) Cluster {
		for _, cl := range clusters {
			for _, p := range cl.Phrases {
				if p.Text == text {
					return cl
				}
			}
		}
		t.Fatalf("phrase %q not clustered", text)
		return Cluster{}
	}

	buy := clusterOf("купить диван")
	assert.Equal(t, buy.Name, clusterOf("диван цена").Name)
	assert.Equal(t, intent.Commercial, buy.Intent)
	assert.Equal(t, "Диван", buy.Name)
	assert.Equal(t, 150, buy.TotalCount)

	clean := clusterOf("как почистить диван")
	assert.Len(t, clean.Phrases, 1)
	assert.Equal(t, intent.Informational, clean.Intent)
	assert.Equal(t, "Почистить Диван", clean.Name)
}

func TestLocalClusterer_GroupsSimilarPhrases(t *testing.T) {
	c := newTestLocal(t)

	clusters, err := c.Cluster(context.Background(), []Phrase{
		{"ремонт квартиры под ключ", 100},
		{"ремонт квартиры недорого", 90},
		{"ремонт квартиры", 80},
		{"натяжные потолки", 70},
		{"натяжные потолки цена", 60},
		{"натяжные потолки установка", 50},
		{"ламинат", 40},
		{"укладка ламината", 30},
		{"ламинат купить", 20},
		{"обои", 10},
		{"поклейка обоев", 5},
	}, ModeSEO, nil)
	require.NoError(t, err)

	together := func(a, b string) bool {
		for _, cl := range clusters {
			var hasA, hasB bool
			for _, p := range cl.Phrases {
				hasA = hasA || p.Text == a
				hasB = hasB || p.Text == b
			}
			if hasA || hasB {
				return hasA && hasB
			}
		}
		return false
	}

	assert.True(t, together("натяжные потолки цена", "натяжные потолки установка"))
	assert.True(t, together("ремонт квартиры под ключ", "ремонт квартиры недорого"))
	assert.False(t, together("натяжные потолки", "ремонт квартиры"))
}

func TestLocalClusterer_CatchAll(t *testing.T) {
	c := newTestLocal(t)

	cl := c.CatchAll([]Phrase{{"скачать бесплатно", 1}, {"купить цена", 3}})
	require.Len(t, cl.Phrases, 2)
	assert.Equal(t, Phrase{"купить цена", 3}, cl.Phrases[0])
	assert.Equal(t, "Скачать Бесплатно", cl.Name)
}

func TestLocalClusterer_EmptyMain(t *testing.T) {
	c := newTestLocal(t)

	clusters, err := c.Cluster(context.Background(), []Phrase{
		{"авито диван", 3},
		{"циан квартира", 2},
	}, ModeContext, nil)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, CompetitorsClusterName, clusters[0].Name)
}

func TestAnalyzerName_Fallback(t *testing.T) {
	an := newTestService(t, Deps{}).an

	members := an.analyzeAll([]Phrase{{"купить цена недорого", 5}})
	assert.Equal(t, "Купить Цена", an.name(members))

	members = an.analyzeAll([]Phrase{{"дешево", 5}})
	assert.Equal(t, "Дешево", an.name(members))
}

func TestAnalyzerName_SurfaceForm(t *testing.T) {
	an := newTestService(t, Deps{}).an

	// леммы "квартир" и "ремонт", показываем самую частую словоформу
	members := an.analyzeAll([]Phrase{
		{"ремонт квартиры", 10},
		{"ремонт квартиры цена", 8},
		{"ремонт квартира", 5},
	})
	assert.Equal(t, "Ремонт Квартиры", an.name(members))
}

func TestConsolidate(t *testing.T) {
	clusters := []Cluster{
		buildCluster("Диван", intent.Commercial, []Phrase{{"купить диван", 100}}),
		buildCluster("Почистить Диван", intent.Informational, []Phrase{{"как почистить диван", 30}}),
		buildCluster("диван", intent.Commercial, []Phrase{{"диван цена", 50}}),
		buildCluster("Диван", intent.General, []Phrase{{"диван", 10}}),
	}

	out := consolidate(clusters)
	require.Len(t, out, 3)
	assert.Equal(t, "Диван", out[0].Name)
	assert.Equal(t, []Phrase{{"купить диван", 100}, {"диван цена", 50}}, out[0].Phrases)
	assert.Equal(t, 150, out[0].TotalCount)
	assert.Equal(t, intent.General, out[2].Intent)
}

func TestBuildCluster(t *testing.T) {
	cl := buildCluster("Диван", intent.Commercial, []Phrase{
		{"диван", 10},
		{"купить диван недорого", 30},
		{"диван цена", 10},
	})

	assert.Equal(t, []Phrase{{"купить диван недорого", 30}, {"диван", 10}, {"диван цена", 10}}, cl.Phrases)
	assert.Equal(t, 50, cl.TotalCount)
	assert.Equal(t, 30, cl.Stats.MaxFrequency)
	assert.Equal(t, 10, cl.Stats.MinFrequency)
	assert.InDelta(t, 2.0, cl.Stats.AvgWordCount, 1e-9)

	empty := buildCluster("x", intent.General, nil)
	assert.Zero(t, empty.TotalCount)
}

func TestNormalizePhrases(t *testing.T) {
	out, err := NormalizePhrases([]Phrase{
		{" купить  диван ", 10},
		{"", 5},
		{"КУПИТЬ ДИВАН", 20},
		{"диван", 0},
	})
	require.NoError(t, err)
	assert.Equal(t, []Phrase{{"купить диван", 10}, {"диван", 0}}, out)

	_, err = NormalizePhrases([]Phrase{{"диван", -5}})
	require.ErrorIs(t, err, ErrBadArguments)
}

func TestSplitWords(t *testing.T) {
	assert.Equal(t, []string{"интернет-магазин", "диванов", "2024"}, splitWords("Интернет-магазин диванов, 2024!"))
	assert.Equal(t, []string{"диван"}, splitWords("- диван -"))
	assert.Empty(t, splitWords("!!!"))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeContext, m)

	m, err = ParseMode(" SEO ")
	require.NoError(t, err)
	assert.Equal(t, ModeSEO, m)

	_, err = ParseMode("ppc")
	require.ErrorIs(t, err, ErrBadArguments)
}

func TestPolicyFor(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, ModePolicy{Ratio: 5, Threshold: 0.05}, p.For(ModeContext))
	assert.Equal(t, ModePolicy{Ratio: 12, Threshold: 0.08}, p.For(ModeSEO))
}

func TestLocalClusterer_MultiWordRegion(t *testing.T) {
	c := newTestLocal(t)
	regions := []string{"Москва и Московская область"}

	assert.Equal(t, map[string]bool{"москв": true, "московска": true}, c.regionLemmas(regions))

	clusters, err := c.Cluster(context.Background(), []Phrase{
		{"диван в москве", 100},
		{"диван московская область", 80},
		{"диван и кресло", 60},
		{"ленинградская область диван", 40},
		{"купить диван", 20},
	}, ModeContext, regions)
	require.NoError(t, err)
	require.NotEmpty(t, clusters)

	geo := clusters[len(clusters)-1]
	assert.Equal(t, GeoClusterName, geo.Name)
	assert.Equal(t, []Phrase{{"диван в москве", 100}, {"диван московская область", 80}}, geo.Phrases)
}
