package core

import (
	"context"
	"time"
)

type Clusterer interface {
	Cluster(ctx context.Context, req ClusterRequest) (Result, error)
}

type Collector interface {
	Collect(ctx context.Context, seed string, regions []int) ([]Phrase, error)
	Regions(ctx context.Context) ([]Region, error)
}

type Suggester interface {
	SuggestMinusWords(ctx context.Context, phrases []string) (MinusSuggestion, error)
	SuggestClusterNames(ctx context.Context, keywords []string) ([]string, error)
}

type Projects interface {
	CreateProject(ctx context.Context, userID, name string) (int64, error)
	SaveResult(ctx context.Context, userID string, projectID int64, res Result) error
	StoredResult(ctx context.Context, userID string, projectID int64) (Result, error)
}

type Lemmatizer interface {
	Lemma(word string) string
}

type Generator interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

type VolumeProvider interface {
	FetchTopPhrases(ctx context.Context, seed string, regions []int) ([]Phrase, error)
	Regions(ctx context.Context) ([]Region, error)
}

type ResultStore interface {
	CreateProject(ctx context.Context, userID, name string) (int64, error)
	SaveResult(ctx context.Context, userID string, projectID int64, res Result) error
	Result(ctx context.Context, userID string, projectID int64) (Result, error)
}

type EventPublisher interface {
	NotifyClustered(ctx context.Context, ev ClusteringEvent) error
}

type Metrics interface {
	ObserveClustering(mode Mode, source Source, phrases int, took time.Duration)
	GenerativeFallback(reason string)
}

type Pinger interface {
	Ping(ctx context.Context) error
}
