package core

import "time"

type ModePolicy struct {
	Ratio     float64 // целевое число кластеров = фраз / Ratio
	Threshold float64 // минимальное среднее сходство для слияния
}

type Policy struct {
	Context ModePolicy
	SEO     ModePolicy

	MinClusters int
	MaxClusters int
	MinPhrases  int // меньше - один общий кластер
	MaxPhrases  int // матрица сходства растёт как n², 0 - без ограничения
	Workers     int

	GenerativeTimeout    time.Duration
	GenerativeMaxPhrases int
}

func DefaultPolicy() Policy {
	return Policy{
		Context:              ModePolicy{Ratio: 5, Threshold: 0.05},
		SEO:                  ModePolicy{Ratio: 12, Threshold: 0.08},
		MinClusters:          3,
		MaxClusters:          20,
		MinPhrases:           5,
		MaxPhrases:           3000,
		GenerativeTimeout:    60 * time.Second,
		GenerativeMaxPhrases: 200,
	}
}

func (p Policy) For(mode Mode) ModePolicy {
	if mode == ModeSEO {
		return p.SEO
	}
	return p.Context
}
