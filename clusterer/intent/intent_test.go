package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestClassifier() *Classifier {
	return NewClassifier(
		[]string{"купить", "цена", "заказать"},
		[]string{"как", "что такое", "инструкция"},
	)
}

func TestClassify(t *testing.T) {
	c := newTestClassifier()

	testCases := []struct {
		phrase string
		want   Intent
	}{
		{"купить диван", Commercial},
		{"Диван ЦЕНА", Commercial},
		{"как почистить диван", Informational},
		{"что такое ипотека", Informational},
		{"диван", General},
		{"как купить диван", General},
		{"как заказать диван цена", Commercial},
		{"", General},
	}

	for _, tc := range testCases {
		t.Run(tc.phrase, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Classify(tc.phrase))
		})
	}
}

func TestMajority(t *testing.T) {
	testCases := []struct {
		name    string
		intents []Intent
		want    Intent
	}{
		{"empty", nil, General},
		{"single", []Intent{Informational}, Informational},
		{"mode", []Intent{General, Commercial, Commercial}, Commercial},
		{"tie first seen", []Intent{Informational, Commercial, Commercial, Informational}, Informational},
		{"tie commercial first", []Intent{Commercial, General}, Commercial},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Majority(tc.intents))
		})
	}
}

func TestParse(t *testing.T) {
	it, ok := Parse(" Commercial ")
	assert.True(t, ok)
	assert.Equal(t, Commercial, it)

	it, ok = Parse("navigational")
	assert.False(t, ok)
	assert.Equal(t, General, it)
}
