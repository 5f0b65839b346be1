package events

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/core"
)

func TestEncode(t *testing.T) {
	ev := core.ClusteringEvent{
		ID:             "01JA2Z5Q6W7E8R9T0Y1U2I3O4P",
		Mode:           core.ModeContext,
		Source:         core.SourceLocal,
		Phrases:        20,
		Clusters:       4,
		MinusPhrases:   3,
		FallbackReason: "validation",
		FinishedAt:     time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := encode(ev)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "context", got["mode"])
	assert.Equal(t, "local", got["source"])
	assert.InDelta(t, 20, got["phrases"], 0)
	assert.Equal(t, "validation", got["fallback_reason"])
	assert.Equal(t, "2026-10-01T12:00:00Z", got["finished_at"])
}

func TestNewNatsPublisher_Unreachable(t *testing.T) {
	_, err := NewNatsPublisher("nats://127.0.0.1:1", newTestLogger())
	require.Error(t, err)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
