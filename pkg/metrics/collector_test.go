package metrics

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/chatshop/internal/state"
)

type fixedCounter map[string]int

func (f fixedCounter) CountByState(context.Context) (map[string]int, error) {
	out := make(map[string]int, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out, nil
}

func TestStateCollectorSetsGauges(t *testing.T) {
	c := NewStateCollector(fixedCounter{"main_menu": 4, "legacy": 1}, slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	require.NoError(t, c.collect(context.Background()))

	assert.Equal(t, float64(4), testutil.ToFloat64(conversationsByState.WithLabelValues("main_menu")))
	assert.Equal(t, float64(0), testutil.ToFloat64(conversationsByState.WithLabelValues(string(state.StateEnterQuantity))))
	assert.Equal(t, float64(1), testutil.ToFloat64(conversationsByState.WithLabelValues("legacy")))
}

func TestTransitionRecorderRegistered(t *testing.T) {
	before := testutil.ToFloat64(stateTransitionsTotal.WithLabelValues("main_menu", "select_category"))
	RecordStateTransition("main_menu", "select_category")
	after := testutil.ToFloat64(stateTransitionsTotal.WithLabelValues("main_menu", "select_category"))
	assert.Equal(t, before+1, after)
}
