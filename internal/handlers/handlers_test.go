package handlers

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment-line/internal/control"
	"fulfillment-line/internal/event"
	"fulfillment-line/internal/journal"
	"fulfillment-line/internal/metrics"
	"fulfillment-line/internal/types"
	"fulfillment-line/internal/web"
)

func TestRegisterEventHandlers_MetricsAndJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.jsonl")
	j, err := journal.Open(path)
	require.NoError(t, err)

	bus := event.NewBus()
	RegisterEventHandlers(bus, nil, j, slog.New(slog.NewTextHandler(io.Discard, nil)))

	submittedBefore := testutil.ToFloat64(metrics.OrdersSubmittedTotal)
	completedBefore := testutil.ToFloat64(metrics.OrdersCompletedTotal.WithLabelValues("5"))
	requeuedBefore := testutil.ToFloat64(metrics.OrdersRequeuedTotal.WithLabelValues("reserve"))

	o := types.Order{ID: 11, Requirement: types.Requirement{true, false, false, false, false, true}}
	bus.Publish(event.Event{Type: event.OrderSubmitted, Order: &o, Station: -1})
	bus.Publish(event.Event{Type: event.OrderRequeued, Order: &o, Station: 5, Reason: "reserve"})
	bus.Publish(event.Event{Type: event.OrderCompleted, Order: &o, Station: 5, Duration: 0.3})

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.OrdersSubmittedTotal) == submittedBefore+1 &&
			testutil.ToFloat64(metrics.OrdersCompletedTotal.WithLabelValues("5")) == completedBefore+1 &&
			testutil.ToFloat64(metrics.OrdersRequeuedTotal.WithLabelValues("reserve")) == requeuedBefore+1
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		entries, err := journal.ReadFile(path)
		return err == nil && len(entries) == 3
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, j.Close())

	entries, err := journal.ReadFile(path)
	require.NoError(t, err)
	s := journal.Summarize(entries)
	assert.Equal(t, 1, s.Submitted)
	assert.Equal(t, 1, s.Completed)
	assert.Empty(t, s.Outstanding)
}

func TestRegisterEventHandlers_FeedsDisplay(t *testing.T) {
	b, err := control.New(control.Options{Stations: 1, GlobalCapacity: 4, StationCapacity: 4})
	require.NoError(t, err)
	tracker := web.NewStateTracker(b, nil)

	bus := event.NewBus()
	RegisterEventHandlers(bus, tracker, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	bus.Publish(event.Event{Type: event.StationPaused, Station: 0})

	assert.Eventually(t, func() bool {
		return len(tracker.Refresh().Events) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, event.StationPaused, tracker.GetStateSnapshot().Events[0].Type)
}
