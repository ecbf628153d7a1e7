package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment-line/internal/config"
	"fulfillment-line/internal/control"
	"fulfillment-line/internal/event"
	"fulfillment-line/internal/types"
)

func testConfig(stations int) *config.Config {
	cfg := config.Default()
	cfg.Stations = stations
	cfg.PrepDelayMs = 0
	cfg.DispatchIntervalMs = 5
	cfg.Restock.Enabled = false
	cfg.HTTPAddr = ""
	return cfg
}

func newTestLine(t *testing.T, cfg *config.Config) *Line {
	t.Helper()
	l, err := NewLine(cfg, event.NewBus(), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { l.Shutdown() })
	return l
}

func processedTotal(l *Line) int64 {
	var n int64
	for _, s := range l.Snapshot().Stations {
		n += s.Processed
	}
	return n
}

func TestNewLine_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(0)
	_, err := NewLine(cfg, event.NewBus(), discardLogger())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	cfg = testConfig(1)
	cfg.Restock.Enabled = true
	cfg.Restock.Rule = "level <"
	_, err = NewLine(cfg, event.NewBus(), discardLogger())
	assert.Error(t, err)
}

func TestLine_ProcessesEveryOrderOnce(t *testing.T) {
	cfg := testConfig(3)
	cfg.Inventory = []int{100, 100, 100, 100, 100, 100}
	l := newTestLine(t, cfg)
	l.Start(context.Background())

	orders, err := l.SubmitRandom(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, orders, 30)

	assert.Eventually(t, func() bool { return processedTotal(l) == 30 }, 2*time.Second, 5*time.Millisecond)

	// 每种食材的消耗量等于需要它的订单数
	var needed types.Levels
	for _, o := range orders {
		for k, need := range o.Requirement {
			if need {
				needed[k]++
			}
		}
	}
	var remaining types.Levels
	for _, s := range l.Snapshot().Stations {
		for k, v := range s.Inventory {
			remaining[k] += v
		}
	}
	for k := range needed {
		assert.Equal(t, 300-needed[k], remaining[k], "ingredient %s", types.Ingredient(k))
	}

	assert.Empty(t, l.Shutdown())
	assert.Equal(t, int64(30), processedTotal(l), "no order is processed twice")
}

func TestLine_ShutdownReturnsQueuedOrders(t *testing.T) {
	cfg := testConfig(1)
	cfg.PrepDelayMs = 100
	l := newTestLine(t, cfg)
	l.Start(context.Background())

	for i := 0; i < 5; i++ {
		_, err := l.SubmitOrder(context.Background(), req(1, 0, 0, 0, 0, 1))
		require.NoError(t, err)
	}
	// 等到第一个订单已预留库存
	assert.Eventually(t, func() bool {
		return l.Snapshot().Stations[0].Inventory[types.IngredientPan] == 9
	}, time.Second, time.Millisecond)

	start := time.Now()
	leftover := l.Shutdown()
	assert.Less(t, time.Since(start), time.Second)

	processed := processedTotal(l)
	assert.GreaterOrEqual(t, processed, int64(1))
	assert.Equal(t, int64(5), processed+int64(len(leftover)))
	assert.True(t, l.Snapshot().ShuttingDown)

	assert.Equal(t, leftover, l.Shutdown(), "shutdown is idempotent")
	_, err := l.SubmitOrder(context.Background(), req(1, 0, 0, 0, 0, 1))
	assert.ErrorIs(t, err, control.ErrShuttingDown)
}

func TestLine_ShutdownWithoutStart(t *testing.T) {
	l := newTestLine(t, testConfig(2))
	_, err := l.SubmitOrder(context.Background(), req(1, 0, 0, 0, 0, 1))
	require.NoError(t, err)

	leftover := l.Shutdown()
	require.Len(t, leftover, 1)
	assert.Equal(t, int64(1), leftover[0].ID)
}

func TestLine_PauseResume(t *testing.T) {
	l := newTestLine(t, testConfig(2))
	l.Start(context.Background())

	require.NoError(t, l.Pause(0))
	assert.False(t, l.Snapshot().Stations[0].Running)

	for i := 0; i < 4; i++ {
		_, err := l.SubmitOrder(context.Background(), req(1, 0, 0, 0, 0, 1))
		require.NoError(t, err)
	}
	assert.Eventually(t, func() bool { return processedTotal(l) == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), l.Snapshot().Stations[0].Processed)

	require.NoError(t, l.Resume(0))
	assert.True(t, l.Snapshot().Stations[0].Running)

	assert.ErrorIs(t, l.Pause(7), control.ErrInvalidStation)
	assert.ErrorIs(t, l.Resume(-1), control.ErrInvalidStation)
}

func TestLine_SetInventoryUnblocksWaitingOrder(t *testing.T) {
	cfg := testConfig(1)
	cfg.Inventory = []int{0, 5, 5, 5, 5, 5}
	l := newTestLine(t, cfg)
	l.Start(context.Background())

	_, err := l.SubmitOrder(context.Background(), req(1, 0, 0, 0, 0, 1))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		a, ok := l.Block().Alerts.Last()
		return ok && a.Seq > 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), processedTotal(l))

	require.NoError(t, l.SetInventory(0, types.IngredientPan, 3))
	assert.Eventually(t, func() bool { return processedTotal(l) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, l.Snapshot().Stations[0].Inventory[types.IngredientPan])

	assert.ErrorIs(t, l.SetInventory(0, types.Ingredient(6), 1), control.ErrInvalidIngredient)
	assert.ErrorIs(t, l.SetInventory(0, types.IngredientPan, -1), control.ErrInvalidValue)
	assert.ErrorIs(t, l.SetInventory(3, types.IngredientPan, 1), control.ErrInvalidStation)
}

func TestLine_WorkerPanicMarksStationDown(t *testing.T) {
	l := newTestLine(t, testConfig(2))
	l.workers[0].onPop = func(types.Order) { panic("boom") }

	down := make(chan event.Event, 1)
	l.bus.Subscribe(event.StationDown, func(e event.Event) { down <- e })
	l.Start(context.Background())

	_, err := l.SubmitOrder(context.Background(), req(1, 0, 0, 0, 0, 1))
	require.NoError(t, err)

	select {
	case e := <-down:
		assert.Equal(t, 0, e.Station)
	case <-time.After(time.Second):
		t.Fatal("station down event not published")
	}
	snap := l.Snapshot()
	assert.False(t, snap.Stations[0].Alive)
	assert.True(t, snap.Stations[1].Alive)
	assert.Contains(t, snap.LastAlert, "异常退出")

	_, err = l.SubmitOrder(context.Background(), req(1, 0, 0, 0, 0, 1))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return l.Snapshot().Stations[1].Processed == 1 }, time.Second, 5*time.Millisecond)
}

func TestLine_SubmitRandomRejectsNegativeCount(t *testing.T) {
	l := newTestLine(t, testConfig(1))
	_, err := l.SubmitRandom(context.Background(), -1)
	assert.ErrorIs(t, err, control.ErrInvalidValue)
}
