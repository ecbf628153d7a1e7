package station

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment-line/internal/types"
)

func newTestStation(t *testing.T, levels types.Levels) *Station {
	t.Helper()
	s, err := New(0, 4, levels)
	require.NoError(t, err)
	return s
}

func TestNew_RejectsNegativeInventory(t *testing.T) {
	_, err := New(0, 4, types.Levels{1, -1, 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrNegativeLevel)
}

func TestReserve_ConsumesExactlyOnce(t *testing.T) {
	s := newTestStation(t, types.Levels{1, 0, 1, 1, 1, 1})
	order := types.Order{ID: 1, Requirement: types.Requirement{true, false, true, true, true, true}}

	require.True(t, s.Reserve(order))
	assert.Equal(t, types.Levels{0, 0, 0, 0, 0, 0}, s.Inventory())

	assert.False(t, s.CanFulfill(order))
	assert.False(t, s.Reserve(order))
	assert.Equal(t, types.Levels{0, 0, 0, 0, 0, 0}, s.Inventory(), "failed reserve must not mutate")
}

func TestReserve_NeverNegativeUnderConcurrency(t *testing.T) {
	s := newTestStation(t, types.Levels{50, 50, 50, 50, 50, 50})
	order := types.Order{Requirement: types.Requirement{true, true, true, true, true, true}}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if s.Reserve(order) {
					mu.Lock()
					reserved++
					mu.Unlock()
				}
				for _, lvl := range s.Inventory() {
					assert.GreaterOrEqual(t, lvl, 0)
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 100; j++ {
			_, _ = s.Restock(types.IngredientPan, 1, 0)
		}
	}()
	wg.Wait()

	final := s.Inventory()
	// 每种食材的初始库存 + 补货 - 预留次数 = 最终库存
	assert.Equal(t, 50-reserved, final[types.IngredientTomate])
	assert.Equal(t, 150-reserved, final[types.IngredientPan])
}

func TestRestock_CapsAtMax(t *testing.T) {
	s := newTestStation(t, types.Levels{48, 0, 0, 0, 0, 0})

	level, err := s.Restock(types.IngredientPan, 5, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, level)

	_, err = s.Restock(types.Ingredient(9), 1, 50)
	assert.ErrorIs(t, err, ErrInvalidIngredient)
}

func TestSetInventory_Validates(t *testing.T) {
	s := newTestStation(t, types.Levels{})

	require.NoError(t, s.SetInventory(types.IngredientQueso, 7))
	assert.Equal(t, 7, s.Inventory()[types.IngredientQueso])
	assert.ErrorIs(t, s.SetInventory(types.IngredientQueso, -1), ErrNegativeLevel)
	assert.ErrorIs(t, s.SetInventory(types.Ingredient(-1), 1), ErrInvalidIngredient)
}

func TestResumed_ClosesOnResume(t *testing.T) {
	s := newTestStation(t, types.Levels{})

	select {
	case <-s.Resumed():
	default:
		t.Fatal("running station should expose a closed resume channel")
	}

	require.True(t, s.SetRunning(false))
	assert.False(t, s.SetRunning(false), "pausing twice is a no-op")
	ch := s.Resumed()
	select {
	case <-ch:
		t.Fatal("paused station must not report resumed")
	default:
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.SetRunning(true)
	}()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("resume channel was not closed")
	}
	assert.True(t, s.Running())
}

func TestComplete_ClearsBusy(t *testing.T) {
	s := newTestStation(t, types.Levels{})
	s.SetBusy(true)

	assert.Equal(t, int64(1), s.Complete())
	snap := s.Snapshot()
	assert.False(t, snap.Busy)
	assert.Equal(t, int64(1), snap.Processed)
}
