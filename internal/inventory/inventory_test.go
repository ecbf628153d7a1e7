package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fulfillment-line/internal/types"
)

func TestCanFulfill(t *testing.T) {
	levels := types.Levels{1, 0, 1, 1, 1, 1}

	assert.True(t, CanFulfill(levels, types.Requirement{true, false, true, true, true, true}))
	assert.False(t, CanFulfill(levels, types.Requirement{true, true, false, false, false, false}))
	assert.True(t, CanFulfill(types.Levels{}, types.Requirement{}), "empty order needs nothing")
}

func TestSubtract(t *testing.T) {
	levels := types.Levels{1, 0, 1, 1, 1, 1}
	clamped := Subtract(&levels, types.Requirement{true, false, true, true, true, true})

	assert.False(t, clamped)
	assert.Equal(t, types.Levels{0, 0, 0, 0, 0, 0}, levels)
}

func TestSubtract_ClampsAtZero(t *testing.T) {
	levels := types.Levels{0, 2, 0, 0, 0, 0}
	clamped := Subtract(&levels, types.Requirement{true, true, false, false, false, false})

	assert.True(t, clamped)
	assert.Equal(t, types.Levels{0, 1, 0, 0, 0, 0}, levels)
}

func TestMissing(t *testing.T) {
	levels := types.Levels{0, 3, 3, 3, 3, 0}
	got := Missing(levels, types.Requirement{true, true, false, false, false, true})

	assert.Equal(t, []types.Ingredient{types.IngredientPan, types.IngredientCarne}, got)
}
