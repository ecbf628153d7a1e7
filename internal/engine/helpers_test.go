package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"fulfillment-line/internal/control"
	"fulfillment-line/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBlock(t *testing.T, stations int, levels types.Levels) *control.Block {
	t.Helper()
	b, err := control.New(control.Options{
		Stations:         stations,
		GlobalCapacity:   16,
		StationCapacity:  8,
		InitialInventory: levels,
	})
	require.NoError(t, err)
	return b
}

func full(levels int) types.Levels {
	return types.Levels{levels, levels, levels, levels, levels, levels}
}

func req(v ...int) types.Requirement {
	r, err := types.RequirementFromInts(v)
	if err != nil {
		panic(err)
	}
	return r
}
