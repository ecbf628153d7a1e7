package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment-line/internal/config"
	"fulfillment-line/internal/engine"
	"fulfillment-line/internal/event"
	"fulfillment-line/internal/types"
	"fulfillment-line/internal/web"
)

func startLine(t *testing.T) (*engine.Line, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.PrepDelayMs = 0
	cfg.DispatchIntervalMs = 5
	cfg.Restock.Enabled = false

	line, err := engine.NewLine(cfg, event.NewBus(), logger)
	require.NoError(t, err)
	line.Start(context.Background())
	srv := httptest.NewServer(web.NewServeMux(line, nil, logger))
	t.Cleanup(func() {
		srv.Close()
		line.Shutdown()
	})
	return line, srv.URL
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLinectl_PauseStockStatus(t *testing.T) {
	line, addr := startLine(t)

	out, err := execute(t, "--addr", addr, "pause", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "station 1: PAUSED")

	out, err = execute(t, "--addr", addr, "stock", "0", "queso", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "station 0")
	assert.Equal(t, 3, line.Snapshot().Stations[0].Inventory[types.IngredientQueso])

	out, err = execute(t, "--addr", addr, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "PAUSED")
	assert.Contains(t, out, "queso")

	_, err = execute(t, "--addr", addr, "resume", "1")
	require.NoError(t, err)
	assert.True(t, line.Snapshot().Stations[1].Running)
}

func TestLinectl_Orders(t *testing.T) {
	line, addr := startLine(t)

	out, err := execute(t, "--addr", addr, "order", "pan,queso,carne")
	require.NoError(t, err)
	assert.Contains(t, out, "order 1 accepted: [pan queso carne]")

	out, err = execute(t, "--addr", addr, "--format", "json", "random", "3")
	require.NoError(t, err)
	var orders []types.Order
	require.NoError(t, json.Unmarshal([]byte(out), &orders))
	assert.Len(t, orders, 3)

	assert.Eventually(t, func() bool {
		var n int64
		for _, st := range line.Snapshot().Stations {
			n += st.Processed
		}
		return n == 4
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLinectl_Errors(t *testing.T) {
	_, addr := startLine(t)

	_, err := execute(t, "--addr", addr, "pause", "9")
	assert.ErrorContains(t, err, "invalid station")

	_, err = execute(t, "--addr", addr, "stock", "0", "bacon", "1")
	assert.Error(t, err)

	_, err = execute(t, "--addr", addr, "--format", "yaml", "status")
	assert.ErrorContains(t, err, "invalid format")
}

func TestParseRequirement(t *testing.T) {
	r, err := parseRequirement("1,0,1,1,1,1")
	require.NoError(t, err)
	assert.Equal(t, types.Requirement{true, false, true, true, true, true}, r)

	r, err = parseRequirement("pan, carne")
	require.NoError(t, err)
	assert.Equal(t, types.Requirement{true, false, false, false, false, true}, r)

	_, err = parseRequirement("1,0")
	assert.Error(t, err)
}
