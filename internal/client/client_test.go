package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment-line/internal/types"
	"fulfillment-line/internal/util"
	"fulfillment-line/internal/web"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_SendsTraceHeaderAndBody(t *testing.T) {
	var (
		gotTrace string
		gotPath  string
		gotBody  web.InventoryRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTrace = r.Header.Get(util.TraceHeader)
		gotPath = r.Method + " " + r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(types.StationSnapshot{Index: 1})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", discard())
	ctx := util.ContextWithTraceID(context.Background(), "abc")
	st, err := c.SetInventory(ctx, 1, "queso", 9)
	require.NoError(t, err)

	assert.Equal(t, 1, st.Index)
	assert.Equal(t, "abc", gotTrace)
	assert.Equal(t, "PUT /api/stations/1/inventory/queso", gotPath)
	assert.Equal(t, 9, gotBody.Value)
}

func TestClient_GeneratesTraceID(t *testing.T) {
	var gotTrace string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTrace = r.Header.Get(util.TraceHeader)
		_ = json.NewEncoder(w).Encode(types.LineSnapshot{StationCount: 2})
	}))
	defer srv.Close()

	snap, err := New(srv.URL, discard()).State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.StationCount)
	assert.NotEmpty(t, gotTrace)
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(web.ErrorResponse{Error: "invalid station index: 9"})
	}))
	defer srv.Close()

	_, err := New(srv.URL, discard()).Pause(context.Background(), 9)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Message, "invalid station")
}

func TestClient_SubmitOrders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/orders":
			var req web.OrderRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			rq, _ := types.RequirementFromInts(req.Requirement)
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(web.OrdersResponse{Orders: []types.Order{{ID: 1, Requirement: rq}}})
		case "/api/orders/random":
			var req web.RandomRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			out := make([]types.Order, req.Count)
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(web.OrdersResponse{Orders: out})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c := New(srv.URL, discard())

	orders, err := c.SubmitOrder(context.Background(), []int{1, 0, 0, 0, 0, 1})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].Requirement[types.IngredientCarne])

	orders, err = c.SubmitRandom(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, orders, 3)
}
