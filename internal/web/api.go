package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fulfillment-line/internal/control"
	"fulfillment-line/internal/queue"
	"fulfillment-line/internal/types"
	"fulfillment-line/internal/util"
)

// maxRandomOrders 单次请求可以生成的随机订单数上限
const maxRandomOrders = 1000

// Controller 是控制 API 依赖的生产线操作
type Controller interface {
	Snapshot() types.LineSnapshot
	Pause(index int) error
	Resume(index int) error
	SetInventory(index int, k types.Ingredient, value int) error
	SubmitOrder(ctx context.Context, req types.Requirement) (types.Order, error)
	SubmitRandom(ctx context.Context, n int) ([]types.Order, error)
}

// InventoryRequest PUT /api/stations/{index}/inventory/{ingredient} 的请求体
type InventoryRequest struct {
	Value int `json:"value"`
}

// OrderRequest POST /api/orders 的请求体
type OrderRequest struct {
	Requirement []int `json:"requirement"`
}

// RandomRequest POST /api/orders/random 的请求体
type RandomRequest struct {
	Count int `json:"count"`
}

// OrdersResponse 下单接口的响应
type OrdersResponse struct {
	Orders []types.Order `json:"orders"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServeMux 注册控制 API、展示和指标路由
func NewServeMux(ctrl Controller, hub *Hub, logger *slog.Logger) *http.ServeMux {
	api := &api{ctrl: ctrl, logger: logger.With("component", "api")}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.ServeWs)
	}
	mux.HandleFunc("GET /api/state", api.traced(api.state))
	mux.HandleFunc("POST /api/stations/{index}/pause", api.traced(api.pause))
	mux.HandleFunc("POST /api/stations/{index}/resume", api.traced(api.resume))
	mux.HandleFunc("PUT /api/stations/{index}/inventory/{ingredient}", api.traced(api.setInventory))
	mux.HandleFunc("POST /api/orders", api.traced(api.submitOrder))
	mux.HandleFunc("POST /api/orders/random", api.traced(api.submitRandom))
	return mux
}

type api struct {
	ctrl   Controller
	logger *slog.Logger
}

// traced 从请求头读取 Trace ID (没有则生成)，放入 context 并写回响应头
func (a *api) traced(next func(w http.ResponseWriter, r *http.Request, logger *slog.Logger)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(util.TraceHeader)
		if traceID == "" {
			traceID = util.NewTraceID()
		}
		w.Header().Set(util.TraceHeader, traceID)
		ctx := util.ContextWithTraceID(r.Context(), traceID)
		logger := a.logger.With("trace_id", traceID, "method", r.Method, "path", r.URL.Path)
		next(w, r.WithContext(ctx), logger)
	}
}

func (a *api) state(w http.ResponseWriter, r *http.Request, _ *slog.Logger) {
	writeJSON(w, http.StatusOK, a.ctrl.Snapshot())
}

func (a *api) pause(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	a.setRunning(w, r, logger, a.ctrl.Pause)
}

func (a *api) resume(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	a.setRunning(w, r, logger, a.ctrl.Resume)
}

func (a *api) setRunning(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op func(int) error) {
	index, err := stationIndex(r)
	if err == nil {
		err = op(index)
	}
	if err != nil {
		a.fail(w, logger, err)
		return
	}
	logger.Info("控制命令已执行", "station", index)
	writeJSON(w, http.StatusOK, a.ctrl.Snapshot().Stations[index])
}

func (a *api) setInventory(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	index, err := stationIndex(r)
	if err != nil {
		a.fail(w, logger, err)
		return
	}
	k, err := types.ParseIngredient(r.PathValue("ingredient"))
	if err != nil {
		a.fail(w, logger, fmt.Errorf("%w: %v", control.ErrInvalidIngredient, err))
		return
	}
	var body InventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.fail(w, logger, fmt.Errorf("%w: %v", control.ErrInvalidValue, err))
		return
	}
	if err := a.ctrl.SetInventory(index, k, body.Value); err != nil {
		a.fail(w, logger, err)
		return
	}
	logger.Info("库存已通过 API 修改", "station", index, "ingredient", k.String(), "value", body.Value)
	writeJSON(w, http.StatusOK, a.ctrl.Snapshot().Stations[index])
}

func (a *api) submitOrder(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	var body OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.fail(w, logger, fmt.Errorf("%w: %v", control.ErrInvalidValue, err))
		return
	}
	req, err := types.RequirementFromInts(body.Requirement)
	if err != nil {
		a.fail(w, logger, fmt.Errorf("%w: %v", control.ErrInvalidValue, err))
		return
	}
	o, err := a.ctrl.SubmitOrder(r.Context(), req)
	if err != nil {
		a.fail(w, logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, OrdersResponse{Orders: []types.Order{o}})
}

func (a *api) submitRandom(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	var body RandomRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.fail(w, logger, fmt.Errorf("%w: %v", control.ErrInvalidValue, err))
		return
	}
	if body.Count < 1 || body.Count > maxRandomOrders {
		a.fail(w, logger, fmt.Errorf("%w: count must be in [1,%d], got %d", control.ErrInvalidValue, maxRandomOrders, body.Count))
		return
	}
	orders, err := a.ctrl.SubmitRandom(r.Context(), body.Count)
	if err != nil && len(orders) == 0 {
		a.fail(w, logger, err)
		return
	}
	if err != nil {
		logger.Warn("随机订单只提交了一部分", "submitted", len(orders), "error", err)
	}
	writeJSON(w, http.StatusAccepted, OrdersResponse{Orders: orders})
}

// fail 把领域错误映射为 HTTP 状态码
func (a *api) fail(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, control.ErrInvalidStation),
		errors.Is(err, control.ErrInvalidIngredient),
		errors.Is(err, control.ErrInvalidValue):
		status = http.StatusBadRequest
	case errors.Is(err, control.ErrShuttingDown), errors.Is(err, queue.ErrFull):
		status = http.StatusServiceUnavailable
	}
	logger.Warn("控制请求失败", "status", status, "error", err)
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func stationIndex(r *http.Request) (int, error) {
	raw := r.PathValue("index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", control.ErrInvalidStation, raw)
	}
	return index, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
