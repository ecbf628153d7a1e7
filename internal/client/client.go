package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fulfillment-line/internal/types"
	"fulfillment-line/internal/util"
	"fulfillment-line/internal/web"
)

// APIError 控制 API 返回的非 2xx 响应
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("line-manager returned %d: %s", e.Status, e.Message)
}

// Client 生产线控制 API 的 HTTP 客户端
type Client struct {
	Endpoint string       // 控制服务地址 (e.g., http://localhost:8080)
	HTTP     *http.Client // HTTP 客户端
	logger   *slog.Logger // 日志记录器
}

// New 创建一个新的客户端实例
func New(endpoint string, logger *slog.Logger) *Client {
	return &Client{
		Endpoint: strings.TrimRight(endpoint, "/"),
		HTTP:     &http.Client{Timeout: 5 * time.Second}, // 设置 5 秒超时
		logger:   logger.With("component", "client", "endpoint", endpoint),
	}
}

// State 读取生产线快照
func (c *Client) State(ctx context.Context) (types.LineSnapshot, error) {
	var snap types.LineSnapshot
	err := c.do(ctx, http.MethodGet, "/api/state", nil, &snap)
	return snap, err
}

// Pause 暂停工站
func (c *Client) Pause(ctx context.Context, station int) (types.StationSnapshot, error) {
	var st types.StationSnapshot
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/stations/%d/pause", station), nil, &st)
	return st, err
}

// Resume 恢复工站
func (c *Client) Resume(ctx context.Context, station int) (types.StationSnapshot, error) {
	var st types.StationSnapshot
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/stations/%d/resume", station), nil, &st)
	return st, err
}

// SetInventory 设置某工站某种食材的库存，ingredient 可以是名称或索引
func (c *Client) SetInventory(ctx context.Context, station int, ingredient string, value int) (types.StationSnapshot, error) {
	var st types.StationSnapshot
	path := fmt.Sprintf("/api/stations/%d/inventory/%s", station, ingredient)
	err := c.do(ctx, http.MethodPut, path, web.InventoryRequest{Value: value}, &st)
	return st, err
}

// SubmitOrder 提交一个手动订单
func (c *Client) SubmitOrder(ctx context.Context, requirement []int) ([]types.Order, error) {
	var resp web.OrdersResponse
	err := c.do(ctx, http.MethodPost, "/api/orders", web.OrderRequest{Requirement: requirement}, &resp)
	return resp.Orders, err
}

// SubmitRandom 提交 n 个随机订单
func (c *Client) SubmitRandom(ctx context.Context, n int) ([]types.Order, error) {
	var resp web.OrdersResponse
	err := c.do(ctx, http.MethodPost, "/api/orders/random", web.RandomRequest{Count: n}, &resp)
	return resp.Orders, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	traceID, ok := util.TraceIDFromContext(ctx)
	if !ok {
		traceID = util.NewTraceID()
	}
	logger := c.logger.With("trace_id", traceID, "method", method, "path", path)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// 将 Trace ID 放入 HTTP Header 中，服务端日志可以关联到同一次调用
	req.Header.Set(util.TraceHeader, traceID)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		logger.Debug("请求失败", "error", err)
		return fmt.Errorf("请求 %s 失败: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e web.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			e.Error = resp.Status
		}
		logger.Debug("服务返回错误状态", "status", resp.StatusCode, "error", e.Error)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}
