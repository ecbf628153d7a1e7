package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"fulfillment-line/internal/control"
	"fulfillment-line/internal/event"
	"fulfillment-line/internal/types"
)

// Generator 订单生产者：分配订单号、写入全局队列并通知分派器
type Generator struct {
	block   *control.Block
	bus     *event.Bus
	logger  *slog.Logger
	limiter *rate.Limiter
	kick    func()

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator 创建订单生产者，interval 为自动生成订单的间隔
func NewGenerator(block *control.Block, seed int64, interval time.Duration, bus *event.Bus, logger *slog.Logger, kick func()) *Generator {
	if kick == nil {
		kick = func() {}
	}
	return &Generator{
		block:   block,
		bus:     bus,
		logger:  logger.With("component", "generator"),
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		kick:    kick,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// RandomRequirement 随机订单：必需食材 (pan、carne) 总是需要，其余四种各一半概率
func (g *Generator) RandomRequirement() types.Requirement {
	g.mu.Lock()
	defer g.mu.Unlock()
	var req types.Requirement
	for k := range req {
		req[k] = g.rng.Intn(2) == 1
	}
	for _, k := range types.MandatoryIngredients {
		req[k] = true
	}
	return req
}

// Submit 为需求分配订单号并放入全局队列
// blocking 为 false 时全局队列满会返回 queue.ErrFull
func (g *Generator) Submit(ctx context.Context, req types.Requirement, blocking bool) (types.Order, error) {
	if g.block.ShuttingDown() {
		return types.Order{}, control.ErrShuttingDown
	}
	o := g.block.NewOrder(req)
	if err := g.block.Submit(ctx, o, blocking); err != nil {
		return types.Order{}, fmt.Errorf("submit order %d: %w", o.ID, err)
	}
	g.logger.Info("接收到订单", "order_id", o.ID, "requirement", req.String())
	g.bus.Publish(event.Event{Type: event.OrderSubmitted, Order: &o, Station: -1})
	g.kick()
	return o, nil
}

// SubmitRandom 生成 n 个随机订单，遇到第一个错误时停止并返回已提交的订单
func (g *Generator) SubmitRandom(ctx context.Context, n int, blocking bool) ([]types.Order, error) {
	out := make([]types.Order, 0, n)
	for i := 0; i < n; i++ {
		o, err := g.Submit(ctx, g.RandomRequirement(), blocking)
		if err != nil {
			return out, err
		}
		out = append(out, o)
	}
	return out, nil
}

// Run 按固定速率自动生成随机订单，全局队列满时阻塞等待
func (g *Generator) Run(ctx context.Context) {
	g.logger.Info("自动生成订单启动", "rate", g.limiter.Limit())
	for {
		if err := g.limiter.Wait(ctx); err != nil {
			return
		}
		if g.block.ShuttingDown() {
			return
		}
		if _, err := g.Submit(ctx, g.RandomRequirement(), true); err != nil {
			if ctx.Err() != nil || g.block.ShuttingDown() {
				return
			}
			g.logger.Warn("自动生成订单失败", "error", err)
		}
	}
}
