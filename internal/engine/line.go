package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"fulfillment-line/internal/config"
	"fulfillment-line/internal/control"
	"fulfillment-line/internal/event"
	"fulfillment-line/internal/metrics"
	"fulfillment-line/internal/types"
	"fulfillment-line/internal/util"
)

// Line 生产线的持有者
//
// 它创建共享控制块并持有其整个生命周期：启动工站 worker、分派器、补货器和订单生成器，
// 执行停机协议，并在所有 worker 退出之后才释放控制块。
type Line struct {
	cfg        *config.Config
	block      *control.Block
	bus        *event.Bus
	logger     *slog.Logger
	dispatcher *Dispatcher
	generator  *Generator
	restocker  *Restocker
	workers    []*Worker
	runID      string

	mu       sync.Mutex
	cancel   context.CancelFunc
	group    *errgroup.Group
	stopped  bool
	leftover []types.Order
}

// NewLine 根据配置创建生产线，控制块创建失败是致命错误
func NewLine(cfg *config.Config, bus *event.Bus, logger *slog.Logger) (*Line, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	block, err := control.New(control.Options{
		Stations:         cfg.Stations,
		GlobalCapacity:   cfg.GlobalCapacity,
		StationCapacity:  cfg.StationCapacity,
		InitialInventory: cfg.InitialLevels(),
	})
	if err != nil {
		return nil, fmt.Errorf("创建共享控制块失败: %w", err)
	}

	runID := util.NewTraceID()
	logger = logger.With("run_id", runID)
	l := &Line{
		cfg:    cfg,
		block:  block,
		bus:    bus,
		logger: logger.With("component", "line"),
		runID:  runID,
	}
	l.dispatcher = NewDispatcher(block, cfg.DispatchInterval(), bus, logger)
	l.generator = NewGenerator(block, cfg.Seed, cfg.GenerateInterval(), bus, logger, l.dispatcher.Kick)
	if cfg.Restock.Enabled {
		l.restocker, err = NewRestocker(block, cfg.Restock.Rule, cfg.RestockInterval(), cfg.Restock.Max, cfg.Seed+1, bus, logger, l.dispatcher.Kick)
		if err != nil {
			return nil, err
		}
	}
	for _, st := range block.Stations {
		l.workers = append(l.workers, NewWorker(st, block, cfg.PrepDelay(), bus, logger, l.dispatcher.Kick))
	}
	l.publishInventory()
	return l, nil
}

// Block 返回共享控制块，供展示和控制方借用
func (l *Line) Block() *control.Block {
	return l.block
}

// RunID 本次运行的唯一标识
func (l *Line) RunID() string {
	return l.runID
}

// Start 启动所有 goroutine，立即返回
func (l *Line) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.group != nil || l.stopped {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	l.group = g

	for _, w := range l.workers {
		g.Go(func() error {
			l.supervise(gctx, w)
			return nil
		})
	}
	g.Go(func() error {
		l.dispatcher.Run(gctx)
		return nil
	})
	if l.restocker != nil {
		g.Go(func() error {
			l.restocker.Run(gctx)
			return nil
		})
	}
	if l.cfg.Generate {
		g.Go(func() error {
			l.generator.Run(gctx)
			return nil
		})
	}

	l.logger.Info("=== 生产线启动 ===", "stations", l.block.StationCount(), "generate", l.cfg.Generate, "seed", l.cfg.Seed)
}

// supervise 运行一个 worker；worker panic 时工站被标记为不可用并发出告警，
// 不影响其他工站
func (l *Line) supervise(ctx context.Context, w *Worker) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		idx := w.st.Index
		w.st.SetAlive(false)
		w.st.SetBusy(false)
		metrics.WorkersDown.Inc()
		l.logger.Error("工站 worker 异常退出", "station", idx, "panic", r)

		// 该工站队列中尚未处理的订单退回全局队列
		for _, o := range w.st.Queue.Drain() {
			if err := l.block.Global.Push(context.Background(), o, false); err != nil {
				l.logger.Error("订单无法退回全局队列", "order_id", o.ID, "error", err)
				w.publishAbandoned(o, err)
			}
		}

		alert := l.block.Alert(idx, fmt.Sprintf("!!! 工站 %d 的 worker 异常退出，工站不可用: %v", idx, r))
		l.bus.Publish(event.Event{Type: event.StationDown, Station: idx, Reason: fmt.Sprint(r)})
		l.bus.Publish(event.Event{Type: event.AlertRaised, Station: idx, Reason: alert.Text})
		l.dispatcher.Kick()
	}()
	w.Run(ctx)
}

// Shutdown 执行停机协议，返回仍留在队列中的订单
//
// 设置停机标志，对每个工站队列额外发出一次"有元素"信号，唤醒通知计数器上的等待者，
// 等待所有 goroutine 退出后再释放控制块。重复调用返回第一次的结果。
func (l *Line) Shutdown() []types.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return l.leftover
	}
	l.stopped = true

	l.logger.Info("接收到停机请求，正在关闭生产线...")
	l.block.BeginShutdown()
	for _, st := range l.block.Stations {
		st.Queue.Wake()
	}
	l.block.Notifier.Signal()

	if l.group != nil {
		l.cancel()
		_ = l.group.Wait()
	}

	l.leftover = l.block.Close()
	l.logger.Info("生产线已安全停止", "orders_left_in_queues", len(l.leftover))
	return l.leftover
}

// Pause 暂停工站：不再分派新订单，已在队列中的订单保留到恢复
func (l *Line) Pause(index int) error {
	return l.setRunning(index, false)
}

// Resume 恢复工站
func (l *Line) Resume(index int) error {
	return l.setRunning(index, true)
}

func (l *Line) setRunning(index int, running bool) error {
	st, err := l.block.Station(index)
	if err != nil {
		return err
	}
	if !st.SetRunning(running) {
		return nil
	}
	typ := event.StationPaused
	if running {
		typ = event.StationResumed
		l.dispatcher.Kick()
	}
	l.logger.Info("工站状态变更", "station", index, "running", running)
	l.block.Notifier.Signal()
	l.bus.Publish(event.Event{Type: typ, Station: index})
	return nil
}

// SetInventory 手动修改某工站某种食材的库存
func (l *Line) SetInventory(index int, k types.Ingredient, value int) error {
	st, err := l.block.Station(index)
	if err != nil {
		return err
	}
	if !k.Valid() {
		return fmt.Errorf("%w: %d", control.ErrInvalidIngredient, int(k))
	}
	if value < 0 {
		return fmt.Errorf("%w: inventory level %d", control.ErrInvalidValue, value)
	}
	if err := st.SetInventory(k, value); err != nil {
		return err
	}
	metrics.StationInventory.WithLabelValues(stationLabel(index), k.String()).Set(float64(value))
	l.logger.Info("库存已修改", "station", index, "ingredient", k.String(), "value", value)
	l.block.Notifier.Signal()
	l.bus.Publish(event.Event{Type: event.InventoryChanged, Station: index})
	l.dispatcher.Kick()
	return nil
}

// SubmitOrder 提交一个手动订单，全局队列满时返回 queue.ErrFull
func (l *Line) SubmitOrder(ctx context.Context, req types.Requirement) (types.Order, error) {
	return l.generator.Submit(ctx, req, false)
}

// SubmitRandom 提交 n 个随机订单
func (l *Line) SubmitRandom(ctx context.Context, n int) ([]types.Order, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: count %d", control.ErrInvalidValue, n)
	}
	return l.generator.SubmitRandom(ctx, n, false)
}

// Snapshot 返回整条线的只读快照
func (l *Line) Snapshot() types.LineSnapshot {
	return l.block.Snapshot()
}

func (l *Line) publishInventory() {
	for _, st := range l.block.Stations {
		for k, lvl := range st.Inventory() {
			metrics.StationInventory.WithLabelValues(stationLabel(st.Index), types.Ingredient(k).String()).Set(float64(lvl))
		}
	}
}
