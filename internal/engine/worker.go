package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fulfillment-line/internal/control"
	"fulfillment-line/internal/event"
	"fulfillment-line/internal/fsm"
	"fulfillment-line/internal/inventory"
	"fulfillment-line/internal/metrics"
	"fulfillment-line/internal/queue"
	"fulfillment-line/internal/station"
	"fulfillment-line/internal/types"
	"fulfillment-line/internal/util"
)

// Worker 工站 worker，持有一个工站的队列和库存
//
// 状态：IDLE -> POPPED_PENDING_PAUSE -> FULFILLING -> IDLE，任何状态都可以进入 SHUTDOWN。
type Worker struct {
	st        *station.Station
	block     *control.Block
	bus       *event.Bus
	logger    *slog.Logger
	fsm       *fsm.FSM
	prepDelay time.Duration
	requeued  func() // 订单退回全局队列后通知分派器

	onPop func(types.Order) // 测试钩子
}

// NewWorker 创建一个工站 worker
func NewWorker(st *station.Station, block *control.Block, prepDelay time.Duration, bus *event.Bus, logger *slog.Logger, requeued func()) *Worker {
	logger = logger.With("component", "worker", "station", st.Index)
	if requeued == nil {
		requeued = func() {}
	}
	return &Worker{
		st:        st,
		block:     block,
		bus:       bus,
		logger:    logger,
		fsm:       fsm.NewWorkerFSM(fmt.Sprintf("station-%d", st.Index), logger),
		prepDelay: prepDelay,
		requeued:  requeued,
	}
}

// State 返回 worker 当前状态
func (w *Worker) State() fsm.State {
	return w.fsm.Current()
}

// Run 执行 worker 主循环，直到停机
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("工站 worker 启动")
	defer w.logger.Info("工站 worker 退出")

	for {
		if w.block.ShuttingDown() {
			w.fire(fsm.EventShutdown)
			return
		}

		o, err := w.st.Queue.Pop(ctx, true)
		if errors.Is(err, queue.ErrWoken) {
			// 强制唤醒，回到循环顶部重新检查停机标志
			continue
		}
		if err != nil {
			w.fire(fsm.EventShutdown)
			return
		}
		metrics.StationQueueDepth.WithLabelValues(stationLabel(w.st.Index)).Set(float64(w.st.Queue.Len()))

		w.st.SetBusy(true)
		w.fire(fsm.EventPopped)
		if w.onPop != nil {
			w.onPop(o)
		}

		if w.block.ShuttingDown() || !w.awaitRunning(ctx) {
			w.abandon(o)
			w.fire(fsm.EventShutdown)
			return
		}

		w.fire(fsm.EventProceed)
		w.fulfill(ctx, o)
		w.fire(fsm.EventDone)
	}
}

// awaitRunning 工站暂停时持有订单等待恢复
// 恢复返回 true；停机返回 false
func (w *Worker) awaitRunning(ctx context.Context) bool {
	for !w.block.ShuttingDown() {
		select {
		case <-w.st.Resumed():
			return !w.block.ShuttingDown()
		case <-ctx.Done():
			return false
		}
	}
	return false
}

// fulfill 预留库存并制作订单；库存不足时把订单退回全局队列
// 预留成功的订单总会完成制作，停机不会打断
func (w *Worker) fulfill(ctx context.Context, o types.Order) {
	logger := w.logger.With("order_id", o.ID, "trace_id", util.NewTraceID())

	if !w.st.Reserve(o) {
		if err := w.block.Global.Push(ctx, o, true); err != nil {
			logger.Error("订单退回全局队列失败", "error", err)
			w.st.SetBusy(false)
			w.publishAbandoned(o, err)
			return
		}
		missing := inventory.Missing(w.st.Inventory(), o.Requirement)
		alert := w.block.Alert(w.st.Index, fmt.Sprintf("工站 %d 食材不足 %v，订单 %d 退回全局队列", w.st.Index, missing, o.ID))
		logger.Warn("库存不足，订单退回全局队列", "missing", fmt.Sprint(missing))
		w.st.SetBusy(false)
		w.bus.Publish(event.Event{Type: event.OrderRequeued, Order: &o, Station: w.st.Index, Reason: "reserve"})
		w.bus.Publish(event.Event{Type: event.AlertRaised, Station: w.st.Index, Reason: alert.Text})
		w.requeued()
		return
	}
	w.bus.Publish(event.Event{Type: event.InventoryChanged, Station: w.st.Index})

	start := time.Now()
	logger.Info("开始制作订单", "requirement", o.Requirement.String())
	if w.prepDelay > 0 {
		time.Sleep(w.prepDelay)
	}
	processed := w.st.Complete()
	duration := time.Since(start).Seconds()

	w.block.Notifier.Signal()
	w.bus.Publish(event.Event{Type: event.OrderCompleted, Order: &o, Station: w.st.Index, Duration: duration})
	logger.Info("订单制作完成", "processed", processed)
}

// abandon 停机时处理已取出但未预留的订单：非阻塞地尝试放回全局队列，失败则记录丢弃
func (w *Worker) abandon(o types.Order) {
	defer w.st.SetBusy(false)
	if err := w.block.Global.Push(context.Background(), o, false); err != nil {
		w.logger.Warn("停机时订单无法退回，已放弃", "order_id", o.ID, "error", err)
		w.publishAbandoned(o, err)
		return
	}
	w.logger.Info("停机时订单已退回全局队列", "order_id", o.ID)
	w.bus.Publish(event.Event{Type: event.OrderRequeued, Order: &o, Station: w.st.Index, Reason: "shutdown"})
}

func (w *Worker) publishAbandoned(o types.Order, err error) {
	w.bus.Publish(event.Event{Type: event.OrderAbandoned, Order: &o, Station: w.st.Index, Reason: err.Error()})
}

func (w *Worker) fire(e fsm.Event) {
	if err := w.fsm.Fire(e); err != nil {
		w.logger.Error("状态机转移失败", "error", err)
	}
}
