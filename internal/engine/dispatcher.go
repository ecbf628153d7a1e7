package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fulfillment-line/internal/control"
	"fulfillment-line/internal/event"
	"fulfillment-line/internal/metrics"
	"fulfillment-line/internal/queue"
	"fulfillment-line/internal/types"
)

// Dispatcher 负责准入控制和负载均衡
// 它是全局队列唯一的消费者，把订单分派到可以满足需求且负载最低的工站
type Dispatcher struct {
	block    *control.Block
	bus      *event.Bus
	logger   *slog.Logger
	interval time.Duration
	kick     chan struct{}
	carry    *types.Order // 退回时全局队列已满，留到下一轮最先处理
}

// NewDispatcher 创建一个新的 Dispatcher 实例
func NewDispatcher(block *control.Block, interval time.Duration, bus *event.Bus, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		block:    block,
		bus:      bus,
		logger:   logger.With("component", "dispatcher"),
		interval: interval,
		kick:     make(chan struct{}, 1),
	}
}

// Kick 通知分派器有新的工作，不阻塞
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Run 启动分派循环，直到停机或 ctx 取消
func (d *Dispatcher) Run(ctx context.Context) {
	timer := time.NewTimer(d.interval)
	defer timer.Stop()
	defer d.releaseCarry()

	for {
		d.Cycle(ctx)
		if d.block.ShuttingDown() || ctx.Err() != nil {
			return
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(d.interval)

		select {
		case <-ctx.Done():
			return
		case <-d.kick:
		case <-timer.C:
		}
	}
}

// Cycle 执行一轮分派，返回本轮分派成功的订单数
//
// 按到达顺序非阻塞地取出订单；遇到第一个无法分派的订单时把它放回队尾并结束本轮，
// 避免对同一个无法满足的订单空转。
func (d *Dispatcher) Cycle(ctx context.Context) int {
	moved := 0
	for {
		var o types.Order
		if d.carry != nil {
			o, d.carry = *d.carry, nil
		} else {
			var err error
			o, err = d.block.Global.Pop(ctx, false)
			if errors.Is(err, queue.ErrWoken) {
				continue
			}
			if err != nil {
				break
			}
		}

		if idx, ok := d.route(ctx, o); ok {
			moved++
			d.logger.Debug("订单已分派", "order_id", o.ID, "station", idx)
			d.bus.Publish(event.Event{Type: event.OrderDispatched, Order: &o, Station: idx})
			continue
		}

		d.requeue(ctx, o)
		break
	}

	metrics.GlobalQueueDepth.Set(float64(d.block.Global.Len()))
	if moved > 0 {
		d.block.Notifier.Signal()
	}
	return moved
}

// route 选择候选工站并非阻塞地推入其队列
// 候选工站：运行中、worker 存活、库存可以满足；选队列最短的，相同时选编号最小的
func (d *Dispatcher) route(ctx context.Context, o types.Order) (int, bool) {
	best, bestLen := -1, 0
	for i, st := range d.block.Stations {
		if !st.Running() || !st.Alive() || !st.CanFulfill(o) {
			continue
		}
		if n := st.Queue.Len(); best < 0 || n < bestLen {
			best, bestLen = i, n
		}
	}
	if best < 0 {
		return -1, false
	}

	st := d.block.Stations[best]
	if err := st.Queue.Push(ctx, o, false); err != nil {
		// 队列在选择之后被填满，视为没有候选工站
		return -1, false
	}
	metrics.StationQueueDepth.WithLabelValues(stationLabel(best)).Set(float64(st.Queue.Len()))
	return best, true
}

// requeue 把无法分派的订单放回全局队列队尾并发布告警
func (d *Dispatcher) requeue(ctx context.Context, o types.Order) {
	if err := d.block.Global.Push(ctx, o, false); err != nil {
		// 分派器是全局队列唯一的消费者，这里不能阻塞
		held := o
		d.carry = &held
		d.logger.Warn("全局队列已满，订单暂存到下一轮", "order_id", o.ID)
	}

	text := d.shortageReason(o)
	alert := d.block.Alert(-1, text)
	d.logger.Info("订单无法分派", "order_id", o.ID, "reason", text)
	d.bus.Publish(event.Event{Type: event.OrderRequeued, Order: &o, Station: -1, Reason: "dispatch"})
	d.bus.Publish(event.Event{Type: event.AlertRaised, Station: -1, Reason: alert.Text})
}

// shortageReason 如果订单需要的某种食材在所有工站都没有库存，告警中给出该食材；
// 否则说明订单因拥堵或部分缺货而等待
func (d *Dispatcher) shortageReason(o types.Order) string {
	for k, need := range o.Requirement {
		if !need {
			continue
		}
		absent := true
		for _, st := range d.block.Stations {
			if st.Inventory()[k] > 0 {
				absent = false
				break
			}
		}
		if absent {
			return fmt.Sprintf("订单 %d 缺少食材 %s：所有工站均无库存", o.ID, types.Ingredient(k))
		}
	}
	return fmt.Sprintf("订单 %d 等待中：工站繁忙、已暂停或部分食材不足", o.ID)
}

// releaseCarry 退出前把暂存的订单放回全局队列，失败则记录为放弃
func (d *Dispatcher) releaseCarry() {
	if d.carry == nil {
		return
	}
	o := *d.carry
	d.carry = nil
	if err := d.block.Global.Push(context.Background(), o, false); err != nil {
		d.logger.Warn("分派器退出时订单无法放回，已放弃", "order_id", o.ID, "error", err)
		d.bus.Publish(event.Event{Type: event.OrderAbandoned, Order: &o, Station: -1, Reason: err.Error()})
	}
}

func stationLabel(i int) string {
	return fmt.Sprintf("%d", i)
}
