package control

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"fulfillment-line/internal/event"
	"fulfillment-line/internal/queue"
	"fulfillment-line/internal/station"
	"fulfillment-line/internal/types"
)

var (
	ErrInvalidStation    = errors.New("invalid station index")
	ErrInvalidIngredient = errors.New("invalid ingredient")
	ErrInvalidValue      = errors.New("invalid value")
	ErrShuttingDown      = errors.New("line is shutting down")
)

// Options 控制块的创建参数
type Options struct {
	Stations         int
	GlobalCapacity   int
	StationCapacity  int
	InitialInventory types.Levels
}

// Block 共享控制块：全局队列、所有工站、停机标志、订单号计数器、通知计数器和告警记录
//
// 由启动进程创建并持有整个生命周期，其余组件只借用；
// Close 只能在所有 worker 退出之后调用。
type Block struct {
	stationCount int
	shuttingDown atomic.Bool
	nextOrderID  atomic.Int64

	Global   *queue.Queue[types.Order]
	Stations []*station.Station
	Notifier *event.Notifier
	Alerts   *AlertLog
}

// New 创建控制块，任何失败都是致命的
func New(opts Options) (*Block, error) {
	if opts.Stations < 1 || opts.Stations > types.MaxStations {
		return nil, fmt.Errorf("%w: station count %d out of range [1,%d]", ErrInvalidValue, opts.Stations, types.MaxStations)
	}
	global, err := queue.New[types.Order](opts.GlobalCapacity)
	if err != nil {
		return nil, fmt.Errorf("global queue: %w", err)
	}
	b := &Block{
		stationCount: opts.Stations,
		Global:       global,
		Stations:     make([]*station.Station, opts.Stations),
		Notifier:     event.NewNotifier(),
		Alerts:       NewAlertLog(),
	}
	for i := range b.Stations {
		st, err := station.New(i, opts.StationCapacity, opts.InitialInventory)
		if err != nil {
			return nil, err
		}
		b.Stations[i] = st
	}
	b.nextOrderID.Store(1)
	return b, nil
}

// StationCount 工站数量，创建后只读
func (b *Block) StationCount() int {
	return b.stationCount
}

// ShuttingDown 是否已进入停机流程
func (b *Block) ShuttingDown() bool {
	return b.shuttingDown.Load()
}

// BeginShutdown 设置停机标志，只由持有者调用；返回是否是第一次设置
func (b *Block) BeginShutdown() bool {
	return b.shuttingDown.CompareAndSwap(false, true)
}

// Station 按索引获取工站
func (b *Block) Station(index int) (*station.Station, error) {
	if index < 0 || index >= b.stationCount {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStation, index)
	}
	return b.Stations[index], nil
}

// NewOrder 分配新的订单号，每个号码只发放一次
func (b *Block) NewOrder(req types.Requirement) types.Order {
	id := b.nextOrderID.Add(1) - 1
	return types.Order{ID: id, Requirement: req}
}

// Submit 将订单放入全局队列
// blocking 为 false 时队列满返回 queue.ErrFull，由调用方决定重试还是放弃
func (b *Block) Submit(ctx context.Context, o types.Order, blocking bool) error {
	if b.ShuttingDown() {
		return ErrShuttingDown
	}
	if err := b.Global.Push(ctx, o, blocking); err != nil {
		return err
	}
	b.Notifier.Signal()
	return nil
}

// Alert 记录告警并通知展示方
func (b *Block) Alert(station int, text string) Alert {
	a := b.Alerts.Raise(station, text)
	b.Notifier.Signal()
	return a
}

// Snapshot 返回整条线的只读快照
func (b *Block) Snapshot() types.LineSnapshot {
	snap := types.LineSnapshot{
		StationCount: b.stationCount,
		ShuttingDown: b.ShuttingDown(),
		GlobalQueued: b.Global.Len(),
		Stations:     make([]types.StationSnapshot, 0, b.stationCount),
	}
	for _, st := range b.Stations {
		snap.Stations = append(snap.Stations, st.Snapshot())
	}
	if a, ok := b.Alerts.Last(); ok {
		snap.LastAlert = a.Text
		snap.AlertSeq = a.Seq
	}
	return snap
}

// Close 释放控制块，返回仍留在队列中的订单 (全局队列在前)
// 只能在所有 worker 退出后调用
func (b *Block) Close() []types.Order {
	leftover := b.Global.Drain()
	for _, st := range b.Stations {
		leftover = append(leftover, st.Queue.Drain()...)
	}
	return leftover
}
