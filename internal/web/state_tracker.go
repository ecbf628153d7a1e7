package web

import (
	"context"
	"sync"
	"time"

	"fulfillment-line/internal/control"
	"fulfillment-line/internal/event"
	"fulfillment-line/internal/types"
)

const recentEvents = 50

// EventRecord 用于 UI 展示的事件记录
type EventRecord struct {
	Time    time.Time       `json:"time"`
	Type    event.EventType `json:"type"`
	OrderID int64           `json:"order_id,omitempty"`
	Station int             `json:"station"`
	Reason  string          `json:"reason,omitempty"`
}

// DisplayState 推送给前端的完整状态
type DisplayState struct {
	Line   types.LineSnapshot `json:"line"`
	Alerts []control.Alert    `json:"alerts"`
	Events []EventRecord      `json:"events"`
}

// StateTracker 展示方：等待通知计数器，读取控制块快照并广播
type StateTracker struct {
	block *control.Block
	hub   *Hub

	mu     sync.RWMutex
	state  DisplayState
	events []EventRecord
}

// NewStateTracker 创建一个新的 StateTracker 实例
func NewStateTracker(block *control.Block, hub *Hub) *StateTracker {
	st := &StateTracker{block: block, hub: hub}
	st.Refresh()
	return st
}

// Run 每次通知计数器被递增时刷新一次状态，直到 ctx 取消
func (st *StateTracker) Run(ctx context.Context) {
	for {
		if err := st.block.Notifier.Wait(ctx); err != nil {
			return
		}
		st.Refresh()
	}
}

// Refresh 读取最新快照并广播
func (st *StateTracker) Refresh() DisplayState {
	snap := st.block.Snapshot()
	alerts := st.block.Alerts.Since(0)

	st.mu.Lock()
	st.state = DisplayState{
		Line:   snap,
		Alerts: alerts,
		Events: append([]EventRecord(nil), st.events...),
	}
	state := st.state
	st.mu.Unlock()

	if st.hub != nil {
		st.hub.BroadcastState(state)
	}
	return state
}

// RecordEvent 记录一条业务事件，只保留最近的若干条
func (st *StateTracker) RecordEvent(e event.Event) {
	rec := EventRecord{Time: time.Now(), Type: e.Type, Station: e.Station, Reason: e.Reason}
	if e.Order != nil {
		rec.OrderID = e.Order.ID
	}
	st.mu.Lock()
	st.events = append(st.events, rec)
	if len(st.events) > recentEvents {
		st.events = st.events[len(st.events)-recentEvents:]
	}
	st.mu.Unlock()
	st.block.Notifier.Signal()
}

// GetStateSnapshot 返回最近一次刷新的状态
func (st *StateTracker) GetStateSnapshot() DisplayState {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state
}
