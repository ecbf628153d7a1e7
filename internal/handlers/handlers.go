package handlers

import (
	"log/slog"
	"strconv"

	"fulfillment-line/internal/event"
	"fulfillment-line/internal/journal"
	"fulfillment-line/internal/metrics"
	"fulfillment-line/internal/web"
)

// orderJournalTypes 需要写入审计日志的事件
var orderJournalTypes = map[event.EventType]journal.EntryType{
	event.OrderSubmitted:  journal.Submitted,
	event.OrderDispatched: journal.Dispatched,
	event.OrderRequeued:   journal.Requeued,
	event.OrderCompleted:  journal.Completed,
	event.OrderAbandoned:  journal.Abandoned,
}

// allTypes 展示方关心的全部事件
var allTypes = []event.EventType{
	event.OrderSubmitted, event.OrderDispatched, event.OrderRequeued, event.OrderCompleted,
	event.OrderAbandoned, event.StationPaused, event.StationResumed, event.StationDown,
	event.InventoryChanged, event.AlertRaised,
}

// RegisterEventHandlers 将所有事件处理器注册到事件总线
// 这是事件驱动架构的核心，将不同的业务关注点（监控、UI、审计、日志）解耦
// st 和 j 为 nil 时跳过对应的处理器
func RegisterEventHandlers(bus *event.Bus, st *web.StateTracker, j *journal.Journal, logger *slog.Logger) {
	registerMetrics(bus)

	// --- Web UI 处理器 (Web UI Handler) ---
	if st != nil {
		for _, typ := range allTypes {
			bus.Subscribe(typ, st.RecordEvent)
		}
	}

	// --- 审计处理器 (Journal Handler) ---
	if j != nil {
		for typ, entry := range orderJournalTypes {
			entry := entry
			bus.Subscribe(typ, func(e event.Event) {
				if e.Order == nil {
					return
				}
				if err := j.Record(entry, *e.Order, e.Station, e.Reason); err != nil {
					logger.Error("写入审计日志失败", "order_id", e.Order.ID, "error", err)
				}
			})
		}
	}

	// --- 日志处理器 (Logging Handler) ---
	bus.Subscribe(event.StationDown, func(e event.Event) {
		logger.Error("工站不可用", "station", e.Station, "error", e.Reason)
	})
	bus.Subscribe(event.OrderAbandoned, func(e event.Event) {
		logger.Warn("订单被放弃", "order_id", e.Order.ID, "station", e.Station, "error", e.Reason)
	})
	bus.Subscribe(event.AlertRaised, func(e event.Event) {
		logger.Warn("告警", "station", e.Station, "text", e.Reason)
	})
}

// --- 指标处理器 (Metrics Handler) ---
func registerMetrics(bus *event.Bus) {
	bus.Subscribe(event.OrderSubmitted, func(e event.Event) {
		metrics.OrdersSubmittedTotal.Inc()
	})
	bus.Subscribe(event.OrderDispatched, func(e event.Event) {
		metrics.OrdersDispatchedTotal.WithLabelValues(strconv.Itoa(e.Station)).Inc()
	})
	bus.Subscribe(event.OrderRequeued, func(e event.Event) {
		metrics.OrdersRequeuedTotal.WithLabelValues(e.Reason).Inc()
	})
	// 订阅完成事件，记录工站制作耗时
	bus.Subscribe(event.OrderCompleted, func(e event.Event) {
		station := strconv.Itoa(e.Station)
		metrics.OrdersCompletedTotal.WithLabelValues(station).Inc()
		metrics.StationPreparationDuration.WithLabelValues(station).Observe(e.Duration)
	})
	bus.Subscribe(event.OrderAbandoned, func(e event.Event) {
		metrics.OrdersAbandonedTotal.Inc()
	})
}
