package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 定义 Prometheus 监控指标
var (
	// GlobalQueueDepth 仪表盘：全局队列中等待分派的订单数量
	GlobalQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "line_global_queue_depth",
		Help: "The number of orders waiting in the global intake queue",
	})

	// StationQueueDepth 仪表盘：各工站队列中的订单数量
	StationQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "line_station_queue_depth",
		Help: "The number of orders queued at each station",
	}, []string{"station"})

	// StationInventory 仪表盘：各工站各食材的库存
	StationInventory = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "line_station_inventory",
		Help: "Current ingredient level per station",
	}, []string{"station", "ingredient"})

	// OrdersSubmittedTotal 计数器：进入全局队列的新订单
	OrdersSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "line_orders_submitted_total",
		Help: "The total number of orders submitted to the global queue",
	})

	// OrdersDispatchedTotal 计数器：分派到各工站的订单
	OrdersDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "line_orders_dispatched_total",
		Help: "The total number of orders routed to a station queue",
	}, []string{"station"})

	// OrdersRequeuedTotal 计数器：回到全局队列的订单，按原因 (dispatch/reserve) 分类
	OrdersRequeuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "line_orders_requeued_total",
		Help: "The total number of orders returned to the global queue",
	}, []string{"reason"})

	// OrdersCompletedTotal 计数器：各工站完成的订单
	OrdersCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "line_orders_completed_total",
		Help: "The total number of orders prepared by each station",
	}, []string{"station"})

	// OrdersAbandonedTotal 计数器：停机时未能退回队列的订单
	OrdersAbandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "line_orders_abandoned_total",
		Help: "Orders held by a worker at shutdown that could not be returned",
	})

	// StationPreparationDuration 直方图：工站制作耗时分布
	StationPreparationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "line_station_preparation_duration_seconds",
		Help:    "Time spent preparing an order at each station",
		Buckets: prometheus.DefBuckets,
	}, []string{"station"})

	// WorkersDown 仪表盘：异常退出的 worker 数量
	WorkersDown = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "line_workers_down",
		Help: "The number of stations whose worker is not running",
	})
)
