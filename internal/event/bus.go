package event

import (
	"sync"

	"fulfillment-line/internal/types"
)

// EventType 定义事件的类型
type EventType string

// 定义所有业务事件类型
const (
	OrderSubmitted   EventType = "OrderSubmitted"   // 订单进入全局队列
	OrderDispatched  EventType = "OrderDispatched"  // 订单被分派到工站队列
	OrderRequeued    EventType = "OrderRequeued"    // 订单因库存不足回到全局队列
	OrderCompleted   EventType = "OrderCompleted"   // 订单制作完成
	OrderAbandoned   EventType = "OrderAbandoned"   // 停机时被放弃的订单
	StationPaused    EventType = "StationPaused"    // 工站暂停
	StationResumed   EventType = "StationResumed"   // 工站恢复
	StationDown      EventType = "StationDown"      // 工站 worker 异常退出
	InventoryChanged EventType = "InventoryChanged" // 补货或手动修改库存
	AlertRaised      EventType = "AlertRaised"      // 新的告警
)

// Event 结构体定义了事件的数据负载
type Event struct {
	Type     EventType    // 事件类型
	Order    *types.Order // 关联的订单 (仅订单相关事件)
	Station  int          // 关联的工站索引，-1 表示全局
	Reason   string       // 回退原因或告警文本
	Duration float64      // 制作耗时 (秒，仅完成事件)
}

// Handler 是事件处理函数的签名
type Handler func(e Event)

// Bus 是一个简单的内存事件总线
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler // 存储事件类型到多个处理函数的映射
}

// NewBus 创建一个新的事件总线实例
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe 订阅一个特定类型的事件
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish 发布一个事件，所有订阅了该事件类型的处理器都将被调用
// 处理器异步执行，发布方 (worker、分派器) 不会被慢处理器阻塞
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	if handlers, ok := b.handlers[e.Type]; ok {
		for _, handler := range handlers {
			go handler(e)
		}
	}
}
