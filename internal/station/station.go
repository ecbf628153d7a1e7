package station

import (
	"errors"
	"fmt"
	"sync"

	"fulfillment-line/internal/inventory"
	"fulfillment-line/internal/queue"
	"fulfillment-line/internal/types"
)

var (
	// ErrInvalidIngredient 食材索引越界
	ErrInvalidIngredient = errors.New("invalid ingredient")
	// ErrNegativeLevel 库存不能设置为负数
	ErrNegativeLevel = errors.New("inventory level must be non-negative")
)

// Station 一个工站：自己的队列、库存和 worker
//
// 除 Queue 外的所有字段都只能在持有 mu 时修改。
// running 由外部控制方修改，busy/processed 只由本站 worker 修改，
// inventory 由 worker (预留) 和补货/控制方共同修改。
type Station struct {
	Index int
	Queue *queue.Queue[types.Order]

	mu        sync.Mutex
	running   bool
	busy      bool
	alive     bool
	processed int64
	inventory types.Levels
	resumed   chan struct{} // running 为 true 时处于关闭状态
}

// New 创建工站，初始为运行状态且视为 worker 存活
func New(index, queueCapacity int, initial types.Levels) (*Station, error) {
	for k, v := range initial {
		if v < 0 {
			return nil, fmt.Errorf("station %d: %w (%s=%d)", index, ErrNegativeLevel, types.Ingredient(k), v)
		}
	}
	q, err := queue.New[types.Order](queueCapacity)
	if err != nil {
		return nil, fmt.Errorf("station %d: %w", index, err)
	}
	resumed := make(chan struct{})
	close(resumed)
	return &Station{
		Index:     index,
		Queue:     q,
		running:   true,
		alive:     true,
		inventory: initial,
		resumed:   resumed,
	}, nil
}

// Running 是否处于运行 (未暂停) 状态
func (s *Station) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetRunning 暂停或恢复工站，返回状态是否发生变化
func (s *Station) SetRunning(running bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running == running {
		return false
	}
	s.running = running
	if running {
		close(s.resumed)
	} else {
		s.resumed = make(chan struct{})
	}
	return true
}

// Resumed 返回一个在工站处于运行状态时已关闭的 channel
// 暂停期间取得的 channel 会在恢复时关闭
func (s *Station) Resumed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumed
}

// Alive 工站的 worker 是否在运行
func (s *Station) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

func (s *Station) SetAlive(alive bool) {
	s.mu.Lock()
	s.alive = alive
	s.mu.Unlock()
}

func (s *Station) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// SetBusy 由 worker 在取得订单和处理完毕时调用
func (s *Station) SetBusy(busy bool) {
	s.mu.Lock()
	s.busy = busy
	s.mu.Unlock()
}

func (s *Station) Processed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed
}

// Complete 订单制作完成：processed 加一并清除 busy
func (s *Station) Complete() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	s.busy = false
	return s.processed
}

// Inventory 返回库存副本
func (s *Station) Inventory() types.Levels {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inventory
}

// CanFulfill 在锁内检查库存，不修改状态
func (s *Station) CanFulfill(o types.Order) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return inventory.CanFulfill(s.inventory, o.Requirement)
}

// Reserve 原子地检查并扣减库存
// 检查与扣减必须在同一次持锁中完成，否则并发补货或预留会导致结果失效
func (s *Station) Reserve(o types.Order) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !inventory.CanFulfill(s.inventory, o.Requirement) {
		return false
	}
	inventory.Subtract(&s.inventory, o.Requirement)
	return true
}

// Restock 为某种食材补货 delta 个，结果不超过 limit (limit <= 0 表示不设上限)
// 已经高于上限的库存保持不变；返回补货后的数量
func (s *Station) Restock(k types.Ingredient, delta, limit int) (int, error) {
	if !k.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidIngredient, int(k))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	level := s.inventory[k] + delta
	if limit > 0 && level > limit {
		level = max(limit, s.inventory[k])
	}
	if level < 0 {
		level = 0
	}
	s.inventory[k] = level
	return level, nil
}

// SetInventory 手动设置某种食材的库存
func (s *Station) SetInventory(k types.Ingredient, value int) error {
	if !k.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidIngredient, int(k))
	}
	if value < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeLevel, value)
	}
	s.mu.Lock()
	s.inventory[k] = value
	s.mu.Unlock()
	return nil
}

// Snapshot 返回工站的只读快照
func (s *Station) Snapshot() types.StationSnapshot {
	queued := s.Queue.Len()
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.StationSnapshot{
		Index:     s.Index,
		Running:   s.running,
		Busy:      s.busy,
		Alive:     s.alive,
		Processed: s.processed,
		Inventory: s.inventory,
		Queued:    queued,
	}
}
