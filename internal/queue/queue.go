package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrFull 非阻塞入队时没有空槽
	ErrFull = errors.New("queue is full")
	// ErrEmpty 非阻塞出队时没有元素
	ErrEmpty = errors.New("queue is empty")
	// ErrWoken 被强制唤醒但队列中没有真实元素，调用方应重新检查停机标志
	ErrWoken = errors.New("queue woken without item")
)

// Queue 固定容量的环形缓冲队列，支持多生产者多消费者
//
// mu 保护读写游标和计数；items 与 slots 是两个计数信号量，
// 分别表示可取元素数和空槽数，使用带缓冲的 channel 实现。
// items 多留一个位置给 Wake 的信号，保证 Push 发信号时不会阻塞。
type Queue[T any] struct {
	mu    sync.Mutex
	buf   []T
	head  int // 读游标
	tail  int // 写游标
	count int

	pushes uint64
	pops   uint64
	wakes  int // 尚未被消费的强制唤醒信号数，最多为 1

	items chan struct{}
	slots chan struct{}
}

// Stats 队列计数快照
type Stats struct {
	Capacity int
	Count    int
	Pushes   uint64
	Pops     uint64
}

// New 创建容量为 capacity 的队列
func New[T any](capacity int) (*Queue[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("queue capacity must be positive, got %d", capacity)
	}
	q := &Queue[T]{
		buf:   make([]T, capacity),
		items: make(chan struct{}, capacity+1),
		slots: make(chan struct{}, capacity),
	}
	for i := 0; i < capacity; i++ {
		q.slots <- struct{}{}
	}
	return q, nil
}

// Push 将 item 放入队尾
// blocking 为 true 时等待空槽，直到 ctx 结束；否则队满立即返回 ErrFull
func (q *Queue[T]) Push(ctx context.Context, item T, blocking bool) error {
	if blocking {
		select {
		case <-q.slots:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else {
		select {
		case <-q.slots:
		default:
			return ErrFull
		}
	}

	q.mu.Lock()
	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++
	q.pushes++
	q.mu.Unlock()

	q.items <- struct{}{}
	return nil
}

// Pop 从队头取出元素
// blocking 为 true 时等待元素，直到 ctx 结束；否则队空立即返回 ErrEmpty
func (q *Queue[T]) Pop(ctx context.Context, blocking bool) (T, error) {
	var zero T
	if blocking {
		select {
		case <-q.items:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	} else {
		select {
		case <-q.items:
		default:
			return zero, ErrEmpty
		}
	}

	q.mu.Lock()
	if q.count == 0 {
		// 消耗的是 Wake 发出的信号
		if q.wakes > 0 {
			q.wakes--
		}
		q.mu.Unlock()
		return zero, ErrWoken
	}
	item := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.pops++
	q.mu.Unlock()

	q.slots <- struct{}{}
	return item, nil
}

// Wake 额外发出一次"有元素"信号，用于停机时唤醒阻塞在 Pop 上的消费者
// 未被消费的唤醒信号最多保留一个
func (q *Queue[T]) Wake() {
	q.mu.Lock()
	if q.wakes > 0 {
		q.mu.Unlock()
		return
	}
	q.wakes++
	q.mu.Unlock()
	q.items <- struct{}{}
}

// Len 返回当前元素数量
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap 返回队列容量
func (q *Queue[T]) Cap() int {
	return len(q.buf)
}

func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{Capacity: len(q.buf), Count: q.count, Pushes: q.pushes, Pops: q.pops}
}

// Drain 非阻塞地取出所有剩余元素，仅在所有消费者退出后调用
func (q *Queue[T]) Drain() []T {
	var out []T
	for {
		item, err := q.Pop(context.Background(), false)
		if errors.Is(err, ErrWoken) {
			continue
		}
		if err != nil {
			return out
		}
		out = append(out, item)
	}
}
