package event

import "context"

const notifierDepth = 1024

// Notifier 通知计数器：任何值得展示的状态变化都 Signal 一次，
// 展示方通过 Wait 阻塞等待
type Notifier struct {
	ch chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, notifierDepth)}
}

// Signal 计数加一，计数饱和时丢弃
func (n *Notifier) Signal() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// Wait 阻塞直到计数大于零或 ctx 结束
func (n *Notifier) Wait(ctx context.Context) error {
	select {
	case <-n.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryWait 非阻塞地消耗一次计数
func (n *Notifier) TryWait() bool {
	select {
	case <-n.ch:
		return true
	default:
		return false
	}
}

// Pending 当前未消耗的计数
func (n *Notifier) Pending() int {
	return len(n.ch)
}
