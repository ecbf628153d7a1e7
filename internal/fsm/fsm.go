package fsm

import (
	"fmt"
	"log/slog"
	"sync"
)

// State 定义状态类型
type State string

// Event 定义事件类型
type Event string

// 工站 worker 的状态
const (
	StateIdle         State = "IDLE"
	StatePendingPause State = "POPPED_PENDING_PAUSE"
	StateFulfilling   State = "FULFILLING"
	StateShutdown     State = "SHUTDOWN"
)

const (
	EventPopped   Event = "POPPED"   // 取到订单
	EventProceed  Event = "PROCEED"  // 工站处于运行状态，开始制作
	EventDone     Event = "DONE"     // 完成或退回订单
	EventShutdown Event = "SHUTDOWN" // 停机
)

// FSM 有限状态机
type FSM struct {
	current State
	mu      sync.Mutex
	// transitions 定义状态转移表: CurrentState -> Event -> NextState
	transitions map[State]map[Event]State
	// callbacks 定义状态变更后的回调: State -> func()
	callbacks map[State]func(targetID string)
	targetID  string // 关联的目标对象ID（如工站编号）
	logger    *slog.Logger
}

// NewWorkerFSM 创建工站 worker 的状态机，初始状态为 IDLE
func NewWorkerFSM(targetID string, logger *slog.Logger) *FSM {
	if logger == nil {
		logger = slog.Default()
	}
	fsm := &FSM{
		current:     StateIdle,
		targetID:    targetID,
		transitions: make(map[State]map[Event]State),
		callbacks:   make(map[State]func(string)),
		logger:      logger,
	}
	fsm.initTransitions()
	return fsm
}

func (f *FSM) initTransitions() {
	f.addTransition(StateIdle, EventPopped, StatePendingPause)
	f.addTransition(StatePendingPause, EventProceed, StateFulfilling)
	f.addTransition(StateFulfilling, EventDone, StateIdle)

	// SHUTDOWN 是吸收态，任何状态都可以进入
	for _, s := range []State{StateIdle, StatePendingPause, StateFulfilling} {
		f.addTransition(s, EventShutdown, StateShutdown)
	}
}

func (f *FSM) addTransition(from State, event Event, to State) {
	if _, ok := f.transitions[from]; !ok {
		f.transitions[from] = make(map[Event]State)
	}
	f.transitions[from][event] = to
}

// RegisterCallback 注册状态进入时的回调
func (f *FSM) RegisterCallback(state State, callback func(targetID string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks[state] = callback
}

// Current 返回当前状态
func (f *FSM) Current() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Fire 触发事件
func (f *FSM) Fire(event Event) error {
	f.mu.Lock()

	// 查找合法的转移
	nextState, ok := f.transitions[f.current][event]
	if !ok {
		cur := f.current
		f.mu.Unlock()
		return fmt.Errorf("invalid transition: cannot fire event %s from state %s", event, cur)
	}

	prevState := f.current
	f.current = nextState
	cb := f.callbacks[nextState]
	f.mu.Unlock()

	f.logger.Debug("状态转移", "target", f.targetID, "from", prevState, "to", nextState, "event", event)

	// 回调在锁外执行，回调中可以再次调用 Fire
	if cb != nil {
		cb(f.targetID)
	}

	return nil
}
