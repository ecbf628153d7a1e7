package control

import (
	"sync"
	"unicode/utf8"

	"fulfillment-line/internal/types"
)

const alertHistory = 32

// Alert 一条告警记录
type Alert struct {
	Seq     uint64 `json:"seq"`
	Station int    `json:"station"` // -1 表示分派器
	Text    string `json:"text"`
}

// AlertLog 最近告警的有界记录
// 所有写入经过同一把锁串行化，展示方按序号读取
type AlertLog struct {
	mu   sync.Mutex
	seq  uint64
	ring []Alert
}

func NewAlertLog() *AlertLog {
	return &AlertLog{ring: make([]Alert, 0, alertHistory)}
}

// Raise 记录一条告警并返回它，文本超过 AlertMaxLen 字节时截断
func (l *AlertLog) Raise(station int, text string) Alert {
	text = truncate(text, types.AlertMaxLen)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	a := Alert{Seq: l.seq, Station: station, Text: text}
	if len(l.ring) == alertHistory {
		copy(l.ring, l.ring[1:])
		l.ring = l.ring[:alertHistory-1]
	}
	l.ring = append(l.ring, a)
	return a
}

// Last 返回最近一条告警，没有告警时 ok 为 false
func (l *AlertLog) Last() (Alert, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.ring) == 0 {
		return Alert{}, false
	}
	return l.ring[len(l.ring)-1], true
}

// Since 返回序号大于 seq 的告警
func (l *AlertLog) Since(seq uint64) []Alert {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Alert
	for _, a := range l.ring {
		if a.Seq > seq {
			out = append(out, a)
		}
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	s = s[:max]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
