package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"

	"fulfillment-line/internal/types"
)

// EntryType 审计记录类型
type EntryType string

const (
	Submitted  EntryType = "SUBMITTED"
	Dispatched EntryType = "DISPATCHED"
	Requeued   EntryType = "REQUEUED"
	Completed  EntryType = "COMPLETED"
	Abandoned  EntryType = "ABANDONED"
)

// Entry 代表审计日志中的一条记录
type Entry struct {
	Time        time.Time `json:"time"`
	Type        EntryType `json:"type"`
	OrderID     int64     `json:"order_id"`
	Requirement []int     `json:"requirement,omitempty"` // 仅 SUBMITTED 记录
	Station     int       `json:"station"`               // -1 表示全局队列或分派器
	Reason      string    `json:"reason,omitempty"`
}

// Journal 订单审计日志，每行一条 JSON 记录，只追加不回放
type Journal struct {
	file *os.File   // 日志文件句柄
	mu   sync.Mutex // 互斥锁，保证每行写入的完整性
}

// Open 创建或打开审计日志文件
func Open(path string) (*Journal, error) {
	// O_APPEND: 追加写入, O_CREATE: 文件不存在则创建
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{file: file}, nil
}

// Append 写入一条记录，Time 为空时使用当前时间
func (j *Journal) Append(e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	// 写入数据并在末尾添加换行符；审计日志不用于恢复，只在 Close 时刷盘
	_, err = j.file.Write(append(data, '\n'))
	return err
}

// Record 为订单写入一条记录
func (j *Journal) Record(typ EntryType, o types.Order, station int, reason string) error {
	e := Entry{Type: typ, OrderID: o.ID, Station: station, Reason: reason}
	if typ == Submitted {
		e.Requirement = o.Requirement.Ints()
	}
	return j.Append(e)
}

// Close 刷盘并关闭日志文件
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return multierr.Append(j.file.Sync(), j.file.Close())
}

// Read 读取全部记录，忽略损坏的行
func Read(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ReadFile 打开并读取审计日志文件
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Summary 审计日志的汇总
type Summary struct {
	Submitted  int
	Dispatched int
	Requeued   int
	Completed  int
	Abandoned  int
	// Outstanding 已提交但既未完成也未放弃的订单 (仍在队列中或被持有)
	Outstanding []int64
	// Duplicates 完成记录出现多于一次的订单，正常运行时应为空
	Duplicates []int64
}

// Summarize 汇总记录，按订单号顺序给出未结束和重复完成的订单
// 事件异步写入，同一订单的记录在文件中不保证先后
func Summarize(entries []Entry) Summary {
	var s Summary
	submitted := make(map[int64]bool)
	var order []int64
	completed := make(map[int64]int)
	finished := make(map[int64]int)

	for _, e := range entries {
		switch e.Type {
		case Submitted:
			s.Submitted++
			if !submitted[e.OrderID] {
				submitted[e.OrderID] = true
				order = append(order, e.OrderID)
			}
		case Dispatched:
			s.Dispatched++
		case Requeued:
			s.Requeued++
		case Completed:
			s.Completed++
			finished[e.OrderID]++
			completed[e.OrderID]++
			if completed[e.OrderID] == 2 {
				s.Duplicates = append(s.Duplicates, e.OrderID)
			}
		case Abandoned:
			s.Abandoned++
			finished[e.OrderID]++
		}
	}

	for _, id := range order {
		if finished[id] == 0 {
			s.Outstanding = append(s.Outstanding, id)
		}
	}
	sort.Slice(s.Outstanding, func(i, j int) bool { return s.Outstanding[i] < s.Outstanding[j] })
	sort.Slice(s.Duplicates, func(i, j int) bool { return s.Duplicates[i] < s.Duplicates[j] })
	return s
}
