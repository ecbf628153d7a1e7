package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"

	"fulfillment-line/internal/control"
	"fulfillment-line/internal/event"
	"fulfillment-line/internal/metrics"
	"fulfillment-line/internal/types"
)

// Restocker 定期为各工站补货
// 是否补货由 expr 规则决定，可用变量: station, ingredient, level, limit, roll (0..2 的随机数)
type Restocker struct {
	block    *control.Block
	bus      *event.Bus
	logger   *slog.Logger
	interval time.Duration
	limit    int
	program  *vm.Program
	rng      *rand.Rand
	changed  func()
}

func restockEnv(station int, k types.Ingredient, level, limit, roll int) map[string]interface{} {
	return map[string]interface{}{
		"station":    station,
		"ingredient": k.String(),
		"level":      level,
		"limit":      limit,
		"roll":       roll,
	}
}

// NewRestocker 编译补货规则并创建补货器
func NewRestocker(block *control.Block, rule string, interval time.Duration, limit int, seed int64, bus *event.Bus, logger *slog.Logger, changed func()) (*Restocker, error) {
	program, err := expr.Compile(rule, expr.Env(restockEnv(0, 0, 0, 0, 0)), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("restock rule compilation failed: %w", err)
	}
	if changed == nil {
		changed = func() {}
	}
	return &Restocker{
		block:    block,
		bus:      bus,
		logger:   logger.With("component", "restocker"),
		interval: interval,
		limit:    limit,
		program:  program,
		rng:      rand.New(rand.NewSource(seed)),
		changed:  changed,
	}, nil
}

// Run 启动补货循环
func (r *Restocker) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.block.ShuttingDown() {
				return
			}
			r.Tick()
		}
	}
}

// Tick 执行一轮补货，返回补货的 (工站, 食材) 数量
func (r *Restocker) Tick() int {
	restocked := 0
	for _, st := range r.block.Stations {
		levels := st.Inventory()
		changed := 0
		for k := range levels {
			ing := types.Ingredient(k)
			ok, err := r.evaluate(st.Index, ing, levels[k])
			if err != nil {
				r.logger.Error("补货规则评估失败", "error", err, "station", st.Index, "ingredient", ing)
				continue
			}
			if !ok {
				continue
			}
			level, err := st.Restock(ing, 1+r.rng.Intn(2), r.limit)
			if err != nil {
				r.logger.Error("补货失败", "error", err, "station", st.Index)
				continue
			}
			metrics.StationInventory.WithLabelValues(stationLabel(st.Index), ing.String()).Set(float64(level))
			changed++
		}
		if changed > 0 {
			restocked += changed
			r.bus.Publish(event.Event{Type: event.InventoryChanged, Station: st.Index})
		}
	}
	if restocked > 0 {
		r.logger.Debug("补货完成", "items", restocked)
		r.block.Notifier.Signal()
		r.changed()
	}
	return restocked
}

func (r *Restocker) evaluate(station int, k types.Ingredient, level int) (bool, error) {
	env := restockEnv(station, k, level, r.limit, r.rng.Intn(3))
	result, err := expr.Run(r.program, env)
	if err != nil {
		return false, fmt.Errorf("rule execution failed: %w", err)
	}
	ok, isBool := result.(bool)
	if !isBool {
		return false, fmt.Errorf("rule result is not a boolean")
	}
	return ok, nil
}
