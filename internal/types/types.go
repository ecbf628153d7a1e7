package types

import (
	"fmt"
	"strings"
)

// 生产线的固定尺寸
const (
	MaxStations                 = 16  // 最大工站数量
	NumIngredients              = 6   // 食材种类数量
	DefaultGlobalQueueCapacity  = 256 // 全局订单队列容量
	DefaultStationQueueCapacity = 64  // 单个工站队列容量
	AlertMaxLen                 = 128 // 告警文本最大长度
)

// Ingredient 食材索引 [0, NumIngredients)
type Ingredient int

const (
	IngredientPan     Ingredient = iota // 面包 (必需)
	IngredientTomate                    // 番茄
	IngredientCebolla                   // 洋葱
	IngredientLechuga                   // 生菜
	IngredientQueso                     // 奶酪
	IngredientCarne                     // 肉饼 (必需)
)

// IngredientNames 食材名称，顺序与 Ingredient 索引一致
var IngredientNames = [NumIngredients]string{"pan", "tomate", "cebolla", "lechuga", "queso", "carne"}

// MandatoryIngredients 随机订单始终需要的食材
var MandatoryIngredients = []Ingredient{IngredientPan, IngredientCarne}

func (i Ingredient) String() string {
	if i < 0 || int(i) >= NumIngredients {
		return fmt.Sprintf("ingredient(%d)", int(i))
	}
	return IngredientNames[i]
}

// Valid 判断索引是否在合法范围内
func (i Ingredient) Valid() bool {
	return i >= 0 && int(i) < NumIngredients
}

// ParseIngredient 按名称或数字索引解析食材
func ParseIngredient(s string) (Ingredient, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for i, name := range IngredientNames {
		if name == s {
			return Ingredient(i), nil
		}
	}
	var idx int
	if _, err := fmt.Sscanf(s, "%d", &idx); err == nil && Ingredient(idx).Valid() {
		return Ingredient(idx), nil
	}
	return 0, fmt.Errorf("unknown ingredient %q", s)
}

// Requirement 订单对每种食材的需求 (有/无)
type Requirement [NumIngredients]bool

// Levels 工站的库存数量
type Levels [NumIngredients]int

// RequirementFromInts 将 0/1 向量转换为 Requirement，非零即视为需要
func RequirementFromInts(v []int) (Requirement, error) {
	var r Requirement
	if len(v) != NumIngredients {
		return r, fmt.Errorf("requirement must have %d values, got %d", NumIngredients, len(v))
	}
	for i, x := range v {
		if x != 0 && x != 1 {
			return r, fmt.Errorf("requirement[%d] must be 0 or 1, got %d", i, x)
		}
		r[i] = x == 1
	}
	return r, nil
}

// Ints 返回 0/1 形式的需求向量
func (r Requirement) Ints() []int {
	out := make([]int, NumIngredients)
	for i, need := range r {
		if need {
			out[i] = 1
		}
	}
	return out
}

func (r Requirement) String() string {
	var parts []string
	for i, need := range r {
		if need {
			parts = append(parts, IngredientNames[i])
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Order 表示一个汉堡订单
type Order struct {
	ID          int64       `json:"id"`          // 全局唯一且递增的订单号
	Requirement Requirement `json:"requirement"` // 所需食材
}

// StationSnapshot 工站状态的只读快照，供展示使用
type StationSnapshot struct {
	Index     int    `json:"index"`
	Running   bool   `json:"running"`
	Busy      bool   `json:"busy"`
	Alive     bool   `json:"alive"`
	Processed int64  `json:"processed"`
	Inventory Levels `json:"inventory"`
	Queued    int    `json:"queued"`
}

// LineSnapshot 整条生产线的只读快照
type LineSnapshot struct {
	StationCount int               `json:"station_count"`
	ShuttingDown bool              `json:"shutting_down"`
	GlobalQueued int               `json:"global_queued"`
	Stations     []StationSnapshot `json:"stations"`
	LastAlert    string            `json:"last_alert,omitempty"`
	AlertSeq     uint64            `json:"alert_seq"`
}
