package inventory

import "fulfillment-line/internal/types"

// CanFulfill 判断库存是否满足订单需求，纯函数，不修改库存
func CanFulfill(levels types.Levels, req types.Requirement) bool {
	for k, need := range req {
		if need && levels[k] < 1 {
			return false
		}
	}
	return true
}

// Subtract 按需求逐项扣减库存
// 扣减结果为负时截断为 0 并返回 true；正确的调用方先检查 CanFulfill，不会触发截断
func Subtract(levels *types.Levels, req types.Requirement) (clamped bool) {
	for k, need := range req {
		if !need {
			continue
		}
		levels[k]--
		if levels[k] < 0 {
			levels[k] = 0
			clamped = true
		}
	}
	return clamped
}

// Missing 返回库存不足的食材
func Missing(levels types.Levels, req types.Requirement) []types.Ingredient {
	var out []types.Ingredient
	for k, need := range req {
		if need && levels[k] < 1 {
			out = append(out, types.Ingredient(k))
		}
	}
	return out
}
