// 状态派生规则，纯函数无副作用，可独立测试
// 状态是金额三元组 (committed, called, paid) 的派生属性，不是独立事实
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeriveAllocationStatus 按实缴对认缴的比较派生配置状态
// paid ≤ 0 → 已认缴；paid ≥ committed → 已足额；其余 → 部分实缴
// 阈值以认缴金额为准：paid == called < committed 仍是部分实缴
func DeriveAllocationStatus(committed, paid decimal.Decimal) AllocationStatus {
	if paid.LessThanOrEqual(decimal.Zero) {
		return AllocationStatusCommitted
	}
	if paid.GreaterThanOrEqual(committed) {
		return AllocationStatusFunded
	}
	return AllocationStatusPartiallyPaid
}

// DeriveCallStatus 派生缴款通知状态
// paid ≤ 0 → 初始状态；0 < paid < call → 部分到账；paid ≥ call → 已缴清
// 未缴清且已过截止日 → 逾期（非终态，缴清后回转）
func DeriveCallStatus(callAmount, paid decimal.Decimal, dueDate, now time.Time, initial CallStatus) CallStatus {
	if paid.GreaterThanOrEqual(callAmount) {
		return CallStatusPaid
	}
	if now.After(dueDate) {
		return CallStatusOverdue
	}
	if paid.GreaterThan(decimal.Zero) {
		return CallStatusPartiallyPaid
	}
	return initial
}

// ShouldAdvanceDealStage 配置进入部分实缴或足额实缴后，项目阶段单向推进为已投资
func ShouldAdvanceDealStage(status AllocationStatus) bool {
	return status == AllocationStatusPartiallyPaid || status == AllocationStatusFunded
}
