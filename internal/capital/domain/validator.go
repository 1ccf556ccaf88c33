// 完整性校验器：只读扫描，检测不变量违例与存量数据漂移
// 校验结果是数据而非错误，绝不阻塞底层记录的读写
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Severity 问题严重度，critical 表示货币不变量已被破坏
type Severity int8

const (
	SeverityCritical Severity = 1
	SeverityHigh     Severity = 2
	SeverityMedium   Severity = 3
	SeverityLow      Severity = 4
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityHigh:
		return "HIGH"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityLow:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// Inconsistency 一条完整性告警
// SuggestedFix 永远是重算或重派生后的值，是否采用由操作员或修复任务决定
type Inconsistency struct {
	AllocationID string   `json:"allocation_id"`
	FundID       string   `json:"fund_id,omitempty"`
	Field        string   `json:"field"`
	Issue        string   `json:"issue"`
	Severity     Severity `json:"severity"`
	SuggestedFix string   `json:"suggested_fix"`
}

// IntegrityChecker 不变量校验器
type IntegrityChecker struct {
	// 基金聚合字段与重算值的容差
	epsilon decimal.Decimal
}

// NewIntegrityChecker 创建校验器，epsilon 为聚合比对容差
func NewIntegrityChecker(epsilon decimal.Decimal) *IntegrityChecker {
	return &IntegrityChecker{epsilon: epsilon}
}

// CheckAllocation 校验单条配置及其缴款通知
func (ic *IntegrityChecker) CheckAllocation(alloc *FundAllocation, calls []*CapitalCall, sector string) []Inconsistency {
	var issues []Inconsistency

	recomputed := RecomputeAllocationMetrics(alloc, calls)

	// I1：0 ≤ paid ≤ called ≤ committed
	if alloc.PaidAmount.LessThan(decimal.Zero) {
		issues = append(issues, Inconsistency{
			AllocationID: alloc.AllocationID,
			FundID:       alloc.FundID,
			Field:        "paid_amount",
			Issue:        "paid amount is negative",
			Severity:     SeverityCritical,
			SuggestedFix: recomputed.Paid.String(),
		})
	}
	if alloc.PaidAmount.GreaterThan(alloc.CalledAmount) {
		issues = append(issues, Inconsistency{
			AllocationID: alloc.AllocationID,
			FundID:       alloc.FundID,
			Field:        "paid_amount",
			Issue:        fmt.Sprintf("paid amount %s exceeds called amount %s", alloc.PaidAmount, alloc.CalledAmount),
			Severity:     SeverityCritical,
			SuggestedFix: recomputed.Paid.String(),
		})
	}
	if alloc.CalledAmount.GreaterThan(alloc.CommittedAmount) {
		issues = append(issues, Inconsistency{
			AllocationID: alloc.AllocationID,
			FundID:       alloc.FundID,
			Field:        "called_amount",
			Issue:        fmt.Sprintf("called amount %s exceeds committed amount %s", alloc.CalledAmount, alloc.CommittedAmount),
			Severity:     SeverityCritical,
			SuggestedFix: recomputed.Called.String(),
		})
	}

	// I2：Σ call_amount ≤ committed
	if recomputed.Called.GreaterThan(alloc.CommittedAmount) {
		issues = append(issues, Inconsistency{
			AllocationID: alloc.AllocationID,
			FundID:       alloc.FundID,
			Field:        "capital_calls",
			Issue:        fmt.Sprintf("sum of call amounts %s exceeds committed amount %s", recomputed.Called, alloc.CommittedAmount),
			Severity:     SeverityCritical,
			SuggestedFix: alloc.CommittedAmount.String(),
		})
	}

	// 配置行上的派生字段与子记录重算值漂移
	if !alloc.CalledAmount.Equal(recomputed.Called) {
		issues = append(issues, Inconsistency{
			AllocationID: alloc.AllocationID,
			FundID:       alloc.FundID,
			Field:        "called_amount",
			Issue:        fmt.Sprintf("stored called amount %s disagrees with recomputed %s", alloc.CalledAmount, recomputed.Called),
			Severity:     SeverityHigh,
			SuggestedFix: recomputed.Called.String(),
		})
	}
	if !alloc.PaidAmount.Equal(recomputed.Paid) {
		issues = append(issues, Inconsistency{
			AllocationID: alloc.AllocationID,
			FundID:       alloc.FundID,
			Field:        "paid_amount",
			Issue:        fmt.Sprintf("stored paid amount %s disagrees with recomputed %s", alloc.PaidAmount, recomputed.Paid),
			Severity:     SeverityHigh,
			SuggestedFix: recomputed.Paid.String(),
		})
	}

	// 存储状态与派生状态漂移（人工覆盖状态豁免）
	if !alloc.Status.IsManualOverride() {
		derived := DeriveAllocationStatus(alloc.CommittedAmount, alloc.PaidAmount)
		if alloc.Status != derived {
			issues = append(issues, Inconsistency{
				AllocationID: alloc.AllocationID,
				FundID:       alloc.FundID,
				Field:        "status",
				Issue:        fmt.Sprintf("stored status %s disagrees with derived %s", alloc.Status, derived),
				Severity:     SeverityMedium,
				SuggestedFix: derived.String(),
			})
		}
	}

	// 板块缺失只影响汇总展示
	if sector == "" {
		issues = append(issues, Inconsistency{
			AllocationID: alloc.AllocationID,
			FundID:       alloc.FundID,
			Field:        "sector",
			Issue:        "deal has no sector, allocation falls into the Uncategorized bucket",
			Severity:     SeverityLow,
			SuggestedFix: "",
		})
	}

	// 各通知自身的 I3 与日期次序
	for _, call := range calls {
		issues = append(issues, ic.checkCall(alloc, call)...)
	}

	return issues
}

func (ic *IntegrityChecker) checkCall(alloc *FundAllocation, call *CapitalCall) []Inconsistency {
	var issues []Inconsistency

	if call.PaidAmount.LessThan(decimal.Zero) || call.PaidAmount.GreaterThan(call.CallAmount) {
		issues = append(issues, Inconsistency{
			AllocationID: alloc.AllocationID,
			FundID:       alloc.FundID,
			Field:        "call.paid_amount",
			Issue:        fmt.Sprintf("call %s paid amount %s outside [0, %s]", call.CallID, call.PaidAmount, call.CallAmount),
			Severity:     SeverityCritical,
			SuggestedFix: call.CallAmount.String(),
		})
	}

	expected := call.CallAmount.Sub(call.PaidAmount)
	if !call.OutstandingAmount.Equal(expected) {
		issues = append(issues, Inconsistency{
			AllocationID: alloc.AllocationID,
			FundID:       alloc.FundID,
			Field:        "call.outstanding_amount",
			Issue:        fmt.Sprintf("call %s outstanding %s disagrees with call-paid %s", call.CallID, call.OutstandingAmount, expected),
			Severity:     SeverityHigh,
			SuggestedFix: expected.String(),
		})
	}

	if call.DueDate.Before(call.CallDate) {
		issues = append(issues, Inconsistency{
			AllocationID: alloc.AllocationID,
			FundID:       alloc.FundID,
			Field:        "call.due_date",
			Issue:        fmt.Sprintf("call %s due date %s precedes call date %s", call.CallID, call.DueDate.Format(time.DateOnly), call.CallDate.Format(time.DateOnly)),
			Severity:     SeverityMedium,
			SuggestedFix: call.CallDate.Format(time.DateOnly),
		})
	}

	return issues
}

// CheckFund 校验基金聚合字段与配置重算值的偏差
func (ic *IntegrityChecker) CheckFund(fund *Fund, allocs []*FundAllocation) []Inconsistency {
	var issues []Inconsistency
	recomputed := CalculateFundMetrics(allocs)

	check := func(field string, stored, expected decimal.Decimal) {
		if stored.Sub(expected).Abs().GreaterThan(ic.epsilon) {
			issues = append(issues, Inconsistency{
				FundID:       fund.FundID,
				Field:        field,
				Issue:        fmt.Sprintf("fund %s %s %s disagrees with resummed %s", fund.FundID, field, stored, expected),
				Severity:     SeverityHigh,
				SuggestedFix: expected.String(),
			})
		}
	}

	check("committed_capital", fund.CommittedCapital, recomputed.TotalCommitted)
	check("called_capital", fund.CalledCapital, recomputed.TotalCalled)
	check("uncalled_capital", fund.UncalledCapital, recomputed.TotalUncalled)
	check("aum", fund.AUM, recomputed.AUM)

	return issues
}
