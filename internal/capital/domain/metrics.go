// 资本口径汇总计算，全部为纯函数
// 聚合永远从源记录全量重算，不做增量修补，重复或乱序触发天然幂等
package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CapitalView 资本口径，驱动展示金额、权重与板块分布的字段选择
type CapitalView string

const (
	ViewCommitted   CapitalView = "committed"   // 认缴
	ViewCalled      CapitalView = "called"      // 已发起
	ViewPaid        CapitalView = "paid"        // 已实缴
	ViewUncalled    CapitalView = "uncalled"    // 未发起
	ViewOutstanding CapitalView = "outstanding" // 已发起未实缴
)

// Valid 口径是否合法
func (v CapitalView) Valid() bool {
	switch v {
	case ViewCommitted, ViewCalled, ViewPaid, ViewUncalled, ViewOutstanding:
		return true
	}
	return false
}

// AllocationMetrics 单配置的资本口径汇总
type AllocationMetrics struct {
	Committed   decimal.Decimal `json:"committed"`
	Called      decimal.Decimal `json:"called"`
	Paid        decimal.Decimal `json:"paid"`
	Uncalled    decimal.Decimal `json:"uncalled"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// MetricsFromAllocation 按配置行上的派生字段构造口径汇总（读路径）
func MetricsFromAllocation(alloc *FundAllocation) AllocationMetrics {
	return AllocationMetrics{
		Committed:   alloc.CommittedAmount,
		Called:      alloc.CalledAmount,
		Paid:        alloc.PaidAmount,
		Uncalled:    alloc.CommittedAmount.Sub(alloc.CalledAmount),
		Outstanding: alloc.CalledAmount.Sub(alloc.PaidAmount),
	}
}

// RecomputeAllocationMetrics 从缴款通知子记录全量重算口径汇总（写路径与校验器的真值来源）
// called = Σ call_amount，outstanding = called - paid
func RecomputeAllocationMetrics(alloc *FundAllocation, calls []*CapitalCall) AllocationMetrics {
	called := decimal.Zero
	paid := decimal.Zero
	for _, c := range calls {
		called = called.Add(c.CallAmount)
		paid = paid.Add(c.PaidAmount)
	}
	return AllocationMetrics{
		Committed:   alloc.CommittedAmount,
		Called:      called,
		Paid:        paid,
		Uncalled:    alloc.CommittedAmount.Sub(called),
		Outstanding: called.Sub(paid),
	}
}

// DisplayAmount 按口径选择展示金额
func (m AllocationMetrics) DisplayAmount(view CapitalView) decimal.Decimal {
	switch view {
	case ViewCommitted:
		return m.Committed
	case ViewCalled:
		return m.Called
	case ViewPaid:
		return m.Paid
	case ViewUncalled:
		return m.Uncalled
	case ViewOutstanding:
		return m.Outstanding
	default:
		return decimal.Zero
	}
}

// FundMetrics 基金级资本口径汇总
type FundMetrics struct {
	TotalCommitted   decimal.Decimal `json:"total_committed"`
	TotalCalled      decimal.Decimal `json:"total_called"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	TotalUncalled    decimal.Decimal `json:"total_uncalled"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	AUM              decimal.Decimal `json:"aum"`
}

// CalculateFundMetrics 基金级全量重算，满足 recompute(recompute(x)) == recompute(x)
func CalculateFundMetrics(allocs []*FundAllocation) FundMetrics {
	var m FundMetrics
	m.TotalCommitted = decimal.Zero
	m.TotalCalled = decimal.Zero
	m.TotalPaid = decimal.Zero
	m.TotalUncalled = decimal.Zero
	m.TotalOutstanding = decimal.Zero
	m.AUM = decimal.Zero
	for _, a := range allocs {
		am := MetricsFromAllocation(a)
		m.TotalCommitted = m.TotalCommitted.Add(am.Committed)
		m.TotalCalled = m.TotalCalled.Add(am.Called)
		m.TotalPaid = m.TotalPaid.Add(am.Paid)
		m.TotalUncalled = m.TotalUncalled.Add(am.Uncalled)
		m.TotalOutstanding = m.TotalOutstanding.Add(am.Outstanding)
		m.AUM = m.AUM.Add(a.MarketValue)
	}
	return m
}

// DisplayAmount 按口径选择基金级展示金额
func (m FundMetrics) DisplayAmount(view CapitalView) decimal.Decimal {
	switch view {
	case ViewCommitted:
		return m.TotalCommitted
	case ViewCalled:
		return m.TotalCalled
	case ViewPaid:
		return m.TotalPaid
	case ViewUncalled:
		return m.TotalUncalled
	case ViewOutstanding:
		return m.TotalOutstanding
	default:
		return decimal.Zero
	}
}

var oneHundred = decimal.NewFromInt(100)

// DynamicWeight 配置在基金内的动态权重（百分比）
// 分母为全部配置在同一口径下的金额合计；分母为零时权重为零，不产生 NaN
func DynamicWeight(target AllocationMetrics, all []AllocationMetrics, view CapitalView) decimal.Decimal {
	total := decimal.Zero
	for _, m := range all {
		total = total.Add(m.DisplayAmount(view))
	}
	if total.IsZero() {
		return decimal.Zero
	}
	return target.DisplayAmount(view).Div(total).Mul(oneHundred)
}

// SectorSlice 板块分布的单个切片
type SectorSlice struct {
	Sector string          `json:"sector"`
	Amount decimal.Decimal `json:"amount"`
	Weight decimal.Decimal `json:"weight"`
}

// SectorOther 超出 topN 截断后的长尾归并桶
const SectorOther = "Other"

// SectorUncategorized 项目缺失板块信息时的归类
const SectorUncategorized = "Uncategorized"

// SectorDistribution 按项目板块汇总指定口径的金额分布
// sectorByDeal 为 deal_id → sector 映射；金额降序排列，超出 topN 的长尾并入 Other 桶
// topN ≤ 0 表示不截断
func SectorDistribution(allocs []*FundAllocation, sectorByDeal map[string]string, view CapitalView, topN int) []SectorSlice {
	amounts := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, a := range allocs {
		sector := sectorByDeal[a.DealID]
		if sector == "" {
			sector = SectorUncategorized
		}
		amount := MetricsFromAllocation(a).DisplayAmount(view)
		amounts[sector] = amounts[sector].Add(amount)
		total = total.Add(amount)
	}

	slices := make([]SectorSlice, 0, len(amounts))
	for sector, amount := range amounts {
		slices = append(slices, SectorSlice{Sector: sector, Amount: amount})
	}
	sort.Slice(slices, func(i, j int) bool {
		if !slices[i].Amount.Equal(slices[j].Amount) {
			return slices[i].Amount.GreaterThan(slices[j].Amount)
		}
		return slices[i].Sector < slices[j].Sector
	})

	if topN > 0 && len(slices) > topN {
		other := SectorSlice{Sector: SectorOther, Amount: decimal.Zero}
		for _, s := range slices[topN:] {
			other.Amount = other.Amount.Add(s.Amount)
		}
		slices = append(slices[:topN:topN], other)
	}

	for i := range slices {
		if total.IsZero() {
			slices[i].Weight = decimal.Zero
			continue
		}
		slices[i].Weight = slices[i].Amount.Div(total).Mul(oneHundred)
	}
	return slices
}
