package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AllocationStatus 配置状态
type AllocationStatus int8

const (
	AllocationStatusCommitted     AllocationStatus = 1 // 已认缴
	AllocationStatusPartiallyPaid AllocationStatus = 2 // 部分实缴
	AllocationStatusFunded        AllocationStatus = 3 // 已足额实缴
	AllocationStatusUnfunded      AllocationStatus = 4 // 人工标记未出资
	AllocationStatusWrittenOff    AllocationStatus = 5 // 已核销
)

func (s AllocationStatus) String() string {
	switch s {
	case AllocationStatusCommitted:
		return "COMMITTED"
	case AllocationStatusPartiallyPaid:
		return "PARTIALLY_PAID"
	case AllocationStatusFunded:
		return "FUNDED"
	case AllocationStatusUnfunded:
		return "UNFUNDED"
	case AllocationStatusWrittenOff:
		return "WRITTEN_OFF"
	default:
		return "UNKNOWN"
	}
}

// IsManualOverride 人工覆盖状态不参与自动派生
func (s AllocationStatus) IsManualOverride() bool {
	return s == AllocationStatusUnfunded || s == AllocationStatusWrittenOff
}

// FundAllocation 基金对单个项目的认缴配置，聚合根
// 不变量 I1：0 ≤ paid_amount ≤ called_amount ≤ committed_amount
// called_amount / paid_amount 为派生字段，每次缴款事件后从子记录全量重算
type FundAllocation struct {
	gorm.Model
	AllocationID string `gorm:"column:allocation_id;type:varchar(32);uniqueIndex;not null" json:"allocation_id"`
	// (fund_id, deal_id) 唯一，一个基金对同一项目只有一条配置
	FundID       string `gorm:"column:fund_id;type:varchar(32);uniqueIndex:idx_fund_deal;not null" json:"fund_id"`
	DealID       string `gorm:"column:deal_id;type:varchar(32);uniqueIndex:idx_fund_deal;not null" json:"deal_id"`
	SecurityType string `gorm:"column:security_type;type:varchar(32)" json:"security_type"`
	// 认缴金额，创建后不随缴款变化
	CommittedAmount decimal.Decimal `gorm:"column:committed_amount;type:decimal(20,2);not null" json:"committed_amount"`
	// 已发起缴款通知的总额 = Σ capital_call.call_amount
	CalledAmount decimal.Decimal `gorm:"column:called_amount;type:decimal(20,2);default:0;not null" json:"called_amount"`
	// 已实缴总额 = Σ capital_call.paid_amount
	PaidAmount decimal.Decimal `gorm:"column:paid_amount;type:decimal(20,2);default:0;not null" json:"paid_amount"`
	// 已分配收益总额（按 capital_return 类型累计）
	DistributionPaid decimal.Decimal `gorm:"column:distribution_paid;type:decimal(20,2);default:0;not null" json:"distribution_paid"`
	// 全部回款总额（所有分配类型累计）
	TotalReturned decimal.Decimal `gorm:"column:total_returned;type:decimal(20,2);default:0;not null" json:"total_returned"`
	// 当前市值，用于 AUM 与 MOIC
	MarketValue decimal.Decimal  `gorm:"column:market_value;type:decimal(20,2);default:0;not null" json:"market_value"`
	Status      AllocationStatus `gorm:"column:status;type:tinyint;not null;default:1" json:"status"`
	// 乐观锁版本号
	Version int64 `gorm:"column:version;not null;default:0" json:"version"`
}

func (FundAllocation) TableName() string { return "fund_allocations" }

// NewFundAllocation 创建配置，初始状态为已认缴、零已缴
func NewFundAllocation(allocationID, fundID, dealID, securityType string, committed decimal.Decimal) *FundAllocation {
	return &FundAllocation{
		AllocationID:    allocationID,
		FundID:          fundID,
		DealID:          dealID,
		SecurityType:    securityType,
		CommittedAmount: committed,
		CalledAmount:    decimal.Zero,
		PaidAmount:      decimal.Zero,
		Status:          AllocationStatusCommitted,
	}
}

// RemainingCapacity 剩余可发起缴款的额度 = 认缴 - 已发起
func (a *FundAllocation) RemainingCapacity() decimal.Decimal {
	return a.CommittedAmount.Sub(a.CalledAmount)
}

// Uncalled 未缴金额
func (a *FundAllocation) Uncalled() decimal.Decimal {
	return a.CommittedAmount.Sub(a.CalledAmount)
}

// Outstanding 已发起未实缴金额
func (a *FundAllocation) Outstanding() decimal.Decimal {
	return a.CalledAmount.Sub(a.PaidAmount)
}

// MOIC 投资回报倍数 = (回款总额 + 市值) / 认缴金额，认缴为零时返回零
func (a *FundAllocation) MOIC() decimal.Decimal {
	if a.CommittedAmount.IsZero() {
		return decimal.Zero
	}
	return a.TotalReturned.Add(a.MarketValue).Div(a.CommittedAmount)
}

// RefreshStatus 按派生规则刷新状态；人工覆盖状态保持不变
func (a *FundAllocation) RefreshStatus() {
	if a.Status.IsManualOverride() {
		return
	}
	a.Status = DeriveAllocationStatus(a.CommittedAmount, a.PaidAmount)
}

// MarkUnfunded 人工标记未出资，只能显式触发
func (a *FundAllocation) MarkUnfunded() {
	a.Status = AllocationStatusUnfunded
}

// WriteOff 核销配置
func (a *FundAllocation) WriteOff() {
	a.Status = AllocationStatusWrittenOff
}

// AllocationRepository 配置仓储接口
// Update 基于 version 字段做乐观并发控制，版本不匹配时返回 ConflictError
type AllocationRepository interface {
	Save(ctx context.Context, alloc *FundAllocation) error
	Update(ctx context.Context, alloc *FundAllocation) error
	Get(ctx context.Context, allocationID string) (*FundAllocation, error)
	// GetForUpdate 行锁读取，必须在事务上下文内调用
	GetForUpdate(ctx context.Context, allocationID string) (*FundAllocation, error)
	GetByFundAndDeal(ctx context.Context, fundID, dealID string) (*FundAllocation, error)
	ListByFund(ctx context.Context, fundID string) ([]*FundAllocation, error)
	ListByDeal(ctx context.Context, dealID string) ([]*FundAllocation, error)
	ListAll(ctx context.Context) ([]*FundAllocation, error)
	Delete(ctx context.Context, allocationID string) error
	// WithTx 在单个数据库事务中执行 fn，事务经 context 传播给各仓储
	WithTx(ctx context.Context, fn func(txCtx context.Context) error) error
}
