package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DistributionType 分配类型
type DistributionType int8

const (
	DistributionTypeDividend      DistributionType = 1 // 股息
	DistributionTypeCapitalReturn DistributionType = 2 // 本金返还
	DistributionTypeInterest      DistributionType = 3 // 利息
	DistributionTypeFee           DistributionType = 4 // 费用返还
	DistributionTypeOther         DistributionType = 5 // 其他
)

func (t DistributionType) String() string {
	switch t {
	case DistributionTypeDividend:
		return "DIVIDEND"
	case DistributionTypeCapitalReturn:
		return "CAPITAL_RETURN"
	case DistributionTypeInterest:
		return "INTEREST"
	case DistributionTypeFee:
		return "FEE"
	case DistributionTypeOther:
		return "OTHER"
	default:
		return "UNKNOWN"
	}
}

// ParseDistributionType 解析分配类型字符串
func ParseDistributionType(s string) (DistributionType, bool) {
	switch s {
	case "dividend", "DIVIDEND":
		return DistributionTypeDividend, true
	case "capital_return", "CAPITAL_RETURN":
		return DistributionTypeCapitalReturn, true
	case "interest", "INTEREST":
		return DistributionTypeInterest, true
	case "fee", "FEE":
		return DistributionTypeFee, true
	case "other", "OTHER":
		return DistributionTypeOther, true
	}
	return 0, false
}

// Distribution 向投资人返还的分配记录
// 独立的核算轨道：计入 total_returned 与 MOIC，不影响 called/paid 口径
type Distribution struct {
	gorm.Model
	DistributionID string           `gorm:"column:distribution_id;type:varchar(32);uniqueIndex;not null" json:"distribution_id"`
	AllocationID   string           `gorm:"column:allocation_id;type:varchar(32);index;not null" json:"allocation_id"`
	Amount         decimal.Decimal  `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	Date           time.Time        `gorm:"column:date;not null" json:"date"`
	Type           DistributionType `gorm:"column:type;type:tinyint;not null" json:"type"`
}

func (Distribution) TableName() string { return "distributions" }

// DistributionRepository 分配记录仓储接口
type DistributionRepository interface {
	Save(ctx context.Context, dist *Distribution) error
	ListByAllocation(ctx context.Context, allocationID string) ([]*Distribution, error)
	// SumByAllocation 返回 (全部类型合计, capital_return 类型合计)
	SumByAllocation(ctx context.Context, allocationID string) (total, capitalReturn decimal.Decimal, err error)
	DeleteByAllocation(ctx context.Context, allocationID string) error
}
