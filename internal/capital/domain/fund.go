// 包 domain 资本账务引擎的领域模型
package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Fund 基金实体
// CommittedCapital / CalledCapital / UncalledCapital / AUM 为派生聚合字段，
// 只能由聚合器通过全量重算写入，禁止增量修补
type Fund struct {
	gorm.Model
	FundID   string `gorm:"column:fund_id;type:varchar(32);uniqueIndex;not null" json:"fund_id"`
	Name     string `gorm:"column:name;type:varchar(128);not null" json:"name"`
	Currency string `gorm:"column:currency;type:varchar(3);not null;default:USD" json:"currency"`
	// 认缴总额 = Σ allocation.committed_amount
	CommittedCapital decimal.Decimal `gorm:"column:committed_capital;type:decimal(20,2);default:0;not null" json:"committed_capital"`
	// 已缴总额 = Σ allocation.called_amount
	CalledCapital decimal.Decimal `gorm:"column:called_capital;type:decimal(20,2);default:0;not null" json:"called_capital"`
	// 未缴总额 = 认缴 - 已缴
	UncalledCapital decimal.Decimal `gorm:"column:uncalled_capital;type:decimal(20,2);default:0;not null" json:"uncalled_capital"`
	// 在管资产 = Σ allocation.market_value
	AUM decimal.Decimal `gorm:"column:aum;type:decimal(20,2);default:0;not null" json:"aum"`
}

func (Fund) TableName() string { return "funds" }

// DealStage 交易阶段
type DealStage int8

const (
	DealStageSourcing  DealStage = 1 // 项目储备
	DealStageDiligence DealStage = 2 // 尽职调查
	DealStageApproved  DealStage = 3 // 投决通过
	DealStageInvested  DealStage = 4 // 已投资
	DealStageExited    DealStage = 5 // 已退出
)

func (s DealStage) String() string {
	switch s {
	case DealStageSourcing:
		return "SOURCING"
	case DealStageDiligence:
		return "DILIGENCE"
	case DealStageApproved:
		return "APPROVED"
	case DealStageInvested:
		return "INVESTED"
	case DealStageExited:
		return "EXITED"
	default:
		return "UNKNOWN"
	}
}

// Deal 被投项目实体
type Deal struct {
	gorm.Model
	DealID string `gorm:"column:deal_id;type:varchar(32);uniqueIndex;not null" json:"deal_id"`
	Name   string `gorm:"column:name;type:varchar(128);not null" json:"name"`
	// 行业板块，板块分布汇总依赖此字段
	Sector string    `gorm:"column:sector;type:varchar(64)" json:"sector"`
	Stage  DealStage `gorm:"column:stage;type:tinyint;not null;default:1" json:"stage"`
}

func (Deal) TableName() string { return "deals" }

// FundRepository 基金仓储接口
type FundRepository interface {
	Save(ctx context.Context, fund *Fund) error
	Get(ctx context.Context, fundID string) (*Fund, error)
	List(ctx context.Context) ([]*Fund, error)
	// UpdateAggregates 写入全量重算后的聚合字段，聚合器专用
	UpdateAggregates(ctx context.Context, fundID string, committed, called, uncalled, aum decimal.Decimal) error
}

// DealRepository 项目仓储接口
type DealRepository interface {
	Save(ctx context.Context, deal *Deal) error
	Get(ctx context.Context, dealID string) (*Deal, error)
	ListByIDs(ctx context.Context, dealIDs []string) ([]*Deal, error)
	// AdvanceStage 单向推进项目阶段，已达到或超过目标阶段时不回退
	AdvanceStage(ctx context.Context, dealID string, stage DealStage) error
}
