package mysql

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundcapital/internal/capital/domain"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
)

type fundRepository struct {
	db *gorm.DB
}

// NewFundRepository 创建基金仓储
func NewFundRepository(db *gorm.DB) domain.FundRepository {
	return &fundRepository{db: db}
}

func (r *fundRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *fundRepository) Save(ctx context.Context, fund *domain.Fund) error {
	return r.getDB(ctx).Create(fund).Error
}

func (r *fundRepository) Get(ctx context.Context, fundID string) (*domain.Fund, error) {
	var fund domain.Fund
	err := r.getDB(ctx).Where("fund_id = ?", fundID).First(&fund).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.NotFoundError{Entity: "fund", ID: fundID}
	}
	if err != nil {
		return nil, err
	}
	return &fund, nil
}

func (r *fundRepository) List(ctx context.Context) ([]*domain.Fund, error) {
	var funds []*domain.Fund
	err := r.getDB(ctx).Find(&funds).Error
	return funds, err
}

// UpdateAggregates 聚合器专用：整行覆盖写入全量重算结果
func (r *fundRepository) UpdateAggregates(ctx context.Context, fundID string, committed, called, uncalled, aum decimal.Decimal) error {
	result := r.getDB(ctx).Model(&domain.Fund{}).
		Where("fund_id = ?", fundID).
		Updates(map[string]any{
			"committed_capital": committed,
			"called_capital":    called,
			"uncalled_capital":  uncalled,
			"aum":               aum,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &domain.NotFoundError{Entity: "fund", ID: fundID}
	}
	return nil
}

type dealRepository struct {
	db *gorm.DB
}

// NewDealRepository 创建项目仓储
func NewDealRepository(db *gorm.DB) domain.DealRepository {
	return &dealRepository{db: db}
}

func (r *dealRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *dealRepository) Save(ctx context.Context, deal *domain.Deal) error {
	return r.getDB(ctx).Create(deal).Error
}

func (r *dealRepository) Get(ctx context.Context, dealID string) (*domain.Deal, error) {
	var deal domain.Deal
	err := r.getDB(ctx).Where("deal_id = ?", dealID).First(&deal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.NotFoundError{Entity: "deal", ID: dealID}
	}
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

func (r *dealRepository) ListByIDs(ctx context.Context, dealIDs []string) ([]*domain.Deal, error) {
	if len(dealIDs) == 0 {
		return nil, nil
	}
	var deals []*domain.Deal
	err := r.getDB(ctx).Where("deal_id IN ?", dealIDs).Find(&deals).Error
	return deals, err
}

// AdvanceStage 单向推进，阶段只升不降
func (r *dealRepository) AdvanceStage(ctx context.Context, dealID string, stage domain.DealStage) error {
	return r.getDB(ctx).Model(&domain.Deal{}).
		Where("deal_id = ? AND stage < ?", dealID, stage).
		Update("stage", stage).Error
}
