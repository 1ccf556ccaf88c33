package mysql

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundcapital/internal/capital/domain"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
)

type distributionRepository struct {
	db *gorm.DB
}

// NewDistributionRepository 创建分配记录仓储
func NewDistributionRepository(db *gorm.DB) domain.DistributionRepository {
	return &distributionRepository{db: db}
}

func (r *distributionRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *distributionRepository) Save(ctx context.Context, dist *domain.Distribution) error {
	return r.getDB(ctx).Create(dist).Error
}

func (r *distributionRepository) ListByAllocation(ctx context.Context, allocationID string) ([]*domain.Distribution, error) {
	var dists []*domain.Distribution
	err := r.getDB(ctx).Where("allocation_id = ?", allocationID).Order("date ASC").Find(&dists).Error
	return dists, err
}

func (r *distributionRepository) SumByAllocation(ctx context.Context, allocationID string) (total, capitalReturn decimal.Decimal, err error) {
	err = r.getDB(ctx).Model(&domain.Distribution{}).
		Where("allocation_id = ?", allocationID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	err = r.getDB(ctx).Model(&domain.Distribution{}).
		Where("allocation_id = ? AND type = ?", allocationID, domain.DistributionTypeCapitalReturn).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&capitalReturn).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return total, capitalReturn, nil
}

func (r *distributionRepository) DeleteByAllocation(ctx context.Context, allocationID string) error {
	return r.getDB(ctx).Where("allocation_id = ?", allocationID).Delete(&domain.Distribution{}).Error
}
