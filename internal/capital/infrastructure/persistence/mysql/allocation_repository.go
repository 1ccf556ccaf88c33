// Package mysql 资本账务引擎 MySQL 仓储实现
package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/fundcapital/internal/capital/domain"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type allocationRepository struct {
	db *gorm.DB
}

// NewAllocationRepository 创建配置仓储
func NewAllocationRepository(db *gorm.DB) domain.AllocationRepository {
	return &allocationRepository{db: db}
}

func (r *allocationRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *allocationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		txCtx := contextx.WithTx(ctx, tx)
		return fn(txCtx)
	})
}

func (r *allocationRepository) Save(ctx context.Context, alloc *domain.FundAllocation) error {
	return r.getDB(ctx).Create(alloc).Error
}

// Update 带乐观版本守卫的更新：版本不匹配时不落库并返回 ConflictError
func (r *allocationRepository) Update(ctx context.Context, alloc *domain.FundAllocation) error {
	current := alloc.Version
	alloc.Version++
	result := r.getDB(ctx).Model(&domain.FundAllocation{}).
		Where("allocation_id = ? AND version = ?", alloc.AllocationID, current).
		Updates(map[string]any{
			"security_type":     alloc.SecurityType,
			"committed_amount":  alloc.CommittedAmount,
			"called_amount":     alloc.CalledAmount,
			"paid_amount":       alloc.PaidAmount,
			"distribution_paid": alloc.DistributionPaid,
			"total_returned":    alloc.TotalReturned,
			"market_value":      alloc.MarketValue,
			"status":            alloc.Status,
			"version":           alloc.Version,
		})
	if result.Error != nil {
		alloc.Version = current
		return result.Error
	}
	if result.RowsAffected == 0 {
		alloc.Version = current
		return &domain.ConflictError{Entity: "allocation", ID: alloc.AllocationID}
	}
	return nil
}

func (r *allocationRepository) Get(ctx context.Context, allocationID string) (*domain.FundAllocation, error) {
	var alloc domain.FundAllocation
	err := r.getDB(ctx).Where("allocation_id = ?", allocationID).First(&alloc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.NotFoundError{Entity: "allocation", ID: allocationID}
	}
	if err != nil {
		return nil, err
	}
	return &alloc, nil
}

// GetForUpdate 行锁读取，串行化同一配置上的并发写路径
func (r *allocationRepository) GetForUpdate(ctx context.Context, allocationID string) (*domain.FundAllocation, error) {
	var alloc domain.FundAllocation
	err := r.getDB(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("allocation_id = ?", allocationID).First(&alloc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.NotFoundError{Entity: "allocation", ID: allocationID}
	}
	if err != nil {
		return nil, err
	}
	return &alloc, nil
}

func (r *allocationRepository) GetByFundAndDeal(ctx context.Context, fundID, dealID string) (*domain.FundAllocation, error) {
	var alloc domain.FundAllocation
	err := r.getDB(ctx).Where("fund_id = ? AND deal_id = ?", fundID, dealID).First(&alloc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.NotFoundError{Entity: "allocation", ID: fundID + "/" + dealID}
	}
	if err != nil {
		return nil, err
	}
	return &alloc, nil
}

func (r *allocationRepository) ListByFund(ctx context.Context, fundID string) ([]*domain.FundAllocation, error) {
	var allocs []*domain.FundAllocation
	err := r.getDB(ctx).Where("fund_id = ?", fundID).Find(&allocs).Error
	return allocs, err
}

func (r *allocationRepository) ListByDeal(ctx context.Context, dealID string) ([]*domain.FundAllocation, error) {
	var allocs []*domain.FundAllocation
	err := r.getDB(ctx).Where("deal_id = ?", dealID).Find(&allocs).Error
	return allocs, err
}

func (r *allocationRepository) ListAll(ctx context.Context) ([]*domain.FundAllocation, error) {
	var allocs []*domain.FundAllocation
	err := r.getDB(ctx).Find(&allocs).Error
	return allocs, err
}

func (r *allocationRepository) Delete(ctx context.Context, allocationID string) error {
	return r.getDB(ctx).Where("allocation_id = ?", allocationID).Delete(&domain.FundAllocation{}).Error
}
