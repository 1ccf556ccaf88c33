package mysql

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundcapital/internal/capital/domain"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type capitalCallRepository struct {
	db *gorm.DB
}

// NewCapitalCallRepository 创建缴款通知仓储
func NewCapitalCallRepository(db *gorm.DB) domain.CapitalCallRepository {
	return &capitalCallRepository{db: db}
}

func (r *capitalCallRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *capitalCallRepository) Save(ctx context.Context, call *domain.CapitalCall) error {
	return r.getDB(ctx).Create(call).Error
}

// Update 带乐观版本守卫的更新
func (r *capitalCallRepository) Update(ctx context.Context, call *domain.CapitalCall) error {
	current := call.Version
	call.Version++
	result := r.getDB(ctx).Model(&domain.CapitalCall{}).
		Where("call_id = ? AND version = ?", call.CallID, current).
		Updates(map[string]any{
			"paid_amount":        call.PaidAmount,
			"outstanding_amount": call.OutstandingAmount,
			"status":             call.Status,
			"initial_status":     call.InitialStatus,
			"notes":              call.Notes,
			"version":            call.Version,
		})
	if result.Error != nil {
		call.Version = current
		return result.Error
	}
	if result.RowsAffected == 0 {
		call.Version = current
		return &domain.ConflictError{Entity: "capital call", ID: call.CallID}
	}
	return nil
}

func (r *capitalCallRepository) Get(ctx context.Context, callID string) (*domain.CapitalCall, error) {
	var call domain.CapitalCall
	err := r.getDB(ctx).Where("call_id = ?", callID).First(&call).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.NotFoundError{Entity: "capital call", ID: callID}
	}
	if err != nil {
		return nil, err
	}
	return &call, nil
}

func (r *capitalCallRepository) GetForUpdate(ctx context.Context, callID string) (*domain.CapitalCall, error) {
	var call domain.CapitalCall
	err := r.getDB(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("call_id = ?", callID).First(&call).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.NotFoundError{Entity: "capital call", ID: callID}
	}
	if err != nil {
		return nil, err
	}
	return &call, nil
}

func (r *capitalCallRepository) ListByAllocation(ctx context.Context, allocationID string) ([]*domain.CapitalCall, error) {
	var calls []*domain.CapitalCall
	err := r.getDB(ctx).Where("allocation_id = ?", allocationID).Order("call_date ASC").Find(&calls).Error
	return calls, err
}

func (r *capitalCallRepository) SumCallAmount(ctx context.Context, allocationID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.getDB(ctx).Model(&domain.CapitalCall{}).
		Where("allocation_id = ?", allocationID).
		Select("COALESCE(SUM(call_amount), 0)").
		Scan(&sum).Error
	return sum, err
}

func (r *capitalCallRepository) SumPaidAmount(ctx context.Context, allocationID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.getDB(ctx).Model(&domain.CapitalCall{}).
		Where("allocation_id = ?", allocationID).
		Select("COALESCE(SUM(paid_amount), 0)").
		Scan(&sum).Error
	return sum, err
}

func (r *capitalCallRepository) CountOpen(ctx context.Context, allocationID string) (int64, error) {
	var count int64
	err := r.getDB(ctx).Model(&domain.CapitalCall{}).
		Where("allocation_id = ? AND status NOT IN ?", allocationID,
			[]domain.CallStatus{domain.CallStatusPaid, domain.CallStatusDefaulted}).
		Count(&count).Error
	return count, err
}

func (r *capitalCallRepository) DeleteByAllocation(ctx context.Context, allocationID string) error {
	return r.getDB(ctx).Where("allocation_id = ?", allocationID).Delete(&domain.CapitalCall{}).Error
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建实缴记录仓储
func NewPaymentRepository(db *gorm.DB) domain.PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *paymentRepository) Save(ctx context.Context, payment *domain.Payment) error {
	return r.getDB(ctx).Create(payment).Error
}

func (r *paymentRepository) ListByCall(ctx context.Context, callID string) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	err := r.getDB(ctx).Where("call_id = ?", callID).Order("payment_date ASC").Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) DeleteByCallIDs(ctx context.Context, callIDs []string) error {
	if len(callIDs) == 0 {
		return nil
	}
	return r.getDB(ctx).Where("call_id IN ?", callIDs).Delete(&domain.Payment{}).Error
}
