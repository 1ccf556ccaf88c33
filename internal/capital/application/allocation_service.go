// Package application 资本账务引擎的用例逻辑
// 编排领域对象与仓储完成配置、缴款、实缴、分配等业务用例；
// 每个变更用例在单个数据库事务内完成行变更、派生金额重算与基金聚合刷新
package application

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundcapital/internal/capital/domain"
	"github.com/wyfcoding/fundcapital/pkg/logger"
	"github.com/wyfcoding/fundcapital/pkg/metrics"
	"github.com/wyfcoding/pkg/idgen"
)

// AllocationBounds 认缴金额的配置边界
type AllocationBounds struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// AllocationService 配置台账应用服务
type AllocationService struct {
	allocRepo  domain.AllocationRepository
	callRepo   domain.CapitalCallRepository
	payRepo    domain.PaymentRepository
	distRepo   domain.DistributionRepository
	fundRepo   domain.FundRepository
	dealRepo   domain.DealRepository
	aggregator *FundAggregator
	recorder   domain.EventRecorder // 可为 nil
	metrics    *metrics.Metrics     // 可为 nil
	bounds     AllocationBounds
}

// NewAllocationService 创建配置台账应用服务
func NewAllocationService(
	allocRepo domain.AllocationRepository,
	callRepo domain.CapitalCallRepository,
	payRepo domain.PaymentRepository,
	distRepo domain.DistributionRepository,
	fundRepo domain.FundRepository,
	dealRepo domain.DealRepository,
	aggregator *FundAggregator,
	recorder domain.EventRecorder,
	m *metrics.Metrics,
	bounds AllocationBounds,
) *AllocationService {
	return &AllocationService{
		allocRepo:  allocRepo,
		callRepo:   callRepo,
		payRepo:    payRepo,
		distRepo:   distRepo,
		fundRepo:   fundRepo,
		dealRepo:   dealRepo,
		aggregator: aggregator,
		recorder:   recorder,
		metrics:    m,
		bounds:     bounds,
	}
}

// CreateAllocation 创建基金对项目的认缴配置
// 认缴金额必须落在配置边界内，(fund, deal) 组合必须唯一
func (s *AllocationService) CreateAllocation(ctx context.Context, req CreateAllocationRequest) (*domain.FundAllocation, error) {
	if req.FundID == "" || req.DealID == "" {
		return nil, domain.NewValidationError("fund_id/deal_id", "fund_id and deal_id are required")
	}
	if req.CommittedAmount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.NewValidationError("committed_amount", "committed amount must be positive")
	}
	if req.CommittedAmount.LessThan(s.bounds.Min) || req.CommittedAmount.GreaterThan(s.bounds.Max) {
		return nil, domain.NewValidationError("committed_amount",
			fmt.Sprintf("committed amount must be within [%s, %s]", s.bounds.Min, s.bounds.Max))
	}

	if _, err := s.fundRepo.Get(ctx, req.FundID); err != nil {
		return nil, err
	}
	if _, err := s.dealRepo.Get(ctx, req.DealID); err != nil {
		return nil, err
	}

	if existing, err := s.allocRepo.GetByFundAndDeal(ctx, req.FundID, req.DealID); err == nil && existing != nil {
		return nil, &domain.ConstraintViolation{
			Rule:    "unique_fund_deal",
			Message: fmt.Sprintf("allocation already exists for fund %s and deal %s", req.FundID, req.DealID),
		}
	}

	alloc := domain.NewFundAllocation(
		fmt.Sprintf("ALLOC-%d", idgen.GenID()),
		req.FundID, req.DealID, req.SecurityType, req.CommittedAmount,
	)

	err := s.allocRepo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.allocRepo.Save(txCtx, alloc); err != nil {
			return fmt.Errorf("failed to save allocation: %w", err)
		}
		return s.aggregator.Refresh(txCtx, req.FundID)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AllocationsCreated.Inc()
	}
	s.record(ctx, domain.EventAllocationCreated, map[string]string{
		"allocation_id": alloc.AllocationID,
		"fund_id":       alloc.FundID,
		"deal_id":       alloc.DealID,
	}, alloc)
	logger.Info(ctx, "Allocation created",
		"allocation_id", alloc.AllocationID,
		"fund_id", alloc.FundID,
		"deal_id", alloc.DealID,
		"committed_amount", alloc.CommittedAmount,
	)
	return alloc, nil
}

// UpdateAllocation 应用字段补丁
// 金额字段变化后状态必须重新派生；调用方提交的状态标签与派生值矛盾时
// 不静默接受，记录告警并以派生值为准；人工覆盖状态只通过显式操作进入
func (s *AllocationService) UpdateAllocation(ctx context.Context, allocationID string, req UpdateAllocationRequest) (*domain.FundAllocation, error) {
	if req.CommittedAmount != nil && req.CommittedAmount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.NewValidationError("committed_amount", "committed amount must be positive")
	}
	if req.MarketValue != nil && req.MarketValue.LessThan(decimal.Zero) {
		return nil, domain.NewValidationError("market_value", "market value cannot be negative")
	}

	var updated *domain.FundAllocation
	err := s.allocRepo.WithTx(ctx, func(txCtx context.Context) error {
		alloc, err := s.allocRepo.GetForUpdate(txCtx, allocationID)
		if err != nil {
			return err
		}

		amountsChanged := false
		if req.CommittedAmount != nil && !req.CommittedAmount.Equal(alloc.CommittedAmount) {
			if req.CommittedAmount.LessThan(alloc.CalledAmount) {
				return &domain.ConstraintViolation{
					Rule:    "committed_below_called",
					Message: fmt.Sprintf("committed amount %s cannot drop below called amount %s", req.CommittedAmount, alloc.CalledAmount),
				}
			}
			alloc.CommittedAmount = *req.CommittedAmount
			amountsChanged = true
		}
		if req.MarketValue != nil {
			alloc.MarketValue = *req.MarketValue
		}
		if req.SecurityType != nil {
			alloc.SecurityType = *req.SecurityType
		}

		if amountsChanged {
			alloc.RefreshStatus()
		}
		if req.Status != nil {
			derived := domain.DeriveAllocationStatus(alloc.CommittedAmount, alloc.PaidAmount)
			if !alloc.Status.IsManualOverride() && *req.Status != derived.String() {
				logger.Warn(txCtx, "Caller-supplied status contradicts derived status, keeping derived value",
					"allocation_id", allocationID,
					"supplied", *req.Status,
					"derived", derived.String(),
				)
				alloc.Status = derived
			}
		}

		if err := s.allocRepo.Update(txCtx, alloc); err != nil {
			return err
		}
		updated = alloc
		return s.aggregator.Refresh(txCtx, alloc.FundID)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, domain.EventAllocationUpdated, map[string]string{
		"allocation_id": updated.AllocationID,
		"fund_id":       updated.FundID,
	}, updated)
	return updated, nil
}

// MarkUnfunded 人工标记未出资，显式覆盖派生状态
func (s *AllocationService) MarkUnfunded(ctx context.Context, allocationID string) (*domain.FundAllocation, error) {
	return s.overrideStatus(ctx, allocationID, (*domain.FundAllocation).MarkUnfunded)
}

// WriteOff 核销配置
func (s *AllocationService) WriteOff(ctx context.Context, allocationID string) (*domain.FundAllocation, error) {
	return s.overrideStatus(ctx, allocationID, (*domain.FundAllocation).WriteOff)
}

func (s *AllocationService) overrideStatus(ctx context.Context, allocationID string, apply func(*domain.FundAllocation)) (*domain.FundAllocation, error) {
	var updated *domain.FundAllocation
	err := s.allocRepo.WithTx(ctx, func(txCtx context.Context) error {
		alloc, err := s.allocRepo.GetForUpdate(txCtx, allocationID)
		if err != nil {
			return err
		}
		apply(alloc)
		if err := s.allocRepo.Update(txCtx, alloc); err != nil {
			return err
		}
		updated = alloc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, domain.EventAllocationUpdated, map[string]string{
		"allocation_id": updated.AllocationID,
		"fund_id":       updated.FundID,
		"status":        updated.Status.String(),
	}, nil)
	logger.Info(ctx, "Allocation status overridden",
		"allocation_id", allocationID, "status", updated.Status.String())
	return updated, nil
}

// DeleteAllocation 删除配置
// 存在未缴清的缴款通知时拒绝，除非显式指定级联；级联删除子记录并触发基金重算
func (s *AllocationService) DeleteAllocation(ctx context.Context, allocationID string, cascade bool) error {
	alloc, err := s.allocRepo.Get(ctx, allocationID)
	if err != nil {
		return err
	}

	open, err := s.callRepo.CountOpen(ctx, allocationID)
	if err != nil {
		return err
	}
	if open > 0 && !cascade {
		return &domain.ConstraintViolation{
			Rule:    "open_capital_calls",
			Message: fmt.Sprintf("allocation %s has %d open capital calls, pass cascade to delete them", allocationID, open),
		}
	}

	err = s.allocRepo.WithTx(ctx, func(txCtx context.Context) error {
		calls, err := s.callRepo.ListByAllocation(txCtx, allocationID)
		if err != nil {
			return err
		}
		callIDs := make([]string, 0, len(calls))
		for _, c := range calls {
			callIDs = append(callIDs, c.CallID)
		}
		if len(callIDs) > 0 {
			if err := s.payRepo.DeleteByCallIDs(txCtx, callIDs); err != nil {
				return err
			}
		}
		if err := s.callRepo.DeleteByAllocation(txCtx, allocationID); err != nil {
			return err
		}
		if err := s.distRepo.DeleteByAllocation(txCtx, allocationID); err != nil {
			return err
		}
		if err := s.allocRepo.Delete(txCtx, allocationID); err != nil {
			return err
		}
		return s.aggregator.Refresh(txCtx, alloc.FundID)
	})
	if err != nil {
		return err
	}

	s.record(ctx, domain.EventAllocationDeleted, map[string]string{
		"allocation_id": allocationID,
		"fund_id":       alloc.FundID,
	}, map[string]any{"cascade": cascade, "open_calls": open})
	logger.Info(ctx, "Allocation deleted",
		"allocation_id", allocationID, "cascade", cascade)
	return nil
}

// RecordDistribution 登记一笔分配
// 分配是独立核算轨道，只影响 total_returned / distribution_paid / MOIC
func (s *AllocationService) RecordDistribution(ctx context.Context, req RecordDistributionRequest) (*domain.Distribution, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.NewValidationError("amount", "distribution amount must be positive")
	}
	distType, ok := domain.ParseDistributionType(req.Type)
	if !ok {
		return nil, domain.NewValidationError("type", fmt.Sprintf("unknown distribution type %q", req.Type))
	}

	dist := &domain.Distribution{
		DistributionID: fmt.Sprintf("DIST-%d", idgen.GenID()),
		AllocationID:   req.AllocationID,
		Amount:         req.Amount,
		Date:           req.Date,
		Type:           distType,
	}

	err := s.allocRepo.WithTx(ctx, func(txCtx context.Context) error {
		alloc, err := s.allocRepo.GetForUpdate(txCtx, req.AllocationID)
		if err != nil {
			return err
		}
		if err := s.distRepo.Save(txCtx, dist); err != nil {
			return err
		}
		// 从分配记录全量重算回款总额
		total, capitalReturn, err := s.distRepo.SumByAllocation(txCtx, req.AllocationID)
		if err != nil {
			return err
		}
		alloc.TotalReturned = total
		alloc.DistributionPaid = capitalReturn
		return s.allocRepo.Update(txCtx, alloc)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.DistributionsRecorded.Inc()
	}
	s.record(ctx, domain.EventDistributionCreated, map[string]string{
		"distribution_id": dist.DistributionID,
		"allocation_id":   dist.AllocationID,
	}, dist)
	logger.Info(ctx, "Distribution recorded",
		"distribution_id", dist.DistributionID,
		"allocation_id", dist.AllocationID,
		"amount", dist.Amount,
		"type", dist.Type.String(),
	)
	return dist, nil
}

// GetAllocation 查询单条配置
func (s *AllocationService) GetAllocation(ctx context.Context, allocationID string) (*domain.FundAllocation, error) {
	return s.allocRepo.Get(ctx, allocationID)
}

// ListAllocationsByFund 查询基金下全部配置
func (s *AllocationService) ListAllocationsByFund(ctx context.Context, fundID string) ([]*domain.FundAllocation, error) {
	return s.allocRepo.ListByFund(ctx, fundID)
}

// record 发出审计事件，失败只记日志，不影响已提交的变更
func (s *AllocationService) record(ctx context.Context, eventType string, ids map[string]string, payload any) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, domain.NewAuditEvent(eventType, ids, payload)); err != nil {
		logger.Warn(ctx, "Failed to record audit event", "event_type", eventType, "error", err)
	}
}
