package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundcapital/internal/capital/domain"
	"github.com/wyfcoding/fundcapital/pkg/logger"
	"github.com/wyfcoding/fundcapital/pkg/metrics"
	"github.com/wyfcoding/pkg/idgen"
)

// CapitalCallService 缴款与实缴应用服务
// 所有写路径先对配置行或通知行加写锁，再在同一事务内完成
// 子记录写入、全量重算与状态派生，提交时以乐观版本兜底
type CapitalCallService struct {
	callRepo   domain.CapitalCallRepository
	payRepo    domain.PaymentRepository
	allocRepo  domain.AllocationRepository
	dealRepo   domain.DealRepository
	aggregator *FundAggregator
	recorder   domain.EventRecorder // 可为 nil
	metrics    *metrics.Metrics     // 可为 nil
}

// NewCapitalCallService 创建缴款应用服务
func NewCapitalCallService(
	callRepo domain.CapitalCallRepository,
	payRepo domain.PaymentRepository,
	allocRepo domain.AllocationRepository,
	dealRepo domain.DealRepository,
	aggregator *FundAggregator,
	recorder domain.EventRecorder,
	m *metrics.Metrics,
) *CapitalCallService {
	return &CapitalCallService{
		callRepo:   callRepo,
		payRepo:    payRepo,
		allocRepo:  allocRepo,
		dealRepo:   dealRepo,
		aggregator: aggregator,
		recorder:   recorder,
		metrics:    m,
	}
}

// CreateCapitalCall 创建缴款通知
// 金额与比例二选一；全部通知金额之和不得超过认缴总额，
// 超额时拒绝并在错误中携带剩余可通知额度
func (s *CapitalCallService) CreateCapitalCall(ctx context.Context, req CreateCapitalCallRequest) (*domain.CapitalCall, error) {
	if req.AllocationID == "" {
		return nil, domain.NewValidationError("allocation_id", "allocation_id is required")
	}
	if (req.Amount == nil) == (req.Percentage == nil) {
		return nil, domain.NewValidationError("amount", "exactly one of amount or percentage must be provided")
	}
	if req.DueDate.Before(req.CallDate) {
		return nil, domain.NewValidationError("due_date", "due date cannot precede call date")
	}

	initialStatus := domain.CallStatusScheduled
	switch req.InitialStatus {
	case "", "scheduled":
	case "sent":
		initialStatus = domain.CallStatusSent
	default:
		return nil, domain.NewValidationError("initial_status",
			fmt.Sprintf("initial status must be scheduled or sent, got %q", req.InitialStatus))
	}

	var call *domain.CapitalCall
	err := s.allocRepo.WithTx(ctx, func(txCtx context.Context) error {
		alloc, err := s.allocRepo.GetForUpdate(txCtx, req.AllocationID)
		if err != nil {
			return err
		}

		amount := decimal.Zero
		if req.Amount != nil {
			amount = *req.Amount
		} else {
			// 比例口径必须显式声明；只接受认缴总额口径，
			// 按剩余未缴口径的调用方需自行预换算
			if req.Basis != domain.BasisPercentOfCommitted {
				return domain.NewValidationError("basis",
					fmt.Sprintf("percentage calls require basis %q, got %q", domain.BasisPercentOfCommitted, req.Basis))
			}
			if req.Percentage.LessThanOrEqual(decimal.Zero) || req.Percentage.GreaterThan(decimal.NewFromInt(100)) {
				return domain.NewValidationError("percentage", "percentage must be within (0, 100]")
			}
			amount = alloc.CommittedAmount.Mul(*req.Percentage).Div(decimal.NewFromInt(100)).Round(2)
		}
		if amount.LessThanOrEqual(decimal.Zero) {
			return domain.NewValidationError("amount", "call amount must be positive")
		}

		called, err := s.callRepo.SumCallAmount(txCtx, req.AllocationID)
		if err != nil {
			return err
		}
		if called.Add(amount).GreaterThan(alloc.CommittedAmount) {
			return &domain.ConstraintViolation{
				Rule: "calls_within_committed",
				Message: fmt.Sprintf("call amount %s exceeds remaining callable capital for allocation %s",
					amount, req.AllocationID),
				Remaining: alloc.CommittedAmount.Sub(called),
			}
		}

		call = domain.NewCapitalCall(
			fmt.Sprintf("CALL-%d", idgen.GenID()),
			req.AllocationID, amount, req.CallDate, req.DueDate, initialStatus, req.Notes,
		)
		if err := s.callRepo.Save(txCtx, call); err != nil {
			return fmt.Errorf("failed to save capital call: %w", err)
		}

		// 已通知金额从通知记录全量重算，不做增量累加
		alloc.CalledAmount = called.Add(amount)
		alloc.RefreshStatus()
		if err := s.allocRepo.Update(txCtx, alloc); err != nil {
			return err
		}
		return s.aggregator.Refresh(txCtx, alloc.FundID)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CapitalCallsCreated.Inc()
	}
	s.record(ctx, domain.EventCapitalCallCreated, map[string]string{
		"call_id":       call.CallID,
		"allocation_id": call.AllocationID,
	}, call)
	logger.Info(ctx, "Capital call created",
		"call_id", call.CallID,
		"allocation_id", call.AllocationID,
		"call_amount", call.CallAmount,
		"due_date", call.DueDate.Format(time.DateOnly),
	)
	return call, nil
}

// MarkCallSent 将通知从已排期推进到已发出
func (s *CapitalCallService) MarkCallSent(ctx context.Context, callID string) (*domain.CapitalCall, error) {
	var updated *domain.CapitalCall
	err := s.allocRepo.WithTx(ctx, func(txCtx context.Context) error {
		call, err := s.callRepo.GetForUpdate(txCtx, callID)
		if err != nil {
			return err
		}
		if err := call.MarkSent(); err != nil {
			return err
		}
		if err := s.callRepo.Update(txCtx, call); err != nil {
			return err
		}
		updated = call
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, domain.EventCallStatusChanged, map[string]string{
		"call_id": callID,
		"status":  updated.Status.String(),
	}, nil)
	return updated, nil
}

// DefaultCall 显式标记违约，违约为终态，不会被后续实缴或派生覆盖
func (s *CapitalCallService) DefaultCall(ctx context.Context, callID string) (*domain.CapitalCall, error) {
	var updated *domain.CapitalCall
	err := s.allocRepo.WithTx(ctx, func(txCtx context.Context) error {
		call, err := s.callRepo.GetForUpdate(txCtx, callID)
		if err != nil {
			return err
		}
		if err := call.MarkDefaulted(); err != nil {
			return err
		}
		if err := s.callRepo.Update(txCtx, call); err != nil {
			return err
		}
		updated = call
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, domain.EventCallStatusChanged, map[string]string{
		"call_id": callID,
		"status":  updated.Status.String(),
	}, nil)
	logger.Info(ctx, "Capital call defaulted", "call_id", callID)
	return updated, nil
}

// ProcessPayment 处理一笔实缴
// 锁通知行再锁配置行，金额在通知层校验后写入，配置层实缴额
// 从通知记录全量重算；两笔并发实缴只有一笔能成功提交
func (s *CapitalCallService) ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*domain.Payment, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.NewValidationError("amount", "payment amount must be positive")
	}

	var payment *domain.Payment
	var callStatus domain.CallStatus
	var fundID string
	err := s.allocRepo.WithTx(ctx, func(txCtx context.Context) error {
		call, err := s.callRepo.GetForUpdate(txCtx, req.CallID)
		if err != nil {
			return err
		}
		if err := call.ApplyPayment(req.Amount, time.Now()); err != nil {
			return err
		}

		alloc, err := s.allocRepo.GetForUpdate(txCtx, call.AllocationID)
		if err != nil {
			return err
		}

		payment = &domain.Payment{
			PaymentID:   fmt.Sprintf("PAY-%d", idgen.GenID()),
			CallID:      call.CallID,
			Amount:      req.Amount,
			PaymentDate: req.PaymentDate,
		}
		if err := s.payRepo.Save(txCtx, payment); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
		if err := s.callRepo.Update(txCtx, call); err != nil {
			return err
		}

		// 配置层实缴额不做增量累加，从通知记录全量重算
		paid, err := s.callRepo.SumPaidAmount(txCtx, call.AllocationID)
		if err != nil {
			return err
		}
		alloc.PaidAmount = paid
		alloc.RefreshStatus()
		if err := s.allocRepo.Update(txCtx, alloc); err != nil {
			return err
		}

		// 配置全额到账后项目阶段推进为已投资
		if domain.ShouldAdvanceDealStage(alloc.Status) {
			if err := s.dealRepo.AdvanceStage(txCtx, alloc.DealID, domain.DealStageInvested); err != nil {
				return err
			}
		}

		callStatus = call.Status
		fundID = alloc.FundID
		return s.aggregator.Refresh(txCtx, alloc.FundID)
	})
	if err != nil {
		if domain.IsConflict(err) && s.metrics != nil {
			s.metrics.PaymentConflicts.Inc()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.PaymentsProcessed.Inc()
	}
	s.record(ctx, domain.EventPaymentProcessed, map[string]string{
		"payment_id": payment.PaymentID,
		"call_id":    payment.CallID,
		"fund_id":    fundID,
	}, payment)
	logger.Info(ctx, "Payment processed",
		"payment_id", payment.PaymentID,
		"call_id", payment.CallID,
		"amount", payment.Amount,
		"call_status", callStatus.String(),
	)
	return payment, nil
}

// RefreshOverdueCalls 扫描逾期：到期未缴清的通知标记逾期，
// 已缴清或已违约的不动；逾期不是终态，补缴后会被派生回正常状态
func (s *CapitalCallService) RefreshOverdueCalls(ctx context.Context, allocationID string) (int, error) {
	changed := 0
	err := s.allocRepo.WithTx(ctx, func(txCtx context.Context) error {
		calls, err := s.callRepo.ListByAllocation(txCtx, allocationID)
		if err != nil {
			return err
		}
		now := time.Now()
		for _, call := range calls {
			before := call.Status
			call.RefreshOverdue(now)
			if call.Status == before {
				continue
			}
			if err := s.callRepo.Update(txCtx, call); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		logger.Info(ctx, "Overdue scan updated calls", "allocation_id", allocationID, "count", changed)
	}
	return changed, nil
}

// GetCapitalCall 查询单条缴款通知
func (s *CapitalCallService) GetCapitalCall(ctx context.Context, callID string) (*domain.CapitalCall, error) {
	return s.callRepo.Get(ctx, callID)
}

// ListCallsByAllocation 查询配置下全部缴款通知
func (s *CapitalCallService) ListCallsByAllocation(ctx context.Context, allocationID string) ([]*domain.CapitalCall, error) {
	return s.callRepo.ListByAllocation(ctx, allocationID)
}

// ListPaymentsByCall 查询通知下全部实缴记录
func (s *CapitalCallService) ListPaymentsByCall(ctx context.Context, callID string) ([]*domain.Payment, error) {
	return s.payRepo.ListByCall(ctx, callID)
}

func (s *CapitalCallService) record(ctx context.Context, eventType string, ids map[string]string, payload any) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, domain.NewAuditEvent(eventType, ids, payload)); err != nil {
		logger.Warn(ctx, "Failed to record audit event", "event_type", eventType, "error", err)
	}
}
