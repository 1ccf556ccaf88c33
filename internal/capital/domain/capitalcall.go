package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CallStatus 缴款通知状态
type CallStatus int8

const (
	CallStatusScheduled     CallStatus = 1 // 已排期
	CallStatusSent          CallStatus = 2 // 已发出
	CallStatusPartiallyPaid CallStatus = 3 // 部分到账
	CallStatusPaid          CallStatus = 4 // 已缴清，终态
	CallStatusOverdue       CallStatus = 5 // 已逾期，非终态，缴清后回转
	CallStatusDefaulted     CallStatus = 6 // 已违约，终态，仅显式操作可达
)

func (s CallStatus) String() string {
	switch s {
	case CallStatusScheduled:
		return "SCHEDULED"
	case CallStatusSent:
		return "SENT"
	case CallStatusPartiallyPaid:
		return "PARTIALLY_PAID"
	case CallStatusPaid:
		return "PAID"
	case CallStatusOverdue:
		return "OVERDUE"
	case CallStatusDefaulted:
		return "DEFAULTED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal 终态不再接受任何状态迁移
func (s CallStatus) IsTerminal() bool {
	return s == CallStatusPaid || s == CallStatusDefaulted
}

// CallBasis 按比例创建缴款通知时的计算基数
// 比例的语义必须显式给出：同一个 25% 按认缴总额还是按剩余未缴计算，金额完全不同
type CallBasis string

const (
	// BasisPercentOfCommitted 按认缴总额的百分比
	BasisPercentOfCommitted CallBasis = "percent_of_committed"
)

// CapitalCall 缴款通知，隶属于唯一一条配置
// 不变量 I2：同一配置下 Σ call_amount ≤ allocation.committed_amount
// 不变量 I3：0 ≤ paid_amount ≤ call_amount
type CapitalCall struct {
	gorm.Model
	CallID       string `gorm:"column:call_id;type:varchar(32);uniqueIndex;not null" json:"call_id"`
	AllocationID string `gorm:"column:allocation_id;type:varchar(32);index;not null" json:"allocation_id"`
	// 通知金额
	CallAmount decimal.Decimal `gorm:"column:call_amount;type:decimal(20,2);not null" json:"call_amount"`
	CallDate   time.Time       `gorm:"column:call_date;not null" json:"call_date"`
	// 截止日，不得早于通知日
	DueDate time.Time `gorm:"column:due_date;not null" json:"due_date"`
	// 已到账金额 = Σ payment.amount
	PaidAmount decimal.Decimal `gorm:"column:paid_amount;type:decimal(20,2);default:0;not null" json:"paid_amount"`
	// 未到账金额 = call_amount - paid_amount
	OutstandingAmount decimal.Decimal `gorm:"column:outstanding_amount;type:decimal(20,2);default:0;not null" json:"outstanding_amount"`
	Status            CallStatus      `gorm:"column:status;type:tinyint;not null;default:1" json:"status"`
	// 创建时的初始状态（scheduled 或 sent），逾期回转时的派生基准
	InitialStatus CallStatus `gorm:"column:initial_status;type:tinyint;not null;default:1" json:"initial_status"`
	Notes         string     `gorm:"column:notes;type:varchar(512)" json:"notes"`
	// 乐观锁版本号
	Version int64 `gorm:"column:version;not null;default:0" json:"version"`
}

func (CapitalCall) TableName() string { return "capital_calls" }

// NewCapitalCall 创建缴款通知
func NewCapitalCall(callID, allocationID string, amount decimal.Decimal, callDate, dueDate time.Time, initial CallStatus, notes string) *CapitalCall {
	return &CapitalCall{
		CallID:            callID,
		AllocationID:      allocationID,
		CallAmount:        amount,
		CallDate:          callDate,
		DueDate:           dueDate,
		PaidAmount:        decimal.Zero,
		OutstandingAmount: amount,
		Status:            initial,
		InitialStatus:     initial,
	}
}

// MarkSent 排期中的通知发出
func (c *CapitalCall) MarkSent() error {
	if c.Status != CallStatusScheduled {
		return &ConstraintViolation{
			Rule:    "call_not_scheduled",
			Message: fmt.Sprintf("call %s is %s, only scheduled calls can be marked sent", c.CallID, c.Status),
		}
	}
	c.Status = CallStatusSent
	c.InitialStatus = CallStatusSent
	return nil
}

// ApplyPayment 记账一笔到账金额并刷新状态
// 金额必须为正且不超过未到账余额，违反时不产生任何副作用
func (c *CapitalCall) ApplyPayment(amount decimal.Decimal, now time.Time) error {
	if c.Status == CallStatusDefaulted {
		return &ConstraintViolation{
			Rule:    "call_defaulted",
			Message: fmt.Sprintf("call %s is defaulted and accepts no payments", c.CallID),
		}
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return NewValidationError("amount", "payment amount must be positive")
	}
	if amount.GreaterThan(c.OutstandingAmount) {
		return &ConstraintViolation{
			Rule:      "payment_within_outstanding",
			Message:   fmt.Sprintf("payment %s exceeds outstanding balance of call %s", amount, c.CallID),
			Remaining: c.OutstandingAmount,
		}
	}
	c.PaidAmount = c.PaidAmount.Add(amount)
	c.OutstandingAmount = c.CallAmount.Sub(c.PaidAmount)
	c.Status = DeriveCallStatus(c.CallAmount, c.PaidAmount, c.DueDate, now, c.InitialStatus)
	return nil
}

// MarkDefaulted 显式标记违约，已缴清的通知不可违约
func (c *CapitalCall) MarkDefaulted() error {
	if c.Status == CallStatusPaid {
		return &ConstraintViolation{
			Rule:    "call_already_paid",
			Message: fmt.Sprintf("call %s is fully paid and cannot be defaulted", c.CallID),
		}
	}
	c.Status = CallStatusDefaulted
	return nil
}

// RefreshOverdue 按当前时间刷新逾期标记
func (c *CapitalCall) RefreshOverdue(now time.Time) {
	if c.Status.IsTerminal() {
		return
	}
	c.Status = DeriveCallStatus(c.CallAmount, c.PaidAmount, c.DueDate, now, c.InitialStatus)
}

// Payment 实缴记录，只追加不修改
type Payment struct {
	gorm.Model
	PaymentID   string          `gorm:"column:payment_id;type:varchar(32);uniqueIndex;not null" json:"payment_id"`
	CallID      string          `gorm:"column:call_id;type:varchar(32);index;not null" json:"call_id"`
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	PaymentDate time.Time       `gorm:"column:payment_date;not null" json:"payment_date"`
}

func (Payment) TableName() string { return "payments" }

// CapitalCallRepository 缴款通知仓储接口
type CapitalCallRepository interface {
	Save(ctx context.Context, call *CapitalCall) error
	Update(ctx context.Context, call *CapitalCall) error
	Get(ctx context.Context, callID string) (*CapitalCall, error)
	// GetForUpdate 行锁读取，支付路径在事务内用其串行化同一通知上的并发缴款
	GetForUpdate(ctx context.Context, callID string) (*CapitalCall, error)
	ListByAllocation(ctx context.Context, allocationID string) ([]*CapitalCall, error)
	// SumCallAmount 当前配置下全部通知金额之和，I2 校验与 called_amount 重算的数据源
	SumCallAmount(ctx context.Context, allocationID string) (decimal.Decimal, error)
	// SumPaidAmount 当前配置下全部到账金额之和，paid_amount 重算的数据源
	SumPaidAmount(ctx context.Context, allocationID string) (decimal.Decimal, error)
	// CountOpen 未缴清且未违约的通知数量，删除配置前的守卫
	CountOpen(ctx context.Context, allocationID string) (int64, error)
	DeleteByAllocation(ctx context.Context, allocationID string) error
}

// PaymentRepository 实缴记录仓储接口
type PaymentRepository interface {
	Save(ctx context.Context, payment *Payment) error
	ListByCall(ctx context.Context, callID string) ([]*Payment, error)
	DeleteByCallIDs(ctx context.Context, callIDs []string) error
}
