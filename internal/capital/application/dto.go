package application

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundcapital/internal/capital/domain"
)

// CreateAllocationRequest 创建配置请求
type CreateAllocationRequest struct {
	DealID          string
	FundID          string
	CommittedAmount decimal.Decimal
	SecurityType    string
}

// UpdateAllocationRequest 配置字段补丁，nil 字段不修改
// Status 为字符串标签；与派生状态矛盾的标签会被记录并以派生值为准
type UpdateAllocationRequest struct {
	CommittedAmount *decimal.Decimal
	MarketValue     *decimal.Decimal
	SecurityType    *string
	Status          *string
}

// CreateCapitalCallRequest 创建缴款通知请求
// Amount 与 Percentage 二选一；按比例时 Basis 必须显式给出，
// 引擎只接受认缴总额口径，按剩余未缴口径的调用方需自行预换算
type CreateCapitalCallRequest struct {
	AllocationID  string
	Amount        *decimal.Decimal
	Percentage    *decimal.Decimal
	Basis         domain.CallBasis
	CallDate      time.Time
	DueDate       time.Time
	Notes         string
	InitialStatus string // scheduled 或 sent，缺省 scheduled
}

// ProcessPaymentRequest 实缴请求
type ProcessPaymentRequest struct {
	CallID      string
	Amount      decimal.Decimal
	PaymentDate time.Time
}

// RecordDistributionRequest 分配记录请求
type RecordDistributionRequest struct {
	AllocationID string
	Amount       decimal.Decimal
	Date         time.Time
	Type         string
}

// AllocationWeight 单配置在基金内的权重
type AllocationWeight struct {
	AllocationID string          `json:"allocation_id"`
	DealID       string          `json:"deal_id"`
	Amount       decimal.Decimal `json:"amount"`
	Weight       decimal.Decimal `json:"weight"`
}

// FundMetricsResult 基金口径汇总查询结果
type FundMetricsResult struct {
	FundID             string               `json:"fund_id"`
	View               domain.CapitalView   `json:"view"`
	TotalAmount        decimal.Decimal      `json:"total_amount"`
	Totals             domain.FundMetrics   `json:"totals"`
	Weights            []AllocationWeight   `json:"weights"`
	SectorDistribution []domain.SectorSlice `json:"sector_distribution"`
}
