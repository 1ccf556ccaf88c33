package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundcapital/internal/capital/domain"
	"github.com/wyfcoding/fundcapital/pkg/logger"
	"github.com/wyfcoding/fundcapital/pkg/metrics"
)

// IntegrityReport 一次完整性检查的结果
type IntegrityReport struct {
	Scope       string                 `json:"scope"`
	CheckedAt   time.Time              `json:"checked_at"`
	Allocations int                    `json:"allocations"`
	Issues      []domain.Inconsistency `json:"issues"`
}

// IntegrityService 完整性检查服务
// 只读扫描：报告不变量违例与存量漂移，不修改任何记录，
// 发现的问题以数据形式返回，是否修复由操作员决定
type IntegrityService struct {
	allocRepo domain.AllocationRepository
	callRepo  domain.CapitalCallRepository
	fundRepo  domain.FundRepository
	dealRepo  domain.DealRepository
	checker   *domain.IntegrityChecker
	metrics   *metrics.Metrics // 可为 nil
}

// NewIntegrityService 创建完整性检查服务，epsilon 为基金聚合比对容差
func NewIntegrityService(
	allocRepo domain.AllocationRepository,
	callRepo domain.CapitalCallRepository,
	fundRepo domain.FundRepository,
	dealRepo domain.DealRepository,
	epsilon decimal.Decimal,
	m *metrics.Metrics,
) *IntegrityService {
	return &IntegrityService{
		allocRepo: allocRepo,
		callRepo:  callRepo,
		fundRepo:  fundRepo,
		dealRepo:  dealRepo,
		checker:   domain.NewIntegrityChecker(epsilon),
		metrics:   m,
	}
}

// RunIntegrityCheck 扫描指定基金（fundID 为空时扫描全部配置）
func (s *IntegrityService) RunIntegrityCheck(ctx context.Context, fundID string) (*IntegrityReport, error) {
	report := &IntegrityReport{
		Scope:     fundID,
		CheckedAt: time.Now(),
		Issues:    []domain.Inconsistency{},
	}
	if fundID == "" {
		report.Scope = "all"
	}

	var allocs []*domain.FundAllocation
	var err error
	if fundID == "" {
		allocs, err = s.allocRepo.ListAll(ctx)
	} else {
		if _, err := s.fundRepo.Get(ctx, fundID); err != nil {
			return nil, err
		}
		allocs, err = s.allocRepo.ListByFund(ctx, fundID)
	}
	if err != nil {
		return nil, err
	}
	report.Allocations = len(allocs)

	sectors, err := s.sectorsByDeal(ctx, allocs)
	if err != nil {
		return nil, err
	}

	byFund := make(map[string][]*domain.FundAllocation)
	for _, alloc := range allocs {
		calls, err := s.callRepo.ListByAllocation(ctx, alloc.AllocationID)
		if err != nil {
			return nil, err
		}
		report.Issues = append(report.Issues, s.checker.CheckAllocation(alloc, calls, sectors[alloc.DealID])...)
		byFund[alloc.FundID] = append(byFund[alloc.FundID], alloc)
	}

	for id, fundAllocs := range byFund {
		fund, err := s.fundRepo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		report.Issues = append(report.Issues, s.checker.CheckFund(fund, fundAllocs)...)
	}

	if s.metrics != nil {
		s.metrics.IntegrityIssues.Set(float64(len(report.Issues)))
	}
	logger.Info(ctx, "Integrity check completed",
		"scope", report.Scope,
		"allocations", report.Allocations,
		"issues", len(report.Issues),
	)
	return report, nil
}

func (s *IntegrityService) sectorsByDeal(ctx context.Context, allocs []*domain.FundAllocation) (map[string]string, error) {
	ids := make([]string, 0, len(allocs))
	seen := make(map[string]struct{}, len(allocs))
	for _, a := range allocs {
		if _, ok := seen[a.DealID]; ok {
			continue
		}
		seen[a.DealID] = struct{}{}
		ids = append(ids, a.DealID)
	}
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	deals, err := s.dealRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	sectors := make(map[string]string, len(deals))
	for _, d := range deals {
		sectors[d.DealID] = d.Sector
	}
	return sectors, nil
}
