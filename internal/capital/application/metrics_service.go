package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/fundcapital/internal/capital/domain"
	"github.com/wyfcoding/fundcapital/pkg/logger"
)

// MetricsService 基金口径汇总查询服务
// 汇总总是从配置记录全量重算，权重与板块分布随查询口径动态计算；
// 结果按 (fund, view) 做 TTL 缓存，任何缴款事件由聚合器失效缓存
type MetricsService struct {
	allocRepo  domain.AllocationRepository
	callRepo   domain.CapitalCallRepository
	fundRepo   domain.FundRepository
	dealRepo   domain.DealRepository
	cache      MetricsCache // 可为 nil
	cacheTTL   time.Duration
	sectorTopN int
}

// NewMetricsService 创建口径汇总查询服务
func NewMetricsService(
	allocRepo domain.AllocationRepository,
	callRepo domain.CapitalCallRepository,
	fundRepo domain.FundRepository,
	dealRepo domain.DealRepository,
	cache MetricsCache,
	cacheTTL time.Duration,
	sectorTopN int,
) *MetricsService {
	return &MetricsService{
		allocRepo:  allocRepo,
		callRepo:   callRepo,
		fundRepo:   fundRepo,
		dealRepo:   dealRepo,
		cache:      cache,
		cacheTTL:   cacheTTL,
		sectorTopN: sectorTopN,
	}
}

// GetFundMetrics 查询基金在指定资本口径下的总额、单配置权重与板块分布
func (s *MetricsService) GetFundMetrics(ctx context.Context, fundID string, view domain.CapitalView) (*FundMetricsResult, error) {
	if !view.Valid() {
		return nil, domain.NewValidationError("view", fmt.Sprintf("unknown capital view %q", view))
	}
	if _, err := s.fundRepo.Get(ctx, fundID); err != nil {
		return nil, err
	}

	if s.cache != nil {
		var cached FundMetricsResult
		if hit, err := s.cache.GetJSON(ctx, fundMetricsCacheKey(fundID, view), &cached); err != nil {
			logger.Warn(ctx, "Fund metrics cache read failed", "fund_id", fundID, "error", err)
		} else if hit {
			return &cached, nil
		}
	}

	allocs, err := s.allocRepo.ListByFund(ctx, fundID)
	if err != nil {
		return nil, err
	}

	all := make([]domain.AllocationMetrics, 0, len(allocs))
	for _, a := range allocs {
		all = append(all, domain.MetricsFromAllocation(a))
	}

	result := &FundMetricsResult{
		FundID: fundID,
		View:   view,
		Totals: domain.CalculateFundMetrics(allocs),
	}
	result.TotalAmount = result.Totals.DisplayAmount(view)

	result.Weights = make([]AllocationWeight, 0, len(allocs))
	for i, a := range allocs {
		result.Weights = append(result.Weights, AllocationWeight{
			AllocationID: a.AllocationID,
			DealID:       a.DealID,
			Amount:       all[i].DisplayAmount(view),
			Weight:       domain.DynamicWeight(all[i], all, view),
		})
	}

	sectors, err := s.sectorsByDeal(ctx, allocs)
	if err != nil {
		return nil, err
	}
	result.SectorDistribution = domain.SectorDistribution(allocs, sectors, view, s.sectorTopN)

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, fundMetricsCacheKey(fundID, view), result, s.cacheTTL); err != nil {
			logger.Warn(ctx, "Fund metrics cache write failed", "fund_id", fundID, "error", err)
		}
	}
	return result, nil
}

// GetAllocationMetrics 查询单配置口径金额
// 读路径使用配置行上的派生字段；以子记录重算为准的校验走一致性检查
func (s *MetricsService) GetAllocationMetrics(ctx context.Context, allocationID string) (*domain.AllocationMetrics, error) {
	alloc, err := s.allocRepo.Get(ctx, allocationID)
	if err != nil {
		return nil, err
	}
	m := domain.MetricsFromAllocation(alloc)
	return &m, nil
}

func (s *MetricsService) sectorsByDeal(ctx context.Context, allocs []*domain.FundAllocation) (map[string]string, error) {
	ids := make([]string, 0, len(allocs))
	for _, a := range allocs {
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
