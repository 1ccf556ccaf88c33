package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/fundcapital/internal/capital/domain"
	"github.com/wyfcoding/fundcapital/pkg/logger"
)

// MetricsCache 基金口径汇总的读缓存接口
// 缓存不可用时降级为直读数据库，实现方不得让缓存错误阻塞读写
type MetricsCache interface {
	GetJSON(ctx context.Context, key string, v any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// FundAggregator 基金聚合器
// 基金行上的聚合字段是配置级事实的物化缓存，只有聚合器可以写入，
// 且只通过全量重算写入，从而对重复或乱序触发保持幂等
type FundAggregator struct {
	allocRepo domain.AllocationRepository
	fundRepo  domain.FundRepository
	cache     MetricsCache // 可为 nil
}

// NewFundAggregator 创建基金聚合器
func NewFundAggregator(allocRepo domain.AllocationRepository, fundRepo domain.FundRepository, cache MetricsCache) *FundAggregator {
	return &FundAggregator{allocRepo: allocRepo, fundRepo: fundRepo, cache: cache}
}

// Refresh 从配置记录全量重算并回写基金聚合字段，同时失效口径缓存
// 在触发变更的同一事务上下文内调用
func (fa *FundAggregator) Refresh(ctx context.Context, fundID string) error {
	allocs, err := fa.allocRepo.ListByFund(ctx, fundID)
	if err != nil {
		return fmt.Errorf("failed to list allocations for fund %s: %w", fundID, err)
	}

	m := domain.CalculateFundMetrics(allocs)
	if err := fa.fundRepo.UpdateAggregates(ctx, fundID, m.TotalCommitted, m.TotalCalled, m.TotalUncalled, m.AUM); err != nil {
		return fmt.Errorf("failed to update fund aggregates for %s: %w", fundID, err)
	}

	fa.invalidate(ctx, fundID)
	return nil
}

func (fa *FundAggregator) invalidate(ctx context.Context, fundID string) {
	if fa.cache == nil {
		return
	}
	views := []domain.CapitalView{
		domain.ViewCommitted, domain.ViewCalled, domain.ViewPaid,
		domain.ViewUncalled, domain.ViewOutstanding,
	}
	keys := make([]string, 0, len(views))
	for _, v := range views {
		keys = append(keys, fundMetricsCacheKey(fundID, v))
	}
	if err := fa.cache.Delete(ctx, keys...); err != nil {
		logger.Warn(ctx, "Failed to invalidate fund metrics cache", "fund_id", fundID, "error", err)
	}
}

func fundMetricsCacheKey(fundID string, view domain.CapitalView) string {
	return fmt.Sprintf("fundcapital:metrics:%s:%s", fundID, view)
}
