package application

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundcapital/internal/capital/domain"
	"github.com/wyfcoding/fundcapital/pkg/logger"
	"github.com/wyfcoding/pkg/idgen"
)

// FundService 基金与项目主数据服务
type FundService struct {
	fundRepo domain.FundRepository
	dealRepo domain.DealRepository
}

// NewFundService 创建主数据服务
func NewFundService(fundRepo domain.FundRepository, dealRepo domain.DealRepository) *FundService {
	return &FundService{fundRepo: fundRepo, dealRepo: dealRepo}
}

// CreateFund 创建基金，聚合字段从零开始，由聚合器维护
func (s *FundService) CreateFund(ctx context.Context, name, currency string) (*domain.Fund, error) {
	if name == "" {
		return nil, domain.NewValidationError("name", "fund name is required")
	}
	if currency == "" {
		currency = "USD"
	}
	fund := &domain.Fund{
		FundID:           fmt.Sprintf("FUND-%d", idgen.GenID()),
		Name:             name,
		Currency:         currency,
		CommittedCapital: decimal.Zero,
		CalledCapital:    decimal.Zero,
		UncalledCapital:  decimal.Zero,
		AUM:              decimal.Zero,
	}
	if err := s.fundRepo.Save(ctx, fund); err != nil {
		return nil, err
	}
	logger.Info(ctx, "Fund created", "fund_id", fund.FundID, "name", fund.Name)
	return fund, nil
}

// GetFund 查询基金
func (s *FundService) GetFund(ctx context.Context, fundID string) (*domain.Fund, error) {
	return s.fundRepo.Get(ctx, fundID)
}

// ListFunds 查询全部基金
func (s *FundService) ListFunds(ctx context.Context) ([]*domain.Fund, error) {
	return s.fundRepo.List(ctx)
}

// CreateDeal 创建被投项目
func (s *FundService) CreateDeal(ctx context.Context, name, sector string) (*domain.Deal, error) {
	if name == "" {
		return nil, domain.NewValidationError("name", "deal name is required")
	}
	deal := &domain.Deal{
		DealID: fmt.Sprintf("DEAL-%d", idgen.GenID()),
		Name:   name,
		Sector: sector,
		Stage:  domain.DealStageSourcing,
	}
	if err := s.dealRepo.Save(ctx, deal); err != nil {
		return nil, err
	}
	logger.Info(ctx, "Deal created", "deal_id", deal.DealID, "name", deal.Name, "sector", deal.Sector)
	return deal, nil
}

// GetDeal 查询项目
func (s *FundService) GetDeal(ctx context.Context, dealID string) (*domain.Deal, error) {
	return s.dealRepo.Get(ctx, dealID)
}
