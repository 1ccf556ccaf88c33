package application

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundcapital/internal/capital/domain"
)

func seedPortfolio(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()
	env.seedFund("FUND-1")
	env.seedDeal("DEAL-1", "Technology")
	env.seedDeal("DEAL-2", "Healthcare")

	a1, err := env.allocSvc.CreateAllocation(ctx, CreateAllocationRequest{
		FundID: "FUND-1", DealID: "DEAL-1", CommittedAmount: dec("3000000"),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	a2, err := env.allocSvc.CreateAllocation(ctx, CreateAllocationRequest{
		FundID: "FUND-1", DealID: "DEAL-2", CommittedAmount: dec("1000000"),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	amount := dec("1500000")
	c1, err := env.callSvc.CreateCapitalCall(ctx, CreateCapitalCallRequest{
		AllocationID: a1.AllocationID, Amount: &amount,
		CallDate: time.Now(), DueDate: time.Now().AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := env.callSvc.ProcessPayment(ctx, ProcessPaymentRequest{
		CallID: c1.CallID, Amount: dec("500000"), PaymentDate: time.Now(),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	amount2 := dec("500000")
	c2, err := env.callSvc.CreateCapitalCall(ctx, CreateCapitalCallRequest{
		AllocationID: a2.AllocationID, Amount: &amount2,
		CallDate: time.Now(), DueDate: time.Now().AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := env.callSvc.ProcessPayment(ctx, ProcessPaymentRequest{
		CallID: c2.CallID, Amount: dec("500000"), PaymentDate: time.Now(),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestGetFundMetricsViews(t *testing.T) {
	env := newTestEnv()
	seedPortfolio(t, env)
	ctx := context.Background()

	// committed: 3000000 + 1000000
	res, err := env.metricsSvc.GetFundMetrics(ctx, "FUND-1", domain.ViewCommitted)
	if err != nil {
		t.Fatalf("GetFundMetrics: %v", err)
	}
	if !res.TotalAmount.Equal(dec("4000000")) {
		t.Errorf("committed total = %s, want 4000000", res.TotalAmount)
	}

	// paid: 500000 + 500000，两配置权重各 50%
	res, err = env.metricsSvc.GetFundMetrics(ctx, "FUND-1", domain.ViewPaid)
	if err != nil {
		t.Fatalf("GetFundMetrics: %v", err)
	}
	if !res.TotalAmount.Equal(dec("1000000")) {
		t.Errorf("paid total = %s, want 1000000", res.TotalAmount)
	}
	for _, w := range res.Weights {
		if !w.Weight.Equal(dec("50")) {
			t.Errorf("weight %s = %s, want 50", w.AllocationID, w.Weight)
		}
	}

	// outstanding: 只有 DEAL-1 还有 1000000 未实缴
	res, err = env.metricsSvc.GetFundMetrics(ctx, "FUND-1", domain.ViewOutstanding)
	if err != nil {
		t.Fatalf("GetFundMetrics: %v", err)
	}
	if !res.TotalAmount.Equal(dec("1000000")) {
		t.Errorf("outstanding total = %s, want 1000000", res.TotalAmount)
	}

	// 板块分布按口径金额降序，权重合计 100
	found := map[string]decimal.Decimal{}
	for _, s := range res.SectorDistribution {
		found[s.Sector] = s.Amount
	}
	if amt, ok := found["Technology"]; !ok || !amt.Equal(dec("1000000")) {
		t.Errorf("Technology outstanding = %v, want 1000000", found)
	}

	t.Run("unknown view rejected", func(t *testing.T) {
		if _, err := env.metricsSvc.GetFundMetrics(ctx, "FUND-1", "market_value"); !domain.IsValidation(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("unknown fund rejected", func(t *testing.T) {
		if _, err := env.metricsSvc.GetFundMetrics(ctx, "FUND-404", domain.ViewPaid); !domain.IsNotFound(err) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestGetAllocationMetrics(t *testing.T) {
	env := newTestEnv()
	seedPortfolio(t, env)
	ctx := context.Background()

	allocs, _ := env.allocSvc.ListAllocationsByFund(ctx, "FUND-1")
	for _, a := range allocs {
		if a.DealID != "DEAL-1" {
			continue
		}
		m, err := env.metricsSvc.GetAllocationMetrics(ctx, a.AllocationID)
		if err != nil {
			t.Fatalf("GetAllocationMetrics: %v", err)
		}
		if !m.Uncalled.Equal(dec("1500000")) {
			t.Errorf("uncalled = %s, want 1500000", m.Uncalled)
		}
		if !m.Outstanding.Equal(dec("1000000")) {
			t.Errorf("outstanding = %s, want 1000000", m.Outstanding)
		}
	}
}

func TestRunIntegrityCheck(t *testing.T) {
	env := newTestEnv()
	seedPortfolio(t, env)
	ctx := context.Background()

	// 引擎写出的数据必须零告警
	report, err := env.integSvc.RunIntegrityCheck(ctx, "FUND-1")
	if err != nil {
		t.Fatalf("RunIntegrityCheck: %v", err)
	}
	if len(report.Issues) != 0 {
		t.Fatalf("clean engine data produced issues: %+v", report.Issues)
	}
	if report.Allocations != 2 {
		t.Errorf("allocations = %d, want 2", report.Allocations)
	}

	// 在存储层直接注入漂移，检查器必须发现且不修改记录
	for _, a := range env.store.allocs {
		if a.DealID == "DEAL-1" {
			a.PaidAmount = dec("2000000") // paid > called
		}
	}
	report, err = env.integSvc.RunIntegrityCheck(ctx, "FUND-1")
	if err != nil {
		t.Fatalf("RunIntegrityCheck: %v", err)
	}
	if len(report.Issues) == 0 {
		t.Fatal("corrupted data produced no issues")
	}
	hasCritical := false
	for _, i := range report.Issues {
		if i.Field == "paid_amount" && i.Severity == domain.SeverityCritical {
			hasCritical = true
		}
	}
	if !hasCritical {
		t.Errorf("expected critical paid_amount issue, got %+v", report.Issues)
	}

	// 只读：扫描不得修复数据
	for _, a := range env.store.allocs {
		if a.DealID == "DEAL-1" && !a.PaidAmount.Equal(dec("2000000")) {
			t.Error("integrity check mutated stored data")
		}
	}
}

func TestRunIntegrityCheckAllFunds(t *testing.T) {
	env := newTestEnv()
	seedPortfolio(t, env)

	report, err := env.integSvc.RunIntegrityCheck(context.Background(), "")
	if err != nil {
		t.Fatalf("RunIntegrityCheck: %v", err)
	}
	if report.Scope != "all" {
		t.Errorf("scope = %s, want all", report.Scope)
	}
	if report.Allocations != 2 {
		t.Errorf("allocations = %d, want 2", report.Allocations)
	}
}
