package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func newAlloc(id, dealID, committed, called, paid string) *FundAllocation {
	a := NewFundAllocation(id, "FUND-1", dealID, "equity", d(committed))
	a.CalledAmount = d(called)
	a.PaidAmount = d(paid)
	return a
}

func TestRecomputeAllocationMetrics(t *testing.T) {
	alloc := newAlloc("ALLOC-1", "DEAL-1", "1000000", "0", "0")
	calls := []*CapitalCall{
		NewCapitalCall("CALL-1", "ALLOC-1", d("250000"), testCallDate, testDueDate, CallStatusSent, ""),
		NewCapitalCall("CALL-2", "ALLOC-1", d("350000"), testCallDate, testDueDate, CallStatusSent, ""),
	}
	calls[0].PaidAmount = d("250000")
	calls[1].PaidAmount = d("100000")

	m := RecomputeAllocationMetrics(alloc, calls)
	if !m.Called.Equal(d("600000")) {
		t.Errorf("called = %s, want 600000", m.Called)
	}
	if !m.Paid.Equal(d("350000")) {
		t.Errorf("paid = %s, want 350000", m.Paid)
	}
	if !m.Uncalled.Equal(d("400000")) {
		t.Errorf("uncalled = %s, want 400000", m.Uncalled)
	}
	if !m.Outstanding.Equal(d("250000")) {
		t.Errorf("outstanding = %s, want 250000", m.Outstanding)
	}
}

// 全量重算幂等：对同一数据重复汇总结果不变
func TestCalculateFundMetricsIdempotent(t *testing.T) {
	allocs := []*FundAllocation{
		newAlloc("ALLOC-1", "DEAL-1", "1000000", "600000", "400000"),
		newAlloc("ALLOC-2", "DEAL-2", "2000000", "500000", "500000"),
	}

	first := CalculateFundMetrics(allocs)
	second := CalculateFundMetrics(allocs)

	if !first.TotalCommitted.Equal(d("3000000")) {
		t.Errorf("total committed = %s, want 3000000", first.TotalCommitted)
	}
	if !first.TotalCalled.Equal(d("1100000")) {
		t.Errorf("total called = %s, want 1100000", first.TotalCalled)
	}
	if !first.TotalOutstanding.Equal(d("200000")) {
		t.Errorf("total outstanding = %s, want 200000", first.TotalOutstanding)
	}
	if !first.TotalCalled.Equal(second.TotalCalled) || !first.TotalUncalled.Equal(second.TotalUncalled) {
		t.Error("recompute is not idempotent")
	}
}

func TestDisplayAmount(t *testing.T) {
	m := AllocationMetrics{
		Committed:   d("1000000"),
		Called:      d("600000"),
		Paid:        d("400000"),
		Uncalled:    d("400000"),
		Outstanding: d("200000"),
	}
	tests := []struct {
		view CapitalView
		want string
	}{
		{ViewCommitted, "1000000"},
		{ViewCalled, "600000"},
		{ViewPaid, "400000"},
		{ViewUncalled, "400000"},
		{ViewOutstanding, "200000"},
	}
	for _, tt := range tests {
		if got := m.DisplayAmount(tt.view); !got.Equal(d(tt.want)) {
			t.Errorf("DisplayAmount(%s) = %s, want %s", tt.view, got, tt.want)
		}
	}
}

// 任一口径下全部权重之和 ≈ 100%
func TestDynamicWeightSumsToHundred(t *testing.T) {
	allocs := []*FundAllocation{
		newAlloc("ALLOC-1", "DEAL-1", "1000000", "600000", "400000"),
		newAlloc("ALLOC-2", "DEAL-2", "2000000", "500000", "500000"),
		newAlloc("ALLOC-3", "DEAL-3", "500000", "250000", "0"),
	}
	var all []AllocationMetrics
	for _, a := range allocs {
		all = append(all, MetricsFromAllocation(a))
	}

	for _, view := range []CapitalView{ViewCommitted, ViewCalled, ViewPaid, ViewUncalled, ViewOutstanding} {
		total := decimal.Zero
		for _, m := range all {
			total = total.Add(DynamicWeight(m, all, view))
		}
		if total.Sub(d("100")).Abs().GreaterThan(d("0.0001")) {
			t.Errorf("view %s: weights sum to %s, want 100", view, total)
		}
	}
}

// 分母为零时权重为 0 而不是 NaN
func TestDynamicWeightZeroDenominator(t *testing.T) {
	allocs := []*FundAllocation{
		newAlloc("ALLOC-1", "DEAL-1", "1000000", "0", "0"),
		newAlloc("ALLOC-2", "DEAL-2", "2000000", "0", "0"),
	}
	var all []AllocationMetrics
	for _, a := range allocs {
		all = append(all, MetricsFromAllocation(a))
	}

	w := DynamicWeight(all[0], all, ViewPaid)
	if !w.IsZero() {
		t.Errorf("weight with zero denominator = %s, want 0", w)
	}
}

func TestSectorDistribution(t *testing.T) {
	allocs := []*FundAllocation{
		newAlloc("ALLOC-1", "DEAL-1", "4000000", "0", "0"),
		newAlloc("ALLOC-2", "DEAL-2", "3000000", "0", "0"),
		newAlloc("ALLOC-3", "DEAL-3", "2000000", "0", "0"),
		newAlloc("ALLOC-4", "DEAL-4", "1000000", "0", "0"),
		newAlloc("ALLOC-5", "DEAL-5", "500000", "0", "0"),
	}
	sectors := map[string]string{
		"DEAL-1": "Technology",
		"DEAL-2": "Healthcare",
		"DEAL-3": "Energy",
		"DEAL-4": "Consumer",
		// DEAL-5 无板块
	}

	slices := SectorDistribution(allocs, sectors, ViewCommitted, 3)

	if len(slices) != 4 {
		t.Fatalf("got %d slices, want 3 + Other", len(slices))
	}
	if slices[0].Sector != "Technology" || !slices[0].Amount.Equal(d("4000000")) {
		t.Errorf("top slice = %s/%s, want Technology/4000000", slices[0].Sector, slices[0].Amount)
	}
	last := slices[len(slices)-1]
	if last.Sector != SectorOther {
		t.Errorf("tail bucket = %s, want %s", last.Sector, SectorOther)
	}
	// Consumer 1000000 + Uncategorized 500000
	if !last.Amount.Equal(d("1500000")) {
		t.Errorf("Other amount = %s, want 1500000", last.Amount)
	}

	total := decimal.Zero
	for _, s := range slices {
		total = total.Add(s.Weight)
	}
	if total.Sub(d("100")).Abs().GreaterThan(d("0.0001")) {
		t.Errorf("sector weights sum to %s, want 100", total)
	}
}

func TestSectorDistributionNoCutoff(t *testing.T) {
	allocs := []*FundAllocation{
		newAlloc("ALLOC-1", "DEAL-1", "100", "0", "0"),
		newAlloc("ALLOC-2", "DEAL-2", "200", "0", "0"),
	}
	sectors := map[string]string{"DEAL-1": "Technology", "DEAL-2": "Energy"}

	slices := SectorDistribution(allocs, sectors, ViewCommitted, 0)
	if len(slices) != 2 {
		t.Fatalf("got %d slices, want 2", len(slices))
	}
	if slices[0].Sector != "Energy" {
		t.Errorf("slices not sorted descending by amount: first = %s", slices[0].Sector)
	}
}
