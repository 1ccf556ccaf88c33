package domain

import (
	"testing"
)

func hasIssue(issues []Inconsistency, field string, severity Severity) bool {
	for _, i := range issues {
		if i.Field == field && i.Severity == severity {
			return true
		}
	}
	return false
}

func TestCheckAllocationCleanData(t *testing.T) {
	ic := NewIntegrityChecker(d("0.01"))

	alloc := newAlloc("ALLOC-1", "DEAL-1", "1000000", "250000", "250000")
	alloc.Status = AllocationStatusPartiallyPaid
	call := NewCapitalCall("CALL-1", "ALLOC-1", d("250000"), testCallDate, testDueDate, CallStatusSent, "")
	call.PaidAmount = d("250000")
	call.OutstandingAmount = d("0")
	call.Status = CallStatusPaid

	issues := ic.CheckAllocation(alloc, []*CapitalCall{call}, "Technology")
	if len(issues) != 0 {
		t.Errorf("clean data produced %d issues: %+v", len(issues), issues)
	}
}

func TestCheckAllocationInvariantViolations(t *testing.T) {
	ic := NewIntegrityChecker(d("0.01"))

	t.Run("paid exceeds called", func(t *testing.T) {
		alloc := newAlloc("ALLOC-1", "DEAL-1", "1000000", "200000", "300000")
		issues := ic.CheckAllocation(alloc, nil, "Technology")
		if !hasIssue(issues, "paid_amount", SeverityCritical) {
			t.Errorf("expected critical paid_amount issue, got %+v", issues)
		}
	})

	t.Run("called exceeds committed", func(t *testing.T) {
		alloc := newAlloc("ALLOC-1", "DEAL-1", "1000000", "1200000", "0")
		issues := ic.CheckAllocation(alloc, nil, "Technology")
		if !hasIssue(issues, "called_amount", SeverityCritical) {
			t.Errorf("expected critical called_amount issue, got %+v", issues)
		}
	})

	t.Run("call sum exceeds committed", func(t *testing.T) {
		alloc := newAlloc("ALLOC-1", "DEAL-1", "100000", "0", "0")
		calls := []*CapitalCall{
			NewCapitalCall("CALL-1", "ALLOC-1", d("80000"), testCallDate, testDueDate, CallStatusSent, ""),
			NewCapitalCall("CALL-2", "ALLOC-1", d("50000"), testCallDate, testDueDate, CallStatusSent, ""),
		}
		issues := ic.CheckAllocation(alloc, calls, "Technology")
		if !hasIssue(issues, "capital_calls", SeverityCritical) {
			t.Errorf("expected critical capital_calls issue, got %+v", issues)
		}
	})
}

// 配置行派生字段与子记录重算值漂移时给出建议修复值
func TestCheckAllocationDrift(t *testing.T) {
	ic := NewIntegrityChecker(d("0.01"))

	alloc := newAlloc("ALLOC-1", "DEAL-1", "1000000", "300000", "0")
	calls := []*CapitalCall{
		NewCapitalCall("CALL-1", "ALLOC-1", d("250000"), testCallDate, testDueDate, CallStatusSent, ""),
	}

	issues := ic.CheckAllocation(alloc, calls, "Technology")
	if !hasIssue(issues, "called_amount", SeverityHigh) {
		t.Fatalf("expected high called_amount drift issue, got %+v", issues)
	}
	for _, i := range issues {
		if i.Field == "called_amount" && i.Severity == SeverityHigh {
			if i.SuggestedFix != "250000" {
				t.Errorf("suggested fix = %s, want resummed 250000", i.SuggestedFix)
			}
		}
	}
}

func TestCheckAllocationStatusDrift(t *testing.T) {
	ic := NewIntegrityChecker(d("0.01"))

	alloc := newAlloc("ALLOC-1", "DEAL-1", "1000000", "250000", "250000")
	alloc.Status = AllocationStatusCommitted // 实缴 25 万却仍标记已认缴

	issues := ic.CheckAllocation(alloc, nil, "Technology")
	found := false
	for _, i := range issues {
		if i.Field == "status" && i.SuggestedFix == "PARTIALLY_PAID" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected status drift with suggested PARTIALLY_PAID, got %+v", issues)
	}

	// 人工覆盖状态豁免派生比对
	alloc.Status = AllocationStatusWrittenOff
	issues = ic.CheckAllocation(alloc, nil, "Technology")
	if hasIssue(issues, "status", SeverityMedium) {
		t.Errorf("manual override must not be flagged as drift, got %+v", issues)
	}
}

func TestCheckAllocationMissingSector(t *testing.T) {
	ic := NewIntegrityChecker(d("0.01"))
	alloc := newAlloc("ALLOC-1", "DEAL-1", "1000000", "0", "0")
	issues := ic.CheckAllocation(alloc, nil, "")
	if !hasIssue(issues, "sector", SeverityLow) {
		t.Errorf("expected low sector issue, got %+v", issues)
	}
}

func TestCheckCallDateOrderAndOutstanding(t *testing.T) {
	ic := NewIntegrityChecker(d("0.01"))
	alloc := newAlloc("ALLOC-1", "DEAL-1", "1000000", "250000", "0")

	call := NewCapitalCall("CALL-1", "ALLOC-1", d("250000"), testDueDate, testCallDate, CallStatusSent, "") // 日期倒置
	call.OutstandingAmount = d("100000")                                                                    // 与 call-paid 不一致

	issues := ic.CheckAllocation(alloc, []*CapitalCall{call}, "Technology")
	if !hasIssue(issues, "call.due_date", SeverityMedium) {
		t.Errorf("expected due date ordering issue, got %+v", issues)
	}
	if !hasIssue(issues, "call.outstanding_amount", SeverityHigh) {
		t.Errorf("expected outstanding drift issue, got %+v", issues)
	}
}

func TestCheckFundAggregates(t *testing.T) {
	ic := NewIntegrityChecker(d("0.01"))
	allocs := []*FundAllocation{
		newAlloc("ALLOC-1", "DEAL-1", "1000000", "600000", "400000"),
		newAlloc("ALLOC-2", "DEAL-2", "2000000", "500000", "500000"),
	}

	fund := &Fund{
		FundID:           "FUND-1",
		CommittedCapital: d("3000000"),
		CalledCapital:    d("1100000"),
		UncalledCapital:  d("1900000"),
	}
	issues := ic.CheckFund(fund, allocs)
	if len(issues) != 0 {
		t.Errorf("consistent fund produced issues: %+v", issues)
	}

	// 容差内的微小偏差不告警
	fund.CalledCapital = d("1100000.005")
	if issues := ic.CheckFund(fund, allocs); len(issues) != 0 {
		t.Errorf("sub-epsilon deviation flagged: %+v", issues)
	}

	// 超出容差必须告警并给出重算值
	fund.CalledCapital = d("1000000")
	issues = ic.CheckFund(fund, allocs)
	found := false
	for _, i := range issues {
		if i.Field == "called_capital" && i.SuggestedFix == "1100000" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected called_capital issue with resummed fix, got %+v", issues)
	}
}
