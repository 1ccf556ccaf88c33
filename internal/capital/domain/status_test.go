package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(v string) decimal.Decimal {
	dec, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return dec
}

func TestDeriveAllocationStatus(t *testing.T) {
	tests := []struct {
		name      string
		committed string
		paid      string
		want      AllocationStatus
	}{
		{"nothing paid", "1000000", "0", AllocationStatusCommitted},
		{"negative paid treated as zero", "1000000", "-1", AllocationStatusCommitted},
		{"partially paid", "1000000", "250000", AllocationStatusPartiallyPaid},
		{"one cent short of committed", "1000000", "999999.99", AllocationStatusPartiallyPaid},
		{"fully paid", "1000000", "1000000", AllocationStatusFunded},
		{"overpaid drifted data still funded", "1000000", "1000001", AllocationStatusFunded},
		{"zero committed and zero paid", "0", "0", AllocationStatusCommitted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveAllocationStatus(d(tt.committed), d(tt.paid))
			if got != tt.want {
				t.Errorf("DeriveAllocationStatus(%s, %s) = %s, want %s", tt.committed, tt.paid, got, tt.want)
			}
		})
	}
}

// 实缴等于已发起但小于认缴时，阈值以认缴为准，仍是部分实缴
func TestDeriveAllocationStatusPaidEqualsCalled(t *testing.T) {
	got := DeriveAllocationStatus(d("1000000"), d("250000"))
	if got != AllocationStatusPartiallyPaid {
		t.Errorf("paid == called < committed should be PARTIALLY_PAID, got %s", got)
	}
}

func TestDeriveCallStatus(t *testing.T) {
	callDate := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	dueDate := callDate.AddDate(0, 1, 0)
	beforeDue := dueDate.AddDate(0, 0, -1)
	afterDue := dueDate.AddDate(0, 0, 1)

	tests := []struct {
		name    string
		amount  string
		paid    string
		now     time.Time
		initial CallStatus
		want    CallStatus
	}{
		{"unpaid scheduled", "250000", "0", beforeDue, CallStatusScheduled, CallStatusScheduled},
		{"unpaid sent", "250000", "0", beforeDue, CallStatusSent, CallStatusSent},
		{"partial", "250000", "100000", beforeDue, CallStatusSent, CallStatusPartiallyPaid},
		{"fully paid", "250000", "250000", beforeDue, CallStatusSent, CallStatusPaid},
		{"unpaid past due", "250000", "0", afterDue, CallStatusSent, CallStatusOverdue},
		{"partial past due", "250000", "100000", afterDue, CallStatusSent, CallStatusOverdue},
		{"paid past due stays paid", "250000", "250000", afterDue, CallStatusSent, CallStatusPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveCallStatus(d(tt.amount), d(tt.paid), dueDate, tt.now, tt.initial)
			if got != tt.want {
				t.Errorf("DeriveCallStatus = %s, want %s", got, tt.want)
			}
		})
	}
}

// 逾期不是终态：逾期的通知缴清后状态回转为已缴清
func TestOverdueRevertsOncePaid(t *testing.T) {
	callDate := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	dueDate := callDate.AddDate(0, 0, 10)
	afterDue := dueDate.AddDate(0, 0, 5)

	call := NewCapitalCall("CALL-1", "ALLOC-1", d("100000"), callDate, dueDate, CallStatusSent, "")
	call.RefreshOverdue(afterDue)
	if call.Status != CallStatusOverdue {
		t.Fatalf("expected OVERDUE after due date, got %s", call.Status)
	}

	if err := call.ApplyPayment(d("100000"), afterDue); err != nil {
		t.Fatalf("ApplyPayment: %v", err)
	}
	if call.Status != CallStatusPaid {
		t.Errorf("expected PAID after settling an overdue call, got %s", call.Status)
	}
}

func TestShouldAdvanceDealStage(t *testing.T) {
	tests := []struct {
		status AllocationStatus
		want   bool
	}{
		{AllocationStatusCommitted, false},
		{AllocationStatusPartiallyPaid, true},
		{AllocationStatusFunded, true},
		{AllocationStatusUnfunded, false},
		{AllocationStatusWrittenOff, false},
	}
	for _, tt := range tests {
		if got := ShouldAdvanceDealStage(tt.status); got != tt.want {
			t.Errorf("ShouldAdvanceDealStage(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

// 人工覆盖状态不被自动派生覆盖
func TestRefreshStatusKeepsManualOverride(t *testing.T) {
	alloc := NewFundAllocation("ALLOC-1", "FUND-1", "DEAL-1", "equity", d("1000000"))
	alloc.PaidAmount = d("500000")
	alloc.MarkUnfunded()

	alloc.RefreshStatus()
	if alloc.Status != AllocationStatusUnfunded {
		t.Errorf("manual UNFUNDED must survive RefreshStatus, got %s", alloc.Status)
	}

	alloc.WriteOff()
	alloc.RefreshStatus()
	if alloc.Status != AllocationStatusWrittenOff {
		t.Errorf("manual WRITTEN_OFF must survive RefreshStatus, got %s", alloc.Status)
	}
}
