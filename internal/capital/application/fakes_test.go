package application

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundcapital/internal/capital/domain"
)

// memStore 内存存储，按真实仓储的语义模拟乐观版本与 NotFound
type memStore struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	allocs map[string]*domain.FundAllocation
	calls  map[string]*domain.CapitalCall
	pays   map[string]*domain.Payment
	dists  map[string]*domain.Distribution
	funds  map[string]*domain.Fund
	deals  map[string]*domain.Deal
}

func newMemStore() *memStore {
	return &memStore{
		allocs: make(map[string]*domain.FundAllocation),
		calls:  make(map[string]*domain.CapitalCall),
		pays:   make(map[string]*domain.Payment),
		dists:  make(map[string]*domain.Distribution),
		funds:  make(map[string]*domain.Fund),
		deals:  make(map[string]*domain.Deal),
	}
}

type memAllocRepo struct{ s *memStore }
type memCallRepo struct{ s *memStore }
type memPayRepo struct{ s *memStore }
type memDistRepo struct{ s *memStore }
type memFundRepo struct{ s *memStore }
type memDealRepo struct{ s *memStore }

func (r *memAllocRepo) Save(_ context.Context, a *domain.FundAllocation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *a
	r.s.allocs[a.AllocationID] = &c
	return nil
}

func (r *memAllocRepo) Update(_ context.Context, a *domain.FundAllocation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.allocs[a.AllocationID]
	if !ok {
		return &domain.NotFoundError{Entity: "allocation", ID: a.AllocationID}
	}
	if stored.Version != a.Version {
		return &domain.ConflictError{Entity: "allocation", ID: a.AllocationID}
	}
	a.Version++
	c := *a
	r.s.allocs[a.AllocationID] = &c
	return nil
}

func (r *memAllocRepo) Get(_ context.Context, id string) (*domain.FundAllocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.allocs[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "allocation", ID: id}
	}
	c := *a
	return &c, nil
}

func (r *memAllocRepo) GetForUpdate(ctx context.Context, id string) (*domain.FundAllocation, error) {
	return r.Get(ctx, id)
}

func (r *memAllocRepo) GetByFundAndDeal(_ context.Context, fundID, dealID string) (*domain.FundAllocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.allocs {
		if a.FundID == fundID && a.DealID == dealID {
			c := *a
			return &c, nil
		}
	}
	return nil, &domain.NotFoundError{Entity: "allocation", ID: fundID + "/" + dealID}
}

func (r *memAllocRepo) ListByFund(_ context.Context, fundID string) ([]*domain.FundAllocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.FundAllocation
	for _, a := range r.s.allocs {
		if a.FundID == fundID {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memAllocRepo) ListByDeal(_ context.Context, dealID string) ([]*domain.FundAllocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.FundAllocation
	for _, a := range r.s.allocs {
		if a.DealID == dealID {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memAllocRepo) ListAll(_ context.Context) ([]*domain.FundAllocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.FundAllocation
	for _, a := range r.s.allocs {
		c := *a
		out = append(out, &c)
	}
	return out, nil
}

func (r *memAllocRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.allocs, id)
	return nil
}

// WithTx 串行化事务体，模拟数据库行锁下写路径互斥
func (r *memAllocRepo) WithTx(ctx context.Context, fn func(context.Context) error) error {
	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()
	return fn(ctx)
}

func (r *memCallRepo) Save(_ context.Context, c *domain.CapitalCall) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *c
	r.s.calls[c.CallID] = &cp
	return nil
}

func (r *memCallRepo) Update(_ context.Context, c *domain.CapitalCall) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.calls[c.CallID]
	if !ok {
		return &domain.NotFoundError{Entity: "capital call", ID: c.CallID}
	}
	if stored.Version != c.Version {
		return &domain.ConflictError{Entity: "capital call", ID: c.CallID}
	}
	c.Version++
	cp := *c
	r.s.calls[c.CallID] = &cp
	return nil
}

func (r *memCallRepo) Get(_ context.Context, id string) (*domain.CapitalCall, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.calls[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "capital call", ID: id}
	}
	cp := *c
	return &cp, nil
}

func (r *memCallRepo) GetForUpdate(ctx context.Context, id string) (*domain.CapitalCall, error) {
	return r.Get(ctx, id)
}

func (r *memCallRepo) ListByAllocation(_ context.Context, allocationID string) ([]*domain.CapitalCall, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.CapitalCall
	for _, c := range r.s.calls {
		if c.AllocationID == allocationID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memCallRepo) SumCallAmount(_ context.Context, allocationID string) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := decimal.Zero
	for _, c := range r.s.calls {
		if c.AllocationID == allocationID {
			sum = sum.Add(c.CallAmount)
		}
	}
	return sum, nil
}

func (r *memCallRepo) SumPaidAmount(_ context.Context, allocationID string) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := decimal.Zero
	for _, c := range r.s.calls {
		if c.AllocationID == allocationID {
			sum = sum.Add(c.PaidAmount)
		}
	}
	return sum, nil
}

func (r *memCallRepo) CountOpen(_ context.Context, allocationID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, c := range r.s.calls {
		if c.AllocationID == allocationID && !c.Status.IsTerminal() {
			n++
		}
	}
	return n, nil
}

func (r *memCallRepo) DeleteByAllocation(_ context.Context, allocationID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, c := range r.s.calls {
		if c.AllocationID == allocationID {
			delete(r.s.calls, id)
		}
	}
	return nil
}

func (r *memPayRepo) Save(_ context.Context, p *domain.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *p
	r.s.pays[p.PaymentID] = &cp
	return nil
}

func (r *memPayRepo) ListByCall(_ context.Context, callID string) ([]*domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Payment
	for _, p := range r.s.pays {
		if p.CallID == callID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memPayRepo) DeleteByCallIDs(_ context.Context, callIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make(map[string]struct{}, len(callIDs))
	for _, id := range callIDs {
		ids[id] = struct{}{}
	}
	for pid, p := range r.s.pays {
		if _, ok := ids[p.CallID]; ok {
			delete(r.s.pays, pid)
		}
	}
	return nil
}

func (r *memDistRepo) Save(_ context.Context, d *domain.Distribution) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *d
	r.s.dists[d.DistributionID] = &cp
	return nil
}

func (r *memDistRepo) ListByAllocation(_ context.Context, allocationID string) ([]*domain.Distribution, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Distribution
	for _, d := range r.s.dists {
		if d.AllocationID == allocationID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memDistRepo) SumByAllocation(_ context.Context, allocationID string) (decimal.Decimal, decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := decimal.Zero
	capitalReturn := decimal.Zero
	for _, d := range r.s.dists {
		if d.AllocationID != allocationID {
			continue
		}
		total = total.Add(d.Amount)
		if d.Type == domain.DistributionTypeCapitalReturn {
			capitalReturn = capitalReturn.Add(d.Amount)
		}
	}
	return total, capitalReturn, nil
}

func (r *memDistRepo) DeleteByAllocation(_ context.Context, allocationID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, d := range r.s.dists {
		if d.AllocationID == allocationID {
			delete(r.s.dists, id)
		}
	}
	return nil
}

func (r *memFundRepo) Save(_ context.Context, f *domain.Fund) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *f
	r.s.funds[f.FundID] = &cp
	return nil
}

func (r *memFundRepo) Get(_ context.Context, id string) (*domain.Fund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.funds[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "fund", ID: id}
	}
	cp := *f
	return &cp, nil
}

func (r *memFundRepo) List(_ context.Context) ([]*domain.Fund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Fund
	for _, f := range r.s.funds {
		cp := *f
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memFundRepo) UpdateAggregates(_ context.Context, fundID string, committed, called, uncalled, aum decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.funds[fundID]
	if !ok {
		return &domain.NotFoundError{Entity: "fund", ID: fundID}
	}
	f.CommittedCapital = committed
	f.CalledCapital = called
	f.UncalledCapital = uncalled
	f.AUM = aum
	return nil
}

func (r *memDealRepo) Save(_ context.Context, d *domain.Deal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *d
	r.s.deals[d.DealID] = &cp
	return nil
}

func (r *memDealRepo) Get(_ context.Context, id string) (*domain.Deal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deals[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "deal", ID: id}
	}
	cp := *d
	return &cp, nil
}

func (r *memDealRepo) ListByIDs(_ context.Context, ids []string) ([]*domain.Deal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Deal
	for _, id := range ids {
		if d, ok := r.s.deals[id]; ok {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memDealRepo) AdvanceStage(_ context.Context, dealID string, stage domain.DealStage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deals[dealID]
	if !ok {
		return &domain.NotFoundError{Entity: "deal", ID: dealID}
	}
	if d.Stage < stage {
		d.Stage = stage
	}
	return nil
}

// recordingRecorder 收集发出的审计事件
type recordingRecorder struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (r *recordingRecorder) Record(_ context.Context, e domain.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// testEnv 一套接好线的服务与底层存储
type testEnv struct {
	store      *memStore
	allocRepo  *memAllocRepo
	callRepo   *memCallRepo
	recorder   *recordingRecorder
	allocSvc   *AllocationService
	callSvc    *CapitalCallService
	metricsSvc *MetricsService
	integSvc   *IntegrityService
	fundSvc    *FundService
}

func newTestEnv() *testEnv {
	s := newMemStore()
	allocRepo := &memAllocRepo{s: s}
	callRepo := &memCallRepo{s: s}
	payRepo := &memPayRepo{s: s}
	distRepo := &memDistRepo{s: s}
	fundRepo := &memFundRepo{s: s}
	dealRepo := &memDealRepo{s: s}
	recorder := &recordingRecorder{}

	agg := NewFundAggregator(allocRepo, fundRepo, nil)
	bounds := AllocationBounds{Min: decimal.NewFromInt(10000), Max: decimal.NewFromInt(100000000)}

	return &testEnv{
		store:     s,
		allocRepo: allocRepo,
		callRepo:  callRepo,
		recorder:  recorder,
		allocSvc: NewAllocationService(
			allocRepo, callRepo, payRepo, distRepo, fundRepo, dealRepo, agg, recorder, nil, bounds),
		callSvc: NewCapitalCallService(
			callRepo, payRepo, allocRepo, dealRepo, agg, recorder, nil),
		metricsSvc: NewMetricsService(
			allocRepo, callRepo, fundRepo, dealRepo, nil, 0, 3),
		integSvc: NewIntegrityService(
			allocRepo, callRepo, fundRepo, dealRepo, decimal.RequireFromString("0.01"), nil),
		fundSvc: NewFundService(fundRepo, dealRepo),
	}
}

func (e *testEnv) seedFund(fundID string) {
	e.store.funds[fundID] = &domain.Fund{FundID: fundID, Name: "Growth Fund I", Currency: "USD"}
}

func (e *testEnv) seedDeal(dealID, sector string) {
	e.store.deals[dealID] = &domain.Deal{DealID: dealID, Name: dealID, Sector: sector, Stage: domain.DealStageApproved}
}
