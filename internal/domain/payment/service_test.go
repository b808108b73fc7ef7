package payment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"encaissement/internal/core/apperror"
	"encaissement/internal/core/id"
)

// memRepo is an in-memory Repository guarding its map the way a database
// guards rows. It enforces the ref_id unique index.
type memRepo struct {
	mu       sync.Mutex
	byID     map[id.ID]Payment
	byRef    map[int64]bool
	failNext error
}

func newMemRepo() *memRepo {
	return &memRepo{
		byID:  make(map[id.ID]Payment),
		byRef: make(map[int64]bool),
	}
}

func (r *memRepo) Create(ctx context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	if r.byRef[p.RefID] {
		return apperror.NewDuplicateReference(p.RefID)
	}
	r.byRef[p.RefID] = true
	r.byID[p.ID] = *p
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, paymentID id.ID) (*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[paymentID]
	if !ok {
		return nil, apperror.NewNotFound("payment", paymentID.String())
	}
	return &p, nil
}

func (r *memRepo) Update(ctx context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[p.ID]
	if !ok {
		return apperror.NewNotFound("payment", p.ID.String())
	}
	// ref_id column is excluded from the UPDATE statement
	updated := *p
	updated.RefID = stored.RefID
	r.byID[p.ID] = updated
	return nil
}

func (r *memRepo) Delete(ctx context.Context, paymentID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[paymentID]; !ok {
		return apperror.NewNotFound("payment", paymentID.String())
	}
	delete(r.byID, paymentID)
	return nil
}

func (r *memRepo) List(ctx context.Context, opts ListOptions) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Payment, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	if opts.SortByDateDesc {
		sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (r *memRepo) ListByUser(ctx context.Context, userID id.ID) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Payment
	for _, p := range r.byID {
		if p.OwnerUserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

// memAllocator is an atomic in-memory counter.
type memAllocator struct {
	mu       sync.Mutex
	counters map[string]int64
	calls    int
	failWith error
}

func newMemAllocator() *memAllocator {
	return &memAllocator{counters: make(map[string]int64)}
}

func (a *memAllocator) Next(ctx context.Context, name string) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.failWith != nil {
		return 0, a.failWith
	}
	a.counters[name]++
	return a.counters[name], nil
}

// passthroughRoTx runs functions directly, without a real transaction.
type passthroughRoTx struct{}

func (passthroughRoTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (passthroughRoTx) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService() (*Service, *memRepo, *memAllocator) {
	repo := newMemRepo()
	alloc := newMemAllocator()
	return NewService(repo, alloc, passthroughRoTx{}), repo, alloc
}

func validInput() CreateInput {
	return CreateInput{
		Client:      "A",
		Montant:     decimal.NewFromInt(100),
		OwnerUserID: id.New(),
	}
}

func TestCreate_AssignsSequentialRefIDs(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.RefID)

	second, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	assert.Greater(t, second.RefID, first.RefID)
}

func TestCreate_ConcurrentRefIDsAreDistinct(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	const n = 100
	results := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := svc.Create(ctx, validInput())
			if err != nil {
				t.Errorf("create failed: %v", err)
				return
			}
			results <- p.RefID
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool, n)
	for refID := range results {
		assert.False(t, seen[refID], "duplicate refId %d", refID)
		seen[refID] = true
	}
	assert.Len(t, seen, n)
}

func TestCreate_DefaultFaculty(t *testing.T) {
	svc, _, _ := newTestService()

	p, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, FaculteUnspecified, p.Faculte)
}

func TestCreate_ValidationBeforeAllocation(t *testing.T) {
	svc, _, alloc := newTestService()
	ctx := context.Background()

	cases := []struct {
		name string
		in   CreateInput
	}{
		{"missing client", CreateInput{Montant: decimal.NewFromInt(10), OwnerUserID: id.New()}},
		{"missing montant", CreateInput{Client: "A", OwnerUserID: id.New()}},
		{"negative montant", CreateInput{Client: "A", Montant: decimal.NewFromInt(-5), OwnerUserID: id.New()}},
		{"missing owner", CreateInput{Client: "A", Montant: decimal.NewFromInt(10)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.in)
			require.Error(t, err)
			assert.True(t, apperror.IsValidation(err))
		})
	}

	// No counter must be consumed by rejected inputs
	assert.Equal(t, 0, alloc.calls)
}

func TestCreate_UnknownMethodRejected(t *testing.T) {
	svc, _, _ := newTestService()

	in := validInput()
	in.Moyen = Method("cheque")
	_, err := svc.Create(context.Background(), in)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestCreate_AllocatorFailureIsStorageUnavailable(t *testing.T) {
	svc, repo, alloc := newTestService()
	alloc.failWith = errors.New("connection refused")

	_, err := svc.Create(context.Background(), validInput())
	require.Error(t, err)
	assert.True(t, apperror.IsStorageUnavailable(err))
	assert.Empty(t, repo.byID, "no payment may be persisted without a refId")
}

func TestCreate_PersistFailureConsumesRefID(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	repo.failNext = errors.New("write failed")
	_, err := svc.Create(ctx, validInput())
	require.Error(t, err)
	assert.True(t, apperror.IsStorageUnavailable(err))

	// The failed create consumed refId 1; the gap is accepted.
	p, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.RefID)
}

func TestCreate_PreassignedRefIDSkipsAllocation(t *testing.T) {
	svc, _, alloc := newTestService()

	in := validInput()
	in.RefID = 777
	p, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int64(777), p.RefID)
	assert.Equal(t, 0, alloc.calls)
}

func TestCreate_DuplicateReferenceSurfaced(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	in := validInput()
	in.RefID = 42
	_, err := svc.Create(ctx, in)
	require.NoError(t, err)

	in2 := validInput()
	in2.RefID = 42
	_, err = svc.Create(ctx, in2)
	require.Error(t, err)
	assert.True(t, apperror.IsDuplicateReference(err))
}

func TestGet_InvalidIdentifier(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Get(context.Background(), "bad-id")
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidIdentifier(err))
}

func TestGet_NotFound(t *testing.T) {
	svc, _, _ := newTestService()

	// Well-formed but absent id
	_, err := svc.Get(context.Background(), id.New().String())
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestUpdate_RefIDImmutable(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	p, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	originalRef := p.RefID

	// UpdateInput carries no refId at all; even a full update leaves it intact.
	client := "B"
	montant := decimal.NewFromInt(250)
	updated, err := svc.Update(ctx, p.ID.String(), UpdateInput{
		Client:  &client,
		Montant: &montant,
	})
	require.NoError(t, err)
	assert.Equal(t, "B", updated.Client)

	stored, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, originalRef, stored.RefID)
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _, _ := newTestService()

	client := "B"
	_, err := svc.Update(context.Background(), id.New().String(), UpdateInput{Client: &client})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestUpdate_PartialMerge(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	in := validInput()
	in.Description = "first installment"
	in.Moyen = MethodCash
	p, err := svc.Create(ctx, in)
	require.NoError(t, err)

	moyen := MethodTransfer
	updated, err := svc.Update(ctx, p.ID.String(), UpdateInput{Moyen: &moyen})
	require.NoError(t, err)

	assert.Equal(t, MethodTransfer, updated.Moyen)
	assert.Equal(t, "first installment", updated.Description, "untouched fields survive")
	assert.Equal(t, p.Client, updated.Client)
}

func TestDelete(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	p, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID.String()))

	_, err = svc.Get(ctx, p.ID.String())
	assert.True(t, apperror.IsNotFound(err))

	// Deleting again reports not found, consistently.
	err = svc.Delete(ctx, p.ID.String())
	assert.True(t, apperror.IsNotFound(err))
}

func TestListRecent_OrderAndLimit(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	var ids []id.ID
	for i := 0; i < 3; i++ {
		in := validInput()
		d := base.Add(time.Duration(i) * time.Minute)
		in.Date = &d
		p, err := svc.Create(ctx, in)
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	recent, err := svc.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[2], recent[0].ID)
	assert.Equal(t, ids[1], recent[1].ID)
}

func TestListRecent_DefaultLimit(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := svc.Create(ctx, validInput())
		require.NoError(t, err)
	}

	recent, err := svc.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, RecentDefaultLimit)
}

func TestListByUser(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	owner := id.New()
	in := validInput()
	in.OwnerUserID = owner
	_, err := svc.Create(ctx, in)
	require.NoError(t, err)

	_, err = svc.Create(ctx, validInput())
	require.NoError(t, err)

	mine, err := svc.ListByUser(ctx, owner.String())
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, owner, mine[0].OwnerUserID)

	_, err = svc.ListByUser(ctx, "not-a-uuid")
	assert.True(t, apperror.IsInvalidIdentifier(err))
}

// countingRoTx counts ReadOnly invocations.
type countingRoTx struct {
	passthroughRoTx
	readOnlyCalls int
}

func (c *countingRoTx) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	c.readOnlyCalls++
	return fn(ctx)
}

func TestList_RunsReadOnly(t *testing.T) {
	repo := newMemRepo()
	roTx := &countingRoTx{}
	svc := NewService(repo, newMemAllocator(), roTx)
	ctx := context.Background()

	_, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	assert.Equal(t, 0, roTx.readOnlyCalls, "writes must not use the read-only path")

	_, err = svc.List(ctx, ListOptions{})
	require.NoError(t, err)
	_, err = svc.ListRecent(ctx, 0)
	require.NoError(t, err)
	_, err = svc.ListByUser(ctx, id.New().String())
	require.NoError(t, err)
	assert.Equal(t, 3, roTx.readOnlyCalls)
}
