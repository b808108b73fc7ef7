package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"encaissement/internal/core/apperror"
	appctx "encaissement/internal/core/context"
	"encaissement/internal/core/id"
	"encaissement/internal/domain/payment"
	"encaissement/internal/infrastructure/http/v1/middleware"
)

type memPaymentRepo struct {
	mu    sync.Mutex
	items map[id.ID]payment.Payment
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{items: make(map[id.ID]payment.Payment)}
}

func (r *memPaymentRepo) Create(ctx context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.RefID == p.RefID {
			return apperror.NewDuplicateReference(p.RefID)
		}
	}
	r.items[p.ID] = *p
	return nil
}

func (r *memPaymentRepo) GetByID(ctx context.Context, paymentID id.ID) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[paymentID]
	if !ok {
		return nil, apperror.NewNotFound("payment", paymentID.String())
	}
	out := p
	return &out, nil
}

func (r *memPaymentRepo) Update(ctx context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[p.ID]
	if !ok {
		return apperror.NewNotFound("payment", p.ID.String())
	}
	updated := *p
	updated.RefID = stored.RefID
	r.items[p.ID] = updated
	return nil
}

func (r *memPaymentRepo) Delete(ctx context.Context, paymentID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[paymentID]; !ok {
		return apperror.NewNotFound("payment", paymentID.String())
	}
	delete(r.items, paymentID)
	return nil
}

func (r *memPaymentRepo) List(ctx context.Context, opts payment.ListOptions) ([]payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]payment.Payment, 0, len(r.items))
	for _, p := range r.items {
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

func (r *memPaymentRepo) ListByUser(ctx context.Context, userID id.ID) ([]payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []payment.Payment
	for _, p := range r.items {
		if p.OwnerUserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

type passthroughRoTx struct{}

func (passthroughRoTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (passthroughRoTx) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memAllocator struct {
	mu  sync.Mutex
	seq int64
}

func (a *memAllocator) Next(ctx context.Context, name string) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	return a.seq, nil
}

func newTestRouter(t *testing.T, userID id.ID) (*gin.Engine, *memPaymentRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newMemPaymentRepo()
	service := payment.NewService(repo, &memAllocator{}, passthroughRoTx{})
	handler := NewPaymentHandler(NewBaseHandler(), service, nil)

	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.Use(func(c *gin.Context) {
		ctx := appctx.WithUser(c.Request.Context(), &appctx.UserContext{
			UserID: userID.String(),
			Role:   "user",
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	group := router.Group("/api/v1/paiements")
	group.POST("", handler.Create)
	group.GET("", handler.List)
	group.GET("/recent", handler.Recent)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)
	group.DELETE("/:id", handler.Delete)

	return router, repo
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPaymentCreateAssignsSequentialRefIds(t *testing.T) {
	router, _ := newTestRouter(t, id.New())

	for i := 1; i <= 3; i++ {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/paiements", gin.H{
			"client":  fmt.Sprintf("client-%d", i),
			"montant": "6000",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp struct {
			RefID   int64  `json:"refId"`
			Faculte string `json:"faculte"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(i), resp.RefID)
		assert.Equal(t, "unspecified", resp.Faculte)
	}
}

func TestPaymentCreateValidation(t *testing.T) {
	router, _ := newTestRouter(t, id.New())

	rec := doJSON(t, router, http.MethodPost, "/api/v1/paiements", gin.H{
		"client":  "",
		"montant": "6000",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, apperror.CodeValidation, resp.Code)
}

func TestPaymentGetInvalidIdentifier(t *testing.T) {
	router, _ := newTestRouter(t, id.New())

	rec := doJSON(t, router, http.MethodGet, "/api/v1/paiements/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, apperror.CodeInvalidIdentifier, resp.Code)
}

func TestPaymentGetNotFound(t *testing.T) {
	router, _ := newTestRouter(t, id.New())

	rec := doJSON(t, router, http.MethodGet, "/api/v1/paiements/"+id.New().String(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, apperror.CodeNotFound, resp.Code)
}

func TestPaymentUpdateIgnoresRefId(t *testing.T) {
	router, _ := newTestRouter(t, id.New())

	rec := doJSON(t, router, http.MethodPost, "/api/v1/paiements", gin.H{
		"client":  "original",
		"montant": "6000",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID    string `json:"id"`
		RefID int64  `json:"refId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, int64(1), created.RefID)

	// A refId in the update payload must be silently ignored.
	rec = doJSON(t, router, http.MethodPut, "/api/v1/paiements/"+created.ID, gin.H{
		"client": "renamed",
		"refId":  999,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated struct {
		Client string `json:"client"`
		RefID  int64  `json:"refId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "renamed", updated.Client)
	assert.Equal(t, int64(1), updated.RefID)
}

func TestPaymentDeleteAbsentReturnsNotFound(t *testing.T) {
	router, _ := newTestRouter(t, id.New())

	rec := doJSON(t, router, http.MethodDelete, "/api/v1/paiements/"+id.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentRecentDefaultsToFive(t *testing.T) {
	router, _ := newTestRouter(t, id.New())

	for i := 0; i < 7; i++ {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/paiements", gin.H{
			"client":  fmt.Sprintf("client-%d", i),
			"montant": "100",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/v1/paiements/recent", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, payment.RecentDefaultLimit, resp.Count)
}
