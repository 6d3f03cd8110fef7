package idempotency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type memoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]*Record)}
}

func (m *memoryStore) Reserve(_ context.Context, key, hash string) (*Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[key]; ok {
		return rec, false, nil
	}
	m.records[key] = &Record{RequestHash: hash, InFlight: true}
	return nil, true, nil
}

func (m *memoryStore) Complete(_ context.Context, key string, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = rec
	return nil
}

func (m *memoryStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func newRouter(store Store, calls *int32, status int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(store, zap.NewNop()))
	r.POST("/transfers", func(c *gin.Context) {
		n := atomic.AddInt32(calls, 1)
		c.JSON(status, gin.H{"call": n})
	})
	return r
}

func post(r http.Handler, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/transfers", strings.NewReader(body))
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware_ReplaysCompletedResponse(t *testing.T) {
	var calls int32
	r := newRouter(newMemoryStore(), &calls, http.StatusOK)

	first := post(r, "transfer-key-1", `{"amount":"1"}`)
	second := post(r, "transfer-key-1", `{"amount":"1"}`)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(HeaderReplayed))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMiddleware_RejectsDifferentPayload(t *testing.T) {
	var calls int32
	r := newRouter(newMemoryStore(), &calls, http.StatusOK)

	post(r, "transfer-key-2", `{"amount":"1"}`)
	w := post(r, "transfer-key-2", `{"amount":"2"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMiddleware_RejectsInFlightKey(t *testing.T) {
	store := newMemoryStore()
	hash := HashRequest(http.MethodPost, "/transfers", []byte(`{}`))
	store.records["anon:transfer-key-3"] = &Record{RequestHash: hash, InFlight: true}

	var calls int32
	r := newRouter(store, &calls, http.StatusOK)
	w := post(r, "transfer-key-3", `{}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestMiddleware_ReleasesOnServerError(t *testing.T) {
	var calls int32
	store := newMemoryStore()
	r := newRouter(store, &calls, http.StatusInternalServerError)

	post(r, "transfer-key-4", `{}`)
	post(r, "transfer-key-4", `{}`)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestMiddleware_PassThrough(t *testing.T) {
	var calls int32
	r := newRouter(newMemoryStore(), &calls, http.StatusOK)

	post(r, "", `{}`)
	post(r, "", `{}`)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	w := post(r, "bad", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
