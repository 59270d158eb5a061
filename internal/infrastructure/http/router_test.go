package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"users-service/internal/application"
	"users-service/internal/domain"
	"users-service/internal/infrastructure/memstore"
	"users-service/internal/infrastructure/metrics"

	"github.com/stretchr/testify/require"
)

type memIdem struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memIdem) TryReserve(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memIdem) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type fixture struct {
	h       http.Handler
	store   *memstore.Store[domain.User]
	srv     *Server
	metrics *metrics.Metrics
}

func setup(t *testing.T) fixture {
	t.Helper()
	store := memstore.NewStore[domain.User](memstore.WithSerializedTransactions(true))
	m := metrics.New()
	factory := func() application.UnitOfWork {
		return memstore.NewUnitOfWork(store, memstore.WithMetrics(m))
	}
	svc := application.NewUserService(factory, &memIdem{})
	srv := NewServer(svc, m)
	return fixture{h: NewRouter(srv), store: store, srv: srv, metrics: m}
}

func (f fixture) do(t *testing.T, method, path string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

type userResp struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}

func TestHealth_JSON(t *testing.T) {
	f := setup(t)
	for _, p := range []string{"/health", "/api/health"} {
		rec := f.do(t, http.MethodGet, p, nil)
		require.Equal(t, http.StatusOK, rec.Code, p)
		require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "READY", rec.Body.String())

	f.srv.SetReadyCheck(func(context.Context) error { return errors.New("journal down") })
	rec = f.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"code":503,"message":"journal not ready"}`, rec.Body.String())
}

func TestOpenAPIDocument(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodGet, "/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/users/{id}/with-error")
}

func TestCreateThenGet(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodPost, "/users", map[string]string{"id": "u1", "name": "Ada", "email": "ada@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[userResp](t, rec)
	require.Equal(t, "u1", created.ID)
	require.False(t, created.CreatedAt.IsZero())
	require.Nil(t, created.UpdatedAt)

	rec = f.do(t, http.MethodGet, "/users/u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[userResp](t, rec)
	require.Equal(t, "Ada", got.Name)
	require.Equal(t, "ada@example.com", got.Email)
}

func TestCreate_GeneratesID(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodPost, "/users", map[string]string{"name": "Anon"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, decode[userResp](t, rec).ID)
	require.Equal(t, 1, f.store.Len())
}

func TestCreate_BadInput(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodPost, "/users", map[string]string{"id": "u1", "name": "  "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.InDelta(t, 400, decode[map[string]any](t, rec)["code"], 0)

	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewBufferString("{not json"))
	raw := httptest.NewRecorder()
	f.h.ServeHTTP(raw, req)
	require.Equal(t, http.StatusBadRequest, raw.Code)
	require.Equal(t, 0, f.store.Len())
}

func TestCreate_IdempotencyKey(t *testing.T) {
	f := setup(t)
	body := map[string]string{"name": "Ada"}
	rec := f.do(t, http.MethodPost, "/users", body, "X-Idempotency-Key", "k1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/users", body, "X-Idempotency-Key", "k1")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, 1, f.store.Len())
}

func TestCreateWithError_NothingPersisted(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodPost, "/users/with-error", map[string]string{"id": "tx-fail", "name": "Ghost"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = f.do(t, http.MethodGet, "/users/tx-fail", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, 0, f.store.Len())
}

func TestListUsers_Sorted(t *testing.T) {
	f := setup(t)
	for _, id := range []string{"c", "a", "b"} {
		require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/users", map[string]string{"id": id, "name": "N" + id}).Code)
	}
	rec := f.do(t, http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]userResp](t, rec)
	require.Len(t, list, 3)
	require.Equal(t, []string{"a", "b", "c"}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestListUsers_EmptyIsArray(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestUpdateUser(t *testing.T) {
	f := setup(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/users", map[string]string{"id": "u1", "name": "Initial", "email": "i@example.com"}).Code)

	rec := f.do(t, http.MethodPut, "/users/u1", map[string]string{"id": "u1", "name": "Updated"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	upd := decode[userResp](t, rec)
	require.Equal(t, "Updated", upd.Name)
	require.Equal(t, "i@example.com", upd.Email)
	require.NotNil(t, upd.UpdatedAt)

	rec = f.do(t, http.MethodGet, "/users/u1", nil)
	require.Equal(t, "Updated", decode[userResp](t, rec).Name)
}

func TestUpdateUser_Errors(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodPut, "/users/nope", map[string]string{"name": "X"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, 0, f.store.Len())

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/users", map[string]string{"id": "u1", "name": "A"}).Code)
	rec = f.do(t, http.MethodPut, "/users/u1", map[string]string{"id": "u2", "name": "X"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/users/u1", map[string]string{"name": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateWithError_KeepsOriginal(t *testing.T) {
	f := setup(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/users", map[string]string{"id": "u1", "name": "Original"}).Code)

	rec := f.do(t, http.MethodPut, "/users/u1/with-error", map[string]string{"name": "Changed"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = f.do(t, http.MethodGet, "/users/u1", nil)
	got := decode[userResp](t, rec)
	require.Equal(t, "Original", got.Name)
	require.Nil(t, got.UpdatedAt)
}

func TestDeleteUser(t *testing.T) {
	f := setup(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/users", map[string]string{"id": "u1", "name": "ToDelete"}).Code)

	rec := f.do(t, http.MethodDelete, "/users/u1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/users/u1", nil).Code)

	rec = f.do(t, http.MethodDelete, "/users/u1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := setup(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/users", map[string]string{"id": "u1", "name": "A"}).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/users/u1", nil).Code)

	rec := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `users_http_requests_total{method="GET",route="/users/{id}",status="200"} 1`)
	require.Contains(t, body, "users_tx_committed_total 1")
	require.Contains(t, body, "users_store_entities 1")
}

func TestRequestAndTraceIDs(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil, "X-Request-ID", "rid-1")
	require.Equal(t, "rid-1", rec.Header().Get("X-Request-ID"))
	require.NotEmpty(t, rec.Header().Get("X-Trace-Id"))
}
