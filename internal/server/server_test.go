package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/application-tracker/internal/store"
	"github.com/jonathan/application-tracker/internal/types"
)

func seededStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	err := s.WithinTx(ctx, func(tx store.Tx) error {
		for _, app := range []*types.ApplicationRecord{
			{CompanyName: "Acme", RoleTitle: "Engineer", Status: types.StatusApplied},
			{CompanyName: "Globex", RoleTitle: "SRE", Status: types.StatusRejected},
			{CompanyName: "Initech", RoleTitle: "Analyst", Status: types.StatusApplied},
		} {
			if _, err := tx.Upsert(ctx, app); err != nil {
				return err
			}
		}
		return tx.LedgerRecord(ctx, types.LedgerEntry{MessageID: "m1"})
	})
	require.NoError(t, err)
	return s
}

func doGet(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := New(Config{Addr: ":0"}, seededStore(t), nil)

	w := doGet(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

type downStore struct{ *store.MemoryStore }

func (downStore) Ping(context.Context) error {
	return &store.TransientError{Message: "ping", Cause: errors.New("connection refused")}
}

func (downStore) Stats(context.Context) (*types.Stats, error) {
	return nil, &store.TransientError{Message: "stats", Cause: errors.New("connection refused")}
}

func TestHealthEndpoint_StoreDown(t *testing.T) {
	s := New(Config{}, downStore{store.NewMemoryStore()}, nil)

	w := doGet(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doGet(t, s.Handler(), "/stats")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListApplications(t *testing.T) {
	h := New(Config{}, seededStore(t), nil).Handler()

	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantCount int
	}{
		{name: "all", target: "/applications", wantCode: http.StatusOK, wantCount: 3},
		{name: "by status", target: "/applications?status=applied", wantCode: http.StatusOK, wantCount: 2},
		{name: "status case-insensitive", target: "/applications?status=Rejected", wantCode: http.StatusOK, wantCount: 1},
		{name: "limit", target: "/applications?limit=1", wantCode: http.StatusOK, wantCount: 1},
		{name: "no matches", target: "/applications?status=offer_received", wantCode: http.StatusOK, wantCount: 0},
		{name: "unknown status", target: "/applications?status=ghosted", wantCode: http.StatusBadRequest},
		{name: "bad limit", target: "/applications?limit=zero", wantCode: http.StatusBadRequest},
		{name: "limit too large", target: "/applications?limit=5000", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doGet(t, h, tt.target)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode != http.StatusOK {
				var resp map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Contains(t, resp["error"], "validation error")
				return
			}

			var resp ApplicationsResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCount, resp.Count)
			assert.Len(t, resp.Applications, tt.wantCount)
			assert.NotNil(t, resp.Applications)
		})
	}
}

func TestStatsEndpoint(t *testing.T) {
	h := New(Config{}, seededStore(t), nil).Handler()

	w := doGet(t, h, "/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var stats types.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.TotalApplications)
	assert.Equal(t, 2, stats.ByStatus[types.StatusApplied])
	assert.Equal(t, 1, stats.ByStatus[types.StatusRejected])
	assert.Equal(t, 1, stats.ProcessedMessages)
}

func TestMetricsEndpoint(t *testing.T) {
	h := New(Config{}, seededStore(t), nil).Handler()

	w := doGet(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestOptionsPreflight(t *testing.T) {
	h := New(Config{}, seededStore(t), nil).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/applications", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"}, seededStore(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(fmt.Errorf("list: %w", &ErrValidation{Param: "x"})))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(&store.TransientError{Message: "x"}))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}
