package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencirc/circulation/internal/adapter/handler"
	"github.com/opencirc/circulation/internal/adapter/memory"
	"github.com/opencirc/circulation/internal/core/service"
	"github.com/opencirc/circulation/internal/port"
)

func newServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	store.PutPerson(port.Person{ID: "b1", Role: "member", Name: "Ada"})
	store.PutPerson(port.Person{ID: "b2", Role: "member", Name: "Ben"})
	store.PutItem(port.Item{ID: "it1", Title: "Distributed Systems"})

	notifier := &memory.RecordingNotifier{}
	logger := zerolog.Nop()

	h := handler.NewHTTPHandler(
		service.NewLoanService(store, store, store, notifier, logger),
		service.NewInventoryService(store, store, logger),
		service.NewFineService(store, store, notifier, logger),
		service.NewRateService(store),
		logger,
	)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv, store
}

func do(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestLoanLifecycleOverHTTP(t *testing.T) {
	srv, _ := newServer(t)

	resp, body := do(t, http.MethodPut, srv.URL+"/items/it1/copies", map[string]int{"target": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["added"])

	resp, body = do(t, http.MethodPost, srv.URL+"/loans", map[string]string{
		"borrower_id": "b1",
		"item_id":     "it1",
		"loan_date":   "2024-01-01",
		"due_date":    "2024-01-10",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	loanID := body["id"].(string)
	assert.Equal(t, "active", body["state"])

	// Last copy is out: the next open conflicts.
	resp, body = do(t, http.MethodPost, srv.URL+"/loans", map[string]string{
		"borrower_id": "b2",
		"item_id":     "it1",
		"loan_date":   "2024-01-02",
		"due_date":    "2024-01-12",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", body["kind"])

	// Late return with an explicit rate override: 5 days x 50 cents.
	rate := int64(50)
	resp, body = do(t, http.MethodPost, srv.URL+"/loans/"+loanID+"/return", map[string]any{
		"as_of":      "2024-01-15",
		"rate_cents": rate,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fine := body["fine"].(map[string]any)
	assert.EqualValues(t, 250, fine["amount_cents"])

	resp, body = do(t, http.MethodGet, srv.URL+"/items/it1/availability", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["available"])

	// Pay the fine, then a second settlement conflicts.
	fineID := fine["id"].(string)
	resp, _ = do(t, http.MethodPost, srv.URL+"/fines/"+fineID+"/pay", map[string]string{"date": "2024-01-20"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, http.MethodPost, srv.URL+"/fines/"+fineID+"/waive", map[string]string{"date": "2024-01-21"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", body["kind"])
}

func TestResizeStock_GrowsAndShrinks(t *testing.T) {
	srv, _ := newServer(t)

	resp, body := do(t, http.MethodPut, srv.URL+"/items/it1/copies", map[string]int{"target": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, body["added"])
	assert.EqualValues(t, 0, body["removed"])

	// Shrinking below the current total removes available copies.
	resp, body = do(t, http.MethodPut, srv.URL+"/items/it1/copies", map[string]int{"target": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["added"])
	assert.EqualValues(t, 2, body["removed"])
	assert.EqualValues(t, 0, body["shortfall"])

	resp, body = do(t, http.MethodGet, srv.URL+"/items/it1/availability", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["available"])

	// Matching the current total is a no-op.
	resp, body = do(t, http.MethodPut, srv.URL+"/items/it1/copies", map[string]int{"target": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["added"])
	assert.EqualValues(t, 0, body["removed"])
}

func TestValidationAndNotFoundMapping(t *testing.T) {
	srv, _ := newServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/loans", map[string]string{
		"borrower_id": "b1",
		"item_id":     "it1",
		"loan_date":   "2024-01-10",
		"due_date":    "2024-01-01",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation", body["kind"])

	resp, body = do(t, http.MethodGet, srv.URL+"/loans/no-such-loan", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["kind"])
}

func TestSweepAndRateEndpoints(t *testing.T) {
	srv, _ := newServer(t)

	resp, body := do(t, http.MethodPut, srv.URL+"/items/it1/copies", map[string]int{"target": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, http.MethodPost, srv.URL+"/loans", map[string]string{
		"borrower_id": "b1",
		"item_id":     "it1",
		"loan_date":   "2024-01-01",
		"due_date":    "2024-01-10",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	loanID := body["id"].(string)

	resp, body = do(t, http.MethodPost, srv.URL+"/loans/sweep", map[string]string{"as_of": "2024-02-01"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["transitioned"])

	resp, body = do(t, http.MethodGet, srv.URL+"/loans/"+loanID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "overdue", body["state"])

	// Set the late rate, then return without an override: 1 day x 80.
	resp, _ = do(t, http.MethodPut, srv.URL+"/rates/late_fee_per_day", map[string]int64{"cents": 80})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, http.MethodGet, srv.URL+"/rates/late_fee_per_day", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 80, body["cents"])

	resp, body = do(t, http.MethodPost, srv.URL+"/loans/"+loanID+"/return", map[string]string{"as_of": "2024-01-11"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fine := body["fine"].(map[string]any)
	assert.EqualValues(t, 80, fine["amount_cents"])
}
