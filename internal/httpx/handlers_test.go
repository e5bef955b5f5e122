package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"github.com/ariefcatur/go-cart-lifecycle/internal/cartstore"
	"github.com/ariefcatur/go-cart-lifecycle/internal/lifecycle"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type testServer struct {
	h     http.Handler
	store *cartstore.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := cartstore.NewMemoryStore(time.Hour)
	tracker := lifecycle.NewTracker(lifecycle.NewMemoryRepo(), store, nil, "cart-api-test")

	r := NewRouter(store.Backend)
	(&CartHandler{Store: store}).Register(r)
	(&CheckoutHandler{Tracker: tracker}).Register(r)
	return &testServer{h: r, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func decodeCartResp(t *testing.T, rec *httptest.ResponseRecorder) cartResp {
	t.Helper()
	var out cartResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthzReportsBackend(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","cartBackend":"memory"}`, rec.Body.String())
}

func TestCartEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/carts", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeCartResp(t, rec).ID
	require.NotEmpty(t, id)

	rec = s.do(t, http.MethodPost, "/carts/"+id+"/items", addItemReq{SKU: "dress-1", Qty: 2, Size: "M"})
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeCartResp(t, rec).Cart
	require.Equal(t, 2, cart["dress-1:M"].Qty)

	rec = s.do(t, http.MethodPatch, "/carts/"+id+"/items/dress-1:M", map[string]int{"qty": 5})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 5, decodeCartResp(t, rec).Cart["dress-1:M"].Qty)

	rec = s.do(t, http.MethodPatch, "/carts/"+id+"/items/missing", map[string]int{"qty": 1})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/carts/"+id+"/items/dress-1:M", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decodeCartResp(t, rec).Cart)

	rec = s.do(t, http.MethodDelete, "/carts/"+id+"/items/dress-1:M", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetCartReplacesAndDropsZeroLines(t *testing.T) {
	s := newTestServer(t)
	id := s.store.CreateCart(context.Background())
	s.store.IncrementQty(context.Background(), id, "old", 1, "", nil)

	rec := s.do(t, http.MethodPut, "/carts/"+id, cartstore.Cart{
		"a": {SKUID: "a", Qty: 3},
		"b": {SKUID: "b", Qty: 0},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, cartstore.Cart{"a": {SKUID: "a", Qty: 3}}, decodeCartResp(t, rec).Cart)

	rec = s.do(t, http.MethodPut, "/carts/"+id, cartstore.Cart{"a": {SKUID: "a", Qty: -1}})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/carts/"+id, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, s.store.GetCart(context.Background(), id))
}

func TestAddItemValidation(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/carts/x/items", addItemReq{SKU: "a", Qty: 0})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPost, "/carts/x/items", map[string]any{"sku": "a", "qty": 1, "price": 10})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutFlowClearsCart(t *testing.T) {
	s := newTestServer(t)
	id := s.store.CreateCart(context.Background())
	s.store.IncrementQty(context.Background(), id, "a", 1, "", nil)
	base := "/shops/shop-1/carts/" + id

	rec := s.do(t, http.MethodGet, base+"/lifecycle", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/checkout", sessionReq{SessionID: "cs_1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/pending", sessionReq{SessionID: "cs_1"})
	require.Equal(t, http.StatusOK, rec.Code)

	for i := 0; i < 2; i++ {
		rec = s.do(t, http.MethodPost, base+"/complete", completeReq{SessionID: "cs_1", OrderID: "ord_1"})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Empty(t, s.store.GetCart(context.Background(), id))

	rec = s.do(t, http.MethodGet, base+"/lifecycle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got lifecycle.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, lifecycle.StatusOrderComplete, got.Status)
	require.Equal(t, "ord_1", got.OrderID)
	require.NotNil(t, got.ClearedAt)
}

func TestCheckoutErrorsMapToConflict(t *testing.T) {
	s := newTestServer(t)
	id := s.store.CreateCart(context.Background())
	s.store.IncrementQty(context.Background(), id, "a", 1, "", nil)
	base := "/shops/shop-1/carts/" + id

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/checkout", sessionReq{SessionID: "cs_1"}).Code)

	rec := s.do(t, http.MethodPost, base+"/complete", completeReq{SessionID: "cs_other", OrderID: "ord_1"})
	require.Equal(t, http.StatusConflict, rec.Code)
	var body lifecycle.Error
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, lifecycle.CodeSessionMismatch, body.Code)
	require.Equal(t, "cs_1", body.Details["expectedSession"])
	require.Equal(t, "cs_other", body.Details["receivedSession"])
	require.NotEmpty(t, s.store.GetCart(context.Background(), id))

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/failed", sessionReq{SessionID: "cs_1"}).Code)
	rec = s.do(t, http.MethodPost, base+"/complete", completeReq{SessionID: "cs_1", OrderID: "ord_1"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, lifecycle.CodeAlreadyFailed, body.Code)

	rec = s.do(t, http.MethodPost, base+"/checkout", sessionReq{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
