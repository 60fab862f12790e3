package upstream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	orders := NewGenerator(42).Orders(25)
	srv := httptest.NewServer(NewServer(orders, 42).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]string
	code := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestServer_Orders(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		Status    string   `json:"status"`
		RawOrders []string `json:"raw_orders"`
	}
	code := getJSON(t, srv.URL+"/api/orders", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Len(t, body.RawOrders, 25)
}

func TestServer_OrdersLimit(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		Status    string   `json:"status"`
		RawOrders []string `json:"raw_orders"`
	}
	code := getJSON(t, srv.URL+"/api/orders?limit=5", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body.RawOrders, 5)

	// A limit above the set size returns everything.
	code = getJSON(t, srv.URL+"/api/orders?limit=500", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body.RawOrders, 25)
}

func TestServer_OrdersBadLimit(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]string
	code := getJSON(t, srv.URL+"/api/orders?limit=abc", &body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "error", body["status"])
}

func TestServer_OrderByID(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		Status   string `json:"status"`
		RawOrder string `json:"raw_order"`
	}
	code := getJSON(t, srv.URL+"/api/order/1001", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Contains(t, body.RawOrder, "Order 1001:")
}

func TestServer_OrderNotFound(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]string
	code := getJSON(t, srv.URL+"/api/order/9999", &body)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["status"])
}
