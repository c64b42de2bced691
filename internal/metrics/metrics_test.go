package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerCounters(t *testing.T) {
	m := New()

	m.SaleCommitted(8)
	m.SaleCommitted(2)
	m.PurchaseCommitted(30)
	m.InsufficientStock()
	m.StockCleared()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.salesTotal))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.unitsSold))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.purchasesTotal))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.unitsReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.insufficientStock))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stockClears))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.SaleCommitted(1)
	m.PurchaseCommitted(1)
	m.InsufficientStock()
	m.StockCleared()
	m.ObserveRequest(http.MethodGet, "/healthz", http.StatusOK, time.Millisecond)
}

func TestHandlerExposesRequestMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodPost, "/api/v1/sales", http.StatusConflict, 20*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues(http.MethodPost, "/api/v1/sales", "409")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, "pharmapos_http_requests_total"))
	assert.True(t, strings.Contains(text, "pharmapos_http_request_duration_seconds_bucket"))
	assert.True(t, strings.Contains(text, "go_goroutines"))
}
