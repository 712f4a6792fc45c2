package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStoreMetrics(t *testing.T) {
	m := NewStoreMetrics("test")

	m.CartMutation("add", nil)
	m.CartMutation("add", errors.New("unavailable"))
	m.Checkout(ResultConfirmed, 12*time.Millisecond, 3)
	m.Checkout(ResultInsufficientStock, 5*time.Millisecond, 2)
	m.PublishFailed("kafka")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CartMutations.WithLabelValues("add", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CartMutations.WithLabelValues("add", "rejected")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.StockDebited))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checkouts.WithLabelValues(ResultInsufficientStock)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventPublishFail.WithLabelValues("kafka")))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "storefront_test_checkouts_total")
}

func TestNilStoreMetricsIsSafe(t *testing.T) {
	var m *StoreMetrics
	assert.NotPanics(t, func() {
		m.CartMutation("add", nil)
		m.Checkout(ResultConfirmed, time.Millisecond, 1)
		m.PublishFailed("sns")
	})
}
