package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMetrics_TrackerCounters(t *testing.T) {
	m := NewMetrics(zaptest.NewLogger(t))

	m.MealRecorded()
	m.MealRecorded()
	m.DailyReset()
	m.HistoryDeleted(3)
	m.SubscriberConnected()
	m.SubscriberConnected()
	m.SubscriberDisconnected()
	m.AIRequest("gemini", "recognize", "success", 250*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.mealsRecordedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dailyResetsTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.historyDeletedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.progressSubscribers))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.aiRequestsTotal.WithLabelValues("gemini", "recognize", "success")))
}

func TestMetrics_HTTPMiddlewareUsesRoutePattern(t *testing.T) {
	m := NewMetrics(zaptest.NewLogger(t))

	r := chi.NewRouter()
	r.Use(m.HTTPMiddleware)
	r.Get("/api/v1/history/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history/abc", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/v1/history/{id}", "418")))

	scrape := httptest.NewRecorder()
	m.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), "nutriscan_http_requests_total")
}

func TestNewTracingProvider_Disabled(t *testing.T) {
	tp, err := NewTracingProvider(context.Background(), TracingConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, span := tp.Tracer().Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, tp.Shutdown(context.Background()))
}
