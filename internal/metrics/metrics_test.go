package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveReview(t *testing.T) {
	m := New()
	m.ObserveReview("approve")
	m.ObserveReview("approve")
	m.ObserveReview("reject")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DetailReviews.WithLabelValues("approve")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DetailReviews.WithLabelValues("reject")))
}

func TestObserveArchived(t *testing.T) {
	m := New()
	m.ObserveArchived(3)
	m.ObserveArchived(0)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PeriodsArchived))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveReview("approve")
		m.ObserveArchived(1)
		m.ObserveRejection("approved_immutable")
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRejection("already_reviewed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(body, `measure_workflow_rejections_total{reason="already_reviewed"} 1`))
}
