package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOperation(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordOperation("submit_claim", "ok", 3*time.Millisecond)
	m.RecordOperation("submit_claim", "ok", time.Millisecond)
	m.RecordOperation("submit_claim", "unauthorized", time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.operationsTotal.WithLabelValues("submit_claim", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.operationsTotal.WithLabelValues("submit_claim", "unauthorized")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.operationDuration))
}

func TestRecordCounters(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordRetry("submit_review")
	m.RecordEvent("consensus_reached")
	m.RecordHTTPRequest("POST", "/v1/claims", "201", time.Millisecond)
	m.RecordAuthFailure("replay")
	m.RecordRateLimited()
	m.RecordRateLimited()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.retriesTotal.WithLabelValues("submit_review")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.eventsTotal.WithLabelValues("consensus_reached")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("POST", "/v1/claims", "201")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.authFailuresTotal.WithLabelValues("replay")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.rateLimitedTotal))
}

func TestNew_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}
