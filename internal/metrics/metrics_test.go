package metrics_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := metrics.NewRecorder(reg)
	require.NoError(t, err)

	r.ObserveRequest("login", 200, 20*time.Millisecond)
	r.ObserveRequest("me", 401, 5*time.Millisecond)
	r.ObserveRequest("me", 401, 5*time.Millisecond)
	r.ObserveOperation("login", true)
	r.ObserveOperation("initialize", false)
	r.ObserveRefresh(true)

	require.Equal(t, 1.0, testutil.ToFloat64(r.RequestCounter.WithLabelValues("login", "200")))
	require.Equal(t, 2.0, testutil.ToFloat64(r.RequestCounter.WithLabelValues("me", "401")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.OperationCounter.WithLabelValues("login", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.OperationCounter.WithLabelValues("initialize", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.RefreshCounter.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(r.RefreshCounter.WithLabelValues("failure")))
	require.Equal(t, 2, testutil.CollectAndCount(r.RequestDurationHistogram))
}

func TestRecorderDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.NewRecorder(reg)
	require.NoError(t, err)

	_, err = metrics.NewRecorder(reg)
	require.Error(t, err)
}
