package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fwlog/pkg/models"
)

func TestObserveDevice(t *testing.T) {
	m := New()
	m.ObserveDevice(models.DeviceResult{
		Device:   "pa-01",
		Vendor:   models.VendorPaloAlto,
		Kind:     models.KindTraffic,
		Status:   models.StatusOK,
		Records:  make([]models.CanonicalRecord, 3),
		Duration: 1500 * time.Millisecond,
	})
	m.ObserveDevice(models.DeviceResult{
		Device: "sc-01",
		Vendor: models.VendorSecuiBluemax,
		Kind:   models.KindTraffic,
		Status: models.StatusFailed,
		Err:    models.NewError(models.KindJobTimeout, "poll", errors.New("late")),
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues("PaloAlto", "traffic", "ok", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues("SecuiBluemax", "traffic", "failed", "JobTimeout")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.records.WithLabelValues("traffic")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestSessionGaugeAndNilSafety(t *testing.T) {
	m := New()
	done := m.SessionStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inflight))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inflight))

	var nilMetrics *Metrics
	nilMetrics.ObserveDevice(models.DeviceResult{})
	nilMetrics.ObserveRequest("redis", "ok")
	nilMetrics.SessionStarted()()
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest("http", "ok")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `fwlog_query_requests_total{outcome="ok",source="http"} 1`))
}
