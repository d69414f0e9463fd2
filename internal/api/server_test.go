package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fwlog/internal/directory"
	"fwlog/internal/metrics"
	"fwlog/internal/orchestrator"
	vendor "fwlog/internal/firewall"
	"fwlog/pkg/models"
)

type echoClient struct{}

func (echoClient) FetchTrafficLog(ctx context.Context, ep models.FirewallEndpoint, q models.TrafficQuery) (models.RawPayload, error) {
	rec := models.NewRecord()
	rec.Set("src", q.SrcAddr)
	rec.Set("dst", q.DstAddr)
	rec.Set("rule", ep.Name)
	return models.RecordsPayload([]*models.Record{rec}), nil
}

func (echoClient) FetchSystemLog(ctx context.Context, ep models.FirewallEndpoint, q models.SystemQuery) (models.RawPayload, error) {
	rec := models.NewRecord()
	rec.Set("severity", q.Severity)
	rec.Set("opaque", "fan failure on "+ep.Name)
	return models.RecordsPayload([]*models.Record{rec}), nil
}

func newTestServer(t *testing.T) (*httptest.Server, *metrics.Metrics) {
	t.Helper()
	dir, err := directory.New([]directory.Device{
		{Name: "dc-core", Vendor: "Paloalto", ManagementAddress: "192.0.2.10", IPRanges: []string{"10.10.0.0/16"},
			Credentials: models.Credentials{Username: "admin", Password: "secret"}},
		{Name: "gw", Vendor: "Paloalto", ManagementAddress: "192.0.2.1", Role: directory.RoleGateway},
	})
	require.NoError(t, err)

	m := metrics.New()
	orch := orchestrator.New(vendor.NewStaticRegistry(map[models.Vendor]vendor.Client{models.VendorPaloAlto: echoClient{}}), orchestrator.WithMetrics(m))
	srv := httptest.NewServer(New(orch, dir, m, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, m
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func post(t *testing.T, url, body string) (int, models.QueryResponse) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out models.QueryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHealthAndDevices(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := get(t, srv.URL+"/api/health")
	require.Equal(t, http.StatusOK, status)
	var health HealthResponse
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 2, health.Devices)

	status, body = get(t, srv.URL+"/api/devices")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"name":"dc-core"`)
	assert.Contains(t, body, `"vendor":"PaloAlto"`)
	assert.NotContains(t, body, "secret")
}

func TestDeviceEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := get(t, srv.URL+"/api/devices/dc-core/traffic?src=10.10.0.5&dst=8.8.8.8&limit=3")
	require.Equal(t, http.StatusOK, status, body)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.Equal(t, "dc-core", res["device"])
	assert.Equal(t, "ok", res["status"])
	rec := res["records"].([]any)[0].(map[string]any)
	assert.Equal(t, "10.10.0.5", rec["src"])
	assert.Equal(t, "dc-core", rec["rule"])

	status, body = get(t, srv.URL+"/api/devices/gw/system?severity=high")
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, `"severity":"high"`)
	assert.Contains(t, body, "fan failure on gw")

	status, body = get(t, srv.URL+"/api/devices/nope/system")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body, `"error_kind":"DeviceNotFound"`)

	status, _ = get(t, srv.URL+"/api/devices/dc-core/traffic?limit=abc")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = get(t, srv.URL+"/api/devices/dc-core/traffic?src=not-an-ip")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestQueryEndpoint(t *testing.T) {
	srv, m := newTestServer(t)

	status, resp := post(t, srv.URL+"/api/query", `{"id":"q1","kind":"traffic","src":"10.10.0.5","dst":"8.8.8.8"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "q1", resp.ID)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Results, 2)

	status, resp = post(t, srv.URL+"/api/query", `{"kind":"traffic","src":"192.168.1.1","dst":"192.168.1.2"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, models.KindNoCandidateDevices, resp.ErrorKind)
	assert.NotEmpty(t, resp.ID)

	status, resp = post(t, srv.URL+"/api/query", `{"kind":"system"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "error", resp.Status)

	httpResp, err := http.Post(srv.URL+"/api/query", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	httpResp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, httpResp.StatusCode)

	status, body := get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `fwlog_query_requests_total{outcome="ok",source="http"} 1`)
	assert.Contains(t, body, `fwlog_query_requests_total{outcome="not_found",source="http"} 1`)
	_ = m
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/query", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://console.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
