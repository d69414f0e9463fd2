package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fwlog/pkg/models"
)

func trafficRecord(src, dst, action string) models.CanonicalRecord {
	r := models.TrafficShape.New()
	r.Set("src", src)
	r.Set("dst", dst)
	r.Set("action", action)
	return r
}

func TestRowsSkipsEmptyRecords(t *testing.T) {
	rows := Rows([]models.CanonicalRecord{
		trafficRecord("10.0.0.1", "10.0.0.2", "allow"),
		models.TrafficShape.New(),
	})
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"", "10.0.0.1", "10.0.0.2", "", "", "", "allow", ""}, rows[0])
}

func TestTable(t *testing.T) {
	out := Table(models.KindTraffic, []models.CanonicalRecord{trafficRecord("10.0.0.1", "10.0.0.2", "deny")})
	for _, want := range []string{"src", "dport", "rule", "10.0.0.1", "deny"} {
		assert.Contains(t, out, want)
	}

	assert.Equal(t, NoData, strings.TrimSpace(Table(models.KindSystem, []models.CanonicalRecord{models.SystemShape.New()})))
	assert.Equal(t, NoData, strings.TrimSpace(Table(models.KindSystem, nil)))
}

func TestResultsDistinguishesFailures(t *testing.T) {
	sys := models.SystemShape.New()
	sys.Set("severity", "critical")
	sys.Set("message", "disk full")

	results := []models.DeviceResult{
		{Device: "fw1", Vendor: models.VendorPaloAlto, Kind: models.KindSystem, Status: models.StatusOK, Records: []models.CanonicalRecord{sys},
			Tags: []models.RecordTag{{Record: 0, Tag: models.Tag{ID: "fw-0002", Severity: "high"}}}},
		{Device: "fw2", Vendor: models.VendorSecuiBluemax, Kind: models.KindSystem, Status: models.StatusOK},
		{Device: "fw3", Vendor: models.VendorSecuiBluemax, Kind: models.KindSystem, Status: models.StatusFailed,
			Err: models.Errorf(models.KindJobTimeout, "poll", "deadline exceeded").WithBody(`{"status":"RUNNING"}`)},
		{Device: "fw4", Vendor: "Fortinet", Kind: models.KindSystem, Status: models.StatusUnsupported,
			Err: models.Errorf(models.KindUnsupportedVendor, "dispatch", "unsupported vendor: Fortinet")},
	}

	var buf bytes.Buffer
	require.NoError(t, Results(&buf, results))
	out := buf.String()

	assert.Contains(t, out, "fw1 (PaloAlto)")
	assert.Contains(t, out, "disk full")
	assert.Contains(t, out, "! record 1: fw-0002 (high)")
	assert.Contains(t, out, "fw2 (SecuiBluemax)\n"+NoData)
	assert.Contains(t, out, "failed: JobTimeout: poll: deadline exceeded")
	assert.Contains(t, out, `last response: {"status":"RUNNING"}`)
	assert.Contains(t, out, `unsupported vendor "Fortinet"`)
}

func TestResultsEmptyAndNoCandidates(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Results(&buf, nil))
	assert.Equal(t, NoData, strings.TrimSpace(buf.String()))

	assert.Equal(t, "no candidate devices for 10.0.0.1 -> 8.8.8.8", NoCandidateMessage("10.0.0.1", "8.8.8.8"))
	assert.NotEqual(t, NoData, NoCandidates)
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, []models.DeviceResult{{
		Device: "fw1", Kind: models.KindTraffic, Status: models.StatusOK,
		Records: []models.CanonicalRecord{trafficRecord("10.0.0.1", "10.0.0.2", "allow")},
	}}))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "fw1", decoded[0]["device"])
	records := decoded[0]["records"].([]any)
	assert.Equal(t, "10.0.0.1", records[0].(map[string]any)["src"])

	buf.Reset()
	require.NoError(t, JSON(&buf, nil))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestDevices(t *testing.T) {
	out := Devices([]models.FirewallEndpoint{{Name: "dc-core", Vendor: models.VendorPaloAlto, ManagementAddress: "192.0.2.10"}})
	assert.Contains(t, out, "dc-core")
	assert.Contains(t, out, "192.0.2.10")
	assert.Equal(t, NoData, Devices(nil))
}
