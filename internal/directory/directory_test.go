package directory

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fwlog/pkg/models"
)

const devicesYAML = `devices:
  - name: dc-core
    vendor: Paloalto
    management_address: 192.0.2.10
    role: internal
    ip_ranges: [10.10.0.0/16]
    credentials:
      username: admin
      password: secret
  - name: office
    vendor: Secui Bluemax
    management_address: 192.0.2.20
    base_url: https://192.0.2.20:8443
    ip_ranges: ["10.20.0.1-10.20.0.200"]
    credentials:
      client_id: cid
      client_secret: csecret
  - name: campus-fw
    vendor: Secui Bluemax
    management_address: 192.0.2.30
    role: campus
    ip_ranges: [172.16.0.0/12]
  - name: gw
    vendor: Paloalto
    management_address: 192.0.2.1
    role: gateway
  - name: legacy
    vendor: Fortinet
    management_address: 192.0.2.40
    ip_ranges: [garbage, 10.30.0.0/24]
  - name: office
    management_address: 192.0.2.20
    ip_ranges: [10.21.0.0/24]
`

func loadTestDirectory(t *testing.T) *Directory {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devices.yml")
	require.NoError(t, os.WriteFile(path, []byte(devicesYAML), 0644))
	d, err := Load(path)
	require.NoError(t, err)
	return d
}

func TestLoadAndLookup(t *testing.T) {
	d := loadTestDirectory(t)
	assert.Equal(t, 5, d.Len())

	ep, err := d.LookupByName("office")
	require.NoError(t, err)
	assert.Equal(t, models.VendorSecuiBluemax, ep.Vendor)
	assert.Equal(t, "https://192.0.2.20:8443", ep.BaseURL)
	assert.Equal(t, "cid", ep.Credentials.ClientID)

	ep, err = d.LookupByName(" dc-core ")
	require.NoError(t, err)
	assert.Equal(t, models.VendorPaloAlto, ep.Vendor)
	assert.Equal(t, "secret", ep.Credentials.Password)

	_, err = d.LookupByName("missing")
	assert.True(t, errors.Is(err, models.ErrDeviceNotFound))

	names := make([]string, 0)
	for _, ep := range d.ListAll() {
		names = append(names, ep.Name)
	}
	assert.Equal(t, []string{"dc-core", "office", "campus-fw", "gw", "legacy"}, names)
	assert.Equal(t, models.Vendor("Fortinet"), d.ListAll()[4].Vendor)
}

func TestFindCandidates(t *testing.T) {
	d := loadTestDirectory(t)
	cases := []struct {
		name     string
		src, dst string
		want     []string
	}{
		{"internal to internet adds gateway", "10.10.1.5", "8.8.8.8", []string{"dc-core", "gw"}},
		{"internal to internal", "10.10.1.5", "10.20.0.50", []string{"dc-core", "office"}},
		{"internal to campus", "10.10.1.5", "172.16.3.3", []string{"dc-core", "campus-fw", "gw"}},
		{"outside to campus", "8.8.8.8", "172.16.3.3", []string{"campus-fw"}},
		{"merged range", "10.21.0.9", "10.20.0.7", []string{"office"}},
		{"range end is inclusive", "10.20.0.200", "10.10.0.1", []string{"dc-core", "office"}},
		{"outside every range", "10.20.0.250", "1.1.1.1", []string{}},
		{"bad range skipped, good range kept", "10.30.0.4", "10.30.0.5", []string{"legacy"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, d.FindCandidates(tc.src, tc.dst))
		})
	}
	assert.Empty(t, d.FindCandidates("not-an-ip", "10.10.0.1"))
}

func TestNewRejectsConflicts(t *testing.T) {
	_, err := New([]Device{{Name: "a", ManagementAddress: "1.1.1.1"}, {Name: "a", ManagementAddress: "2.2.2.2"}})
	assert.Error(t, err)

	_, err = New([]Device{{Name: "a", Role: "edge"}})
	assert.Error(t, err)

	_, err = New([]Device{{Name: " "}})
	assert.Error(t, err)
}

func TestParseRange(t *testing.T) {
	r, err := parseRange("10.0.16.0/20")
	require.NoError(t, err)
	assert.Equal(t, "10.0.16.0", r.start.String())
	assert.Equal(t, "10.0.31.255", r.end.String())

	r, err = parseRange("10.0.0.5/24")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0", r.start.String())
	assert.Equal(t, "10.0.0.255", r.end.String())

	_, err = parseRange("10.0.0.9-10.0.0.1")
	assert.Error(t, err)
	_, err = parseRange("10.0.0.1")
	assert.Error(t, err)
}
