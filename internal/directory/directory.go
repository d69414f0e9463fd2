// Package directory loads the managed firewall inventory and matches source
// and destination addresses to the devices that can see the flow.
package directory

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"fwlog/internal/logger"
	"fwlog/pkg/models"
)

// Role places a device in the network topology used by the matcher.
type Role string

const (
	// RoleInternal devices guard internal address ranges.
	RoleInternal Role = "internal"
	// RoleCampus devices guard a satellite campus reached through the gateway.
	RoleCampus Role = "campus"
	// RoleGateway devices sit on the path from internal ranges to everything else.
	RoleGateway Role = "gateway"
)

// Device is one directory entry.
type Device struct {
	Name              string             `yaml:"name"`
	Vendor            string             `yaml:"vendor"`
	ManagementAddress string             `yaml:"management_address"`
	BaseURL           string             `yaml:"base_url"`
	Role              Role               `yaml:"role"`
	IPRanges          []string           `yaml:"ip_ranges"`
	Credentials       models.Credentials `yaml:"credentials"`

	ranges []ipRange
}

// Endpoint converts the entry into the retrieval view.
func (d Device) Endpoint() models.FirewallEndpoint {
	return models.FirewallEndpoint{
		Name:              d.Name,
		Vendor:            models.ParseVendor(d.Vendor),
		ManagementAddress: d.ManagementAddress,
		BaseURL:           d.BaseURL,
		Credentials:       d.Credentials,
	}
}

type file struct {
	Devices []Device `yaml:"devices"`
}

// Directory is an immutable device inventory.
type Directory struct {
	devices []Device
}

// Load reads a YAML device file.
func Load(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return New(f.Devices)
}

// New validates devices and builds a directory. Entries repeating a name
// and management address are merged (one row per range is a common export
// layout); the same name with another address is an error. Unparseable IP
// ranges are logged and skipped.
func New(devices []Device) (*Directory, error) {
	out := make([]Device, 0, len(devices))
	index := make(map[string]int, len(devices))
	for i, d := range devices {
		d.Name = strings.TrimSpace(d.Name)
		if d.Name == "" {
			return nil, fmt.Errorf("device %d: missing name", i)
		}
		if d.Role == "" {
			d.Role = RoleInternal
		}
		switch d.Role {
		case RoleInternal, RoleCampus, RoleGateway:
		default:
			return nil, fmt.Errorf("device %q: unknown role %q", d.Name, d.Role)
		}

		var ranges []ipRange
		for _, raw := range d.IPRanges {
			r, err := parseRange(raw)
			if err != nil {
				logger.Warnf("directory: device %s: %v", d.Name, err)
				continue
			}
			ranges = append(ranges, r)
		}

		if j, ok := index[d.Name]; ok {
			prev := &out[j]
			if prev.ManagementAddress != d.ManagementAddress {
				return nil, fmt.Errorf("device %q: duplicate name with management address %s and %s",
					d.Name, prev.ManagementAddress, d.ManagementAddress)
			}
			prev.IPRanges = append(prev.IPRanges, d.IPRanges...)
			prev.ranges = append(prev.ranges, ranges...)
			continue
		}
		d.IPRanges = append([]string(nil), d.IPRanges...)
		d.ranges = ranges
		index[d.Name] = len(out)
		out = append(out, d)
	}
	return &Directory{devices: out}, nil
}

// LookupByName returns the endpoint registered under name.
func (d *Directory) LookupByName(name string) (models.FirewallEndpoint, error) {
	name = strings.TrimSpace(name)
	for _, dev := range d.devices {
		if dev.Name == name {
			return dev.Endpoint(), nil
		}
	}
	return models.FirewallEndpoint{}, models.Errorf(models.KindDeviceNotFound, "lookup", "no device named %q", name).WithDevice(name)
}

// ListAll returns every endpoint in directory order.
func (d *Directory) ListAll() []models.FirewallEndpoint {
	out := make([]models.FirewallEndpoint, 0, len(d.devices))
	for _, dev := range d.devices {
		out = append(out, dev.Endpoint())
	}
	return out
}

// Devices returns a copy of the entries in directory order.
func (d *Directory) Devices() []Device {
	out := make([]Device, len(d.devices))
	copy(out, d.devices)
	return out
}

// Len returns the number of devices.
func (d *Directory) Len() int { return len(d.devices) }
