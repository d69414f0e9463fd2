package models

import "strings"

// Vendor identifies a firewall vendor family.
type Vendor string

const (
	VendorPaloAlto     Vendor = "PaloAlto"
	VendorSecuiBluemax Vendor = "SecuiBluemax"
)

// ParseVendor maps directory spellings ("Paloalto", "Secui Bluemax", ...) to a Vendor.
// Unknown names are returned verbatim so they can be reported as unsupported.
func ParseVendor(name string) Vendor {
	key := strings.ToLower(strings.Join(strings.Fields(name), ""))
	key = strings.NewReplacer("-", "", "_", "").Replace(key)
	switch key {
	case "paloalto", "pan", "panos":
		return VendorPaloAlto
	case "secuibluemax", "secui", "bluemax":
		return VendorSecuiBluemax
	default:
		return Vendor(strings.TrimSpace(name))
	}
}

// Credentials holds whichever secrets the vendor protocol needs.
type Credentials struct {
	Username     string `yaml:"username" json:"-"`
	Password     string `yaml:"password" json:"-"`
	ClientID     string `yaml:"client_id" json:"-"`
	ClientSecret string `yaml:"client_secret" json:"-"`
}

// FirewallEndpoint is one managed firewall as supplied by the device directory.
type FirewallEndpoint struct {
	Name              string      `json:"name"`
	Vendor            Vendor      `json:"vendor"`
	ManagementAddress string      `json:"management_address"`
	BaseURL           string      `json:"base_url,omitempty"`
	Credentials       Credentials `json:"-"`
}

// Key identifies an endpoint for de-duplication.
func (e FirewallEndpoint) Key() string {
	return e.Name + "|" + e.ManagementAddress
}
