package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"fwlog/internal/orchestrator"
	"fwlog/pkg/models"
)

// credentialOverride replaces directory credentials with ones given on
// the command line.
type credentialOverride struct {
	orchestrator.Resolver
	username string
	password string
}

func withCredentials(r orchestrator.Resolver, username, password string) orchestrator.Resolver {
	if username == "" && password == "" {
		return r
	}
	return credentialOverride{Resolver: r, username: username, password: password}
}

func (c credentialOverride) LookupByName(name string) (models.FirewallEndpoint, error) {
	ep, err := c.Resolver.LookupByName(name)
	if err != nil {
		return ep, err
	}
	if c.username != "" {
		ep.Credentials.Username = c.username
		if ep.Vendor == models.VendorSecuiBluemax {
			ep.Credentials.ClientID = c.username
		}
	}
	if c.password != "" {
		ep.Credentials.Password = c.password
		if ep.Vendor == models.VendorSecuiBluemax {
			ep.Credentials.ClientSecret = c.password
		}
	}
	return ep, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
