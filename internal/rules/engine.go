// Package rules tags canonical firewall records with detection rule matches.
package rules

import (
	"context"

	"fwlog/pkg/models"
)

// Subject is one canonical record together with where it came from.
type Subject struct {
	Device string
	Vendor models.Vendor
	Record models.CanonicalRecord
}

// Engine applies detection rules to records.
type Engine interface {
	Apply(ctx context.Context, s Subject) []models.Tag
}

// NoopEngine returns no tags.
type NoopEngine struct{}

// Apply returns an empty tag list.
func (n *NoopEngine) Apply(ctx context.Context, s Subject) []models.Tag {
	return nil
}

// TagResult runs engine over every record of res and stores the matches.
func TagResult(ctx context.Context, engine Engine, res *models.DeviceResult) {
	if engine == nil || res == nil {
		return
	}
	for i, rec := range res.Records {
		for _, tag := range engine.Apply(ctx, Subject{Device: res.Device, Vendor: res.Vendor, Record: rec}) {
			res.Tags = append(res.Tags, models.RecordTag{Record: i, Tag: tag})
		}
	}
}
