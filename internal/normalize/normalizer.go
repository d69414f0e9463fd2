// Package normalize turns vendor log payloads of any shape into canonical
// traffic and system records.
package normalize

import (
	"strings"

	"fwlog/pkg/models"
)

// Normalizer runs the coercion, aliasing, mining and banner stages with one
// fixed set of tables. It holds no mutable state and is safe for concurrent
// use.
type Normalizer struct {
	patterns *Patterns
	traffic  ColumnSpec
	system   ColumnSpec
}

// New builds a normalizer. Nil or empty arguments fall back to the defaults.
func New(p *Patterns, traffic, system ColumnSpec) *Normalizer {
	if p == nil {
		p = DefaultPatterns()
	}
	if len(traffic) == 0 {
		traffic = DefaultTrafficColumns()
	}
	if len(system) == 0 {
		system = DefaultSystemColumns()
	}
	return &Normalizer{patterns: p, traffic: traffic, system: system}
}

var defaultNormalizer = New(nil, nil, nil)

// Default returns the shared normalizer built from the built-in tables.
func Default() *Normalizer { return defaultNormalizer }

// Patterns returns the tables in use.
func (n *Normalizer) Patterns() *Patterns { return n.patterns }

// Columns returns the alias table used for kind.
func (n *Normalizer) Columns(kind models.QueryKind) ColumnSpec {
	if kind == models.KindSystem {
		return n.system
	}
	return n.traffic
}

// Traffic normalizes a traffic payload.
func (n *Normalizer) Traffic(raw models.RawPayload) []models.CanonicalRecord {
	records := n.ResolveAliases(n.ToRecords(raw), n.traffic)
	records = n.MineFromMessage(records)
	return canonicalize(models.TrafficShape, records, nil)
}

// System normalizes a system-log payload and drops echoed header rows.
func (n *Normalizer) System(raw models.RawPayload) []models.CanonicalRecord {
	records := n.ResolveAliases(n.ToRecords(raw), n.system)
	records = n.FilterBanners(records)
	return canonicalize(models.SystemShape, records, func(field, v string) string {
		if field == "severity" && v != "" {
			return n.patterns.NormalizeSeverity(v)
		}
		return v
	})
}

// Normalize dispatches on kind.
func (n *Normalizer) Normalize(kind models.QueryKind, raw models.RawPayload) []models.CanonicalRecord {
	if kind == models.KindSystem {
		return n.System(raw)
	}
	return n.Traffic(raw)
}

func canonicalize(shape models.Shape, records []*models.Record, fix func(field, v string) string) []models.CanonicalRecord {
	out := make([]models.CanonicalRecord, 0, len(records))
	for _, r := range records {
		c := shape.New()
		for _, f := range shape.Fields() {
			v := strings.TrimSpace(r.String(f))
			if fix != nil {
				v = fix(f, v)
			}
			c.Set(f, v)
		}
		out = append(out, c)
	}
	return out
}

// ToRecords coerces raw with the default tables.
func ToRecords(raw models.RawPayload) []*models.Record { return defaultNormalizer.ToRecords(raw) }

// Normalize normalizes raw with the default tables.
func Normalize(kind models.QueryKind, raw models.RawPayload) []models.CanonicalRecord {
	return defaultNormalizer.Normalize(kind, raw)
}
