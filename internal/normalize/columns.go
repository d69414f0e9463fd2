package normalize

import "strings"

// Column lists, in priority order, the source keys that may carry one
// canonical field.
type Column struct {
	Field   string
	Aliases []string
}

// ColumnSpec is the static alias table for one record shape.
type ColumnSpec []Column

// DefaultTrafficColumns returns the traffic alias table.
func DefaultTrafficColumns() ColumnSpec {
	return ColumnSpec{
		{Field: "time", Aliases: []string{"receive_time", "etime", "time_generated", "time", "event_time"}},
		{Field: "src", Aliases: []string{"src", "src_ip", "source", "source_ip"}},
		{Field: "dst", Aliases: []string{"dst", "dst_ip", "destination", "destination_ip"}},
		{Field: "dport", Aliases: []string{"dport", "dstport", "destination-port", "dst_port"}},
		{Field: "app", Aliases: []string{"app", "application", "app_id"}},
		{Field: "protocol", Aliases: []string{"protocol", "proto", "ip_protocol"}},
		{Field: "action", Aliases: []string{"action", "action_name"}},
		{Field: "rule", Aliases: []string{"rule", "rule_name", "fwrule_name", "fa_rule_name", "policy_name"}},
	}
}

// DefaultSystemColumns returns the system alias table.
func DefaultSystemColumns() ColumnSpec {
	return ColumnSpec{
		{Field: "time", Aliases: []string{"time_generated", "receive_time", "time", "event_time"}},
		{Field: "severity", Aliases: []string{"severity", "level"}},
		{Field: "message", Aliases: []string{"opaque", "msg", "message", "description", "detail", RawKey}},
	}
}

// Aliases returns the alias list of field.
func (s ColumnSpec) Aliases(field string) []string {
	for _, c := range s {
		if c.Field == field {
			return c.Aliases
		}
	}
	return nil
}

// Fields returns the canonical field names in order.
func (s ColumnSpec) Fields() []string {
	out := make([]string, 0, len(s))
	for _, c := range s {
		out = append(out, c.Field)
	}
	return out
}

// WithExtra returns a copy with extra aliases appended after the built-in
// ones. Unknown fields are ignored.
func (s ColumnSpec) WithExtra(extra map[string][]string) ColumnSpec {
	out := make(ColumnSpec, len(s))
	for i, c := range s {
		aliases := append([]string(nil), c.Aliases...)
		for _, a := range extra[c.Field] {
			if a = strings.TrimSpace(a); a != "" && !contains(aliases, a) {
				aliases = append(aliases, a)
			}
		}
		out[i] = Column{Field: c.Field, Aliases: aliases}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
