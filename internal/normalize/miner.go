package normalize

import (
	"net/netip"
	"strings"

	"fwlog/pkg/models"
)

// MineFromMessage fills canonical traffic fields still empty after alias
// resolution from the record's free-text message. Populated fields are never
// touched. Inputs are not modified.
func (n *Normalizer) MineFromMessage(records []*models.Record) []*models.Record {
	out := make([]*models.Record, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		rec := r.Clone()
		if msg := n.messageOf(rec); msg != "" {
			n.mineTraffic(rec, msg)
		}
		out = append(out, rec)
	}
	return out
}

func (n *Normalizer) messageOf(r *models.Record) string {
	for _, k := range n.patterns.MessageKeys {
		if v := strings.TrimSpace(r.String(k)); v != "" {
			return foldText(v)
		}
	}
	return ""
}

func (n *Normalizer) mineTraffic(rec *models.Record, msg string) {
	p := n.patterns
	fill := func(field, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		if rec.String(field) == "" {
			rec.Set(field, value)
		}
	}

	addrs := ipv4Tokens(p, msg)
	if len(addrs) > 0 {
		fill("src", addrs[0])
	}
	if len(addrs) > 1 {
		fill("dst", addrs[1])
	}
	if m := p.Port.FindStringSubmatch(msg); m != nil {
		fill("dport", m[1])
	}
	if m := p.Rule.FindStringSubmatch(msg); m != nil {
		fill("rule", p.trimAtNextLabel(m[1]))
	}
	if m := p.App.FindStringSubmatch(msg); m != nil {
		fill("app", p.trimAtNextLabel(m[1]))
	}
	fill("action", p.mineAction(msg))
	if m := p.Protocol.FindStringSubmatch(msg); m != nil {
		fill("protocol", strings.ToLower(m[1]))
	}
}

// ipv4Tokens returns the dotted-quad tokens of s that parse as IPv4
// addresses, in order of appearance.
func ipv4Tokens(p *Patterns, s string) []string {
	var out []string
	for _, tok := range p.IPv4.FindAllString(s, -1) {
		if addr, err := netip.ParseAddr(tok); err == nil && addr.Is4() {
			out = append(out, addr.String())
		}
	}
	return out
}

// trimAtNextLabel cuts a labelled trailing phrase where the next `label:`
// or `label=` begins.
func (p *Patterns) trimAtNextLabel(s string) string {
	if loc := p.NextLabel.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	return strings.TrimSpace(strings.Trim(s, `"' `))
}

// mineAction prefers an explicit `action=` label over a bare vocabulary word.
func (p *Patterns) mineAction(msg string) string {
	if m := p.ActionLabel.FindStringSubmatch(msg); m != nil {
		return p.normalizeAction(m[1])
	}
	m := p.Action.FindStringSubmatch(msg)
	if m == nil {
		return ""
	}
	tok := m[1]
	if tok == "" {
		tok = m[2]
	}
	return p.normalizeAction(tok)
}

func (p *Patterns) normalizeAction(tok string) string {
	t := strings.ToLower(strings.TrimSpace(tok))
	if v, ok := p.ActionAliases[t]; ok {
		return v
	}
	return t
}
