package normalize

import (
	"strings"
	"unicode"

	"fwlog/pkg/models"
)

// IsHeaderLike reports whether msg looks like an echoed column header or a
// rule line rather than log content.
func (n *Normalizer) IsHeaderLike(msg string) bool {
	p := n.patterns
	s := strings.TrimSpace(foldText(msg))
	if s == "" {
		return false
	}
	if p.SeparatorLine.MatchString(s) {
		return true
	}
	lower := strings.ToLower(s)
	if p.HeaderLabel.MatchString(lower) {
		return true
	}
	if strings.IndexFunc(s, unicode.IsDigit) >= 0 {
		return false
	}
	var tokens []string
	for _, t := range p.HeaderSplit.Split(lower, -1) {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) < p.HeaderMinTokens {
		return false
	}
	known := 0
	for _, t := range tokens {
		if _, ok := p.HeaderTokens[t]; ok {
			known++
		}
	}
	return float64(known)/float64(len(tokens)) >= p.HeaderRatio
}

// FilterBanners drops records whose time and severity are empty and whose
// message is header-like.
func (n *Normalizer) FilterBanners(records []*models.Record) []*models.Record {
	out := make([]*models.Record, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		if strings.TrimSpace(r.String("time")) == "" &&
			strings.TrimSpace(r.String("severity")) == "" &&
			n.IsHeaderLike(r.String("message")) {
			continue
		}
		out = append(out, r)
	}
	return out
}
