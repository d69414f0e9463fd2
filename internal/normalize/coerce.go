package normalize

import (
	"strings"

	"fwlog/pkg/models"
)

// ToRecords converts any raw payload into an ordered sequence of generic
// records. It never fails; unrecognized shapes yield no records.
func (n *Normalizer) ToRecords(raw models.RawPayload) []*models.Record {
	switch raw.Kind {
	case models.PayloadRecords:
		out := make([]*models.Record, 0, len(raw.Records))
		for _, r := range raw.Records {
			if r != nil {
				out = append(out, r)
			}
		}
		return out
	case models.PayloadItems:
		return n.fromItems(raw.Items)
	case models.PayloadRecord:
		if raw.Record == nil {
			return nil
		}
		return []*models.Record{raw.Record}
	case models.PayloadText:
		return n.fromText(raw.Text)
	default:
		return nil
	}
}

func (n *Normalizer) fromItems(items []models.Item) []*models.Record {
	out := make([]*models.Record, 0, len(items))
	for _, item := range items {
		switch item.Kind {
		case models.ItemRecord:
			if item.Record != nil {
				out = append(out, item.Record)
			}
		case models.ItemList:
			out = append(out, n.fromPositional(item.List))
		default:
			out = append(out, n.mine(models.Stringify(item.Scalar)))
		}
	}
	return out
}

// fromPositional reads [time, severity, message...] rows. Rows that do not
// look like that are joined and mined as text.
func (n *Normalizer) fromPositional(list []any) *models.Record {
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = models.Stringify(v)
	}
	if len(parts) >= 2 && n.patterns.MatchesTime(parts[0]) && n.patterns.KnownSeverity(parts[1]) {
		rec := models.NewRecord()
		rec.Set("time", strings.TrimSpace(parts[0]))
		rec.Set("severity", n.patterns.NormalizeSeverity(parts[1]))
		rec.Set("message", strings.Join(parts[2:], " "))
		return rec
	}
	return n.mine(strings.Join(parts, " "))
}

func (n *Normalizer) fromText(s string) []*models.Record {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if v, err := models.DecodeJSON([]byte(s)); err == nil {
		switch val := v.(type) {
		case *models.Record, []any:
			return n.ToRecords(models.PayloadOf(val))
		case string:
			return n.fromText(val)
		default:
			return nil
		}
	}

	var out []*models.Record
	for _, block := range n.patterns.BlockSplit.Split(s, -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if rec := n.parseKeyValues(block); rec != nil {
			out = append(out, rec)
			continue
		}
		for _, entry := range n.splitEntries(block) {
			out = append(out, n.mine(entry))
		}
	}
	return out
}

// parseKeyValues reads `key: value` / `key=value` lines. It returns nil when
// the block holds no such line.
func (n *Normalizer) parseKeyValues(block string) *models.Record {
	rec := models.NewRecord()
	for _, line := range strings.Split(block, "\n") {
		line = foldText(line)
		if n.setPairs(rec, line) {
			continue
		}
		m := n.patterns.KeyValueLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rec.Set(strings.ToLower(m[1]), strings.TrimSpace(m[2]))
	}
	if rec.Len() == 0 {
		return nil
	}
	rec.Set(RawKey, block)
	return rec
}

// setPairs splits a line of the form `a=1 b=2 c=x y` at each key and sets
// every pair on rec. It reports false unless the line starts with a key and
// carries at least two of them.
func (n *Normalizer) setPairs(rec *models.Record, line string) bool {
	line = strings.TrimSpace(line)
	locs := n.patterns.KeyValuePair.FindAllStringSubmatchIndex(line, -1)
	if len(locs) < 2 || locs[0][2] != 0 {
		return false
	}
	for i, loc := range locs {
		end := len(line)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		rec.Set(strings.ToLower(line[loc[2]:loc[3]]), strings.TrimSpace(line[loc[1]:end]))
	}
	return true
}

// splitEntries breaks a multi-line text block into log entries: a line
// carrying a timestamp starts a new entry, other lines continue the
// current one.
func (n *Normalizer) splitEntries(block string) []string {
	var entries []string
	var cur []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(cur) > 0 && n.patterns.MatchesTime(foldText(line)) {
			entries = append(entries, strings.Join(cur, "\n"))
			cur = nil
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		entries = append(entries, strings.Join(cur, "\n"))
	}
	return entries
}

func (n *Normalizer) mine(s string) *models.Record {
	return n.patterns.MineText(s)
}
