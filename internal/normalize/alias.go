package normalize

import (
	"strings"
	"unicode"

	"fwlog/pkg/models"
)

// Flatten expands nested maps into dotted-path keys ("log.src.ip") so nested
// vendor payloads can be probed like flat ones. Key order is preserved.
func Flatten(r *models.Record) *models.Record {
	out := models.NewRecord()
	flattenInto(out, "", r)
	return out
}

func flattenInto(out *models.Record, prefix string, r *models.Record) {
	for _, k := range r.Keys() {
		v, _ := r.Get(k)
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch val := v.(type) {
		case *models.Record:
			flattenInto(out, path, val)
		case map[string]any:
			flattenInto(out, path, models.RecordFromMap(val))
		default:
			out.Set(path, val)
		}
	}
}

// asciiKey strips everything but ASCII letters and digits and lower-cases
// the rest, so dst_ip, dstIP and dst-ip compare equal.
func asciiKey(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// keyIndex maps normalized keys (whole path and leaf segment) to the record
// keys carrying them, in record order.
type keyIndex struct {
	full map[string][]string
	leaf map[string][]string
}

func indexKeys(r *models.Record) keyIndex {
	idx := keyIndex{full: make(map[string][]string), leaf: make(map[string][]string)}
	for _, k := range r.Keys() {
		nk := asciiKey(k)
		idx.full[nk] = append(idx.full[nk], k)
		if i := strings.LastIndex(k, "."); i >= 0 {
			leaf := asciiKey(k[i+1:])
			idx.leaf[leaf] = append(idx.leaf[leaf], k)
		}
	}
	return idx
}

func populated(r *models.Record, key string) (string, bool) {
	v := strings.TrimSpace(r.String(key))
	return v, v != ""
}

// probe returns the first non-empty value under alias, trying the exact key,
// then keys whose normalized form matches, then dotted paths whose leaf
// matches.
func probe(r *models.Record, idx keyIndex, alias string) (string, bool) {
	if v, ok := populated(r, alias); ok {
		return v, true
	}
	na := asciiKey(alias)
	if na == "" {
		return "", false
	}
	for _, k := range idx.full[na] {
		if v, ok := populated(r, k); ok {
			return v, true
		}
	}
	for _, k := range idx.leaf[na] {
		if v, ok := populated(r, k); ok {
			return v, true
		}
	}
	return "", false
}

// ResolveAliases fills every canonical field of spec that is not already
// populated from the first non-empty alias. Records are flattened first and
// returned as new values; inputs are not modified.
func (n *Normalizer) ResolveAliases(records []*models.Record, spec ColumnSpec) []*models.Record {
	out := make([]*models.Record, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		flat := Flatten(r)
		idx := indexKeys(flat)
		for _, col := range spec {
			if _, ok := populated(flat, col.Field); ok {
				continue
			}
			for _, alias := range col.Aliases {
				if v, ok := probe(flat, idx, alias); ok {
					flat.Set(col.Field, v)
					break
				}
			}
		}
		out = append(out, flat)
	}
	return out
}
