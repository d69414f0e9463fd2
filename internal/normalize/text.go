package normalize

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"fwlog/pkg/models"
)

// foldText puts vendor text into one comparable form: composed Hangul and
// narrow ASCII (some exports use full-width brackets and digits).
func foldText(s string) string {
	return width.Fold.String(norm.NFC.String(s))
}

// NormalizeSeverity maps a vendor or locale severity token to its normalized
// level. Unknown tokens are returned lower-cased.
func (p *Patterns) NormalizeSeverity(tok string) string {
	t := strings.ToLower(strings.TrimSpace(foldText(tok)))
	if v, ok := p.SeverityAliases[t]; ok {
		return v
	}
	return t
}

// KnownSeverity reports whether tok belongs to the severity vocabulary.
func (p *Patterns) KnownSeverity(tok string) bool {
	_, ok := p.SeverityAliases[strings.ToLower(strings.TrimSpace(foldText(tok)))]
	return ok
}

// MatchesTime reports whether any timestamp pattern occurs in s.
func (p *Patterns) MatchesTime(s string) bool {
	for _, re := range p.TimePatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

type span struct{ start, end int }

// MineText extracts time, severity and message from one free-text entry.
// Missing parts are left empty.
func (p *Patterns) MineText(s string) *models.Record {
	text := foldText(s)
	var cut []span

	timeStr := ""
	for _, re := range p.TimePatterns {
		if loc := re.FindStringIndex(text); loc != nil {
			timeStr = text[loc[0]:loc[1]]
			cut = append(cut, span{loc[0], loc[1]})
			break
		}
	}

	severity := ""
	for _, sp := range p.SeverityPatterns {
		loc := sp.Expr.FindStringSubmatchIndex(text)
		if loc == nil || len(loc) < 4 || loc[2] < 0 {
			continue
		}
		if overlaps(cut, loc[2], loc[3]) {
			continue
		}
		severity = p.NormalizeSeverity(text[loc[2]:loc[3]])
		if sp.StripMatch {
			cut = append(cut, span{loc[0], loc[1]})
		} else {
			cut = append(cut, span{loc[2], loc[3]})
		}
		break
	}

	rec := models.NewRecord()
	rec.Set("time", timeStr)
	rec.Set("severity", severity)
	msg := strings.Join(strings.Fields(text), " ")
	if len(cut) > 0 {
		msg = cleanMessage(removeSpans(text, cut))
	}
	rec.Set("message", msg)
	return rec
}

func overlaps(spans []span, start, end int) bool {
	for _, s := range spans {
		if start < s.end && s.start < end {
			return true
		}
	}
	return false
}

func removeSpans(s string, spans []span) string {
	if len(spans) == 0 {
		return s
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	var b strings.Builder
	pos := 0
	for _, sp := range spans {
		if sp.start < pos {
			continue
		}
		b.WriteString(s[pos:sp.start])
		b.WriteByte(' ')
		pos = sp.end
	}
	b.WriteString(s[pos:])
	return b.String()
}

func cleanMessage(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, " :-|,;")
}
