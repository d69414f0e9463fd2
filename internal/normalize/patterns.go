package normalize

import (
	"regexp"
	"strings"
)

// SeverityPattern locates a severity token in free text. The token is
// capture group 1. When StripMatch is set the whole match (brackets
// included) is removed from the message; otherwise only the token is.
type SeverityPattern struct {
	Expr       *regexp.Regexp
	StripMatch bool
}

// Patterns holds every regex list and vocabulary table the normalizer uses.
// A Patterns value is built once and never mutated afterwards, so one
// instance is shared by all concurrent retrievals.
type Patterns struct {
	// TimePatterns are tried in order; the first that matches anywhere wins.
	TimePatterns []*regexp.Regexp
	// SeverityPatterns are tried in order: bracketed, parenthesized, bare word.
	SeverityPatterns []SeverityPattern
	// SeverityAliases maps lower-cased vendor/locale tokens to normalized levels.
	SeverityAliases map[string]string

	// BlockSplit separates text exports into blocks.
	BlockSplit *regexp.Regexp
	// KeyValueLine matches `key: value` and `key=value` lines.
	KeyValueLine *regexp.Regexp
	// KeyValuePair locates each `key=` of a line carrying several pairs.
	KeyValuePair *regexp.Regexp

	// SeparatorLine, HeaderLabel and HeaderTokens drive banner detection.
	SeparatorLine   *regexp.Regexp
	HeaderLabel     *regexp.Regexp
	HeaderSplit     *regexp.Regexp
	HeaderTokens    map[string]struct{}
	HeaderMinTokens int
	HeaderRatio     float64

	// MessageKeys are the free-text fields mined for traffic attributes.
	MessageKeys []string

	IPv4          *regexp.Regexp
	Port          *regexp.Regexp
	Rule          *regexp.Regexp
	App           *regexp.Regexp
	Protocol      *regexp.Regexp
	ActionLabel   *regexp.Regexp
	Action        *regexp.Regexp
	ActionAliases map[string]string
	// NextLabel marks where a labelled trailing phrase runs into the next label.
	NextLabel *regexp.Regexp
}

// RawKey holds the original text of a record derived from a text block.
const RawKey = "_raw"

var severityVocabulary = []string{
	"informational", "information", "critical", "warning", "medium", "major", "minor",
	"fatal", "crit", "high", "warn", "info", "low",
	"치명", "중요", "경고", "정보",
}

// DefaultPatterns returns the built-in tables.
func DefaultPatterns() *Patterns {
	vocab := strings.Join(severityVocabulary, "|")
	return &Patterns{
		TimePatterns: []*regexp.Regexp{
			regexp.MustCompile(`\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}(?:\.\d+)?`),
			regexp.MustCompile(`\d{4}/\d{2}/\d{2}[ T]\d{2}:\d{2}:\d{2}(?:\.\d+)?`),
			regexp.MustCompile(`[A-Z][a-z]{2}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}`),
			regexp.MustCompile(`\d{2}/\d{2}/\d{4}\s+\d{2}:\d{2}:\d{2}`),
		},
		SeverityPatterns: []SeverityPattern{
			{Expr: regexp.MustCompile(`(?i)\[\s*(` + vocab + `)\s*\]`), StripMatch: true},
			{Expr: regexp.MustCompile(`(?i)\(\s*(` + vocab + `)\s*\)`), StripMatch: true},
			{Expr: regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(` + vocab + `)(?:$|[^\p{L}\p{N}_])`)},
		},
		SeverityAliases: map[string]string{
			"critical": "critical", "crit": "critical", "fatal": "critical", "치명": "critical",
			"high": "high", "major": "high", "중요": "high",
			"medium": "medium",
			"low": "low", "minor": "low",
			"warning": "warning", "warn": "warning", "경고": "warning",
			"info": "informational", "informational": "informational", "information": "informational", "정보": "informational",
		},

		BlockSplit:   regexp.MustCompile(`\n[ \t\r]*\n`),
		KeyValueLine: regexp.MustCompile(`^\s*([A-Za-z_][\w\-.\[\]/]*)\s*[:=]\s*(.*?)\s*$`),
		KeyValuePair: regexp.MustCompile(`(?:^|\s)([A-Za-z_][\w\-.]*)=`),

		SeparatorLine: regexp.MustCompile(`^[-=_*#~+|\s]{3,}$`),
		HeaderLabel:   regexp.MustCompile(`^\s*(?:columns?|headers?)\s*[:=]`),
		HeaderSplit:   regexp.MustCompile(`[^a-z0-9_]+`),
		HeaderTokens: tokenSet(
			"time", "time_generated", "receive_time", "event_time", "etime",
			"severity", "level", "message", "msg", "opaque", "description", "detail",
			"src", "dst", "dport", "app", "action", "rule", "source", "destination",
		),
		HeaderMinTokens: 2,
		HeaderRatio:     0.6,

		MessageKeys: []string{"message", "msg", "opaque", "description", "detail", RawKey},

		IPv4:        regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
		Port:        regexp.MustCompile(`(?i)\b(?:d(?:st)?[_ -]?)?port\s*[:=]?\s*(\d{1,5})\b`),
		Rule:        regexp.MustCompile(`(?i)\b(?:rule|policy)(?:[_ -]?name)?\s*[:=]\s*"?([^",;|]+)`),
		App:         regexp.MustCompile(`(?i)\b(?:app|application|service)(?:[_ -]?name)?\s*[:=]\s*"?([^",;|]+)`),
		Protocol:    regexp.MustCompile(`(?i)\b(?:protocol|proto)\s*[:=]?\s*([a-z][a-z0-9-]*|\d{1,3})\b`),
		ActionLabel: regexp.MustCompile(`(?i)\baction(?:[_ -]?name)?\s*[:=]\s*"?([\p{L}\p{N}_-]+)`),
		Action:      regexp.MustCompile(`(?i)\b(allowed|allow|permitted|permit|accepted|accept|denied|deny|dropped|drop|blocked|block|reset)\b|(허용|차단|거부|드롭)`),
		ActionAliases: map[string]string{
			"allowed": "allow", "permitted": "permit", "accepted": "accept",
			"denied": "deny", "dropped": "drop", "blocked": "block",
			"허용": "allow", "차단": "block", "거부": "deny", "드롭": "drop",
		},
		NextLabel: regexp.MustCompile(`\s+[A-Za-z_][\w.-]*\s*[:=]`),
	}
}

func tokenSet(tokens ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		out[t] = struct{}{}
	}
	return out
}
