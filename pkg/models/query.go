package models

import "time"

// QueryKind discriminates traffic and system log queries.
type QueryKind string

const (
	KindTraffic QueryKind = "traffic"
	KindSystem  QueryKind = "system"
)

// LogQuery is a traffic or system log request. Exactly one of Traffic or
// System is set, matching Kind.
type LogQuery struct {
	Kind    QueryKind     `json:"kind"`
	Traffic *TrafficQuery `json:"traffic,omitempty"`
	System  *SystemQuery  `json:"system,omitempty"`
}

// TrafficQuery filters traffic logs by optional source and destination address.
type TrafficQuery struct {
	SrcAddr  string        `json:"src_addr,omitempty"`
	DstAddr  string        `json:"dst_addr,omitempty"`
	Limit    int           `json:"limit,omitempty"`
	Lookback time.Duration `json:"lookback,omitempty"`
}

// SystemQuery filters system logs by severity.
type SystemQuery struct {
	Severity string        `json:"severity"`
	Limit    int           `json:"limit,omitempty"`
	Lookback time.Duration `json:"lookback,omitempty"`
}

// NewTrafficQuery wraps q as a LogQuery.
func NewTrafficQuery(q TrafficQuery) LogQuery {
	return LogQuery{Kind: KindTraffic, Traffic: &q}
}

// NewSystemQuery wraps q as a LogQuery.
func NewSystemQuery(q SystemQuery) LogQuery {
	return LogQuery{Kind: KindSystem, System: &q}
}
