package models

import (
	"encoding/json"
	"time"
)

// Tag is a rule match annotation attached to a canonical record.
type Tag struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Tactic    string `json:"tactic,omitempty"`
	Technique string `json:"technique,omitempty"`
}

// RecordTag ties a Tag to the index of the record it matched.
type RecordTag struct {
	Record int `json:"record"`
	Tag    Tag `json:"tag"`
}

// DeviceStatus summarizes one device's retrieval outcome.
type DeviceStatus string

const (
	StatusOK          DeviceStatus = "ok"
	StatusFailed      DeviceStatus = "failed"
	StatusUnsupported DeviceStatus = "unsupported"
)

// DeviceResult is one slot of an orchestrated run. Records is nil when Err is set.
type DeviceResult struct {
	Device   string
	Vendor   Vendor
	Kind     QueryKind
	Status   DeviceStatus
	Records  []CanonicalRecord
	Tags     []RecordTag
	Err      error
	Duration time.Duration
}

type deviceResultJSON struct {
	Device     string            `json:"device"`
	Vendor     Vendor            `json:"vendor,omitempty"`
	Kind       QueryKind         `json:"kind"`
	Status     DeviceStatus      `json:"status"`
	Columns    []string          `json:"columns"`
	Records    []CanonicalRecord `json:"records"`
	Tags       []RecordTag       `json:"tags,omitempty"`
	Error      string            `json:"error,omitempty"`
	ErrorKind  ErrorKind         `json:"error_kind,omitempty"`
	DurationMS int64             `json:"duration_ms"`
}

// MarshalJSON flattens the error into strings.
func (r DeviceResult) MarshalJSON() ([]byte, error) {
	out := deviceResultJSON{
		Device:     r.Device,
		Vendor:     r.Vendor,
		Kind:       r.Kind,
		Status:     r.Status,
		Columns:    ShapeFor(r.Kind).Fields(),
		Records:    r.Records,
		Tags:       r.Tags,
		DurationMS: r.Duration.Milliseconds(),
	}
	if out.Records == nil {
		out.Records = []CanonicalRecord{}
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
		out.ErrorKind = KindOf(r.Err)
	}
	return json.Marshal(out)
}
