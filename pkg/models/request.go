package models

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// ErrInvalidRequest marks a malformed remote query request.
var ErrInvalidRequest = errors.New("invalid query request")

// QueryRequest is the wire form of a remote query, shared by the Redis
// queue and the HTTP API. Devices are named explicitly, or for traffic
// queries selected by the (src, dst) pair.
type QueryRequest struct {
	ID          string    `json:"id,omitempty"`
	Kind        QueryKind `json:"kind"`
	Device      string    `json:"device,omitempty"`
	Devices     []string  `json:"devices,omitempty"`
	Src         string    `json:"src,omitempty"`
	Dst         string    `json:"dst,omitempty"`
	Severity    string    `json:"severity,omitempty"`
	Limit       int       `json:"limit,omitempty"`
	ReplyTo     string    `json:"reply_to,omitempty"`
	CallbackURL string    `json:"callback_url,omitempty"`
}

// Names returns the explicitly requested devices, Device first.
func (r QueryRequest) Names() []string {
	var out []string
	if d := strings.TrimSpace(r.Device); d != "" {
		out = append(out, d)
	}
	for _, d := range r.Devices {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// Matched reports whether devices are to be selected from src and dst.
func (r QueryRequest) Matched() bool {
	return r.Kind == KindTraffic && len(r.Names()) == 0
}

// Validate checks the request shape.
func (r QueryRequest) Validate() error {
	if r.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidRequest, r.Limit)
	}
	switch r.Kind {
	case KindTraffic:
		for _, a := range []string{r.Src, r.Dst} {
			if a = strings.TrimSpace(a); a != "" {
				if _, err := netip.ParseAddr(a); err != nil {
					return fmt.Errorf("%w: bad address %q", ErrInvalidRequest, a)
				}
			}
		}
		if r.Matched() && (strings.TrimSpace(r.Src) == "" || strings.TrimSpace(r.Dst) == "") {
			return fmt.Errorf("%w: traffic query needs a device or both src and dst", ErrInvalidRequest)
		}
	case KindSystem:
		if len(r.Names()) == 0 {
			return fmt.Errorf("%w: system query needs a device", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, r.Kind)
	}
	return nil
}

// Query converts the request to a LogQuery.
func (r QueryRequest) Query() LogQuery {
	if r.Kind == KindSystem {
		return NewSystemQuery(SystemQuery{Severity: strings.TrimSpace(r.Severity), Limit: r.Limit})
	}
	return NewTrafficQuery(TrafficQuery{SrcAddr: strings.TrimSpace(r.Src), DstAddr: strings.TrimSpace(r.Dst), Limit: r.Limit})
}

// QueryResponse is the reply to a QueryRequest.
type QueryResponse struct {
	ID          string         `json:"id"`
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
	ErrorKind   ErrorKind      `json:"error_kind,omitempty"`
	Results     []DeviceResult `json:"results"`
	CompletedAt time.Time      `json:"completed_at"`
}

// NewQueryResponse builds a reply. A non-nil err marks the whole request
// as failed; per-device failures stay inside results.
func NewQueryResponse(id string, results []DeviceResult, err error) QueryResponse {
	resp := QueryResponse{ID: id, Status: "ok", Results: results, CompletedAt: time.Now().UTC()}
	if resp.Results == nil {
		resp.Results = []DeviceResult{}
	}
	if err != nil {
		resp.Status = "error"
		resp.Error = err.Error()
		resp.ErrorKind = KindOf(err)
	}
	return resp
}
