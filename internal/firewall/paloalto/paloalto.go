// Package paloalto implements the keyed-XML log API: keygen, log job
// submission, job polling and entry extraction.
package paloalto

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"fwlog/internal/logger"
	vendor "fwlog/internal/firewall"
	"fwlog/internal/firewall/transport"
	"fwlog/pkg/models"
)

func init() {
	vendor.Register(models.VendorPaloAlto, func(o vendor.Options) vendor.Client { return New(o) })
}

// Severity levels accepted by the system log query, keyed by the UI level
// names operators type.
var severityMap = map[string]string{
	"CRITICAL":      "critical",
	"MAJOR":         "high",
	"HIGH":          "high",
	"MEDIUM":        "medium",
	"LOW":           "low",
	"INFO":          "informational",
	"INFORMATIONAL": "informational",
}

// Client talks to the keyed-XML API. It keeps no session state between calls.
type Client struct {
	opts vendor.Options
}

// New creates a client.
func New(opts vendor.Options) *Client {
	return &Client{opts: opts.WithDefaults()}
}

// BaseURL returns the API root for ep.
func BaseURL(ep models.FirewallEndpoint) string {
	if ep.BaseURL != "" {
		return ep.BaseURL
	}
	return "https://" + ep.ManagementAddress + "/api/"
}

// TrafficFilter builds the traffic query expression; empty addresses are
// left out.
func TrafficFilter(src, dst string) string {
	var parts []string
	if src = strings.TrimSpace(src); src != "" {
		parts = append(parts, fmt.Sprintf("(addr.src in %s)", src))
	}
	if dst = strings.TrimSpace(dst); dst != "" {
		parts = append(parts, fmt.Sprintf("(addr.dst in %s)", dst))
	}
	return strings.Join(parts, " and ")
}

// SystemFilter builds the severity query expression. Unknown levels fall
// back to critical.
func SystemFilter(severity string) string {
	sev, ok := severityMap[strings.ToUpper(strings.TrimSpace(severity))]
	if !ok {
		sev = "critical"
	}
	return fmt.Sprintf("(severity eq %s)", sev)
}

// FetchTrafficLog runs a traffic log job.
func (c *Client) FetchTrafficLog(ctx context.Context, ep models.FirewallEndpoint, q models.TrafficQuery) (models.RawPayload, error) {
	params := url.Values{
		"type":     {"log"},
		"log-type": {"traffic"},
		"nlogs":    {strconv.Itoa(c.nlogs(q.Limit))},
		"dir":      {"backward"},
	}
	if filter := TrafficFilter(q.SrcAddr, q.DstAddr); filter != "" {
		params.Set("query", filter)
	}
	return c.run(ctx, ep, params)
}

// FetchSystemLog runs a system log job.
func (c *Client) FetchSystemLog(ctx context.Context, ep models.FirewallEndpoint, q models.SystemQuery) (models.RawPayload, error) {
	params := url.Values{
		"type":     {"log"},
		"log-type": {"system"},
		"query":    {SystemFilter(q.Severity)},
		"nlogs":    {strconv.Itoa(c.nlogs(q.Limit))},
	}
	return c.run(ctx, ep, params)
}

func (c *Client) nlogs(limit int) int {
	if limit > 0 {
		return limit
	}
	return c.opts.MaxRows
}

func (c *Client) run(ctx context.Context, ep models.FirewallEndpoint, params url.Values) (models.RawPayload, error) {
	s := c.opts.Session(BaseURL(ep))

	key, err := keygen(ctx, s, ep.Credentials)
	if err != nil {
		return models.RawPayload{}, err
	}
	logger.Debugf("paloalto %s: key issued", ep.Name)

	params.Set("key", key)
	job, err := submit(ctx, s, params)
	if err != nil {
		return models.RawPayload{}, err
	}
	logger.Debugf("paloalto %s: job %s submitted (%s)", ep.Name, job.ID, params.Get("log-type"))

	var final *node
	err = vendor.Poll(ctx, c.opts.Poll, job, func(ctx context.Context) (models.JobStatus, string, error) {
		body, err := s.Get(ctx, "poll", "", url.Values{
			"type":   {"log"},
			"action": {"get"},
			"key":    {key},
			"jobid":  {job.ID},
		})
		if err != nil {
			return "", string(body), err
		}
		root, err := parseXML(body)
		if err != nil {
			return "", string(body), models.NewError(models.KindParseError, "poll", err).WithBody(string(body))
		}
		final = root
		return jobStatus(root.findText("status")), string(body), nil
	})
	if err != nil {
		return models.RawPayload{}, err
	}

	entries := final.findAll("log/logs/entry")
	if len(entries) == 0 {
		entries = final.findAll("entry")
	}
	rows := make([]*models.Record, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, e.record())
	}
	logger.Infof("paloalto %s: job %s finished with %d entries", ep.Name, job.ID, len(rows))
	return models.RecordsPayload(rows), nil
}

func jobStatus(s string) models.JobStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FIN":
		return models.JobDone
	case "FAIL":
		return models.JobFailed
	default:
		return models.JobActive
	}
}

func keygen(ctx context.Context, s *transport.Client, cred models.Credentials) (string, error) {
	body, err := s.Get(ctx, "keygen", "", url.Values{
		"type":     {"keygen"},
		"user":     {cred.Username},
		"password": {cred.Password},
	})
	if err != nil {
		if code := transport.StatusCode(err); code == 401 || code == 403 {
			return "", models.NewError(models.KindAuthenticationFailed, "keygen", err).WithBody(string(body))
		}
		return "", err
	}
	root, err := parseXML(body)
	if err != nil {
		return "", models.NewError(models.KindAuthenticationFailed, "keygen", fmt.Errorf("malformed response: %w", err)).WithBody(string(body))
	}
	key := root.findText("key")
	if key == "" {
		return "", models.Errorf(models.KindAuthenticationFailed, "keygen", "no key in response (status %q)", root.attr("status")).WithBody(string(body))
	}
	return key, nil
}

func submit(ctx context.Context, s *transport.Client, params url.Values) (*models.Job, error) {
	body, err := s.Get(ctx, "submit", "", params)
	if err != nil {
		return nil, err
	}
	id := ""
	if root, perr := parseXML(body); perr == nil {
		id = root.findText("job")
	}
	if id == "" {
		return nil, models.Errorf(models.KindSubmissionFailed, "submit", "no job id returned").WithBody(string(body))
	}
	return &models.Job{ID: id, Status: models.JobPending}, nil
}
