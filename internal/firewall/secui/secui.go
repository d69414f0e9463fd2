// Package secui implements the token-JSON log API: token login, log search
// start, status polling, one page fetch and the unconditional session end.
package secui

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"fwlog/internal/logger"
	vendor "fwlog/internal/firewall"
	"fwlog/internal/firewall/transport"
	"fwlog/pkg/models"
)

func init() {
	vendor.Register(models.VendorSecuiBluemax, func(o vendor.Options) vendor.Client { return New(o) })
}

const (
	logTypeSystem  = "alert"
	logTypeTraffic = "traffic_session"
	timeLayout     = "2006-01-02 15:04:05"
	totalRows      = 3
)

var (
	systemColumns  = []string{"level", "time", "module_id", "mach_id", "message"}
	trafficColumns = []string{"etime", "mach_id", "fwrule_name", "user_id", "src_ip", "dst_ip", "dst_port", "protocol", "action", "reason", "tot_bytes"}

	systemTemplate  = []string{"level", "time", "module_id", "mach_id", "message"}
	trafficTemplate = []string{"etime", "fa_rule_name", "src_ip", "dst_ip", "dst_port", "action", "reason"}
)

type loginRequest struct {
	ClientID     string `json:"ext_clnt_id"`
	ClientSecret string `json:"ext_clnt_secret"`
	Lang         string `json:"lang"`
	Force        int    `json:"force"`
}

type loginResponse struct {
	Result struct {
		APIToken string `json:"api_token"`
	} `json:"result"`
}

type filter struct {
	Key   string   `json:"key"`
	Value []string `json:"value"`
	IsNot bool     `json:"is_not"`
}

type startRequest struct {
	LogType         string   `json:"log_type"`
	STime           string   `json:"stime"`
	ETime           string   `json:"etime"`
	TotalRows       int      `json:"total_rows"`
	PageRows        int      `json:"page_rows"`
	OrderBy         string   `json:"order_by"`
	Columns         []string `json:"columns"`
	Filters         []filter `json:"filters"`
	PrintObjectName string   `json:"print_object_name,omitempty"`
}

type startResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Result  struct {
		RequestID json.RawMessage `json:"request_id"`
	} `json:"result"`
}

type statusResponse struct {
	Result struct {
		Status      string      `json:"status"`
		SearchedCnt json.Number `json:"searched_cnt"`
	} `json:"result"`
}

type pageResponse struct {
	Result struct {
		Rows    json.RawMessage `json:"rows"`
		Log     json.RawMessage `json:"log"`
		Columns []string        `json:"columns"`
	} `json:"result"`
}

// Client talks to the token-JSON API. It keeps no session state between calls.
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
		return strings.TrimRight(ep.BaseURL, "/")
	}
	return "https://" + ep.ManagementAddress
}

// FetchTrafficLog runs a traffic session search.
func (c *Client) FetchTrafficLog(ctx context.Context, ep models.FirewallEndpoint, q models.TrafficQuery) (models.RawPayload, error) {
	filters := []filter{}
	if src := strings.TrimSpace(q.SrcAddr); src != "" {
		filters = append(filters, filter{Key: "src_ip", Value: []string{src}})
	}
	if dst := strings.TrimSpace(q.DstAddr); dst != "" {
		filters = append(filters, filter{Key: "dst_ip", Value: []string{dst}})
	}
	req := c.startRequest(logTypeTraffic, q.Lookback, c.opts.TrafficLookback, trafficColumns, filters)
	req.PrintObjectName = "false"
	return c.run(ctx, ep, models.KindTraffic, req, q.Limit)
}

// FetchSystemLog runs an alert (system) log search.
func (c *Client) FetchSystemLog(ctx context.Context, ep models.FirewallEndpoint, q models.SystemQuery) (models.RawPayload, error) {
	filters := []filter{}
	if level := strings.TrimSpace(q.Severity); level != "" {
		filters = append(filters, filter{Key: "level", Value: []string{level}})
	}
	req := c.startRequest(logTypeSystem, q.Lookback, c.opts.SystemLookback, systemColumns, filters)
	return c.run(ctx, ep, models.KindSystem, req, q.Limit)
}

func (c *Client) startRequest(logType string, lookback, fallback time.Duration, columns []string, filters []filter) startRequest {
	if lookback <= 0 {
		lookback = fallback
	}
	now := c.opts.Now()
	return startRequest{
		LogType:   logType,
		STime:     now.Add(-lookback).Format(timeLayout),
		ETime:     now.Format(timeLayout),
		TotalRows: totalRows,
		PageRows:  c.opts.PageSize,
		OrderBy:   "desc",
		Columns:   append([]string(nil), columns...),
		Filters:   filters,
	}
}

func (c *Client) run(ctx context.Context, ep models.FirewallEndpoint, kind models.QueryKind, req startRequest, limit int) (models.RawPayload, error) {
	s := c.opts.Session(BaseURL(ep))
	s.SetHeader("Accept", "application/json")

	token, err := login(ctx, s, ep.Credentials)
	if err != nil {
		return models.RawPayload{}, err
	}
	s.SetHeader("Authorization", token)
	logger.Debugf("secui %s: token issued", ep.Name)

	job, err := start(ctx, s, req)
	if err != nil {
		return models.RawPayload{}, err
	}
	logger.Debugf("secui %s: request %s started (%s)", ep.Name, job.ID, req.LogType)
	defer c.teardown(ctx, s, ep, job)

	count := 0
	err = vendor.Poll(ctx, c.opts.Poll, job, func(ctx context.Context) (models.JobStatus, string, error) {
		body, err := s.Get(ctx, "status", "/api/lr/log/"+job.ID+"/status", nil)
		if err != nil {
			return "", string(body), err
		}
		var st statusResponse
		if err := json.Unmarshal(body, &st); err != nil {
			return "", string(body), models.NewError(models.KindParseError, "status", err).WithBody(string(body))
		}
		if st.Result.Status != "DONE" {
			return models.JobActive, string(body), nil
		}
		if n, err := st.Result.SearchedCnt.Int64(); err == nil {
			count = int(n)
		}
		return models.JobDone, string(body), nil
	})
	if err != nil {
		return models.RawPayload{}, err
	}

	end := c.opts.PageSize
	if limit > 0 && limit < end {
		end = limit
	}
	if count < end {
		end = count
	}
	if end <= 0 {
		logger.Infof("secui %s: request %s finished with 0 rows", ep.Name, job.ID)
		return models.RecordsPayload(nil), nil
	}

	body, err := s.Get(ctx, "page", fmt.Sprintf("/api/lr/log/%s/page/0/to/%d", job.ID, end), nil)
	if err != nil {
		return models.RawPayload{}, err
	}
	payload, err := parsePage(kind, body)
	if err != nil {
		return models.RawPayload{}, err
	}
	logger.Infof("secui %s: request %s finished with %d rows", ep.Name, job.ID, payload.Len())
	return payload, nil
}

// teardown releases the request id. It runs on every exit path once a
// request id exists, survives caller cancellation, and only logs failures.
func (c *Client) teardown(ctx context.Context, s *transport.Client, ep models.FirewallEndpoint, job *models.Job) {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.TeardownTimeout)
	defer cancel()
	if _, err := s.Delete(tctx, "end", "/api/lr/log/"+job.ID+"/end"); err != nil {
		logger.Warnf("secui %s: end request %s: %v", ep.Name, job.ID, err)
		return
	}
	logger.Debugf("secui %s: request %s released (%s)", ep.Name, job.ID, job.Status)
}

func login(ctx context.Context, s *transport.Client, cred models.Credentials) (string, error) {
	id, secret := cred.ClientID, cred.ClientSecret
	if id == "" {
		id, secret = cred.Username, cred.Password
	}
	body, err := s.PostJSON(ctx, "login", "/api/au/external/login", loginRequest{
		ClientID:     id,
		ClientSecret: secret,
		Lang:         "ko",
		Force:        1,
	})
	if err != nil {
		if code := transport.StatusCode(err); code == 401 || code == 403 {
			return "", models.NewError(models.KindAuthenticationFailed, "login", err).WithBody(string(body))
		}
		return "", err
	}
	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", models.NewError(models.KindAuthenticationFailed, "login", fmt.Errorf("malformed response: %w", err)).WithBody(string(body))
	}
	if resp.Result.APIToken == "" {
		return "", models.Errorf(models.KindAuthenticationFailed, "login", "no api_token in response").WithBody(string(body))
	}
	return resp.Result.APIToken, nil
}

func start(ctx context.Context, s *transport.Client, req startRequest) (*models.Job, error) {
	body, err := s.PostJSON(ctx, "start", "/api/lr/log/start", req)
	if err != nil {
		return nil, err
	}
	var resp startResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, models.NewError(models.KindSubmissionFailed, "start", fmt.Errorf("malformed response: %w", err)).WithBody(string(body))
	}
	if resp.Code != "ok" {
		msg := resp.Message
		if msg == "" {
			msg = "unknown error"
		}
		return nil, models.Errorf(models.KindSubmissionFailed, "start", "search not started: %s", msg).WithBody(string(body))
	}
	id := requestID(resp.Result.RequestID)
	if id == "" {
		return nil, models.Errorf(models.KindSubmissionFailed, "start", "no request id returned").WithBody(string(body))
	}
	return &models.Job{ID: id, Status: models.JobPending}, nil
}

// requestID accepts string or numeric ids.
func requestID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func parsePage(kind models.QueryKind, body []byte) (models.RawPayload, error) {
	var resp pageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.RawPayload{}, models.NewError(models.KindParseError, "page", err).WithBody(string(body))
	}
	rawRows := resp.Result.Rows
	if isNull(rawRows) {
		rawRows = resp.Result.Log
	}
	if isNull(rawRows) {
		return models.RecordsPayload(nil), nil
	}
	decoded, err := models.DecodeJSON(rawRows)
	if err != nil {
		return models.RawPayload{}, models.NewError(models.KindParseError, "page", err).WithBody(string(body))
	}
	rows, ok := decoded.([]any)
	if !ok {
		return models.PayloadOf(decoded), nil
	}

	columns := resp.Result.Columns
	if len(columns) == 0 {
		var keyed []*models.Record
		for _, r := range rows {
			if rec, ok := r.(*models.Record); ok {
				keyed = append(keyed, rec)
			}
		}
		columns = DeriveColumns(kind, keyed)
	}
	return project(columns, rows), nil
}

func isNull(raw json.RawMessage) bool {
	t := strings.TrimSpace(string(raw))
	return t == "" || t == "null"
}

// DeriveColumns orders observed row keys: template columns present in the
// rows first, then every other key in lexical order.
func DeriveColumns(kind models.QueryKind, rows []*models.Record) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		for _, k := range r.Keys() {
			seen[k] = struct{}{}
		}
	}
	template := trafficTemplate
	if kind == models.KindSystem {
		template = systemTemplate
	}
	out := make([]string, 0, len(seen))
	inTemplate := make(map[string]struct{}, len(template))
	for _, c := range template {
		inTemplate[c] = struct{}{}
		if _, ok := seen[c]; ok {
			out = append(out, c)
		}
	}
	var rest []string
	for k := range seen {
		if _, ok := inTemplate[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// project lays every row out in column order. Keyed rows read each column
// (missing ones become ""), positional rows are padded or cut to the column
// count, anything else is passed through as a scalar item.
func project(columns []string, rows []any) models.RawPayload {
	out := make([]any, 0, len(rows))
	for _, r := range rows {
		switch row := r.(type) {
		case *models.Record:
			rec := models.NewRecord()
			for _, c := range columns {
				v, ok := row.Get(c)
				if !ok || v == nil {
					v = ""
				}
				rec.Set(c, v)
			}
			out = append(out, rec)
		case []any:
			rec := models.NewRecord()
			for i, c := range columns {
				var v any = ""
				if i < len(row) && row[i] != nil {
					v = row[i]
				}
				rec.Set(c, v)
			}
			out = append(out, rec)
		default:
			out = append(out, row)
		}
	}
	return models.PayloadOf(out)
}
