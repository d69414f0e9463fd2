package normalize

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fwlog/pkg/models"
)

func recordOf(pairs ...any) *models.Record {
	r := models.NewRecord()
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(pairs[i].(string), pairs[i+1])
	}
	return r
}

func snapshot(r *models.Record) map[string]string {
	out := make(map[string]string, r.Len())
	for _, k := range r.Keys() {
		out[k] = r.String(k)
	}
	return out
}

func TestMineTextTimestampSeverityMessage(t *testing.T) {
	rec := DefaultPatterns().MineText("2025-10-20 12:34:56 [critical] disk full")
	assert.Equal(t, "2025-10-20 12:34:56", rec.String("time"))
	assert.Equal(t, "critical", rec.String("severity"))
	assert.Equal(t, "disk full", rec.String("message"))
}

func TestMineTextSyslogParenthesized(t *testing.T) {
	rec := DefaultPatterns().MineText("Oct 20 12:34:56 fw01 (warn) fan failure")
	assert.Equal(t, "Oct 20 12:34:56", rec.String("time"))
	assert.Equal(t, "warning", rec.String("severity"))
	assert.Equal(t, "fw01 fan failure", rec.String("message"))
}

func TestMineTextNoMatchLeavesFieldsEmpty(t *testing.T) {
	rec := DefaultPatterns().MineText("interface ethernet1/1 flapped")
	assert.Empty(t, rec.String("time"))
	assert.Empty(t, rec.String("severity"))
	assert.Equal(t, "interface ethernet1/1 flapped", rec.String("message"))
}

func TestNormalizeSeverity(t *testing.T) {
	p := DefaultPatterns()
	cases := map[string]string{
		"치명":          "critical",
		"FATAL":       "critical",
		"crit":        "critical",
		"Major":       "high",
		"중요":          "high",
		"warn":        "warning",
		"경고":          "warning",
		"information": "informational",
		"정보":          "informational",
		"minor":       "low",
		"custom":      "custom",
	}
	for in, want := range cases {
		assert.Equal(t, want, p.NormalizeSeverity(in), "input %q", in)
	}
}

func TestToRecordsShapes(t *testing.T) {
	n := Default()

	t.Run("homogeneous records", func(t *testing.T) {
		raw := models.RecordsPayload([]*models.Record{recordOf("a", "1"), recordOf("a", "2")})
		got := n.ToRecords(raw)
		require.Len(t, got, 2)
		assert.Equal(t, "2", got[1].String("a"))
	})

	t.Run("heterogeneous items", func(t *testing.T) {
		raw := models.ItemsPayload([]models.Item{
			models.ItemOf(recordOf("k", "v")),
			models.ItemOf([]any{"2025-10-20 12:34:56", "warn", "link", "down"}),
			models.ItemOf([]any{"not", "positional"}),
			models.ItemOf("2025-10-20 12:00:00 (info) started"),
			models.ItemOf(42),
		})
		got := n.ToRecords(raw)
		require.Len(t, got, 5)
		assert.Equal(t, "v", got[0].String("k"))

		assert.Equal(t, "2025-10-20 12:34:56", got[1].String("time"))
		assert.Equal(t, "warning", got[1].String("severity"))
		assert.Equal(t, "link down", got[1].String("message"))

		assert.Equal(t, "not positional", got[2].String("message"))
		assert.Equal(t, "informational", got[3].String("severity"))
		assert.Equal(t, "started", got[3].String("message"))
		assert.Equal(t, "42", got[4].String("message"))
	})

	t.Run("single record", func(t *testing.T) {
		got := n.ToRecords(models.RecordPayload(recordOf("x", "y")))
		require.Len(t, got, 1)
		assert.Equal(t, "y", got[0].String("x"))
	})

	t.Run("json string", func(t *testing.T) {
		got := n.ToRecords(models.TextPayload(`[{"b":2,"a":1},{"a":3}]`))
		require.Len(t, got, 2)
		assert.Equal(t, []string{"b", "a"}, got[0].Keys())
		assert.Equal(t, "3", got[1].String("a"))
	})

	t.Run("json object string", func(t *testing.T) {
		got := n.ToRecords(models.TextPayload(`{"severity":"high","msg":"x"}`))
		require.Len(t, got, 1)
		assert.Equal(t, "high", got[0].String("severity"))
	})

	t.Run("key value blocks", func(t *testing.T) {
		text := "time: 2025-10-20 12:34:56\nseverity: high\nmessage: cpu hot\n\nsrc=10.0.0.1\ndst=10.0.0.2"
		got := n.ToRecords(models.TextPayload(text))
		require.Len(t, got, 2)
		assert.Equal(t, "2025-10-20 12:34:56", got[0].String("time"))
		assert.Equal(t, "cpu hot", got[0].String("message"))
		assert.Equal(t, "10.0.0.2", got[1].String("dst"))
		assert.NotEmpty(t, got[1].String(RawKey))
	})

	t.Run("json scalars", func(t *testing.T) {
		for _, text := range []string{"null", "42", "true"} {
			assert.Empty(t, n.ToRecords(models.TextPayload(text)), text)
		}
		assert.Empty(t, n.System(models.TextPayload("null")))
	})

	t.Run("key value pairs on one line", func(t *testing.T) {
		text := "src=10.0.0.1 dst=10.0.0.2 dport=443 action=deny rule=Block Out"
		got := n.ToRecords(models.TextPayload(text))
		require.Len(t, got, 1)
		assert.Equal(t, "10.0.0.1", got[0].String("src"))
		assert.Equal(t, "10.0.0.2", got[0].String("dst"))
		assert.Equal(t, "443", got[0].String("dport"))
		assert.Equal(t, "deny", got[0].String("action"))
		assert.Equal(t, "Block Out", got[0].String("rule"))

		traffic := n.Traffic(models.TextPayload(text))
		require.Len(t, traffic, 1)
		assert.Equal(t, "10.0.0.1", traffic[0].Get("src"))
		assert.Equal(t, "deny", traffic[0].Get("action"))
	})

	t.Run("colon values stay whole", func(t *testing.T) {
		got := n.ToRecords(models.TextPayload("message: Error: disk full"))
		require.Len(t, got, 1)
		assert.Equal(t, "Error: disk full", got[0].String("message"))
	})

	t.Run("plain text entries", func(t *testing.T) {
		text := "2025-10-20 12:34:56 [high] first\ncontinued line\n2025-10-20 12:35:00 [low] second"
		got := n.ToRecords(models.TextPayload(text))
		require.Len(t, got, 2)
		assert.Equal(t, "first continued line", got[0].String("message"))
		assert.Equal(t, "low", got[1].String("severity"))
	})

	t.Run("empty and unknown", func(t *testing.T) {
		assert.Empty(t, n.ToRecords(models.TextPayload("   ")))
		assert.Empty(t, n.ToRecords(models.RawPayload{}))
		assert.Empty(t, n.ToRecords(models.PayloadOf(3.5)))
	})
}

func TestFlattenNested(t *testing.T) {
	r := recordOf("a", "1", "b", map[string]any{"c": "2", "d": map[string]any{"e": "3"}})
	flat := Flatten(r)
	assert.Equal(t, []string{"a", "b.c", "b.d.e"}, flat.Keys())
	assert.Equal(t, "3", flat.String("b.d.e"))
}

func TestResolveAliasesNormalizedKeys(t *testing.T) {
	n := Default()
	in := recordOf(
		"dstIP", "10.0.0.2",
		"src-ip", "10.0.0.1",
		"dst-port", 443,
		"nested", map[string]any{"rule_name": "r1"},
	)
	got := n.ResolveAliases([]*models.Record{in}, n.Columns(models.KindTraffic))
	require.Len(t, got, 1)
	assert.Equal(t, "10.0.0.1", got[0].String("src"))
	assert.Equal(t, "10.0.0.2", got[0].String("dst"))
	assert.Equal(t, "443", got[0].String("dport"))
	assert.Equal(t, "r1", got[0].String("rule"))
	assert.Empty(t, got[0].String("app"))

	_, touched := in.Get("src")
	assert.False(t, touched, "input must not be modified")
}

func TestResolveAliasesIdempotent(t *testing.T) {
	n := Default()
	inputs := []*models.Record{
		recordOf("receive_time", "2025/10/20 12:00:00", "source_ip", "1.1.1.1", "application", "dns"),
		recordOf("log", map[string]any{"src": map[string]any{"ip": "2.2.2.2"}}, "action_name", "deny"),
		recordOf("message", "nothing to alias"),
	}
	once := n.ResolveAliases(inputs, n.Columns(models.KindTraffic))
	twice := n.ResolveAliases(once, n.Columns(models.KindTraffic))
	require.Len(t, twice, len(once))
	for i := range once {
		if diff := cmp.Diff(snapshot(once[i]), snapshot(twice[i])); diff != "" {
			t.Fatalf("record %d changed on second pass (-once +twice):\n%s", i, diff)
		}
		assert.Equal(t, once[i].Keys(), twice[i].Keys())
	}
}

func TestMineFromMessage(t *testing.T) {
	n := Default()
	in := recordOf(
		"src", "1.1.1.1",
		"message", "allowed tcp 10.0.0.1 -> 192.168.1.5 dport=443 rule=Allow Web app=web-browsing proto=tcp",
	)
	got := n.MineFromMessage([]*models.Record{in})
	require.Len(t, got, 1)
	want := map[string]string{
		"src":      "1.1.1.1",
		"dst":      "192.168.1.5",
		"dport":    "443",
		"rule":     "Allow Web",
		"app":      "web-browsing",
		"action":   "allow",
		"protocol": "tcp",
	}
	for f, v := range want {
		assert.Equal(t, v, got[0].String(f), "field %s", f)
	}
}

func TestMineFromMessagePrefersLabelledAction(t *testing.T) {
	got := Default().MineFromMessage([]*models.Record{recordOf("msg", "rule=Allow Web action=deny")})
	assert.Equal(t, "deny", got[0].String("action"))
	assert.Equal(t, "Allow Web", got[0].String("rule"))
}

func TestMineFromMessageKoreanAction(t *testing.T) {
	got := Default().MineFromMessage([]*models.Record{recordOf("message", "10.1.1.1 10.2.2.2 차단")})
	assert.Equal(t, "block", got[0].String("action"))
	assert.Equal(t, "10.1.1.1", got[0].String("src"))
	assert.Equal(t, "10.2.2.2", got[0].String("dst"))
}

func TestMineFromMessageNeverOverwrites(t *testing.T) {
	n := Default()
	msg := "deny udp 10.9.9.9 10.8.8.8 port 53 policy: block-dns service=dns proto=udp"
	inputs := []*models.Record{
		recordOf("src", "a", "dst", "b", "dport", "c", "app", "d", "protocol", "e", "action", "f", "rule", "g", "message", msg),
		recordOf("dst", "keep", "rule", "keep-rule", "message", msg),
		recordOf("action", " ", "message", msg),
	}
	out := n.MineFromMessage(inputs)
	require.Len(t, out, len(inputs))
	for i, in := range inputs {
		for _, f := range models.TrafficShape.Fields() {
			if v := in.String(f); v != "" {
				assert.Equal(t, v, out[i].String(f), "record %d field %s", i, f)
			}
		}
	}
	assert.Equal(t, "10.9.9.9", out[1].String("src"))
	assert.Equal(t, "53", out[1].String("dport"))
	assert.Equal(t, "dns", out[1].String("app"))
	assert.Equal(t, "udp", out[1].String("protocol"))
	assert.Equal(t, "deny", out[1].String("action"))
}

func TestIsHeaderLike(t *testing.T) {
	n := Default()
	cases := []struct {
		msg  string
		want bool
	}{
		{"----------", true},
		{"==========", true},
		{"columns: time, severity, message", true},
		{"Headers=time|src|dst", true},
		{"time severity message", true},
		{"Time | Severity | Message", true},
		{"time 12 severity message", false},
		{"disk full", false},
		{"message", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, n.IsHeaderLike(tc.msg), "message %q", tc.msg)
	}
}

func TestSystemDropsBanners(t *testing.T) {
	raw := models.ItemsPayload([]models.Item{
		models.ItemOf("time severity message"),
		models.ItemOf("-----------"),
		models.ItemOf("2025-10-20 12:34:56 [critical] disk full"),
		models.ItemOf("=========="),
		models.ItemOf("error count 3 time severity"),
	})
	got := Default().System(raw)
	require.Len(t, got, 2)
	if diff := cmp.Diff([]string{"2025-10-20 12:34:56", "critical", "disk full"}, got[0].Values()); diff != "" {
		t.Fatalf("first record mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "error count 3 time severity", got[1].Get("message"))
}

func TestSystemKeepsHeaderLikeMessageWithTime(t *testing.T) {
	raw := models.RecordsPayload([]*models.Record{
		recordOf("time_generated", "2025/10/20 01:02:03", "severity", "MAJOR", "opaque", "time severity message"),
		recordOf("message", "time severity message"),
	})
	got := Default().System(raw)
	require.Len(t, got, 1)
	assert.Equal(t, "high", got[0].Get("severity"))
	assert.Equal(t, "time severity message", got[0].Get("message"))
}

func TestTrafficCanonicalOrder(t *testing.T) {
	raw := models.RecordsPayload([]*models.Record{
		recordOf("receive_time", "2025/10/20 12:00:00", "src", "10.0.0.1", "dst", "8.8.8.8",
			"dport", "53", "app", "dns", "proto", "udp", "action", "allow", "rule", "r1"),
		recordOf("etime", "2025-10-20 12:00:01", "src_ip", "10.0.0.2", "dst_ip", "1.1.1.1",
			"dst_port", "443", "fwrule_name", "web", "action", "deny"),
	})
	got := Default().Traffic(raw)
	require.Len(t, got, 2)
	want := [][]string{
		{"2025/10/20 12:00:00", "10.0.0.1", "8.8.8.8", "53", "dns", "udp", "allow", "r1"},
		{"2025-10-20 12:00:01", "10.0.0.2", "1.1.1.1", "443", "", "", "deny", "web"},
	}
	for i := range want {
		if diff := cmp.Diff(want[i], got[i].Values()); diff != "" {
			t.Fatalf("record %d (-want +got):\n%s", i, diff)
		}
	}
}

func TestExtraAliases(t *testing.T) {
	traffic := DefaultTrafficColumns().WithExtra(map[string][]string{"src": {"client_addr"}, "bogus": {"x"}})
	n := New(nil, traffic, nil)
	got := n.Traffic(models.RecordPayload(recordOf("client_addr", "172.16.0.9")))
	require.Len(t, got, 1)
	assert.Equal(t, "172.16.0.9", got[0].Get("src"))
}
