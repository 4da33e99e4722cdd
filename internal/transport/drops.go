package transport

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nekodylan/OVL-MD/internal/metrics"
)

const (
	dropSummaryInterval = 5 * time.Second
	dropSampleMaxLen    = 96
)

var longTokenRe = regexp.MustCompile(`[A-Za-z0-9+/_=\-]{40,}`)

type frameSummary struct {
	kind   string
	sample string
}

type dropReasonSummary struct {
	total       int
	byKind      map[string]int
	sampleByKey map[string]string
}

// dropLogger aggregates dropped frames and emits one summary line per reason per
// interval instead of one line per frame.
type dropLogger struct {
	log      *zap.Logger
	metrics  *metrics.Metrics
	interval time.Duration

	mu       sync.Mutex
	nextEmit time.Time
	reasons  map[string]*dropReasonSummary
}

func newDropLogger(now time.Time, log *zap.Logger, m *metrics.Metrics, interval time.Duration) *dropLogger {
	if interval <= 0 {
		interval = dropSummaryInterval
	}
	return &dropLogger{
		log:      log,
		metrics:  m,
		interval: interval,
		nextEmit: now.Add(interval),
		reasons:  make(map[string]*dropReasonSummary),
	}
}

func (d *dropLogger) note(now time.Time, reason string, raw []byte) {
	if d == nil {
		return
	}
	summary := summarizeFrame(raw)
	d.metrics.IncGatewayDrop(reason)
	d.log.Debug("dropped frame",
		zap.String("reason", reason),
		zap.String("kind", summary.kind),
		zap.String("sample", summary.sample),
	)

	d.mu.Lock()
	defer d.mu.Unlock()
	entry := d.reasons[reason]
	if entry == nil {
		entry = &dropReasonSummary{
			byKind:      make(map[string]int),
			sampleByKey: make(map[string]string),
		}
		d.reasons[reason] = entry
	}
	entry.total++
	entry.byKind[summary.kind]++
	if _, ok := entry.sampleByKey[summary.kind]; !ok {
		entry.sampleByKey[summary.kind] = summary.sample
	}

	if !now.Before(d.nextEmit) {
		d.flushLocked(now)
	}
}

func (d *dropLogger) flush(now time.Time) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushLocked(now)
}

func (d *dropLogger) flushLocked(now time.Time) {
	for _, reason := range sortedKeys(d.reasons) {
		rs := d.reasons[reason]
		if rs == nil || rs.total == 0 {
			continue
		}
		d.log.Info("dropped_"+reason,
			zap.Int("total", rs.total),
			zap.String("kinds", formatCounts(rs.byKind)),
			zap.String("samples", formatSamples(rs.sampleByKey)),
		)
	}
	clear(d.reasons)
	d.nextEmit = now.Add(d.interval)
}

// summarizeFrame names a frame by type and event or method, and keeps a short
// redacted excerpt of it.
func summarizeFrame(raw []byte) frameSummary {
	var probe struct {
		Type   string `json:"type"`
		Event  string `json:"event"`
		Method string `json:"method"`
	}
	kind := "unparsable"
	if err := json.Unmarshal(raw, &probe); err == nil {
		kind = strings.TrimSpace(probe.Type)
		if kind == "" {
			kind = "untyped"
		}
		if name := firstNonEmpty(probe.Event, probe.Method); name != "" {
			kind += ":" + name
		}
	}
	return frameSummary{kind: kind, sample: sanitizeAndTruncate(string(raw), dropSampleMaxLen)}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func sanitizeAndTruncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.Join(strings.Fields(s), " ")
	s = longTokenRe.ReplaceAllString(s, "[REDACTED]")

	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(counts))
	for _, k := range sortedKeys(counts) {
		parts = append(parts, fmt.Sprintf("%s:%d", k, counts[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func formatSamples(samples map[string]string) string {
	if len(samples) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(samples))
	for _, k := range sortedKeys(samples) {
		parts = append(parts, k+":'"+samples[k]+"'")
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
