package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu             sync.Mutex
	startedAt      time.Time
	requestCount   map[string]int64
	requestLatency map[string]time.Duration
	errorCount     map[string]int64
	scans          int64
	violations     int64
	criticalIssues int64
	lastScanAt     *time.Time
}

// RouteStat is the request counter of one route and status.
type RouteStat struct {
	Route        string  `json:"route"`
	Count        int64   `json:"count"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
}

// ErrorStat counts error responses by route and error code.
type ErrorStat struct {
	Route string `json:"route"`
	Count int64  `json:"count"`
}

// SLAScanStat aggregates violation scan outcomes.
type SLAScanStat struct {
	Scans          int64      `json:"scans"`
	Violations     int64      `json:"violations"`
	CriticalIssues int64      `json:"criticalIssues"`
	LastScanAt     *time.Time `json:"lastScanAt,omitempty"`
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	UptimeSeconds int64       `json:"uptimeSeconds"`
	Requests      []RouteStat `json:"requests"`
	Errors        []ErrorStat `json:"errors"`
	SLAScans      SLAScanStat `json:"slaScans"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		startedAt:      time.Now(),
		requestCount:   make(map[string]int64),
		requestLatency: make(map[string]time.Duration),
		errorCount:     make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, strconv.Itoa(status))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestLatency[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := pathKey(path, method, code)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordSLAScan accumulates the outcome of one violation scan.
func (m *Metrics) RecordSLAScan(at time.Time, violations, criticalIssues int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans++
	m.violations += int64(violations)
	m.criticalIssues += int64(criticalIssues)
	m.lastScanAt = &at
}

// Snapshot copies the counters, sorted by route key.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		UptimeSeconds: int64(time.Since(m.startedAt).Seconds()),
		Requests:      make([]RouteStat, 0, len(m.requestCount)),
		Errors:        make([]ErrorStat, 0, len(m.errorCount)),
		SLAScans: SLAScanStat{
			Scans:          m.scans,
			Violations:     m.violations,
			CriticalIssues: m.criticalIssues,
			LastScanAt:     m.lastScanAt,
		},
	}
	for key, count := range m.requestCount {
		avg := float64(m.requestLatency[key].Microseconds()) / float64(count) / 1000
		snap.Requests = append(snap.Requests, RouteStat{Route: key, Count: count, AvgLatencyMs: avg})
	}
	for key, count := range m.errorCount {
		snap.Errors = append(snap.Errors, ErrorStat{Route: key, Count: count})
	}
	sort.Slice(snap.Requests, func(i, j int) bool { return snap.Requests[i].Route < snap.Requests[j].Route })
	sort.Slice(snap.Errors, func(i, j int) bool { return snap.Errors[i].Route < snap.Errors[j].Route })
	return snap
}

func pathKey(path, method, suffix string) string {
	return path + "|" + method + "|" + suffix
}
