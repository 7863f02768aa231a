// Package monitoring collects in-process counters for the assessment service.
package monitoring

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pregnancycare-risk-service/internal/domain"
)

// Collector counts assessment outcomes and latency. It implements
// service.MetricsRecorder and is safe for concurrent use.
type Collector struct {
	logger  *logrus.Logger
	started time.Time

	assessments    atomic.Int64
	storageFailure atomic.Int64
	cacheFailure   atomic.Int64

	mutex     sync.Mutex
	byLevel   map[domain.RiskLevel]int64
	failures  map[string]int64
	latency   LatencySummary
	lastLevel domain.RiskLevel
}

// LatencySummary summarizes assessment durations in milliseconds.
type LatencySummary struct {
	Count  int64   `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	sumMs  float64
}

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	UptimeSeconds       float64                    `json:"uptime_seconds"`
	AssessmentsTotal    int64                      `json:"assessments_total"`
	AssessmentsByLevel  map[domain.RiskLevel]int64 `json:"assessments_by_level"`
	FailuresByOperation map[string]int64           `json:"failures_by_operation"`
	StorageFailures     int64                      `json:"storage_failures"`
	CacheFailures       int64                      `json:"cache_failures"`
	AssessmentLatency   LatencySummary             `json:"assessment_latency"`
	LastRiskLevel       domain.RiskLevel           `json:"last_risk_level,omitempty"`
}

// NewCollector creates a new metrics collector
func NewCollector(logger *logrus.Logger) *Collector {
	byLevel := make(map[domain.RiskLevel]int64, len(domain.RiskLevels()))
	for _, l := range domain.RiskLevels() {
		byLevel[l] = 0
	}
	return &Collector{
		logger:   logger,
		started:  time.Now(),
		byLevel:  byLevel,
		failures: make(map[string]int64),
	}
}

// RecordAssessment counts a completed assessment.
func (c *Collector) RecordAssessment(record *domain.AssessmentRecord, duration time.Duration) {
	c.assessments.Add(1)
	ms := float64(duration) / float64(time.Millisecond)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.byLevel[record.RiskLevel]++
	c.lastLevel = record.RiskLevel

	l := &c.latency
	if l.Count == 0 || ms < l.MinMs {
		l.MinMs = ms
	}
	if ms > l.MaxMs {
		l.MaxMs = ms
	}
	l.Count++
	l.sumMs += ms
	l.MeanMs = l.sumMs / float64(l.Count)
}

// RecordFailure counts a failed operation.
func (c *Collector) RecordFailure(operation string) {
	c.mutex.Lock()
	c.failures[operation]++
	c.mutex.Unlock()
}

// RecordStorageFailure counts a failed background save.
func (c *Collector) RecordStorageFailure() {
	c.storageFailure.Add(1)
}

// RecordCacheFailure counts a failed background cache write.
func (c *Collector) RecordCacheFailure() {
	c.cacheFailure.Add(1)
}

// Snapshot returns a copy of the current metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	byLevel := make(map[domain.RiskLevel]int64, len(c.byLevel))
	for k, v := range c.byLevel {
		byLevel[k] = v
	}
	failures := make(map[string]int64, len(c.failures))
	for k, v := range c.failures {
		failures[k] = v
	}

	return Snapshot{
		UptimeSeconds:       time.Since(c.started).Seconds(),
		AssessmentsTotal:    c.assessments.Load(),
		AssessmentsByLevel:  byLevel,
		FailuresByOperation: failures,
		StorageFailures:     c.storageFailure.Load(),
		CacheFailures:       c.cacheFailure.Load(),
		AssessmentLatency:   c.latency,
		LastRiskLevel:       c.lastLevel,
	}
}

// LogSummary writes the current counters at info level.
func (c *Collector) LogSummary() {
	s := c.Snapshot()
	c.logger.WithFields(logrus.Fields{
		"assessments_total": s.AssessmentsTotal,
		"by_level":          s.AssessmentsByLevel,
		"failures":          s.FailuresByOperation,
		"storage_failures":  s.StorageFailures,
		"cache_failures":    s.CacheFailures,
		"mean_latency_ms":   s.AssessmentLatency.MeanMs,
	}).Info("Assessment metrics summary")
}
