package monitoring

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/pregnancycare-risk-service/internal/domain"
	"github.com/pregnancycare-risk-service/internal/service"
)

var _ service.MetricsRecorder = (*Collector)(nil)

func recordAt(level domain.RiskLevel) *domain.AssessmentRecord {
	return &domain.AssessmentRecord{OverallAssessment: domain.OverallAssessment{RiskLevel: level}}
}

func TestCollector_Snapshot(t *testing.T) {
	c := NewCollector(logrus.New())

	c.RecordAssessment(recordAt(domain.RiskHigh), 10*time.Millisecond)
	c.RecordAssessment(recordAt(domain.RiskLow), 30*time.Millisecond)
	c.RecordFailure("assess")
	c.RecordFailure("assess")
	c.RecordFailure("outcome")
	c.RecordStorageFailure()
	c.RecordCacheFailure()

	s := c.Snapshot()
	assert.Equal(t, int64(2), s.AssessmentsTotal)
	assert.Equal(t, int64(1), s.AssessmentsByLevel[domain.RiskHigh])
	assert.Equal(t, int64(0), s.AssessmentsByLevel[domain.RiskCritical])
	assert.Equal(t, int64(2), s.FailuresByOperation["assess"])
	assert.Equal(t, int64(1), s.StorageFailures)
	assert.Equal(t, int64(1), s.CacheFailures)
	assert.Equal(t, int64(2), s.AssessmentLatency.Count)
	assert.InDelta(t, 20.0, s.AssessmentLatency.MeanMs, 1e-9)
	assert.InDelta(t, 10.0, s.AssessmentLatency.MinMs, 1e-9)
	assert.InDelta(t, 30.0, s.AssessmentLatency.MaxMs, 1e-9)
	assert.Equal(t, domain.RiskLow, s.LastRiskLevel)

	s.AssessmentsByLevel[domain.RiskHigh] = 100
	assert.Equal(t, int64(1), c.Snapshot().AssessmentsByLevel[domain.RiskHigh], "snapshot is a copy")
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector(logrus.New())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordAssessment(recordAt(domain.RiskModerate), time.Millisecond)
			c.RecordFailure("scan")
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	assert.Equal(t, int64(50), s.AssessmentsTotal)
	assert.Equal(t, int64(50), s.AssessmentsByLevel[domain.RiskModerate])
	assert.Equal(t, int64(50), s.FailuresByOperation["scan"])
}
