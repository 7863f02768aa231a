package service

import (
	"time"

	"github.com/pregnancycare-risk-service/internal/domain"
)

// reassessmentIntervals is the time to the next assessment for each risk level.
var reassessmentIntervals = map[domain.RiskLevel]time.Duration{
	domain.RiskCritical: 6 * time.Hour,
	domain.RiskHigh:     24 * time.Hour,
	domain.RiskModerate: 3 * 24 * time.Hour,
	domain.RiskLow:      7 * 24 * time.Hour,
}

// ReassessmentInterval returns the interval for a level. It panics with a
// *domain.SchedulingFault for a level the aggregator can never produce.
func ReassessmentInterval(level domain.RiskLevel) time.Duration {
	interval, ok := reassessmentIntervals[level]
	if !ok {
		panic(&domain.SchedulingFault{Level: level})
	}
	return interval
}

// NextDue returns when a patient at the given risk level should be reassessed.
func NextDue(level domain.RiskLevel, now time.Time) time.Time {
	return now.Add(ReassessmentInterval(level))
}
