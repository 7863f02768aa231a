package service

import (
	"github.com/pregnancycare-risk-service/internal/domain"
)

// HighRiskConditionThreshold is the per-condition score at or above which the
// condition's recommendation bundle is emitted. It applies to individual
// condition scores and is independent of the overall-score banding.
const HighRiskConditionThreshold = 60.0

// BundleTable maps a condition to the recommendations issued when it is high risk.
type BundleTable map[domain.Condition][]domain.Recommendation

// DefaultBundles returns the base recommendation policy. Preterm birth has no
// bundle and therefore produces no recommendations.
func DefaultBundles() BundleTable {
	return BundleTable{
		domain.Preeclampsia: {
			{
				Type:          "monitoring",
				Priority:      domain.PriorityHigh,
				Title:         "Increased Blood Pressure Monitoring",
				Description:   "Monitor blood pressure twice daily and report readings above 140/90",
				EvidenceLevel: domain.EvidenceA,
			},
			{
				Type:          "lifestyle",
				Priority:      domain.PriorityMedium,
				Title:         "Reduce Sodium Intake",
				Description:   "Limit sodium intake to less than 2300mg per day",
				EvidenceLevel: domain.EvidenceB,
			},
		},
		domain.GestationalDiabetes: {
			{
				Type:          "testing",
				Priority:      domain.PriorityHigh,
				Title:         "Glucose Tolerance Test",
				Description:   "Schedule glucose tolerance test within 1 week",
				EvidenceLevel: domain.EvidenceA,
			},
			{
				Type:          "lifestyle",
				Priority:      domain.PriorityHigh,
				Title:         "Dietary Modifications",
				Description:   "Consult with nutritionist for diabetic diet plan",
				EvidenceLevel: domain.EvidenceA,
			},
		},
	}
}

// RecommendationEngine turns high-risk condition scores into recommendations.
type RecommendationEngine struct {
	threshold float64
	bundles   BundleTable
}

// NewRecommendationEngine creates an engine with the default threshold and the given bundles.
func NewRecommendationEngine(bundles BundleTable) *RecommendationEngine {
	return &RecommendationEngine{
		threshold: HighRiskConditionThreshold,
		bundles:   bundles,
	}
}

// Recommend walks the scores in order and appends each high-risk condition's
// bundle contiguously. The result is never nil.
func (e *RecommendationEngine) Recommend(scores []domain.ConditionScore) []domain.Recommendation {
	recommendations := make([]domain.Recommendation, 0)
	for _, s := range scores {
		if s.Score < e.threshold {
			continue
		}
		bundle, ok := e.bundles[s.Condition]
		if !ok {
			continue
		}
		recommendations = append(recommendations, bundle...)
	}
	return recommendations
}
