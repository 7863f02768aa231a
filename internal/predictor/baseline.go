// Package predictor provides the model registry and transparent rule-based
// baseline models that run without a model-serving backend.
package predictor

import (
	"context"
	"fmt"
	"math"

	"github.com/pregnancycare-risk-service/internal/domain"
)

// BaselineVersion is reported by registries built only from baseline models.
const BaselineVersion = "baseline-1.0.0"

// Factor is one weighted risk factor of a baseline model.
type Factor struct {
	Name   string
	Weight float64
	Match  func(f *domain.Features) bool
}

// Signal is an early warning sign reported alongside a score.
type Signal struct {
	Name  string
	Match func(f *domain.Features) bool
}

// BaselineModel scores a condition as the capped sum of its matched factor weights.
type BaselineModel struct {
	condition domain.Condition
	base      float64
	factors   []Factor
	signals   []Signal
	inputs    []string
}

func flag(name string) func(*domain.Features) bool {
	return func(f *domain.Features) bool { return f.Flag(name) }
}

func above(name string, threshold float64) func(*domain.Features) bool {
	return func(f *domain.Features) bool {
		v, ok := f.Value(name)
		return ok && v >= threshold
	}
}

func below(name string, threshold float64) func(*domain.Features) bool {
	return func(f *domain.Features) bool {
		v, ok := f.Value(name)
		return ok && v < threshold
	}
}

// NewPreeclampsiaModel returns the baseline preeclampsia scorer.
func NewPreeclampsiaModel() *BaselineModel {
	return &BaselineModel{
		condition: domain.Preeclampsia,
		base:      5,
		factors: []Factor{
			{"Elevated blood pressure", 30, flag("hypertensive_reading")},
			{"Severe-range blood pressure", 15, above("systolic_bp", 160)},
			{"Chronic hypertension", 20, flag("has_hypertension")},
			{"Previous preeclampsia", 25, flag("previous_preeclampsia")},
			{"Proteinuria", 15, above("lab_protein_creatinine_ratio", 0.3)},
			{"Low platelet count", 10, below("lab_platelets", 100)},
			{"Kidney disease", 10, flag("has_kidney_disease")},
			{"Autoimmune disease", 10, flag("has_autoimmune")},
			{"Obesity", 8, flag("obesity")},
			{"Advanced maternal age", 7, flag("advanced_maternal_age")},
			{"First pregnancy", 5, flag("nulliparous")},
			{"Family history of hypertensive disorders", 5, flag("family_history_hypertension")},
		},
		signals: []Signal{
			{"Persistent headache", flag("symptom_headache")},
			{"Visual disturbances", flag("symptom_visual_disturbance")},
			{"Sudden swelling", flag("symptom_edema")},
			{"Upper abdominal pain", flag("symptom_abdominal_pain")},
		},
		inputs: []string{"systolic_bp", "diastolic_bp", "lab_protein_creatinine_ratio", "lab_platelets"},
	}
}

// NewGestationalDiabetesModel returns the baseline gestational diabetes scorer.
func NewGestationalDiabetesModel() *BaselineModel {
	return &BaselineModel{
		condition: domain.GestationalDiabetes,
		base:      5,
		factors: []Factor{
			{"Elevated glucose", 30, flag("hyperglycemia")},
			{"Pre-existing diabetes", 35, flag("has_diabetes")},
			{"Previous gestational diabetes", 25, flag("previous_gestational_diabetes")},
			{"Elevated HbA1c", 15, above("lab_hba1c", 5.7)},
			{"Obesity", 15, flag("obesity")},
			{"Family history of diabetes", 10, flag("family_history_diabetes")},
			{"Advanced maternal age", 8, flag("advanced_maternal_age")},
		},
		signals: []Signal{
			{"Excessive thirst", flag("symptom_excessive_thirst")},
			{"Frequent urination", flag("symptom_frequent_urination")},
		},
		inputs: []string{"glucose_level", "lab_hba1c", "bmi"},
	}
}

// NewPretermBirthModel returns the baseline preterm birth scorer.
func NewPretermBirthModel() *BaselineModel {
	return &BaselineModel{
		condition: domain.PretermBirth,
		base:      5,
		factors: []Factor{
			{"Previous preterm birth", 30, flag("previous_preterm_birth")},
			{"Short cervical length", 25, below("lab_cervical_length", 25)},
			{"Uterine contractions", 20, flag("symptom_contractions")},
			{"Vaginal bleeding", 15, flag("symptom_bleeding")},
			{"Elevated blood pressure", 10, flag("hypertensive_reading")},
			{"Pre-existing diabetes", 5, flag("has_diabetes")},
			{"Advanced maternal age", 5, flag("advanced_maternal_age")},
			{"Underweight", 5, below("bmi", 18.5)},
		},
		signals: []Signal{
			{"Regular contractions", flag("symptom_contractions")},
			{"Vaginal bleeding", flag("symptom_bleeding")},
		},
		inputs: []string{"lab_cervical_length", "systolic_bp", "gestational_age"},
	}
}

// Condition reports the condition this model scores.
func (m *BaselineModel) Condition() domain.Condition {
	return m.condition
}

// Predict implements domain.ConditionPredictor.
func (m *BaselineModel) Predict(ctx context.Context, features *domain.Features) (*domain.ConditionScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if features == nil {
		return nil, fmt.Errorf("%s: no features", m.condition)
	}

	score := m.base
	factors := make([]string, 0)
	for _, factor := range m.factors {
		if factor.Match(features) {
			score += factor.Weight
			factors = append(factors, factor.Name)
		}
	}
	score = math.Min(score, 100)

	signals := make([]string, 0)
	for _, s := range m.signals {
		if s.Match(features) {
			signals = append(signals, s.Name)
		}
	}

	trend := domain.TrendStable
	if len(signals) > 0 {
		trend = domain.TrendWorsening
	}

	return &domain.ConditionScore{
		Condition:           m.condition,
		Score:               score,
		Probability:         score / 100,
		Confidence:          m.confidence(features),
		Trend:               trend,
		ContributingFactors: factors,
		EarlyWarningSignals: signals,
	}, nil
}

// confidence grows with the share of the model's key inputs that were measured.
func (m *BaselineModel) confidence(features *domain.Features) float64 {
	if len(m.inputs) == 0 {
		return 0.5
	}
	present := 0
	for _, name := range m.inputs {
		if _, ok := features.Value(name); ok {
			present++
		}
	}
	return 0.5 + 0.45*float64(present)/float64(len(m.inputs))
}

// BaselineEarlyDetection projects the baseline condition scores forward in time.
// Probabilities rise slowly with the horizon while confidence decays.
type BaselineEarlyDetection struct {
	models []*BaselineModel
}

// NewBaselineEarlyDetection builds the forecaster over the given condition models.
func NewBaselineEarlyDetection(models ...*BaselineModel) *BaselineEarlyDetection {
	return &BaselineEarlyDetection{models: models}
}

// PredictTimeframe implements domain.EarlyDetectionPredictor.
func (e *BaselineEarlyDetection) PredictTimeframe(ctx context.Context, features *domain.Features, daysAhead int) (*domain.TimeframeForecast, error) {
	if daysAhead < 1 || daysAhead > domain.EarlyDetectionWindowDays {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidDaysAhead, daysAhead)
	}

	forecast := &domain.TimeframeForecast{
		DaysAhead:  daysAhead,
		Conditions: make(map[domain.Condition]domain.ConditionForecast, len(e.models)),
	}

	noneOccurs := 1.0
	confidence := 0.0
	for _, m := range e.models {
		score, err := m.Predict(ctx, features)
		if err != nil {
			return nil, err
		}
		p := horizonProbability(score.Probability, daysAhead)
		c := score.Confidence * (1 - 0.02*float64(daysAhead))
		forecast.Conditions[m.condition] = domain.ConditionForecast{Probability: p, Confidence: c}
		noneOccurs *= 1 - p
		confidence += c
	}
	if len(e.models) > 0 {
		confidence /= float64(len(e.models))
	}
	forecast.OverallProbability = 1 - noneOccurs
	forecast.Confidence = confidence
	return forecast, nil
}

// horizonProbability scales the current probability into the chance of onset
// within daysAhead days, assuming a constant hazard over a 30-day reference.
func horizonProbability(p float64, daysAhead int) float64 {
	if p >= 1 {
		return 0.99
	}
	return 1 - math.Pow(1-p, float64(daysAhead)/30)
}

// BaselineOutcome derives outcome forecasts from the baseline condition scores.
type BaselineOutcome struct {
	preeclampsia *BaselineModel
	diabetes     *BaselineModel
	preterm      *BaselineModel
}

// NewBaselineOutcome creates the outcome forecaster.
func NewBaselineOutcome(preeclampsia, diabetes, preterm *BaselineModel) *BaselineOutcome {
	return &BaselineOutcome{preeclampsia: preeclampsia, diabetes: diabetes, preterm: preterm}
}

// PredictOutcome implements domain.OutcomePredictor.
func (o *BaselineOutcome) PredictOutcome(ctx context.Context, features *domain.Features) (*domain.OutcomeForecast, error) {
	pe, err := o.preeclampsia.Predict(ctx, features)
	if err != nil {
		return nil, err
	}
	gd, err := o.diabetes.Predict(ctx, features)
	if err != nil {
		return nil, err
	}
	pt, err := o.preterm.Predict(ctx, features)
	if err != nil {
		return nil, err
	}

	gestationalAge, _ := features.Value("gestational_age")
	expectedDelivery := 39.5 - 3*pt.Probability
	if expectedDelivery < gestationalAge {
		expectedDelivery = gestationalAge
	}
	cesarean := math.Min(0.95, 0.25+0.3*pe.Probability+0.15*gd.Probability)

	interventions := make([]string, 0)
	if pe.Score >= 60 {
		interventions = append(interventions, "Low-dose aspirin prophylaxis review", "Serial blood pressure monitoring")
	}
	if gd.Score >= 60 {
		interventions = append(interventions, "Glucose monitoring and dietary counselling")
	}
	if pt.Score >= 60 {
		interventions = append(interventions, "Cervical length surveillance", "Antenatal corticosteroid planning")
	}
	if len(interventions) == 0 {
		interventions = append(interventions, "Routine prenatal care")
	}

	return &domain.OutcomeForecast{
		Delivery: map[string]any{
			"expected_gestational_age_at_delivery": round2(expectedDelivery),
			"preterm_delivery_probability":         round2(pt.Probability),
			"cesarean_probability":                 round2(cesarean),
		},
		Maternal: map[string]any{
			"preeclampsia_probability":          round2(pe.Probability),
			"gestational_diabetes_probability":  round2(gd.Probability),
			"postpartum_hemorrhage_probability": round2(math.Min(0.9, 0.05+0.1*pe.Probability)),
		},
		Fetal: map[string]any{
			"low_birth_weight_probability": round2(math.Min(0.9, 0.05+0.4*pt.Probability+0.1*pe.Probability)),
			"macrosomia_probability":       round2(math.Min(0.9, 0.05+0.3*gd.Probability)),
			"nicu_admission_probability":   round2(math.Min(0.9, 0.05+0.5*pt.Probability)),
		},
		RecommendedInterventions: interventions,
		Confidence:               (pe.Confidence + gd.Confidence + pt.Confidence) / 3,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
