// Package features derives model-ready features from a patient's raw record.
package features

import (
	"context"
	"math"
	"strings"

	"github.com/pregnancycare-risk-service/internal/domain"
)

const (
	fullTermWeeks         = 40.0
	advancedMaternalAge   = 35
	obesityBMI            = 30.0
	hypertensiveSystolic  = 140.0
	hypertensiveDiastolic = 90.0
	hyperglycemiaMgDL     = 140.0
)

// historyFlags maps a flag to the terms that set it when found in a history list.
var historyFlags = map[string][]string{
	"has_diabetes":       {"diabetes"},
	"has_hypertension":   {"hypertension", "high blood pressure"},
	"has_kidney_disease": {"kidney", "renal"},
	"has_autoimmune":     {"lupus", "autoimmune", "antiphospholipid"},
}

var complicationFlags = map[string][]string{
	"previous_preeclampsia":         {"preeclampsia", "pre-eclampsia", "eclampsia"},
	"previous_gestational_diabetes": {"gestational diabetes", "gestational_diabetes", "gdm"},
	"previous_preterm_birth":        {"preterm", "premature"},
}

var familyFlags = map[string][]string{
	"family_history_diabetes":     {"diabetes"},
	"family_history_hypertension": {"hypertension", "preeclampsia"},
}

var symptomFlags = map[string][]string{
	"symptom_headache":           {"headache"},
	"symptom_visual_disturbance": {"visual", "blurred vision", "vision"},
	"symptom_edema":              {"swelling", "edema", "oedema"},
	"symptom_abdominal_pain":     {"abdominal pain", "epigastric"},
	"symptom_contractions":       {"contraction", "cramping"},
	"symptom_bleeding":           {"bleeding", "spotting"},
	"symptom_excessive_thirst":   {"thirst", "polydipsia"},
	"symptom_frequent_urination": {"urination", "polyuria"},
}

// Engineer is a deterministic, stateless domain.FeatureEngineer.
type Engineer struct{}

// NewEngineer creates a feature engineer.
func NewEngineer() *Engineer {
	return &Engineer{}
}

// Engineer converts a validated patient input into numeric features and flags.
// Vitals and labs that were not measured are left out rather than zero-filled.
func (e *Engineer) Engineer(ctx context.Context, input *domain.PatientInput) (*domain.Features, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	f := &domain.Features{
		Numeric: make(map[string]float64),
		Flags:   make(map[string]bool),
	}
	data := input.PatientData
	vitals := input.VitalSigns

	// Demographics
	f.Numeric["age"] = float64(data.Age)
	f.Numeric["bmi"] = data.BMI
	f.Numeric["gestational_age"] = data.GestationalAge
	f.Numeric["previous_pregnancies"] = float64(data.PreviousPregnancies)
	f.Numeric["age_bmi_interaction"] = float64(data.Age) * data.BMI

	// Temporal
	f.Numeric["trimester"] = float64(Trimester(data.GestationalAge))
	f.Numeric["weeks_to_due_date"] = math.Max(0, fullTermWeeks-data.GestationalAge)

	// Vitals
	setIfPresent(f, "systolic_bp", vitals.BloodPressureSystolic)
	setIfPresent(f, "diastolic_bp", vitals.BloodPressureDiastolic)
	setIfPresent(f, "heart_rate", vitals.HeartRate)
	setIfPresent(f, "weight", vitals.Weight)
	setIfPresent(f, "temperature", vitals.Temperature)
	setIfPresent(f, "glucose_level", vitals.GlucoseLevel)
	setIfPresent(f, "fetal_heart_rate", vitals.FetalHeartRate)
	setIfPresent(f, "oxygen_saturation", vitals.OxygenSaturation)

	if vitals.BloodPressureSystolic != nil && vitals.BloodPressureDiastolic != nil {
		sys, dia := *vitals.BloodPressureSystolic, *vitals.BloodPressureDiastolic
		f.Numeric["mean_arterial_pressure"] = MeanArterialPressure(sys, dia)
		if dia > 0 {
			f.Numeric["bp_ratio"] = sys / dia
		}
		f.Flags["hypertensive_reading"] = sys >= hypertensiveSystolic || dia >= hypertensiveDiastolic
	}
	if vitals.GlucoseLevel != nil {
		f.Flags["hyperglycemia"] = *vitals.GlucoseLevel >= hyperglycemiaMgDL
	}

	// Labs
	for name, value := range input.LabResults {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		f.Numeric["lab_"+normalizeKey(name)] = value
	}

	// Risk factors
	f.Flags["advanced_maternal_age"] = data.Age > advancedMaternalAge
	f.Flags["obesity"] = data.BMI >= obesityBMI
	f.Flags["nulliparous"] = data.PreviousPregnancies == 0
	applyFlags(f, historyFlags, data.ChronicConditions)
	applyFlags(f, complicationFlags, data.PreviousComplications)
	applyFlags(f, familyFlags, data.FamilyHistory)
	applyFlags(f, symptomFlags, input.Symptoms)

	f.Numeric["risk_factor_count"] = float64(countTrue(f.Flags))
	f.Numeric["symptom_count"] = float64(len(input.Symptoms))
	f.Numeric["medication_count"] = float64(len(data.Medications))

	return f, nil
}

// MeanArterialPressure is (systolic + 2*diastolic) / 3.
func MeanArterialPressure(systolic, diastolic float64) float64 {
	return (systolic + 2*diastolic) / 3
}

// Trimester returns 1, 2 or 3 for a gestational age in weeks.
func Trimester(weeks float64) int {
	switch {
	case weeks < 14:
		return 1
	case weeks < 28:
		return 2
	default:
		return 3
	}
}

func setIfPresent(f *domain.Features, name string, v *float64) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return
	}
	f.Numeric[name] = *v
}

func applyFlags(f *domain.Features, table map[string][]string, entries []string) {
	for flag, terms := range table {
		if _, set := f.Flags[flag]; !set {
			f.Flags[flag] = false
		}
		for _, entry := range entries {
			if matchesAny(entry, terms) {
				f.Flags[flag] = true
				break
			}
		}
	}
}

func matchesAny(entry string, terms []string) bool {
	entry = strings.ToLower(entry)
	for _, term := range terms {
		if strings.Contains(entry, term) {
			return true
		}
	}
	return false
}

func normalizeKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

func countTrue(flags map[string]bool) int {
	n := 0
	for _, v := range flags {
		if v {
			n++
		}
	}
	return n
}
