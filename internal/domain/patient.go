package domain

import (
	"strings"
	"time"
)

// VitalSigns are the most recent vital readings. Every reading is optional.
type VitalSigns struct {
	BloodPressureSystolic  *float64 `json:"blood_pressure_systolic,omitempty"`
	BloodPressureDiastolic *float64 `json:"blood_pressure_diastolic,omitempty"`
	HeartRate              *float64 `json:"heart_rate,omitempty"`
	Weight                 *float64 `json:"weight,omitempty"`
	Temperature            *float64 `json:"temperature,omitempty"`
	GlucoseLevel           *float64 `json:"glucose_level,omitempty"`
	FetalHeartRate         *float64 `json:"fetal_heart_rate,omitempty"`
	OxygenSaturation       *float64 `json:"oxygen_saturation,omitempty"`
}

// PatientData holds demographics and medical history.
type PatientData struct {
	Age                   int      `json:"age"`
	BMI                   float64  `json:"bmi"`
	GestationalAge        float64  `json:"gestational_age"`
	PreviousPregnancies   int      `json:"previous_pregnancies,omitempty"`
	PreviousComplications []string `json:"previous_complications,omitempty"`
	ChronicConditions     []string `json:"chronic_conditions,omitempty"`
	Medications           []string `json:"medications,omitempty"`
	FamilyHistory         []string `json:"family_history,omitempty"`
}

// PatientInput is the raw request accepted by every assessment operation.
type PatientInput struct {
	PatientID   string             `json:"patient_id"`
	PregnancyID string             `json:"pregnancy_id"`
	PatientData *PatientData       `json:"patient_data"`
	VitalSigns  *VitalSigns        `json:"vital_signs"`
	LabResults  map[string]float64 `json:"lab_results,omitempty"`
	Symptoms    []string           `json:"symptoms,omitempty"`
	Timestamp   time.Time          `json:"timestamp,omitempty"`
}

// Validate rejects inputs that cannot be assessed.
func (in *PatientInput) Validate() error {
	if in == nil {
		return NewValidationError("body", "request body is required", nil)
	}
	if strings.TrimSpace(in.PatientID) == "" {
		return NewValidationError("patient_id", "patient_id is required", in.PatientID)
	}
	if strings.TrimSpace(in.PregnancyID) == "" {
		return NewValidationError("pregnancy_id", "pregnancy_id is required", in.PregnancyID)
	}
	if in.PatientData == nil || in.VitalSigns == nil {
		return NewValidationError("patient_data", "patient data and vital signs are required", nil)
	}
	if in.PatientData.Age <= 0 || in.PatientData.Age > 70 {
		return NewValidationError("patient_data.age", "age must be between 1 and 70", in.PatientData.Age)
	}
	if in.PatientData.BMI <= 0 {
		return NewValidationError("patient_data.bmi", "bmi must be positive", in.PatientData.BMI)
	}
	if in.PatientData.GestationalAge < 0 || in.PatientData.GestationalAge > 45 {
		return NewValidationError("patient_data.gestational_age", "gestational age must be between 0 and 45 weeks", in.PatientData.GestationalAge)
	}
	return nil
}

// Features is the model-ready record derived from a PatientInput.
// Numeric holds continuous features; Flags holds boolean indicators.
type Features struct {
	Numeric map[string]float64 `json:"numeric"`
	Flags   map[string]bool    `json:"flags"`
}

// Value returns a numeric feature and whether it was present.
func (f *Features) Value(name string) (float64, bool) {
	if f == nil || f.Numeric == nil {
		return 0, false
	}
	v, ok := f.Numeric[name]
	return v, ok
}

// Flag returns a boolean feature, false when absent.
func (f *Features) Flag(name string) bool {
	if f == nil || f.Flags == nil {
		return false
	}
	return f.Flags[name]
}
