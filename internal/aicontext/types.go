// Package aicontext assembles a user's recent health records into a single
// prompt and relays it to the conversational AI upstream.
package aicontext

import (
	"strings"
	"time"
)

// Gender is the closed set of genders a profile can render as. Storage
// codes outside 0..2 and NULL collapse to GenderUnknown.
type Gender int

const (
	GenderUnknown Gender = iota
	GenderMale
	GenderFemale
	GenderOther
)

// GenderFromCode maps the stored SMALLINT (0 male, 1 female, 2 other).
func GenderFromCode(code *int16) Gender {
	if code == nil {
		return GenderUnknown
	}
	switch *code {
	case 0:
		return GenderMale
	case 1:
		return GenderFemale
	case 2:
		return GenderOther
	default:
		return GenderUnknown
	}
}

func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	case GenderOther:
		return "other"
	default:
		return "unknown"
	}
}

// MeasurementContext is when a blood sugar sample was taken relative to a meal.
type MeasurementContext string

const (
	ContextFasting    MeasurementContext = "fasting"
	ContextBeforeMeal MeasurementContext = "before_meal"
	ContextAfterMeal  MeasurementContext = "after_meal"
	ContextUnknown    MeasurementContext = "unknown"
)

func ParseMeasurementContext(raw string) MeasurementContext {
	switch MeasurementContext(strings.ToLower(strings.TrimSpace(raw))) {
	case ContextFasting:
		return ContextFasting
	case ContextBeforeMeal:
		return ContextBeforeMeal
	case ContextAfterMeal:
		return ContextAfterMeal
	default:
		return ContextUnknown
	}
}

func (m MeasurementContext) Valid() bool {
	return m == ContextFasting || m == ContextBeforeMeal || m == ContextAfterMeal
}

// Label is the human wording used inside prompts.
func (m MeasurementContext) Label() string {
	switch m {
	case ContextFasting:
		return "fasting"
	case ContextBeforeMeal:
		return "before meal"
	case ContextAfterMeal:
		return "after meal"
	default:
		return "unknown"
	}
}

type Profile struct {
	UserID   string
	HeightCm *float64
	WeightKg *float64
	Birthday *time.Time
	Gender   Gender
}

type BloodSugarRecord struct {
	RecordID   string
	UserID     string
	MeasuredAt time.Time
	Context    MeasurementContext
	Value      *float64
}

type VitalRecord struct {
	VitalID    string
	UserID     string
	MeasuredAt time.Time
	HeartRate  *int
	Systolic   *int
	Diastolic  *int
}
