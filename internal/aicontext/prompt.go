package aicontext

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	TimestampLayout = "2006-01-02 15:04:05"
	noData          = "no data"
)

type PromptInput struct {
	Profile    Profile
	Age        *int
	BloodSugar []BloodSugarRecord
	Vitals     []VitalRecord
	Message    string
	WindowDays int
	// Location renders timestamps; nil keeps each record's own zone.
	Location *time.Location
}

// FormatPrompt renders the profile, the trailing window records and the
// user's question as one block of text. Output depends only on in.
func FormatPrompt(in PromptInput) string {
	days := in.WindowDays
	if days <= 0 {
		days = DefaultWindowDays
	}

	var b strings.Builder
	fmt.Fprintf(&b, "My height is %s, weight is %s, age is %s, gender is %s.\n",
		withUnit(formatFloat(in.Profile.HeightCm), "cm"),
		withUnit(formatFloat(in.Profile.WeightKg), "kg"),
		withUnit(formatInt(in.Age), "years"),
		in.Profile.Gender,
	)

	if len(in.BloodSugar) == 0 {
		fmt.Fprintf(&b, "Blood sugar: no records in the last %d days.\n", days)
	} else {
		fmt.Fprintf(&b, "Blood sugar records in the last %d days:\n", days)
		for _, rec := range in.BloodSugar {
			fmt.Fprintf(&b, "%s blood sugar: %s, context: %s\n",
				formatTimestamp(rec.MeasuredAt, in.Location),
				withUnit(formatFloat(rec.Value), "mg/dL"),
				rec.Context.Label(),
			)
		}
	}

	if len(in.Vitals) == 0 {
		fmt.Fprintf(&b, "Blood pressure: no records in the last %d days.\n", days)
	} else {
		fmt.Fprintf(&b, "Blood pressure records in the last %d days:\n", days)
		for _, rec := range in.Vitals {
			fmt.Fprintf(&b, "%s diastolic: %s, systolic: %s, heart rate: %s\n",
				formatTimestamp(rec.MeasuredAt, in.Location),
				withUnit(formatInt(rec.Diastolic), "mmHg"),
				withUnit(formatInt(rec.Systolic), "mmHg"),
				withUnit(formatInt(rec.HeartRate), "bpm"),
			)
		}
	}

	b.WriteString("User question: ")
	b.WriteString(in.Message)
	return b.String()
}

func formatTimestamp(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(TimestampLayout)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// withUnit appends unit to a rendered value; missing values read "no data".
func withUnit(value, unit string) string {
	if value == "" {
		return noData
	}
	return value + " " + unit
}
