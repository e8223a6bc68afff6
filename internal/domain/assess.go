package domain

import (
	"math"
	"strings"
	"time"
)

// FilingWindowDays is how long after the storm an insurance claim should be
// filed.
const FilingWindowDays = 30

// defaultEventAgeDays is used when the event date is unknown.
const defaultEventAgeDays = 30

// Urgency tiers.
const (
	UrgencyCritical = "Critical"
	UrgencyHigh     = "High"
	UrgencyMedium   = "Medium"
	UrgencyLow      = "Low"
)

// AssessmentInput holds the parsed values an assessment depends on. A nil
// PropertyValue or zero EventDate means the value was unknown.
type AssessmentInput struct {
	Magnitude     float64
	PropertyValue *float64
	EventDate     time.Time
}

// RawAssessmentInput carries presentation strings such as `2.5"`,
// "$350,000" and "2024-01-15".
type RawAssessmentInput struct {
	Magnitude     string `json:"hail_size"`
	PropertyValue string `json:"property_value"`
	EventDate     string `json:"event_date"`
}

// CostEstimate is a repair cost range. The formatted fields are derived from
// the numeric ones.
type CostEstimate struct {
	BaseCost          float64 `json:"base_cost"`
	Low               float64 `json:"low"`
	High              float64 `json:"high"`
	OutOfPocketLow    float64 `json:"out_of_pocket_low"`
	OutOfPocketHigh   float64 `json:"out_of_pocket_high"`
	EstimatedRange    string  `json:"estimated_range"`
	OutOfPocket       string  `json:"out_of_pocket"`
	InsuranceCoverage string  `json:"insurance_coverage"`
}

// InsuranceOutlook describes whether a claim is likely to succeed and what
// it needs.
type InsuranceOutlook struct {
	Likely           bool      `json:"likely"`
	Strength         string    `json:"strength"`
	RequiredDocs     []string  `json:"required_docs"`
	FilingWindowDays int       `json:"filing_window_days"`
	FilingDeadline   time.Time `json:"filing_deadline,omitzero"`
	Timeline         string    `json:"timeline"`
}

// Assessment is the damage, cost and urgency outlook for one property.
type Assessment struct {
	DamageProbability string           `json:"damage_probability"`
	RecommendedAction string           `json:"recommended_action"`
	Cost              CostEstimate     `json:"cost_estimate"`
	Insurance         InsuranceOutlook `json:"insurance_claim"`
	Urgency           string           `json:"urgency"`
	UrgencyGuidance   string           `json:"urgency_guidance"`
	DaysSinceEvent    int              `json:"days_since_event"`
	NextSteps         []string         `json:"next_steps"`
}

// AssessedLead pairs a lead with its assessment.
type AssessedLead struct {
	Lead       Lead       `json:"lead"`
	Assessment Assessment `json:"assessment"`
}

type damageBand struct {
	minMagnitude float64
	probability  string
	action       string
	costPercent  float64
}

// damageBands are checked in order; the first band whose minimum the
// magnitude meets applies.
var damageBands = []damageBand{
	{2.0, "High (90%+)", "Immediate roof replacement recommended", 8},
	{1.5, "Medium-High (70-90%)", "Professional inspection and likely replacement", 6},
	{1.0, "Medium (50-70%)", "Professional inspection recommended", 4},
	{math.Inf(-1), "Low (30-50%)", "Visual inspection sufficient", 2},
}

var (
	strongClaimDocs = []string{
		"Storm date verification",
		"Hail size documentation",
		"Property photos",
		"Professional inspection report",
		"Repair estimates",
	}
	weakClaimDocs = []string{
		"Professional inspection",
		"Damage photos",
		"Storm verification",
	}
	nextSteps = []string{
		"Request a free roof inspection",
		"Document storm damage with photos",
		"Review insurance policy coverage",
		"Schedule professional assessment",
		"Get detailed repair estimate",
		"File insurance claim if applicable",
		"Schedule roof work",
	}
	urgencyGuidance = map[string]string{
		UrgencyCritical: "Critical - Immediate action required",
		UrgencyHigh:     "High - Schedule within 1 week",
		UrgencyMedium:   "Medium - Schedule within 2 weeks",
		UrgencyLow:      "Low - Schedule when convenient",
	}
)

// AssessLead assesses a lead using its magnitude, property value and event
// begin time.
func AssessLead(lead Lead, now time.Time) Assessment {
	return Assess(AssessmentInput{
		Magnitude:     lead.Magnitude,
		PropertyValue: lead.PropertyValue,
		EventDate:     lead.BeginTime,
	}, now)
}

// Assess computes the damage assessment for a property. It is deterministic
// for a given input and now.
func Assess(in AssessmentInput, now time.Time) Assessment {
	band := damageBandFor(in.Magnitude)
	age := DaysSinceEvent(in.EventDate, now)
	urgency := UrgencyTier(in.Magnitude, age)

	return Assessment{
		DamageProbability: band.probability,
		RecommendedAction: band.action,
		Cost:              estimateCost(in.PropertyValue, band.costPercent),
		Insurance:         insuranceOutlook(in.Magnitude, in.EventDate),
		Urgency:           urgency,
		UrgencyGuidance:   urgencyGuidance[urgency],
		DaysSinceEvent:    age,
		NextSteps:         append([]string(nil), nextSteps...),
	}
}

func damageBandFor(magnitude float64) damageBand {
	for _, b := range damageBands {
		if magnitude >= b.minMagnitude {
			return b
		}
	}
	return damageBands[len(damageBands)-1]
}

func estimateCost(propertyValue *float64, percent float64) CostEstimate {
	value := DefaultPropertyValue
	if propertyValue != nil {
		value = *propertyValue
	}
	base := value * percent / 100
	c := CostEstimate{
		BaseCost:          base,
		Low:               base * 8 / 10,
		High:              base * 12 / 10,
		OutOfPocketLow:    base / 10,
		OutOfPocketHigh:   base * 2 / 10,
		InsuranceCoverage: "Likely covered with proper documentation",
	}
	c.EstimatedRange = FormatMoneyRange(c.Low, c.High)
	c.OutOfPocket = FormatMoneyRange(c.OutOfPocketLow, c.OutOfPocketHigh)
	return c
}

func insuranceOutlook(magnitude float64, eventDate time.Time) InsuranceOutlook {
	out := InsuranceOutlook{
		FilingWindowDays: FilingWindowDays,
		Timeline:         "File within 30 days of storm for best results",
	}
	if !eventDate.IsZero() {
		out.FilingDeadline = eventDate.AddDate(0, 0, FilingWindowDays)
	}
	if magnitude >= 1.0 {
		out.Likely = true
		out.Strength = "Strong"
		out.RequiredDocs = append([]string(nil), strongClaimDocs...)
		return out
	}
	out.Strength = "Weak"
	out.RequiredDocs = append([]string(nil), weakClaimDocs...)
	return out
}

// UrgencyTier picks the row for the magnitude's band and applies that row's
// age limit. An event past its band's limit is Low; it never falls through
// to a lower-magnitude row.
func UrgencyTier(magnitude float64, ageDays int) string {
	switch {
	case magnitude >= 2.0:
		if ageDays <= 7 {
			return UrgencyCritical
		}
	case magnitude >= 1.5:
		if ageDays <= 14 {
			return UrgencyHigh
		}
	case magnitude >= 1.0:
		if ageDays <= 30 {
			return UrgencyMedium
		}
	}
	return UrgencyLow
}

// DaysSinceEvent returns the whole days elapsed since eventDate, or 30 when
// the date is unknown.
func DaysSinceEvent(eventDate, now time.Time) int {
	if eventDate.IsZero() {
		return defaultEventAgeDays
	}
	return int(math.Floor(now.Sub(eventDate).Hours() / 24))
}

// ParseAssessmentInput parses presentation strings into an AssessmentInput.
// Unparseable magnitudes become 0, unparseable values become nil (and so the
// default value), and unparseable dates become the zero time.
func ParseAssessmentInput(raw RawAssessmentInput) AssessmentInput {
	in := AssessmentInput{
		Magnitude: parseMagnitude(strings.TrimSpace(raw.Magnitude)),
		EventDate: parseEventTime(raw.EventDate),
	}
	if v, ok := ParseMoney(raw.PropertyValue); ok {
		in.PropertyValue = &v
	}
	return in
}
