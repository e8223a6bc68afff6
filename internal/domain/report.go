package domain

import (
	"sort"
	"strings"
)

// Priority bucket names.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// PriorityThresholds are the minimum scores for the high and medium buckets.
type PriorityThresholds struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
}

// DefaultPriorityThresholds returns high ≥70, medium ≥40.
func DefaultPriorityThresholds() PriorityThresholds {
	return PriorityThresholds{High: 70, Medium: 40}
}

// Bucket classifies a score.
func (t PriorityThresholds) Bucket(score int) string {
	switch {
	case score >= t.High:
		return PriorityHigh
	case score >= t.Medium:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// PriorityCounts counts leads per bucket.
type PriorityCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

func (c *PriorityCounts) add(bucket string) {
	switch bucket {
	case PriorityHigh:
		c.High++
	case PriorityMedium:
		c.Medium++
	default:
		c.Low++
	}
}

// LeadSummary holds the headline numbers of a lead report.
type LeadSummary struct {
	TotalLeads     int            `json:"total_leads"`
	Priority       PriorityCounts `json:"priority"`
	RegionsCovered int            `json:"regions_covered"`
	PlacesCovered  int            `json:"places_covered"`
	AverageScore   float64        `json:"average_score"`
}

// RegionRollup aggregates the leads of one region.
type RegionRollup struct {
	RegionName       string  `json:"region_name"`
	Leads            int     `json:"leads"`
	AverageScore     float64 `json:"average_score"`
	AverageMagnitude float64 `json:"average_magnitude"`
}

// LeadReport summarizes a lead collection.
type LeadReport struct {
	Summary  LeadSummary    `json:"summary"`
	Regions  []RegionRollup `json:"regions"`
	TopLeads []Lead         `json:"top_leads"`
}

// AggregateLeads builds a LeadReport. Region rollups skip leads without a
// region name and are ordered by lead count, ties by first appearance.
// topN <= 0 keeps every lead in the ranking.
func AggregateLeads(leads []Lead, topN int, thresholds PriorityThresholds) LeadReport {
	report := LeadReport{
		Regions:  rollupRegions(leads),
		TopLeads: TopLeads(leads, topN),
	}
	report.Summary.TotalLeads = len(leads)
	report.Summary.RegionsCovered = len(report.Regions)

	places := make(map[string]struct{})
	total := 0
	for _, l := range leads {
		report.Summary.Priority.add(thresholds.Bucket(l.Score))
		total += l.Score
		if l.Place != "" {
			places[l.RegionName+"|"+l.Place] = struct{}{}
		}
	}
	report.Summary.PlacesCovered = len(places)
	if len(leads) > 0 {
		report.Summary.AverageScore = float64(total) / float64(len(leads))
	}
	return report
}

func rollupRegions(leads []Lead) []RegionRollup {
	type acc struct {
		count     int
		score     int
		magnitude float64
	}
	order := make([]string, 0)
	byRegion := make(map[string]*acc)
	for _, l := range leads {
		if l.RegionName == "" {
			continue
		}
		a, ok := byRegion[l.RegionName]
		if !ok {
			a = &acc{}
			byRegion[l.RegionName] = a
			order = append(order, l.RegionName)
		}
		a.count++
		a.score += l.Score
		a.magnitude += l.Magnitude
	}

	rollups := make([]RegionRollup, 0, len(order))
	for _, name := range order {
		a := byRegion[name]
		rollups = append(rollups, RegionRollup{
			RegionName:       name,
			Leads:            a.count,
			AverageScore:     float64(a.score) / float64(a.count),
			AverageMagnitude: a.magnitude / float64(a.count),
		})
	}
	sort.SliceStable(rollups, func(i, j int) bool {
		return rollups[i].Leads > rollups[j].Leads
	})
	return rollups
}

// TopLeads returns the n highest-scoring leads. Equal scores keep their
// input order. n <= 0 or n > len(leads) returns every lead. The input slice
// is not modified.
func TopLeads(leads []Lead, n int) []Lead {
	out := append(make([]Lead, 0, len(leads)), leads...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// ServiceOpportunities counts the work implied by a set of assessments.
type ServiceOpportunities struct {
	RoofReplacements  int `json:"roof_replacements"`
	InspectionsNeeded int `json:"inspections_needed"`
	InsuranceClaims   int `json:"insurance_claims"`
}

// PortfolioSummary holds the headline numbers of a portfolio report.
// Averages are taken over the valued properties only.
type PortfolioSummary struct {
	TotalProperties       int            `json:"total_properties"`
	Priority              PriorityCounts `json:"priority"`
	ValuedProperties      int            `json:"valued_properties"`
	UnvaluedProperties    int            `json:"unvalued_properties"`
	TotalEstimatedValue   float64        `json:"total_estimated_value"`
	AverageEstimatedValue float64        `json:"average_estimated_value"`
}

// PortfolioReport summarizes a set of assessed leads.
type PortfolioReport struct {
	Summary       PortfolioSummary     `json:"summary"`
	Opportunities ServiceOpportunities `json:"service_opportunities"`
	TopLeads      []AssessedLead       `json:"top_leads"`
}

// AggregatePortfolio builds a PortfolioReport. Each assessment's estimated
// value is the midpoint of its formatted cost range; entries whose range
// does not parse are left out of the totals.
func AggregatePortfolio(assessed []AssessedLead, topN int, thresholds PriorityThresholds) PortfolioReport {
	report := PortfolioReport{TopLeads: TopAssessed(assessed, topN)}
	report.Summary.TotalProperties = len(assessed)

	for _, a := range assessed {
		report.Summary.Priority.add(thresholds.Bucket(a.Lead.Score))

		if mid, ok := ParseMoneyRangeMidpoint(a.Assessment.Cost.EstimatedRange); ok {
			report.Summary.ValuedProperties++
			report.Summary.TotalEstimatedValue += mid
		} else {
			report.Summary.UnvaluedProperties++
		}

		action := strings.ToLower(a.Assessment.RecommendedAction)
		if strings.Contains(action, "replacement") {
			report.Opportunities.RoofReplacements++
		}
		if strings.Contains(action, "inspection") {
			report.Opportunities.InspectionsNeeded++
		}
		if a.Assessment.Insurance.Likely {
			report.Opportunities.InsuranceClaims++
		}
	}
	if report.Summary.ValuedProperties > 0 {
		report.Summary.AverageEstimatedValue = report.Summary.TotalEstimatedValue / float64(report.Summary.ValuedProperties)
	}
	return report
}

// TopAssessed ranks assessed leads by lead score with the same rules as
// TopLeads.
func TopAssessed(assessed []AssessedLead, n int) []AssessedLead {
	out := append(make([]AssessedLead, 0, len(assessed)), assessed...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Lead.Score > out[j].Lead.Score
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
