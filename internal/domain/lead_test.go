package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func TestScoreLead(t *testing.T) {
	tests := []struct {
		name      string
		magnitude float64
		value     *float64
		begin     time.Time
		want      int
	}{
		{"2.0in, $500k, today", 2.0, ptr(500000), testNow, 85},
		{"0.5in, unknown value, 60 days old", 0.5, nil, testNow.AddDate(0, 0, -60), 10},
		{"1.5in, $300k, 10 days old", 1.5, ptr(300000), testNow.AddDate(0, 0, -10), 55},
		{"1.0in, $299,999, old", 1.0, ptr(299999), testNow.AddDate(-1, 0, 0), 10},
		{"just inside recency window", 0, ptr(0), testNow.Add(-RecencyWindow), 15},
		{"just outside recency window", 0, ptr(0), testNow.Add(-RecencyWindow - time.Second), 0},
		{"unknown begin time earns no recency", 3.0, ptr(900000), time.Time{}, 70},
		{"maximum", 4.5, ptr(2000000), testNow, 85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreLead(tt.magnitude, tt.value, tt.begin, testNow))
		})
	}
}

func TestScoreLead_BoundedAndMonotonic(t *testing.T) {
	magnitudes := []float64{0, 0.75, 1.0, 1.25, 1.5, 1.75, 2.0, 3.0}
	values := []float64{0, 100000, 299999, 300000, 499999, 500000, 1000000}
	begins := []time.Time{time.Time{}, testNow.AddDate(0, 0, -90), testNow}

	for _, begin := range begins {
		for _, v := range values {
			prev := -1
			for _, m := range magnitudes {
				s := ScoreLead(m, ptr(v), begin, testNow)
				assert.GreaterOrEqual(t, s, 0)
				assert.LessOrEqual(t, s, 100)
				assert.GreaterOrEqual(t, s, prev, "score must not drop as magnitude grows")
				prev = s
			}
		}
		for _, m := range magnitudes {
			prev := -1
			for _, v := range values {
				s := ScoreLead(m, ptr(v), begin, testNow)
				assert.GreaterOrEqual(t, s, prev, "score must not drop as value grows")
				prev = s
			}
		}
	}
}

func TestAssembleLeads(t *testing.T) {
	events := []Event{
		{ID: "e1", Type: "Hail", Magnitude: 1.0, BeginTime: testNow.AddDate(0, 0, -60), RegionCode: "48", RegionName: "Texas", County: "Dallas"},
		{ID: "e2", Type: "Hail", Magnitude: 2.0, BeginTime: testNow, RegionCode: "40", RegionName: "Oklahoma", Place: "Norman"},
		{ID: "e3", Type: "Hail", Magnitude: 1.0, BeginTime: testNow.AddDate(0, 0, -60), RegionCode: "48", RegionName: "Texas"},
		{ID: "e4", Type: "Hail", Magnitude: 3.0, BeginTime: testNow},
	}
	enrichments := []EnrichmentRecord{
		{EventID: "e3", OwnerName: "Third", PropertyValue: ptr(100000), Source: SourceSimulated},
		{EventID: "e1", OwnerName: "First", PropertyValue: ptr(100000), Source: SourceSimulated},
		{EventID: "e2", OwnerName: "Second", PropertyAddress: "9 Oak Ave", PropertyValue: ptr(500000), Source: SourceProvider, Confidence: 0.9},
		{EventID: "e2", OwnerName: "Duplicate", Source: SourceProvider},
	}

	leads := AssembleLeads(events, enrichments, "batch-1", testNow)

	require.Len(t, leads, 3, "e4 has no enrichment and yields no lead")
	assert.Equal(t, "e2", leads[0].EventID)
	assert.Equal(t, 85, leads[0].Score)
	assert.Equal(t, "Second", leads[0].OwnerName, "first record per event wins")
	assert.Equal(t, "9 Oak Ave", leads[0].PropertyAddress)
	assert.Equal(t, SourceProvider, leads[0].Source)
	assert.Equal(t, 0.9, leads[0].Confidence)
	assert.Equal(t, "Norman", leads[0].Place)

	// Equal scores keep event order.
	assert.Equal(t, "e1", leads[1].EventID)
	assert.Equal(t, "e3", leads[2].EventID)
	assert.Equal(t, leads[1].Score, leads[2].Score)
	assert.Equal(t, "Dallas", leads[1].Place)

	for _, l := range leads {
		assert.NotEmpty(t, l.ID)
		assert.Equal(t, "batch-1", l.BatchID)
		assert.Equal(t, testNow, l.CreatedAt)
	}
}

func TestAssembleLeads_FreshIDsPerRun(t *testing.T) {
	events := []Event{{ID: "e1", Magnitude: 1.5, BeginTime: testNow}}
	enrichments := []EnrichmentRecord{{EventID: "e1", Source: SourceSimulated}}

	first := AssembleLeads(events, enrichments, "b1", testNow)
	second := AssembleLeads(events, enrichments, "b2", testNow)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Score, second[0].Score)
	assert.NotEqual(t, first[0].ID, second[0].ID)
}

func TestAssembleLeads_Empty(t *testing.T) {
	leads := AssembleLeads(nil, nil, "b", testNow)
	assert.NotNil(t, leads)
	assert.Empty(t, leads)
}

func TestLead_EffectivePropertyValue(t *testing.T) {
	assert.Equal(t, DefaultPropertyValue, Lead{}.EffectivePropertyValue())
	assert.Equal(t, 410000.0, Lead{PropertyValue: ptr(410000)}.EffectivePropertyValue())
}
