package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/storm-leads/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

var testNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBatch() *domain.Batch {
	value := 420000.0
	leads := []domain.Lead{
		{
			ID: "lead-1", EventID: "1165003", EventType: "Hail", RegionName: "Texas", Place: "Dallas",
			Geo: &domain.Geo{Lat: 32.78, Lon: -96.8}, Magnitude: 2.5, BeginTime: testNow.AddDate(0, 0, -3),
			OwnerName: "Property Owner 1", OwnerPhone: "(555) 1000", PropertyValue: &value,
			Source: domain.SourceSimulated, Score: 75,
		},
		{
			ID: "lead-2", EventID: "1165001", EventType: "Hail", RegionName: "Oklahoma", Place: "Norman",
			Magnitude: 1.75, Source: domain.SourceNoMatch, Score: 40,
		},
		{
			ID: "lead-3", EventID: "1165005", EventType: "Hail", RegionName: "Texas", Place: "Plano",
			Magnitude: 1.0, Source: domain.SourceSimulated, Score: 20,
		},
	}
	assessed := make([]domain.AssessedLead, len(leads))
	for i, l := range leads {
		assessed[i] = domain.AssessedLead{Lead: l, Assessment: domain.AssessLead(l, testNow)}
	}
	th := domain.DefaultPriorityThresholds()
	return &domain.Batch{
		ID:           "batch-1",
		StartedAt:    testNow,
		CompletedAt:  testNow.Add(time.Minute),
		Leads:        leads,
		Assessed:     assessed,
		LeadReport:   domain.AggregateLeads(leads, 2, th),
		Portfolio:    domain.AggregatePortfolio(assessed, 2, th),
		SourceCounts: map[string]int{domain.SourceSimulated: 2, domain.SourceNoMatch: 1},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriter_LoadBatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := NewWriter(dir, domain.DefaultPriorityThresholds(), discardLogger())

	require.NoError(t, w.LoadBatch(context.Background(), testBatch()))

	t.Run("leads database", func(t *testing.T) {
		rows := readCSV(t, filepath.Join(dir, LeadsFile))
		require.Len(t, rows, 4)
		header := rows[0]
		assert.Equal(t, "lead_id", header[0])
		assert.Contains(t, header, "lead_score")
		assert.Contains(t, header, "property_address")
		assert.Contains(t, header, "urgency")

		col := func(name string) int {
			for i, h := range header {
				if h == name {
					return i
				}
			}
			t.Fatalf("missing column %s", name)
			return -1
		}
		first := rows[1]
		assert.Equal(t, "lead-1", first[col("lead_id")])
		assert.Equal(t, "75", first[col("lead_score")])
		assert.Equal(t, domain.PriorityHigh, first[col("priority")])
		assert.Equal(t, "$420,000", first[col("property_value")])
		assert.Equal(t, "32.7800", first[col("lat")])
		assert.Equal(t, "2025-06-12", first[col("event_date")])
		assert.Equal(t, domain.UrgencyCritical, first[col("urgency")])
		assert.Equal(t, "$26,880 – $40,320", first[col("estimated_cost")])

		second := rows[2]
		assert.Empty(t, second[col("property_value")])
		assert.Empty(t, second[col("lat")])
		assert.Empty(t, second[col("event_date")])
		assert.Equal(t, domain.SourceNoMatch, second[col("data_source")])
	})

	t.Run("top leads", func(t *testing.T) {
		rows := readCSV(t, filepath.Join(dir, TopLeadsFile))
		require.Len(t, rows, 3)
		assert.Equal(t, "lead-1", rows[1][0])
		assert.Equal(t, "lead-2", rows[2][0])
	})

	t.Run("regions", func(t *testing.T) {
		rows := readCSV(t, filepath.Join(dir, RegionsFile))
		assert.Equal(t, [][]string{
			{"region", "leads", "avg_score", "avg_magnitude"},
			{"Texas", "2", "47.5", "1.75"},
			{"Oklahoma", "1", "40", "1.75"},
		}, rows)
	})

	t.Run("workbook", func(t *testing.T) {
		f, err := xlsx.OpenFile(filepath.Join(dir, RegionsWorkbookFile))
		require.NoError(t, err)

		regions, ok := f.Sheet["Regions"]
		require.True(t, ok)
		require.Len(t, regions.Rows, 3)
		assert.Equal(t, "Texas", regions.Rows[1].Cells[0].String())
		assert.Equal(t, "2", regions.Rows[1].Cells[1].String())

		summary, ok := f.Sheet["Summary"]
		require.True(t, ok)
		assert.Equal(t, "Batch", summary.Rows[0].Cells[0].String())
		assert.Equal(t, "batch-1", summary.Rows[0].Cells[1].String())
		assert.Equal(t, "3", summary.Rows[2].Cells[1].String())
	})

	t.Run("portfolio json", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(dir, PortfolioFile))
		require.NoError(t, err)

		var doc portfolioDocument
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, "batch-1", doc.BatchID)
		assert.True(t, doc.Degraded)
		assert.Equal(t, 3, doc.LeadReport.Summary.TotalLeads)
		assert.Equal(t, 3, doc.Portfolio.Summary.TotalProperties)
		assert.Len(t, doc.Portfolio.TopLeads, 2)
	})
}

func TestWriter_LoadBatch_Empty(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, domain.DefaultPriorityThresholds(), discardLogger())
	th := domain.DefaultPriorityThresholds()
	batch := &domain.Batch{
		ID:         "empty",
		LeadReport: domain.AggregateLeads(nil, 10, th),
		Portfolio:  domain.AggregatePortfolio(nil, 10, th),
	}

	require.NoError(t, w.LoadBatch(context.Background(), batch))

	rows := readCSV(t, filepath.Join(dir, LeadsFile))
	require.Len(t, rows, 1, "header only")
	rows = readCSV(t, filepath.Join(dir, RegionsFile))
	require.Len(t, rows, 1, "header only")
}

func TestWriter_LoadBatch_Overwrites(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, domain.DefaultPriorityThresholds(), discardLogger())
	batch := testBatch()

	require.NoError(t, w.LoadBatch(context.Background(), batch))
	batch.Assessed = batch.Assessed[:1]
	require.NoError(t, w.LoadBatch(context.Background(), batch))

	assert.Len(t, readCSV(t, filepath.Join(dir, LeadsFile)), 2)
}

func TestWriter_LoadBatch_UnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	err := NewWriter(file, domain.DefaultPriorityThresholds(), discardLogger()).LoadBatch(context.Background(), testBatch())
	require.Error(t, err)
}
