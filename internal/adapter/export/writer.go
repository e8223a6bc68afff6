// Package export writes a completed batch as CSV, XLSX and JSON files for
// sales teams and spreadsheet users.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/storm-leads/internal/domain"
	"github.com/jszwec/csvutil"
	"github.com/tealeg/xlsx/v2"
)

// Output file names. Each batch overwrites the previous one.
const (
	LeadsFile           = "leads_database.csv"
	TopLeadsFile        = "top_leads.csv"
	RegionsFile         = "leads_by_region.csv"
	RegionsWorkbookFile = "leads_by_region.xlsx"
	PortfolioFile       = "portfolio_report.json"
)

// Writer implements pipeline.BatchLoader by writing files into a directory.
type Writer struct {
	dir        string
	thresholds domain.PriorityThresholds
	logger     *slog.Logger
}

// NewWriter creates a Writer for dir. The directory is created on first use.
func NewWriter(dir string, thresholds domain.PriorityThresholds, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, thresholds: thresholds, logger: logger}
}

// LoadBatch writes every export file for the batch.
func (w *Writer) LoadBatch(_ context.Context, batch *domain.Batch) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	steps := []struct {
		name  string
		write func(path string) error
	}{
		{LeadsFile, func(p string) error { return w.writeLeads(p, batch.Assessed) }},
		{TopLeadsFile, func(p string) error { return w.writeLeads(p, batch.Portfolio.TopLeads) }},
		{RegionsFile, func(p string) error { return writeRegions(p, batch.LeadReport.Regions) }},
		{RegionsWorkbookFile, func(p string) error { return writeRegionsWorkbook(p, batch) }},
		{PortfolioFile, func(p string) error { return writeJSON(p, batch) }},
	}
	for _, s := range steps {
		if err := s.write(filepath.Join(w.dir, s.name)); err != nil {
			return fmt.Errorf("export %s: %w", s.name, err)
		}
	}
	w.logger.Info("batch exported", "dir", w.dir, "batch_id", batch.ID, "leads", len(batch.Assessed))
	return nil
}

// leadRow is one line of the lead CSV files.
type leadRow struct {
	LeadID            string  `csv:"lead_id"`
	EventID           string  `csv:"event_id"`
	EventType         string  `csv:"event_type"`
	Region            string  `csv:"region"`
	Place             string  `csv:"place"`
	Lat               string  `csv:"lat"`
	Lon               string  `csv:"lon"`
	Magnitude         float64 `csv:"magnitude"`
	EventDate         string  `csv:"event_date"`
	OwnerName         string  `csv:"owner_name"`
	OwnerPhone        string  `csv:"owner_phone"`
	OwnerEmail        string  `csv:"owner_email"`
	PropertyAddress   string  `csv:"property_address"`
	PropertyValue     string  `csv:"property_value"`
	PropertyType      string  `csv:"property_type"`
	Source            string  `csv:"data_source"`
	Score             int     `csv:"lead_score"`
	Priority          string  `csv:"priority"`
	DamageProbability string  `csv:"damage_probability"`
	RecommendedAction string  `csv:"recommended_action"`
	EstimatedCost     string  `csv:"estimated_cost"`
	OutOfPocket       string  `csv:"out_of_pocket"`
	Urgency           string  `csv:"urgency"`
}

func (w *Writer) newLeadRow(a domain.AssessedLead) leadRow {
	l := a.Lead
	row := leadRow{
		LeadID:            l.ID,
		EventID:           l.EventID,
		EventType:         l.EventType,
		Region:            l.RegionName,
		Place:             l.Place,
		Magnitude:         l.Magnitude,
		OwnerName:         l.OwnerName,
		OwnerPhone:        l.OwnerPhone,
		OwnerEmail:        l.OwnerEmail,
		PropertyAddress:   l.PropertyAddress,
		PropertyType:      l.PropertyType,
		Source:            l.Source,
		Score:             l.Score,
		Priority:          w.thresholds.Bucket(l.Score),
		DamageProbability: a.Assessment.DamageProbability,
		RecommendedAction: a.Assessment.RecommendedAction,
		EstimatedCost:     a.Assessment.Cost.EstimatedRange,
		OutOfPocket:       a.Assessment.Cost.OutOfPocket,
		Urgency:           a.Assessment.Urgency,
	}
	if l.Geo != nil {
		row.Lat = strconv.FormatFloat(l.Geo.Lat, 'f', 4, 64)
		row.Lon = strconv.FormatFloat(l.Geo.Lon, 'f', 4, 64)
	}
	if !l.BeginTime.IsZero() {
		row.EventDate = l.BeginTime.Format("2006-01-02")
	}
	if l.PropertyValue != nil {
		row.PropertyValue = domain.FormatMoney(*l.PropertyValue)
	}
	return row
}

func (w *Writer) writeLeads(path string, leads []domain.AssessedLead) error {
	return writeCSV(path, leadRow{}, func(enc *csvutil.Encoder) error {
		for _, a := range leads {
			if err := enc.Encode(w.newLeadRow(a)); err != nil {
				return err
			}
		}
		return nil
	})
}

type regionRow struct {
	Region           string  `csv:"region"`
	Leads            int     `csv:"leads"`
	AverageScore     float64 `csv:"avg_score"`
	AverageMagnitude float64 `csv:"avg_magnitude"`
}

func writeRegions(path string, regions []domain.RegionRollup) error {
	return writeCSV(path, regionRow{}, func(enc *csvutil.Encoder) error {
		for _, r := range regions {
			row := regionRow{
				Region:           r.RegionName,
				Leads:            r.Leads,
				AverageScore:     round2(r.AverageScore),
				AverageMagnitude: round2(r.AverageMagnitude),
			}
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeCSV writes the header of header's type, then whatever rows fn encodes.
// The header is written even when there are no rows.
func writeCSV(path string, header any, fn func(*csvutil.Encoder) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	cw := csv.NewWriter(f)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(header); err != nil {
		return err
	}
	if err := fn(enc); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func writeRegionsWorkbook(path string, batch *domain.Batch) error {
	f := xlsx.NewFile()

	regions, err := f.AddSheet("Regions")
	if err != nil {
		return err
	}
	addStringRow(regions, "Region", "Leads", "Avg Score", "Avg Magnitude")
	for _, r := range batch.LeadReport.Regions {
		row := regions.AddRow()
		row.AddCell().SetString(r.RegionName)
		row.AddCell().SetInt(r.Leads)
		row.AddCell().SetFloat(round2(r.AverageScore))
		row.AddCell().SetFloat(round2(r.AverageMagnitude))
	}

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return err
	}
	s := batch.LeadReport.Summary
	p := batch.Portfolio
	for _, kv := range [][2]string{
		{"Batch", batch.ID},
		{"Completed", batch.CompletedAt.Format("2006-01-02 15:04:05 MST")},
		{"Total leads", strconv.Itoa(s.TotalLeads)},
		{"High priority", strconv.Itoa(s.Priority.High)},
		{"Medium priority", strconv.Itoa(s.Priority.Medium)},
		{"Low priority", strconv.Itoa(s.Priority.Low)},
		{"Regions covered", strconv.Itoa(s.RegionsCovered)},
		{"Places covered", strconv.Itoa(s.PlacesCovered)},
		{"Average score", strconv.FormatFloat(round2(s.AverageScore), 'f', 2, 64)},
		{"Estimated pipeline value", domain.FormatMoney(p.Summary.TotalEstimatedValue)},
		{"Roof replacements", strconv.Itoa(p.Opportunities.RoofReplacements)},
		{"Inspections needed", strconv.Itoa(p.Opportunities.InspectionsNeeded)},
		{"Insurance claims", strconv.Itoa(p.Opportunities.InsuranceClaims)},
	} {
		addStringRow(summary, kv[0], kv[1])
	}

	return f.Save(path)
}

func addStringRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// portfolioDocument is the JSON export: both reports plus batch provenance.
type portfolioDocument struct {
	BatchID      string                 `json:"batch_id"`
	StartedAt    string                 `json:"started_at"`
	CompletedAt  string                 `json:"completed_at"`
	Degraded     bool                   `json:"degraded"`
	SkippedYears []int                  `json:"skipped_years"`
	SourceCounts map[string]int         `json:"source_counts"`
	LeadReport   domain.LeadReport      `json:"lead_report"`
	Portfolio    domain.PortfolioReport `json:"portfolio_report"`
}

func writeJSON(path string, batch *domain.Batch) error {
	doc := portfolioDocument{
		BatchID:      batch.ID,
		StartedAt:    batch.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		CompletedAt:  batch.CompletedAt.Format("2006-01-02T15:04:05Z07:00"),
		Degraded:     batch.Degraded(),
		SkippedYears: batch.SkippedYears,
		SourceCounts: batch.SourceCounts,
		LeadReport:   batch.LeadReport,
		Portfolio:    batch.Portfolio,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
