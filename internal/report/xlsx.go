// Package report renders candidate exports as Excel workbooks.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"example.com/talent/internal/domain"
	"example.com/talent/internal/recency"
)

const (
	CandidatesSheet = "Candidates"
	RecencySheet    = "Recency"
)

var candidateHeaders = []string{"Name", "Email", "Status", "Requisition", "Last Activity", "Recency"}

// WriteCandidates writes an .xlsx workbook listing records and their recency
// labels relative to asOf, plus a per-bucket summary sheet.
func WriteCandidates(w io.Writer, records []domain.CandidateRecord, asOf time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", CandidatesSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(RecencySheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeCandidateSheet(f, records, headerStyle); err != nil {
		return fmt.Errorf("failed to write candidates sheet: %w", err)
	}
	if err := writeRecencySheet(f, records, asOf, headerStyle); err != nil {
		return fmt.Errorf("failed to write recency sheet: %w", err)
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeCandidateSheet(f *excelize.File, records []domain.CandidateRecord, headerStyle int) error {
	if err := writeRow(f, CandidatesSheet, 1, toCells(candidateHeaders)); err != nil {
		return err
	}
	if err := f.SetCellStyle(CandidatesSheet, "A1", "F1", headerStyle); err != nil {
		return err
	}

	for i, rec := range records {
		lastActivity := "never"
		if rec.LastActivityAt != nil {
			lastActivity = rec.LastActivityAt.UTC().Format(time.RFC3339)
		}
		row := []interface{}{
			rec.FullName,
			rec.Email,
			string(rec.Status),
			rec.RequisitionID,
			lastActivity,
			rec.Recency.String(),
		}
		if err := writeRow(f, CandidatesSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(CandidatesSheet, "A", "B", 30); err != nil {
		return err
	}
	if err := f.SetColWidth(CandidatesSheet, "C", "F", 22); err != nil {
		return err
	}
	return f.AutoFilter(CandidatesSheet, fmt.Sprintf("A1:F%d", len(records)+1), nil)
}

func writeRecencySheet(f *excelize.File, records []domain.CandidateRecord, asOf time.Time, headerStyle int) error {
	counts := make(map[recency.Bucket]int, len(recency.Buckets))
	for _, rec := range records {
		counts[rec.Recency]++
	}

	if err := writeRow(f, RecencySheet, 1, []interface{}{"As of", asOf.UTC().Format(time.RFC3339)}); err != nil {
		return err
	}
	if err := writeRow(f, RecencySheet, 3, []interface{}{"Recency", "Candidates"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(RecencySheet, "A3", "B3", headerStyle); err != nil {
		return err
	}

	row := 4
	for _, bucket := range recency.Buckets {
		if err := writeRow(f, RecencySheet, row, []interface{}{bucket.String(), counts[bucket]}); err != nil {
			return err
		}
		row++
	}
	if err := writeRow(f, RecencySheet, row, []interface{}{"Total", len(records)}); err != nil {
		return err
	}
	return f.SetColWidth(RecencySheet, "A", "B", 20)
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
