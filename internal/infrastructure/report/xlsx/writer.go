package xlsx

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	risksSheet   = "Risks"
	summarySheet = "Summary"
)

var riskHeader = []any{"ID", "Level", "Category", "Text", "Explanation", "Recommendation", "Start", "End"}

// Writer renders a document's risk clauses as an .xlsx workbook with a
// clause sheet and a summary sheet.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) ContentType() string {
	return ContentType
}

func (w *Writer) Write(doc domain.Document, out io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", risksSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeRisks(f, doc.RiskClauses); err != nil {
		return err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	if err := writeSummary(f, doc); err != nil {
		return err
	}

	if err := f.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRisks(f *excelize.File, clauses []domain.RiskClause) error {
	if err := f.SetSheetRow(risksSheet, "A1", &riskHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(risksSheet, "A1", "H1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, clause := range clauses {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			clause.ID,
			string(clause.RiskLevel),
			clause.Category,
			clause.Text,
			clause.Explanation,
			clause.Recommendation,
			clause.StartIndex,
			clause.EndIndex,
		}
		if err := f.SetSheetRow(risksSheet, cell, &row); err != nil {
			return fmt.Errorf("write clause %s: %w", clause.ID, err)
		}
	}
	if err := f.SetColWidth(risksSheet, "D", "F", 60); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, doc domain.Document) error {
	rows := [][]any{
		{"Document", doc.Title},
		{"File", doc.FileName},
		{"Uploaded", doc.UploadDate},
		{"Overall risk", string(doc.RiskLevel)},
		{"Clauses", len(doc.RiskClauses)},
	}
	if doc.Summary != nil {
		rows = append(rows, []any{"Overview", doc.Summary.Overview})
		for _, point := range doc.Summary.KeyPoints {
			rows = append(rows, []any{"Key point", point})
		}
		rows = appendSorted(rows, "Party", doc.Summary.Parties)
		rows = appendSorted(rows, "Financial term", doc.Summary.FinancialTerms)
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	return nil
}

func appendSorted(rows [][]any, label string, values map[string]string) [][]any {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rows = append(rows, []any{label, k, values[k]})
	}
	return rows
}
