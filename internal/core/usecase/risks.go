package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
	"github.com/kirillkom/contract-risk-assistant/internal/core/ports"
)

type RiskBrowserUseCase struct {
	docs     ports.DocumentReader
	writer   ports.RiskReportWriter
	observer ports.SegmentationObserver
	logger   *slog.Logger
}

func NewRiskBrowserUseCase(
	docs ports.DocumentReader,
	writer ports.RiskReportWriter,
	observer ports.SegmentationObserver,
	logger *slog.Logger,
) *RiskBrowserUseCase {
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RiskBrowserUseCase{docs: docs, writer: writer, observer: observer, logger: logger}
}

func (uc *RiskBrowserUseCase) load(op, id string) (domain.Document, error) {
	doc, ok := uc.docs.Get(id)
	if !ok {
		return domain.Document{}, domain.WrapError(domain.ErrDocumentNotFound, op, fmt.Errorf("id %s", id))
	}
	return doc, nil
}

// Highlight segments the stored body. Overlapping clauses are logged and
// counted; they never fail the request.
func (uc *RiskBrowserUseCase) Highlight(ctx context.Context, documentID string) (domain.Segmentation, error) {
	doc, err := uc.load("highlight document", documentID)
	if err != nil {
		return domain.Segmentation{}, err
	}
	out, err := SegmentContent(doc.Content, doc.RiskClauses)
	if err != nil {
		return domain.Segmentation{}, fmt.Errorf("highlight document %s: %w", documentID, err)
	}
	if len(out.Discarded) > 0 {
		uc.observer.ObserveDiscardedSpans(len(out.Discarded))
		for _, clause := range out.Discarded {
			uc.logger.WarnContext(ctx, "risk span overlaps an earlier clause, highlight dropped",
				"document_id", documentID,
				"clause_id", clause.ID,
				"start", clause.StartIndex,
				"end", clause.EndIndex,
			)
		}
	}
	return out, nil
}

func (uc *RiskBrowserUseCase) Risks(_ context.Context, documentID string, filter domain.RiskFilter) (domain.RiskReport, error) {
	doc, err := uc.load("list risks", documentID)
	if err != nil {
		return domain.RiskReport{}, err
	}
	level := strings.ToLower(strings.TrimSpace(filter.Level))
	if level != "" && level != "all" && !domain.RiskLevel(level).Valid() {
		return domain.RiskReport{}, domain.WrapError(domain.ErrInvalidInput, "list risks", fmt.Errorf("unknown level %q", filter.Level))
	}
	return FilterRisks(doc, domain.RiskFilter{Level: level, Search: filter.Search}), nil
}

// FilterRisks applies a level and a case-insensitive search over clause text
// and category. Counts always cover every clause of the document.
func FilterRisks(doc domain.Document, filter domain.RiskFilter) domain.RiskReport {
	report := domain.RiskReport{
		DocumentID: doc.ID,
		RiskLevel:  doc.RiskLevel,
		Clauses:    []domain.RiskClause{},
		Counts: map[domain.RiskLevel]int{
			domain.RiskHigh:   0,
			domain.RiskMedium: 0,
			domain.RiskLow:    0,
		},
		Total: len(doc.RiskClauses),
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	for _, clause := range doc.RiskClauses {
		report.Counts[clause.RiskLevel]++
		if filter.Level != "" && filter.Level != "all" && string(clause.RiskLevel) != filter.Level {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(clause.Text), search) &&
			!strings.Contains(strings.ToLower(clause.Category), search) {
			continue
		}
		report.Clauses = append(report.Clauses, clause)
	}
	return report
}

func (uc *RiskBrowserUseCase) Export(_ context.Context, documentID string, w io.Writer) error {
	doc, err := uc.load("export risks", documentID)
	if err != nil {
		return err
	}
	if err := uc.writer.Write(doc, w); err != nil {
		return fmt.Errorf("write risk report %s: %w", documentID, err)
	}
	return nil
}

func (uc *RiskBrowserUseCase) ExportContentType() string {
	return uc.writer.ContentType()
}
