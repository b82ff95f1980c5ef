package usecase

import (
	"sort"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
)

// SegmentContent splits content into plain and risk runs. Clauses that start
// inside an already emitted risk span are skipped and returned in Discarded.
func SegmentContent(content string, risks []domain.RiskClause) (domain.Segmentation, error) {
	if err := domain.ValidateContent(content); err != nil {
		return domain.Segmentation{}, err
	}
	runes := []rune(content)
	for _, risk := range risks {
		if err := domain.ValidateSpan(runes, risk); err != nil {
			return domain.Segmentation{}, err
		}
	}

	sorted := make([]domain.RiskClause, len(risks))
	copy(sorted, risks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].StartIndex != sorted[j].StartIndex {
			return sorted[i].StartIndex < sorted[j].StartIndex
		}
		return sorted[i].EndIndex < sorted[j].EndIndex
	})

	out := domain.Segmentation{Segments: make([]domain.Segment, 0, 2*len(sorted)+1)}
	cursor := 0
	for i := range sorted {
		risk := sorted[i]
		if risk.StartIndex < cursor {
			out.Discarded = append(out.Discarded, risk)
			continue
		}
		if risk.StartIndex > cursor {
			out.Segments = append(out.Segments, domain.Segment{
				Kind: domain.SegmentPlain,
				Text: string(runes[cursor:risk.StartIndex]),
			})
		}
		out.Segments = append(out.Segments, domain.Segment{
			Kind:   domain.SegmentRisk,
			Text:   string(runes[risk.StartIndex:risk.EndIndex]),
			Clause: &risk,
		})
		cursor = risk.EndIndex
	}
	if cursor < len(runes) {
		out.Segments = append(out.Segments, domain.Segment{
			Kind: domain.SegmentPlain,
			Text: string(runes[cursor:]),
		})
	}
	return out, nil
}
