package ports

import (
	"context"
	"io"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
)

// DocumentIngestor is the inbound contract for upload and analysis orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
	Cancel(id string) error
	Original(ctx context.Context, id string) (io.ReadCloser, domain.Document, error)
}

// DocumentReader is the read model exposed to the UI boundary.
type DocumentReader interface {
	Get(id string) (domain.Document, bool)
	List() []domain.Document
	Revision() uint64
}

// RiskBrowser serves the highlighted body and the filtered risk list.
type RiskBrowser interface {
	Highlight(ctx context.Context, documentID string) (domain.Segmentation, error)
	Risks(ctx context.Context, documentID string, filter domain.RiskFilter) (domain.RiskReport, error)
	Export(ctx context.Context, documentID string, w io.Writer) error
	ExportContentType() string
}

// DocumentChat answers questions against a selected document. It never fails:
// missing selections and unknown ids are answer kinds.
type DocumentChat interface {
	Ask(ctx context.Context, documentID, question string) domain.Answer
	SuggestedQuestions() []string
}
