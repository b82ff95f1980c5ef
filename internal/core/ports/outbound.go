package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
)

// DocumentStore is the process-wide registry of analyzed documents.
type DocumentStore interface {
	Add(doc domain.Document) error
	Update(id string, patch domain.DocumentPatch) error
	Get(id string) (domain.Document, bool)
	List() []domain.Document
	Revision() uint64
	Subscribe(listener func()) (unsubscribe func())
}

// ObjectStorage archives raw uploads.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TextExtractor turns uploaded bytes into document text.
type TextExtractor interface {
	Extract(ctx context.Context, fileName, mimeType string, raw []byte) (string, error)
}

// DocumentAnalyzer produces the analysis of one document. Opaque to the core.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, fileName, content string) (domain.DocumentAnalysis, error)
}

// EventPublisher pushes store change snapshots to external consumers.
type EventPublisher interface {
	PublishDocumentsChanged(ctx context.Context, payload []byte) error
}

// RiskReportWriter renders a document's risk clauses in a downloadable format.
type RiskReportWriter interface {
	ContentType() string
	Write(doc domain.Document, w io.Writer) error
}

// Telemetry hooks. Nil-safe no-op implementations live in the usecase package.

type AnswerObserver interface {
	ObserveAnswer(kind domain.AnswerKind)
}

type SegmentationObserver interface {
	ObserveDiscardedSpans(count int)
}

type IngestObserver interface {
	ObserveIngestStarted()
	ObserveIngestFinished(outcome string, elapsed time.Duration)
}

type ChangeFeedObserver interface {
	ObservePublish(err error)
}
