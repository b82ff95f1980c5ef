package httpadapter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/contract-risk-assistant/internal/config"
	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
	"github.com/kirillkom/contract-risk-assistant/internal/core/usecase"
	"github.com/kirillkom/contract-risk-assistant/internal/infrastructure/report/xlsx"
	"github.com/kirillkom/contract-risk-assistant/internal/infrastructure/repository/memory"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type ingestFake struct {
	uploaded  []byte
	filename  string
	uploadErr error
	cancelErr error
}

func (f *ingestFake) Upload(_ context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.uploaded = raw
	f.filename = filename
	now := time.Now().UTC()
	return &domain.Document{
		ID:          "doc-new",
		Title:       "upload",
		FileName:    filename,
		MimeType:    mimeType,
		Status:      domain.StatusProcessing,
		RiskClauses: []domain.RiskClause{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (f *ingestFake) Cancel(string) error {
	return f.cancelErr
}

func (f *ingestFake) Original(_ context.Context, id string) (io.ReadCloser, domain.Document, error) {
	if id != "doc-1" {
		return nil, domain.Document{}, domain.WrapError(domain.ErrDocumentNotFound, "open original", errors.New(id))
	}
	return io.NopCloser(strings.NewReader(seededContent)), seededDocument(), nil
}

const seededContent = "Vendor accepts capped damages. Vendor shall indemnify Client broadly. Term renews automatically."

func seededDocument() domain.Document {
	return domain.Document{
		ID:       "doc-1",
		Title:    "Master Services",
		FileName: "master_services.txt",
		Status:   domain.StatusCompleted,
		Progress: 100,
		Content:  seededContent,
		Summary: &domain.Summary{
			Overview:       "Services agreement between Acme and Globex.",
			KeyPoints:      []string{"Net 30 payment"},
			Parties:        map[string]string{"vendor": "Acme"},
			FinancialTerms: map[string]string{"fee": "$50,000"},
		},
		RiskClauses: []domain.RiskClause{
			{ID: "r1", Text: "Vendor accepts capped damages.", RiskLevel: domain.RiskMedium, Category: "Liability Limitation", StartIndex: 0, EndIndex: 30},
			{ID: "r2", Text: "Vendor shall indemnify Client broadly.", RiskLevel: domain.RiskHigh, Category: "Indemnification", StartIndex: 31, EndIndex: 69},
		},
	}
}

type testEnv struct {
	store   *memory.DocumentStore
	ingest  *ingestFake
	handler http.Handler
}

func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	store := memory.NewDocumentStore(quietLogger)
	if err := store.Add(seededDocument()); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	ingest := &ingestFake{}
	risks := usecase.NewRiskBrowserUseCase(store, xlsx.NewWriter(), nil, quietLogger)
	chat := usecase.NewChatUseCase(store, usecase.NewAnswerEngine(usecase.DefaultAnswerRules()), nil)
	handler := NewRouter(cfg, ingest, store, risks, chat, WithLogger(quietLogger)).Handler()
	return &testEnv{store: store, ingest: ingest, handler: handler}
}

func newTestHandler(cfg config.Config) http.Handler {
	store := memory.NewDocumentStore(quietLogger)
	risks := usecase.NewRiskBrowserUseCase(store, xlsx.NewWriter(), nil, quietLogger)
	chat := usecase.NewChatUseCase(store, usecase.NewAnswerEngine(usecase.DefaultAnswerRules()), nil)
	return NewRouter(cfg, &ingestFake{}, store, risks, chat, WithLogger(quietLogger)).Handler()
}
