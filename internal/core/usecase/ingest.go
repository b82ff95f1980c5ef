package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
	"github.com/kirillkom/contract-risk-assistant/internal/core/ports"
)

const (
	DefaultMaxUploadBytes  int64 = 10 * 1024 * 1024
	DefaultAnalysisTimeout       = 2 * time.Minute

	copyChunkSize = 32 * 1024
	progressStep  = 10.0
)

type IngestConfig struct {
	MaxUploadBytes  int64
	AnalysisTimeout time.Duration
}

type IngestDocumentUseCase struct {
	store     ports.DocumentStore
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	analyzer  ports.DocumentAnalyzer
	observer  ports.IngestObserver
	logger    *slog.Logger
	cfg       IngestConfig
	now       func() time.Time

	baseCtx    context.Context
	stopAll    context.CancelFunc
	mu         sync.Mutex
	inflight   map[string]context.CancelFunc
	background sync.WaitGroup
}

func NewIngestDocumentUseCase(
	store ports.DocumentStore,
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	analyzer ports.DocumentAnalyzer,
	observer ports.IngestObserver,
	logger *slog.Logger,
	cfg IngestConfig,
) *IngestDocumentUseCase {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = DefaultAnalysisTimeout
	}
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	baseCtx, stop := context.WithCancel(context.Background())
	return &IngestDocumentUseCase{
		store:     store,
		storage:   storage,
		extractor: extractor,
		analyzer:  analyzer,
		observer:  observer,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		baseCtx:   baseCtx,
		stopAll:   stop,
		inflight:  make(map[string]context.CancelFunc),
	}
}

// Upload registers the document, stores the raw bytes and schedules analysis
// in the background. The returned document is in the processing state.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("file name is empty"))
	}
	if body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("body is nil"))
	}

	id := uuid.NewString()
	now := uc.now()
	doc := domain.Document{
		ID:          id,
		Title:       titleFromFilename(filename),
		FileName:    filename,
		MimeType:    mimeType,
		UploadDate:  now.Format(domain.UploadDateLayout),
		Status:      domain.StatusUploading,
		RiskClauses: []domain.RiskClause{},
		CreatedAt:   now,
	}
	if err := uc.store.Add(doc); err != nil {
		return nil, fmt.Errorf("register document: %w", err)
	}

	raw, err := uc.receive(id, body, sizeHint(body))
	if err != nil {
		uc.fail(id, err)
		return nil, err
	}

	storageKey := storageKeyFor(id, filename)
	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(raw)); err != nil {
		err = fmt.Errorf("save to object storage: %w", err)
		uc.fail(id, err)
		return nil, err
	}

	if err := uc.store.Update(id, domain.DocumentPatch{
		Status:   statusPtr(domain.StatusProcessing),
		Progress: floatPtr(0),
	}); err != nil {
		return nil, fmt.Errorf("start processing: %w", err)
	}

	uc.schedule(id, filename, mimeType, raw)

	stored, ok := uc.store.Get(id)
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "upload document", fmt.Errorf("id %s", id))
	}
	return &stored, nil
}

// receive copies the body in chunks, publishing upload progress when the
// total size is known and rejecting bodies over the configured limit.
func (uc *IngestDocumentUseCase) receive(id string, body io.Reader, total int64) ([]byte, error) {
	limit := uc.cfg.MaxUploadBytes
	if total > limit {
		return nil, domain.WrapError(domain.ErrInvalidInput, "receive upload",
			fmt.Errorf("file size %d exceeds limit %d", total, limit))
	}

	var buf bytes.Buffer
	chunk := make([]byte, copyChunkSize)
	lastReported := 0.0
	limited := io.LimitReader(body, limit+1)
	for {
		n, err := limited.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if int64(buf.Len()) > limit {
				return nil, domain.WrapError(domain.ErrInvalidInput, "receive upload",
					fmt.Errorf("file exceeds limit %d", limit))
			}
			if total > 0 {
				progress := min(100, float64(buf.Len())*100/float64(total))
				if progress-lastReported >= progressStep {
					lastReported = progress
					uc.setProgress(id, progress)
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read upload body: %w", err)
		}
	}
	if lastReported < 100 {
		uc.setProgress(id, 100)
	}
	return buf.Bytes(), nil
}

func (uc *IngestDocumentUseCase) schedule(id, filename, mimeType string, raw []byte) {
	ctx, cancel := context.WithTimeout(uc.baseCtx, uc.cfg.AnalysisTimeout)
	uc.mu.Lock()
	uc.inflight[id] = cancel
	uc.mu.Unlock()

	uc.background.Add(1)
	go func() {
		defer uc.background.Done()
		defer uc.release(id)
		uc.process(ctx, id, filename, mimeType, raw)
	}()
}

func (uc *IngestDocumentUseCase) release(id string) {
	uc.mu.Lock()
	cancel, ok := uc.inflight[id]
	delete(uc.inflight, id)
	uc.mu.Unlock()
	if ok {
		cancel()
	}
}

func (uc *IngestDocumentUseCase) process(ctx context.Context, id, filename, mimeType string, raw []byte) {
	started := uc.now()
	uc.observer.ObserveIngestStarted()

	err := uc.analyze(ctx, id, filename, mimeType, raw)
	elapsed := uc.now().Sub(started)
	switch {
	case err == nil:
		uc.observer.ObserveIngestFinished(IngestOutcomeCompleted, elapsed)
		uc.logger.Info("document analyzed", "document_id", id, "duration_ms", elapsed.Milliseconds())
	case errors.Is(err, context.Canceled) || domain.IsKind(err, domain.ErrAnalysisCancelled):
		uc.observer.ObserveIngestFinished(IngestOutcomeCancelled, elapsed)
		uc.logger.Info("document analysis cancelled", "document_id", id)
		uc.fail(id, domain.ErrAnalysisCancelled)
	default:
		uc.observer.ObserveIngestFinished(IngestOutcomeFailed, elapsed)
		uc.logger.Error("document analysis failed", "document_id", id, "error", err)
		uc.fail(id, err)
	}
}

func (uc *IngestDocumentUseCase) analyze(ctx context.Context, id, filename, mimeType string, raw []byte) error {
	text, err := uc.extractor.Extract(ctx, filename, mimeType, raw)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.WrapError(domain.ErrUnsupportedContent, "extract text", errors.New("empty extracted text"))
	}
	uc.setProgress(id, 30)

	analysis, err := uc.analyzer.Analyze(ctx, filename, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("analyze document: %w", ctxErr)
		}
		return fmt.Errorf("analyze document: %w", err)
	}
	if err := analysis.Validate(text); err != nil {
		return err
	}
	uc.setProgress(id, 90)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("analyze document: %w", err)
	}
	summary := analysis.Summary
	clauses := analysis.Risks
	if clauses == nil {
		clauses = []domain.RiskClause{}
	}
	if err := uc.store.Update(id, domain.DocumentPatch{
		Status:      statusPtr(domain.StatusCompleted),
		Progress:    floatPtr(100),
		Content:     &text,
		Summary:     &summary,
		RiskClauses: &clauses,
	}); err != nil {
		if domain.IsKind(err, domain.ErrInvalidTransition) {
			return domain.WrapError(domain.ErrAnalysisCancelled, "complete document", err)
		}
		return fmt.Errorf("complete document: %w", err)
	}
	return nil
}

// Cancel stops an in-flight analysis and moves the document to error at once.
func (uc *IngestDocumentUseCase) Cancel(id string) error {
	uc.mu.Lock()
	cancel, ok := uc.inflight[id]
	delete(uc.inflight, id)
	uc.mu.Unlock()
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "cancel analysis", fmt.Errorf("no analysis in flight for %s", id))
	}
	defer cancel()

	msg := domain.ErrAnalysisCancelled.Error()
	if err := uc.store.Update(id, domain.DocumentPatch{
		Status: statusPtr(domain.StatusError),
		Error:  &msg,
	}); err != nil {
		return fmt.Errorf("cancel analysis: %w", err)
	}
	return nil
}

// Original opens the archived upload of a document.
func (uc *IngestDocumentUseCase) Original(ctx context.Context, id string) (io.ReadCloser, domain.Document, error) {
	doc, ok := uc.store.Get(id)
	if !ok {
		return nil, domain.Document{}, domain.WrapError(domain.ErrDocumentNotFound, "open original", fmt.Errorf("id %s", id))
	}
	if doc.Status == domain.StatusUploading {
		return nil, doc, domain.WrapError(domain.ErrInvalidTransition, "open original", errors.New("upload not finished"))
	}
	rc, err := uc.storage.Open(ctx, storageKeyFor(doc.ID, doc.FileName))
	if err != nil {
		return nil, doc, fmt.Errorf("open original %s: %w", id, err)
	}
	return rc, doc, nil
}

// Wait blocks until every scheduled analysis has finished.
func (uc *IngestDocumentUseCase) Wait() {
	uc.background.Wait()
}

// Shutdown cancels in-flight analyses and waits for them to drain or ctx to expire.
func (uc *IngestDocumentUseCase) Shutdown(ctx context.Context) error {
	uc.stopAll()
	done := make(chan struct{})
	go func() {
		uc.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (uc *IngestDocumentUseCase) setProgress(id string, progress float64) {
	if err := uc.store.Update(id, domain.DocumentPatch{Progress: &progress}); err != nil {
		uc.logger.Debug("progress update skipped", "document_id", id, "error", err)
	}
}

func (uc *IngestDocumentUseCase) fail(id string, cause error) {
	msg := cause.Error()
	if err := uc.store.Update(id, domain.DocumentPatch{
		Status: statusPtr(domain.StatusError),
		Error:  &msg,
	}); err != nil {
		if domain.IsKind(err, domain.ErrInvalidTransition) {
			return
		}
		uc.logger.Warn("mark document failed", "document_id", id, "cause", cause, "error", err)
	}
}

// AwaitSettled blocks until the document reaches a terminal status.
func AwaitSettled(ctx context.Context, store ports.DocumentStore, id string) (domain.Document, error) {
	changed := make(chan struct{}, 1)
	unsubscribe := store.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for {
		doc, ok := store.Get(id)
		if !ok {
			return domain.Document{}, domain.WrapError(domain.ErrDocumentNotFound, "await document", fmt.Errorf("id %s", id))
		}
		if doc.Status.Terminal() {
			return doc, nil
		}
		select {
		case <-ctx.Done():
			return doc, ctx.Err()
		case <-changed:
		}
	}
}

func sizeHint(body io.Reader) int64 {
	switch v := body.(type) {
	case interface{ Size() int64 }:
		return v.Size()
	case interface{ Len() int }:
		return int64(v.Len())
	default:
		return 0
	}
}

func titleFromFilename(name string) string {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

func storageKeyFor(id, filename string) string {
	return fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}

func statusPtr(s domain.DocumentStatus) *domain.DocumentStatus { return &s }

func floatPtr(f float64) *float64 { return &f }
