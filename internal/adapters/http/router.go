package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/kirillkom/contract-risk-assistant/internal/config"
	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
	"github.com/kirillkom/contract-risk-assistant/internal/core/ports"
	"github.com/kirillkom/contract-risk-assistant/internal/observability/metrics"
)

// multipartOverhead is allowed on top of the upload limit for form framing.
const multipartOverhead = 1 << 20

type Router struct {
	cfg     config.Config
	ingest  ports.DocumentIngestor
	docs    ports.DocumentReader
	risks   ports.RiskBrowser
	chat    ports.DocumentChat
	metrics *metrics.HTTPServerMetrics
	logger  *slog.Logger
}

type Option func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) Option {
	return func(rt *Router) { rt.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

func NewRouter(
	cfg config.Config,
	ingest ports.DocumentIngestor,
	docs ports.DocumentReader,
	risks ports.RiskBrowser,
	chat ports.DocumentChat,
	opts ...Option,
) *Router {
	rt := &Router{
		cfg:    cfg,
		ingest: ingest,
		docs:   docs,
		risks:  risks,
		chat:   chat,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "route not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})

	r.HandleFunc("/healthz", rt.healthz).Methods(http.MethodGet)
	if rt.metrics != nil {
		r.Handle("/metrics", rt.metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(rt.trafficControl())
	api.Handle("/documents", methodSet{
		http.MethodPost: rt.uploadDocument,
		http.MethodGet:  rt.listDocuments,
	})
	api.Handle("/documents/{id}", methodSet{http.MethodGet: rt.getDocument})
	api.Handle("/documents/{id}/cancel", methodSet{http.MethodPost: rt.cancelDocument})
	api.Handle("/documents/{id}/original", methodSet{http.MethodGet: rt.downloadOriginal})
	api.Handle("/documents/{id}/segments", methodSet{http.MethodGet: rt.documentSegments})
	api.Handle("/documents/{id}/risks", methodSet{http.MethodGet: rt.documentRisks})
	api.Handle("/documents/{id}/risks.xlsx", methodSet{http.MethodGet: rt.exportRisks})
	api.Handle("/chat", methodSet{http.MethodPost: rt.askQuestion})
	api.Handle("/chat/suggestions", methodSet{http.MethodGet: rt.suggestedQuestions})

	var handler http.Handler = r
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

// trafficControl builds the limiter and gate once; mux re-applies subrouter
// middleware on every match, so the shared state must live outside it.
func (rt *Router) trafficControl() mux.MiddlewareFunc {
	reject := func(reason string) func() {
		return func() {
			if rt.metrics != nil {
				rt.metrics.RecordRejected(reason)
			}
		}
	}
	limiter := newRateLimiter(rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, reject("rate_limit"))
	wait := time.Duration(rt.cfg.APIBackpressureWaitMS) * time.Millisecond
	gate := newBackpressureGate(rt.cfg.APIBackpressureMax, wait, reject("backpressure"))
	return func(next http.Handler) http.Handler {
		return limiter.wrap(gate.wrap(next))
	}
}

// methodSet dispatches one /v1 path by method. mux reports a method mismatch
// inside a subrouter as 404, so the 405 is written here.
type methodSet map[string]http.HandlerFunc

func (m methodSet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := m[r.Method]; ok {
		h(w, r)
		return
	}
	allowed := make([]string, 0, len(m))
	for method := range m {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes+multipartOverhead)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	// SectionReader exposes the part size so the pipeline can report progress.
	body := io.NewSectionReader(file, 0, fileHeader.Size)
	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		body,
	)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

type documentList struct {
	Revision  uint64            `json:"revision"`
	Documents []domain.Document `json:"documents"`
}

// listDocuments serves the summary list; the revision doubles as an ETag so
// pollers get 304 while nothing changed.
func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	revision := rt.docs.Revision()
	etag := `"` + strconv.FormatUint(revision, 10) + `"`
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		rt.recordListRead(true)
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	rt.recordListRead(false)

	docs := rt.docs.List()
	for i := range docs {
		docs[i].Content = ""
	}
	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, documentList{Revision: revision, Documents: docs})
}

func (rt *Router) recordListRead(notModified bool) {
	if rt.metrics != nil {
		rt.metrics.RecordListRead(notModified)
	}
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	doc, ok := rt.docs.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("document %s not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) cancelDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := rt.ingest.Cancel(id); err != nil {
		rt.writeError(w, r, err)
		return
	}
	doc, ok := rt.docs.Get(id)
	if !ok {
		writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": string(domain.StatusError)})
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) downloadOriginal(w http.ResponseWriter, r *http.Request) {
	rc, doc, err := rt.ingest.Original(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := doc.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		rt.logger.WarnContext(r.Context(), "original download interrupted", "document_id", doc.ID, "error", err)
	}
}

func (rt *Router) documentSegments(w http.ResponseWriter, r *http.Request) {
	segmentation, err := rt.risks.Highlight(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, segmentation)
}

func (rt *Router) documentRisks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	report, err := rt.risks.Risks(r.Context(), mux.Vars(r)["id"], domain.RiskFilter{
		Level:  query.Get("level"),
		Search: query.Get("q"),
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) exportRisks(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var buf bytes.Buffer
	if err := rt.risks.Export(r.Context(), id, &buf); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", rt.risks.ExportContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-risks.xlsx"`, id))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (rt *Router) askQuestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentID string `json:"document_id"`
		Question   string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	writeJSON(w, http.StatusOK, rt.chat.Ask(r.Context(), strings.TrimSpace(req.DocumentID), req.Question))
}

func (rt *Router) suggestedQuestions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"questions": rt.chat.SuggestedQuestions()})
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.ErrorContext(r.Context(), "request failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
