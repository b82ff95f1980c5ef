package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
	"github.com/kirillkom/contract-risk-assistant/internal/core/ports"
	"github.com/kirillkom/contract-risk-assistant/internal/core/usecase"
)

const defaultSettleTimeout = 2 * time.Minute

// Tools exposes the document operations as MCP tools.
type Tools struct {
	ingest        ports.DocumentIngestor
	store         ports.DocumentStore
	risks         ports.RiskBrowser
	chat          ports.DocumentChat
	logger        *slog.Logger
	settleTimeout time.Duration
}

func NewTools(
	ingest ports.DocumentIngestor,
	store ports.DocumentStore,
	risks ports.RiskBrowser,
	chat ports.DocumentChat,
	logger *slog.Logger,
	settleTimeout time.Duration,
) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	if settleTimeout <= 0 {
		settleTimeout = defaultSettleTimeout
	}
	return &Tools{
		ingest:        ingest,
		store:         store,
		risks:         risks,
		chat:          chat,
		logger:        logger,
		settleTimeout: settleTimeout,
	}
}

func (t *Tools) NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer("contract-risk-assistant", version, server.WithToolCapabilities(false))
	t.Register(s)
	return s
}

func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List uploaded documents with their status and overall risk level."),
	), t.listDocuments)

	s.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Return one document with its summary and risk clauses."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document id")),
	), t.getDocument)

	s.AddTool(mcp.NewTool("analyze_text",
		mcp.WithDescription("Ingest plain text as a new document and wait for its analysis."),
		mcp.WithString("file_name", mcp.Required(), mcp.Description("Name used to title the document, e.g. supply_contract.txt")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Document text")),
	), t.analyzeText)

	s.AddTool(mcp.NewTool("highlight_document",
		mcp.WithDescription("Split a document body into plain and risk-highlighted segments."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document id")),
	), t.highlightDocument)

	s.AddTool(mcp.NewTool("list_risks",
		mcp.WithDescription("List risk clauses of a document filtered by level and search text."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document id")),
		mcp.WithString("level", mcp.Description("all, high, medium or low"), mcp.Enum("all", "high", "medium", "low")),
		mcp.WithString("query", mcp.Description("Case-insensitive text or category filter")),
	), t.listRisks)

	s.AddTool(mcp.NewTool("ask_document",
		mcp.WithDescription("Ask a question about a document: liability, termination, key terms or risks."),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question text")),
		mcp.WithString("document_id", mcp.Description("Selected document id; empty means no selection")),
	), t.askDocument)
}

type documentRow struct {
	ID         string                `json:"id"`
	Title      string                `json:"title"`
	Status     domain.DocumentStatus `json:"status"`
	Progress   float64               `json:"progress"`
	RiskLevel  domain.RiskLevel      `json:"risk_level"`
	UploadDate string                `json:"upload_date"`
	Clauses    int                   `json:"clauses"`
}

func (t *Tools) listDocuments(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs := t.store.List()
	rows := make([]documentRow, 0, len(docs))
	for _, doc := range docs {
		rows = append(rows, documentRow{
			ID:         doc.ID,
			Title:      doc.Title,
			Status:     doc.Status,
			Progress:   doc.Progress,
			RiskLevel:  doc.RiskLevel,
			UploadDate: doc.UploadDate,
			Clauses:    len(doc.RiskClauses),
		})
	}
	return jsonResult(map[string]any{"revision": t.store.Revision(), "documents": rows})
}

func (t *Tools) getDocument(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, ok := t.store.Get(strings.TrimSpace(id))
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("document %s not found", id)), nil
	}
	return jsonResult(doc)
}

func (t *Tools) analyzeText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fileName, err := req.RequireString("file_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := t.ingest.Upload(ctx, fileName, "text/plain", strings.NewReader(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, t.settleTimeout)
	defer cancel()
	settled, err := usecase.AwaitSettled(waitCtx, t.store, doc.ID)
	if err != nil {
		t.logger.Warn("analysis did not settle", "document_id", doc.ID, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("document %s still %s: %v", doc.ID, settled.Status, err)), nil
	}
	if settled.Status == domain.StatusError {
		return mcp.NewToolResultError(fmt.Sprintf("analysis of %s failed: %s", doc.ID, settled.Error)), nil
	}
	return jsonResult(settled)
}

func (t *Tools) highlightDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	segmentation, err := t.risks.Highlight(ctx, strings.TrimSpace(id))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(segmentation)
}

func (t *Tools) listRisks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report, err := t.risks.Risks(ctx, strings.TrimSpace(id), domain.RiskFilter{
		Level:  req.GetString("level", ""),
		Search: req.GetString("query", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report)
}

func (t *Tools) askDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	answer := t.chat.Ask(ctx, req.GetString("document_id", ""), question)
	return jsonResult(answer)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
