package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
	"github.com/kirillkom/contract-risk-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/contract-risk-assistant/internal/infrastructure/resilience"
)

const analyzeOperation = "ollama.analyze"

type modelRisk struct {
	Text           string `json:"text"`
	RiskLevel      string `json:"risk_level"`
	Category       string `json:"category"`
	Explanation    string `json:"explanation"`
	Recommendation string `json:"recommendation"`
}

type modelAnalysis struct {
	Summary domain.Summary `json:"summary"`
	Risks   []modelRisk    `json:"risks"`
}

// Analyzer asks the model for a structured analysis and anchors every
// returned clause in the content to compute its offsets. Long documents are
// sent in overlapping windows; the summary comes from the first window.
type Analyzer struct {
	client   *Client
	executor *resilience.Executor
	splitter *chunking.Splitter
	logger   *slog.Logger
}

func NewAnalyzer(client *Client, executor *resilience.Executor, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		client:   client,
		executor: executor,
		splitter: chunking.NewSplitter(promptWindowRunes, promptOverlapRunes),
		logger:   logger,
	}
}

// WithWindow overrides the prompt window size. Used by tests.
func (a *Analyzer) WithWindow(size, overlap int) *Analyzer {
	a.splitter = chunking.NewSplitter(size, overlap)
	return a
}

func (a *Analyzer) Analyze(ctx context.Context, fileName, content string) (domain.DocumentAnalysis, error) {
	windows := a.splitter.Windows(content)
	if len(windows) == 0 {
		windows = []chunking.Window{{Text: content}}
	}

	var (
		summary domain.Summary
		risks   []windowRisk
	)
	for i, window := range windows {
		parsed, err := a.analyzeWindow(ctx, buildAnalysisPrompt(fileName, window.Text, i+1, len(windows)))
		if err != nil {
			return domain.DocumentAnalysis{}, err
		}
		if i == 0 {
			summary = parsed.Summary
		}
		from, to := window.Start, window.Start+utf8.RuneCountInString(window.Text)
		for _, risk := range parsed.Risks {
			risks = append(risks, windowRisk{modelRisk: risk, from: from, to: to})
		}
	}
	return domain.DocumentAnalysis{
		Summary: normalizeSummary(summary),
		Risks:   a.anchor(content, risks),
	}, nil
}

func (a *Analyzer) analyzeWindow(ctx context.Context, prompt string) (modelAnalysis, error) {
	ask := func(ctx context.Context) (modelAnalysis, error) {
		raw, err := a.client.generateJSON(ctx, prompt)
		if err != nil {
			return modelAnalysis{}, err
		}
		return parseAnalysis(raw)
	}

	var (
		parsed modelAnalysis
		err    error
	)
	if a.executor != nil {
		parsed, err = resilience.Call(ctx, a.executor, analyzeOperation, ask, classifyAnalyzeError)
	} else {
		parsed, err = ask(ctx)
	}
	if err != nil {
		return modelAnalysis{}, asTemporary("analyze document", err)
	}
	return parsed, nil
}

func parseAnalysis(raw string) (modelAnalysis, error) {
	var parsed modelAnalysis
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return modelAnalysis{}, domain.WrapError(domain.ErrMalformedAnalysis, "parse analysis json", err)
	}
	return parsed, nil
}

// windowRisk is a model clause together with the rune range of the window
// that reported it.
type windowRisk struct {
	modelRisk
	from, to int
}

// anchor places each model clause at the first unused occurrence inside the
// window that reported it, and only searches the whole content when the text
// does not occur in that window. A clause whose in-window occurrences are all
// taken was already reported by an overlapping window and is skipped.
// Clauses that cannot be found are dropped.
func (a *Analyzer) anchor(content string, risks []windowRisk) []domain.RiskClause {
	out := make([]domain.RiskClause, 0, len(risks))
	used := make(map[int]bool)
	for _, risk := range risks {
		text := strings.TrimSpace(risk.Text)
		level := domain.RiskLevel(strings.ToLower(strings.TrimSpace(risk.RiskLevel)))
		if text == "" || !level.Valid() {
			a.logger.Warn("model clause rejected", "text", text, "risk_level", risk.RiskLevel)
			continue
		}
		start, ok, present := locateWithin(content, text, used, risk.from, risk.to)
		if !ok && present {
			continue
		}
		if !ok {
			start, ok = locate(content, text, used)
		}
		if !ok {
			a.logger.Warn("model clause not found in document", "text", text)
			continue
		}
		used[start] = true
		out = append(out, domain.RiskClause{
			ID:             fmt.Sprintf("risk-%d", len(out)+1),
			Text:           text,
			RiskLevel:      level,
			Category:       strings.TrimSpace(risk.Category),
			Explanation:    strings.TrimSpace(risk.Explanation),
			Recommendation: strings.TrimSpace(risk.Recommendation),
			StartIndex:     start,
			EndIndex:       start + utf8.RuneCountInString(text),
		})
	}
	return out
}

// locate returns the rune offset of the first occurrence of text not in used.
func locate(content, text string, used map[int]bool) (int, bool) {
	start, ok, _ := locateWithin(content, text, used, 0, math.MaxInt)
	return start, ok
}

// locateWithin returns the rune offset of the first unused occurrence of text
// lying entirely inside the rune range [from, to). present reports whether
// any occurrence lies there, used or not.
func locateWithin(content, text string, used map[int]bool, from, to int) (start int, ok, present bool) {
	textRunes := utf8.RuneCountInString(text)
	offset, runeOffset := 0, 0
	for offset <= len(content) {
		idx := strings.Index(content[offset:], text)
		if idx < 0 {
			return 0, false, present
		}
		byteStart := offset + idx
		runeStart := runeOffset + utf8.RuneCountInString(content[offset:byteStart])
		if runeStart+textRunes > to {
			return 0, false, present
		}
		if runeStart >= from {
			present = true
			if !used[runeStart] {
				return runeStart, true, true
			}
		}
		_, size := utf8.DecodeRuneInString(content[byteStart:])
		offset = byteStart + size
		runeOffset = runeStart + 1
	}
	return 0, false, present
}

func normalizeSummary(s domain.Summary) domain.Summary {
	s.Overview = strings.TrimSpace(s.Overview)
	if s.KeyPoints == nil {
		s.KeyPoints = []string{}
	}
	if s.Parties == nil {
		s.Parties = map[string]string{}
	}
	if s.FinancialTerms == nil {
		s.FinancialTerms = map[string]string{}
	}
	return s
}
