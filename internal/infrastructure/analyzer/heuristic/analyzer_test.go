package heuristic

import (
	"context"
	"testing"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
)

const sampleContract = `SERVICES CONTRACT
1. The Supplier accepts unlimited liability for any loss arising under this contract.
2. This contract renews automatically every year.
3. The Client shall pay within 30 days; the Supplier shall indemnify the Client against all claims.
4. This contract is governed by the laws of Delaware.`

func TestAnalyzeProducesValidAnalysis(t *testing.T) {
	analysis, err := New().Analyze(context.Background(), "services_contract.txt", sampleContract)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if err := analysis.Validate(sampleContract); err != nil {
		t.Fatalf("analysis must satisfy the analyzer contract: %v", err)
	}

	categories := map[string]domain.RiskLevel{}
	for _, risk := range analysis.Risks {
		categories[risk.Category] = risk.RiskLevel
	}
	want := map[string]domain.RiskLevel{
		"Liability":       domain.RiskHigh,
		"Contract Terms":  domain.RiskMedium,
		"Indemnification": domain.RiskHigh,
		"Jurisdiction":    domain.RiskLow,
	}
	for category, level := range want {
		if categories[category] != level {
			t.Fatalf("expected %s at %s, got %q (all: %v)", category, level, categories[category], categories)
		}
	}
	if analysis.Risks[0].ID != "risk-1" || analysis.Risks[0].Category != "Liability" {
		t.Fatalf("expected clauses ordered by offset, got %+v", analysis.Risks[0])
	}
	if analysis.Summary.Parties["contractor"] != "Primary Contractor" {
		t.Fatalf("expected contract summary template, got %+v", analysis.Summary)
	}
}

func TestAnalyzeUsesRuneOffsets(t *testing.T) {
	content := "Préambule – für alle Parteien. Der Lieferant übernimmt unlimited liability für Schäden."
	analysis, err := New().Analyze(context.Background(), "vertrag.txt", content)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(analysis.Risks) != 1 {
		t.Fatalf("expected one clause, got %d", len(analysis.Risks))
	}
	risk := analysis.Risks[0]
	if got := string([]rune(content)[risk.StartIndex:risk.EndIndex]); got != risk.Text {
		t.Fatalf("offsets do not address clause text: %q vs %q", got, risk.Text)
	}
	if risk.Text != "Der Lieferant übernimmt unlimited liability für Schäden." {
		t.Fatalf("unexpected sentence %q", risk.Text)
	}
}

func TestNonCompeteOnlyForEmploymentDocuments(t *testing.T) {
	content := "The employee agrees to a non-compete covenant for five years."
	general, _ := New().Analyze(context.Background(), "memo.txt", content)
	if len(general.Risks) != 0 {
		t.Fatalf("expected no clauses for general document, got %+v", general.Risks)
	}
	employment, _ := New().Analyze(context.Background(), "employment_terms.txt", content)
	if len(employment.Risks) != 1 || employment.Risks[0].Category != "Employment" {
		t.Fatalf("expected employment clause, got %+v", employment.Risks)
	}
}

func TestOneClausePerSentence(t *testing.T) {
	content := "Supplier shall indemnify and hold harmless the Client with unlimited liability."
	analysis, _ := New().Analyze(context.Background(), "x.txt", content)
	if len(analysis.Risks) != 1 {
		t.Fatalf("expected sentence to be flagged once, got %d", len(analysis.Risks))
	}
	if analysis.Risks[0].Category != "Liability" {
		t.Fatalf("expected catalogue order to win, got %s", analysis.Risks[0].Category)
	}
}

func TestAnalyzeHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Analyze(ctx, "a.txt", "text"); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestDetectType(t *testing.T) {
	cases := map[string]documentType{
		"Lease_Agreement.pdf": typeAgreement,
		"EMPLOYMENT.docx":     typeEmployment,
		"saas-license.txt":    typeLicense,
		"notes.txt":           typeGeneral,
		"contract-agreement":  typeContract,
	}
	for name, want := range cases {
		if got := detectType(name); got != want {
			t.Fatalf("%s: expected %s, got %s", name, want, got)
		}
	}
}
