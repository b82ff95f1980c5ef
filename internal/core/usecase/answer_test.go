package usecase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
)

func analyzedDocument() domain.Document {
	content := "Vendor accepts capped damages. Vendor shall indemnify Client broadly. Term renews automatically."
	clauses := []domain.RiskClause{
		{
			ID: "r1", Text: "Vendor accepts capped damages.", RiskLevel: domain.RiskMedium,
			Category: "Liability Limitation", Explanation: "Cap is below contract value.",
			Recommendation: "Raise the cap.", StartIndex: 0, EndIndex: 30,
		},
		{
			ID: "r2", Text: "Vendor shall indemnify Client broadly.", RiskLevel: domain.RiskHigh,
			Category: "Indemnification", Explanation: "Indemnity has no carve-outs.",
			Recommendation: "Narrow the indemnity.", StartIndex: 31, EndIndex: 69,
		},
	}
	return domain.Document{
		ID:          "doc-1",
		Title:       "Master Services",
		Content:     content,
		Status:      domain.StatusCompleted,
		RiskLevel:   domain.AggregateRiskLevel(clauses),
		RiskClauses: clauses,
		Summary: &domain.Summary{
			Overview:       "Services agreement between Acme and Globex.",
			KeyPoints:      []string{"Twelve month term", "Net 30 payment"},
			Parties:        map[string]string{"vendor": "Acme", "client": "Globex"},
			FinancialTerms: map[string]string{"fee": "$50,000"},
		},
	}
}

func TestAnswerWithoutDocument(t *testing.T) {
	engine := NewAnswerEngine(DefaultAnswerRules())
	answer := engine.Answer(nil, "summary please")
	assert.Equal(t, domain.AnswerNoDocumentSelected, answer.Kind)
	assert.NotEmpty(t, answer.Text)
}

func TestAnswerLiabilityReferencesMatchingClause(t *testing.T) {
	doc := analyzedDocument()
	engine := NewAnswerEngine(DefaultAnswerRules())

	answer := engine.Answer(&doc, "What are the liability limitations?")
	require.Equal(t, domain.AnswerLiability, answer.Kind)
	require.Len(t, answer.Clauses, 1)
	assert.Equal(t, "r1", answer.Clauses[0].ID)
	assert.Contains(t, answer.Text, "**Risk Identified**: Liability Limitation")
	assert.Contains(t, answer.Text, "**Risk Level**: MEDIUM")
}

func TestAnswerPriorityOrder(t *testing.T) {
	doc := analyzedDocument()
	engine := NewAnswerEngine(DefaultAnswerRules())

	cases := []struct {
		question string
		want     domain.AnswerKind
	}{
		{"Is there any liability risk?", domain.AnswerLiability},
		{"Can I terminate? Give me a summary.", domain.AnswerTermination},
		{"Summary of the risk, please", domain.AnswerSummary},
		{"Any DANGER here?", domain.AnswerRiskList},
		{"Who owns the IP?", domain.AnswerDefault},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, engine.Answer(&doc, tc.question).Kind, tc.question)
	}
}

func TestAnswerFallsThroughWhenRuleHasNoData(t *testing.T) {
	doc := analyzedDocument()
	doc.RiskClauses = []domain.RiskClause{doc.RiskClauses[1]}
	doc.Summary = nil
	engine := NewAnswerEngine(DefaultAnswerRules())

	// no liability clause left, so the risk rule answers
	answer := engine.Answer(&doc, "liability risk?")
	assert.Equal(t, domain.AnswerRiskList, answer.Kind)

	answer = engine.Answer(&doc, "key terms")
	assert.Equal(t, domain.AnswerDefault, answer.Kind)

	doc.RiskClauses = nil
	doc.RiskLevel = domain.RiskLow
	answer = engine.Answer(&doc, "what is risky")
	assert.Equal(t, domain.AnswerDefault, answer.Kind)
	assert.Contains(t, answer.Text, "low risk level overall")
	assert.Len(t, answer.Topics, 5)
}

func TestAnswerRiskListOnlyHighClauses(t *testing.T) {
	doc := analyzedDocument()
	answer := NewAnswerEngine(DefaultAnswerRules()).Answer(&doc, "risk")
	require.Equal(t, domain.AnswerRiskList, answer.Kind)
	require.Len(t, answer.Clauses, 1)
	assert.Equal(t, domain.RiskHigh, answer.Clauses[0].RiskLevel)
	assert.True(t, strings.HasPrefix(answer.Text, "I've identified 1 high-risk clause(s)"))
}

func TestAnswerTerminationGuidance(t *testing.T) {
	doc := analyzedDocument()
	answer := NewAnswerEngine(DefaultAnswerRules()).Answer(&doc, "termination rights")
	require.Equal(t, domain.AnswerTermination, answer.Kind)
	assert.Len(t, answer.Guidance, 3)
	assert.Contains(t, answer.Text, "**Risk Assessment**: HIGH")
}

func TestAnswerIsDeterministic(t *testing.T) {
	doc := analyzedDocument()
	engine := NewAnswerEngine(DefaultAnswerRules())

	first := engine.Answer(&doc, "give me the summary")
	engine.Answer(&doc, "unrelated question")
	engine.Answer(&doc, "liability")
	second := engine.Answer(&doc, "give me the summary")

	assert.Equal(t, first, second)
	assert.Contains(t, first.Text, "**Parties Involved**: client: Globex, vendor: Acme")
}

func TestAnswerDoesNotShareDocumentState(t *testing.T) {
	doc := analyzedDocument()
	answer := NewAnswerEngine(DefaultAnswerRules()).Answer(&doc, "summary")
	answer.Summary.Parties["vendor"] = "changed"
	answer.Summary.KeyPoints[0] = "changed"
	assert.Equal(t, "Acme", doc.Summary.Parties["vendor"])
	assert.Equal(t, "Twelve month term", doc.Summary.KeyPoints[0])
}

func TestParseAnswerRulesKeepsDefaultsForMissingSections(t *testing.T) {
	rules, err := ParseAnswerRules([]byte("termination:\n  - Cancel\n  - \" end the deal \"\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"cancel", "end the deal"}, rules.Termination)
	assert.Equal(t, DefaultAnswerRules().Liability, rules.Liability)

	doc := analyzedDocument()
	answer := NewAnswerEngine(rules).Answer(&doc, "How do I CANCEL?")
	assert.Equal(t, domain.AnswerTermination, answer.Kind)
}

func TestParseAnswerRulesRejectsBadYAML(t *testing.T) {
	_, err := ParseAnswerRules([]byte("liability: [unterminated"))
	assert.Error(t, err)
}

func TestLoadAnswerRulesEmptyPath(t *testing.T) {
	rules, err := LoadAnswerRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAnswerRules(), rules)
}

func TestAnswerQuotesTextVerbatim(t *testing.T) {
	doc := analyzedDocument()
	doc.Title = `Master "Services" Agreement`
	engine := NewAnswerEngine(DefaultAnswerRules())

	answer := engine.Answer(&doc, "Any liability issues?")
	require.Equal(t, domain.AnswerLiability, answer.Kind)
	assert.Contains(t, answer.Text, `Based on my analysis of "Master "Services" Agreement"`)
	assert.Contains(t, answer.Text, `**Clause**: "Vendor accepts capped damages."`)
	assert.NotContains(t, answer.Text, `\"`)
}
