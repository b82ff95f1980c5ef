package usecase

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
)

const (
	noDocumentText       = "Please select a document first so I can provide specific analysis and answers about its content."
	documentNotFoundText = "I couldn't find the selected document. Please try selecting it again."
)

var terminationGuidance = []string{
	"Either party may terminate with proper notice",
	"Specific obligations survive termination",
	"Data and confidentiality provisions remain in effect",
}

var supportedTopics = []string{
	"Contract terms and conditions analysis",
	"Risk assessment and identification",
	"Compliance requirements",
	"Liability and indemnification clauses",
	"Termination and renewal provisions",
}

var suggestedQuestions = []string{
	"What are the key terms of this agreement?",
	"Are there any liability limitations I should be concerned about?",
	"What happens if I want to terminate this contract?",
	"What are my obligations under this agreement?",
	"Are there any automatic renewal clauses?",
	"What intellectual property rights are involved?",
}

// AnswerEngine routes a question to the first matching rule. It never calls an
// external model and is deterministic for a given document and question.
type AnswerEngine struct {
	rules AnswerRules
}

func NewAnswerEngine(rules AnswerRules) *AnswerEngine {
	return &AnswerEngine{rules: rules.withDefaults()}
}

type answerRule func(doc *domain.Document, question string) (domain.Answer, bool)

func (e *AnswerEngine) Answer(doc *domain.Document, question string) domain.Answer {
	if doc == nil {
		return domain.Answer{Kind: domain.AnswerNoDocumentSelected, Text: noDocumentText}
	}
	q := strings.ToLower(question)
	for _, rule := range []answerRule{e.liability, e.termination, e.summary, e.riskList} {
		if answer, ok := rule(doc, q); ok {
			return answer
		}
	}
	return e.fallback(doc)
}

func (e *AnswerEngine) liability(doc *domain.Document, q string) (domain.Answer, bool) {
	if !containsAny(q, e.rules.Liability) {
		return domain.Answer{}, false
	}
	for _, clause := range doc.RiskClauses {
		if containsAny(strings.ToLower(clause.Category), e.rules.LiabilityClauseTerms) ||
			containsAny(strings.ToLower(clause.Text), e.rules.LiabilityClauseTerms) {
			var b strings.Builder
			fmt.Fprintf(&b, "Based on my analysis of \"%s\", I found significant liability concerns:\n\n", doc.Title)
			fmt.Fprintf(&b, "**Risk Identified**: %s\n\n", clause.Category)
			fmt.Fprintf(&b, "**Clause**: \"%s\"\n\n", clause.Text)
			fmt.Fprintf(&b, "**Risk Level**: %s\n\n", upperLevel(clause.RiskLevel))
			fmt.Fprintf(&b, "**Explanation**: %s\n\n", clause.Explanation)
			fmt.Fprintf(&b, "**Recommendation**: %s", clause.Recommendation)
			return e.answer(doc, domain.AnswerLiability, b.String(), withClauses(clause)), true
		}
	}
	return domain.Answer{}, false
}

func (e *AnswerEngine) termination(doc *domain.Document, q string) (domain.Answer, bool) {
	if !containsAny(q, e.rules.Termination) {
		return domain.Answer{}, false
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Regarding termination in \"%s\":\n\n", doc.Title)
	b.WriteString("**Current Terms**: Based on the document analysis, termination provisions include standard notice requirements.\n\n")
	b.WriteString("**Key Points**:\n")
	writeBullets(&b, terminationGuidance)
	fmt.Fprintf(&b, "\n\n**Risk Assessment**: %s risk level detected for termination clauses.\n\n", upperLevel(doc.RiskLevel))
	b.WriteString("Would you like me to analyze specific termination risks in more detail?")
	answer := e.answer(doc, domain.AnswerTermination, b.String())
	answer.Guidance = slices.Clone(terminationGuidance)
	return answer, true
}

func (e *AnswerEngine) summary(doc *domain.Document, q string) (domain.Answer, bool) {
	if !containsAny(q, e.rules.Summary) || doc.Summary == nil {
		return domain.Answer{}, false
	}
	s := doc.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "Here's a summary of \"%s\":\n\n", doc.Title)
	fmt.Fprintf(&b, "**Overview**: %s\n\n", s.Overview)
	b.WriteString("**Key Points**:\n")
	writeBullets(&b, s.KeyPoints)
	fmt.Fprintf(&b, "\n\n**Parties Involved**: %s\n\n", joinSorted(s.Parties))
	fmt.Fprintf(&b, "**Financial Terms**: %s\n\n", joinSorted(s.FinancialTerms))
	fmt.Fprintf(&b, "**Overall Risk Level**: %s\n\n", upperLevel(doc.RiskLevel))
	b.WriteString("Would you like me to elaborate on any specific aspect?")
	answer := e.answer(doc, domain.AnswerSummary, b.String())
	answer.Summary = s.Clone()
	return answer, true
}

func (e *AnswerEngine) riskList(doc *domain.Document, q string) (domain.Answer, bool) {
	if !containsAny(q, e.rules.RiskList) {
		return domain.Answer{}, false
	}
	var high []domain.RiskClause
	for _, clause := range doc.RiskClauses {
		if clause.RiskLevel == domain.RiskHigh {
			high = append(high, clause)
		}
	}
	if len(high) == 0 {
		return domain.Answer{}, false
	}
	var b strings.Builder
	fmt.Fprintf(&b, "I've identified %d high-risk clause(s) in \"%s\":\n\n", len(high), doc.Title)
	for i, clause := range high {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "**%d. %s**\n\"%s\"\n\n*Risk*: %s\n*Recommendation*: %s",
			i+1, clause.Category, clause.Text, clause.Explanation, clause.Recommendation)
	}
	b.WriteString("\n\nWould you like me to analyze any of these risks in more detail?")
	return e.answer(doc, domain.AnswerRiskList, b.String(), withClauses(high...)), true
}

func (e *AnswerEngine) fallback(doc *domain.Document) domain.Answer {
	var b strings.Builder
	fmt.Fprintf(&b, "I'm analyzing \"%s\" for you. This document has a %s risk level overall.\n\n", doc.Title, doc.RiskLevel)
	b.WriteString("I can help you with:\n")
	writeBullets(&b, supportedTopics)
	b.WriteString("\n\nWhat specific aspect would you like me to focus on? You can also try one of the suggested questions.")
	answer := e.answer(doc, domain.AnswerDefault, b.String())
	answer.Topics = slices.Clone(supportedTopics)
	return answer
}

type answerOption func(*domain.Answer)

func withClauses(clauses ...domain.RiskClause) answerOption {
	return func(a *domain.Answer) {
		a.Clauses = slices.Clone(clauses)
	}
}

func (e *AnswerEngine) answer(doc *domain.Document, kind domain.AnswerKind, text string, opts ...answerOption) domain.Answer {
	a := domain.Answer{
		Kind:          kind,
		DocumentID:    doc.ID,
		DocumentTitle: doc.Title,
		RiskLevel:     doc.RiskLevel,
		Text:          text,
	}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

func writeBullets(b *strings.Builder, items []string) {
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("• ")
		b.WriteString(item)
	}
}

// joinSorted renders role/value pairs in key order so output is stable.
func joinSorted(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+m[k])
	}
	return strings.Join(parts, ", ")
}

func upperLevel(level domain.RiskLevel) string {
	return strings.ToUpper(string(level))
}

func SuggestedQuestions() []string {
	return slices.Clone(suggestedQuestions)
}
