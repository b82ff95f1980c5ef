package heuristic

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
)

type documentType string

const (
	typeContract   documentType = "contract"
	typeAgreement  documentType = "agreement"
	typeEmployment documentType = "employment"
	typeLicense    documentType = "license"
	typeService    documentType = "service"
	typeGeneral    documentType = "general"
)

func detectType(fileName string) documentType {
	name := strings.ToLower(fileName)
	for _, t := range []documentType{typeContract, typeAgreement, typeEmployment, typeLicense, typeService} {
		if strings.Contains(name, string(t)) {
			return t
		}
	}
	return typeGeneral
}

type riskRule struct {
	category       string
	level          domain.RiskLevel
	pattern        *regexp.Regexp
	explanation    string
	recommendation string
	// onlyFor restricts the rule to one document type when set.
	onlyFor documentType
}

var catalogue = []riskRule{
	{
		category:       "Liability",
		level:          domain.RiskHigh,
		pattern:        regexp.MustCompile(`(?i)unlimited\s+liability|liable\s+for\s+all|without\s+(any\s+)?limitation\s+of\s+liability`),
		explanation:    "This clause exposes the party to potentially unlimited financial liability without any caps or limitations, which could result in catastrophic financial losses.",
		recommendation: "Negotiate for liability caps, exclusions for consequential damages, and insurance requirements.",
	},
	{
		category:       "Contract Terms",
		level:          domain.RiskMedium,
		pattern:        regexp.MustCompile(`(?i)automatic(ally)?\s+renew|renews?\s+automatically|auto-renew`),
		explanation:    "The contract automatically renews without providing adequate notice period, potentially trapping parties in unfavorable terms.",
		recommendation: "Add a 60-90 day notice requirement before automatic renewal and include opt-out provisions.",
	},
	{
		category:       "Indemnification",
		level:          domain.RiskHigh,
		pattern:        regexp.MustCompile(`(?i)indemnif(y|ies|ication)|hold\s+harmless`),
		explanation:    "Overly broad indemnification clauses that could require defending against claims unrelated to your actual performance.",
		recommendation: "Limit indemnification to claims directly resulting from negligence or breach of contract.",
	},
	{
		category:       "Termination",
		level:          domain.RiskMedium,
		pattern:        regexp.MustCompile(`(?i)(may|shall|can)\s*not\s+terminate|no\s+right\s+to\s+terminate|non-terminable|irrevocable`),
		explanation:    "Limited ability to terminate the agreement even in case of material breach or changed circumstances.",
		recommendation: "Include termination rights for material breach, insolvency, and change of control events.",
	},
	{
		category:       "Employment",
		level:          domain.RiskHigh,
		pattern:        regexp.MustCompile(`(?i)non-?compet(e|ition)`),
		explanation:    "The non-compete restrictions are overly broad in terms of geography, duration, or scope of restricted activities.",
		recommendation: "Negotiate for reasonable geographic and time limitations, and ensure restrictions are limited to actual competitive activities.",
		onlyFor:        typeEmployment,
	},
	{
		category:       "Jurisdiction",
		level:          domain.RiskLow,
		pattern:        regexp.MustCompile(`(?i)governed\s+by\s+the\s+laws?\s+of|exclusive\s+jurisdiction`),
		explanation:    "Disputes are resolved under a chosen law or forum that may be unfamiliar or costly for your side.",
		recommendation: "Confirm the governing law and venue are acceptable or negotiate a neutral forum.",
	},
}

// Analyzer is a deterministic rule-based analyzer. It needs no network access
// and always returns clause offsets that match the content it was given.
type Analyzer struct{}

func New() *Analyzer {
	return &Analyzer{}
}

func (a *Analyzer) Analyze(ctx context.Context, fileName, content string) (domain.DocumentAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return domain.DocumentAnalysis{}, err
	}
	docType := detectType(fileName)
	return domain.DocumentAnalysis{
		Summary: summaryFor(docType, fileName),
		Risks:   findRisks(docType, content),
	}, nil
}

type span struct{ start, end int }

func findRisks(docType documentType, content string) []domain.RiskClause {
	runes := []rune(content)
	var (
		claimed []span
		found   []domain.RiskClause
	)
	for _, rule := range catalogue {
		if rule.onlyFor != "" && rule.onlyFor != docType {
			continue
		}
		for _, loc := range rule.pattern.FindAllStringIndex(content, -1) {
			matchStart := utf8.RuneCountInString(content[:loc[0]])
			s := sentenceAround(runes, matchStart)
			if s.end <= s.start || overlapsAny(claimed, s) {
				continue
			}
			claimed = append(claimed, s)
			found = append(found, domain.RiskClause{
				Text:           string(runes[s.start:s.end]),
				RiskLevel:      rule.level,
				Category:       rule.category,
				Explanation:    rule.explanation,
				Recommendation: rule.recommendation,
				StartIndex:     s.start,
				EndIndex:       s.end,
			})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].StartIndex < found[j].StartIndex })
	for i := range found {
		found[i].ID = fmt.Sprintf("risk-%d", i+1)
	}
	return found
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == ';' || r == '\n'
}

// sentenceAround returns the trimmed sentence containing the rune at pos.
func sentenceAround(runes []rune, pos int) span {
	start := pos
	for start > 0 && !isTerminator(runes[start-1]) {
		start--
	}
	end := pos
	for end < len(runes) && !isTerminator(runes[end]) {
		end++
	}
	if end < len(runes) && runes[end] != '\n' {
		end++
	}
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return span{start: start, end: end}
}

func overlapsAny(claimed []span, s span) bool {
	for _, c := range claimed {
		if s.start < c.end && c.start < s.end {
			return true
		}
	}
	return false
}

func summaryFor(docType documentType, fileName string) domain.Summary {
	switch docType {
	case typeContract:
		return domain.Summary{
			Overview: fmt.Sprintf("This is a comprehensive %s outlining the terms and conditions between multiple parties. "+
				"The document establishes clear obligations, deliverables, and payment terms with specific performance metrics and compliance requirements.", fileName),
			KeyPoints: []string{
				"Service delivery timeline: 6 months",
				"Payment terms: Net 30 days",
				"Termination clause with 30-day notice",
				"Intellectual property rights assignment",
				"Confidentiality and non-disclosure provisions",
			},
			Parties: map[string]string{
				"contractor": "Primary Contractor",
				"client":     "Client Organization",
				"vendors":    "Third-party Vendors",
			},
			FinancialTerms: map[string]string{
				"total contract value":   "$50,000",
				"monthly payment":        "$8,333",
				"late delivery penalty":  "10%",
				"early completion bonus": "5%",
			},
		}
	case typeAgreement:
		return domain.Summary{
			Overview: fmt.Sprintf("This %s establishes a formal partnership agreement with detailed governance structures, "+
				"profit-sharing mechanisms, and operational guidelines for all involved parties.", fileName),
			KeyPoints: []string{
				"Partnership duration: 5 years",
				"Profit sharing: 60/40 split",
				"Decision-making authority structure",
				"Exit strategy and dissolution terms",
				"Dispute resolution procedures",
			},
			Parties: map[string]string{
				"lead partner":      "Lead Partner",
				"secondary partner": "Secondary Partner",
				"advisors":          "Advisory Board",
			},
			FinancialTerms: map[string]string{
				"initial investment":      "$100,000",
				"profit distributions":    "quarterly",
				"capital calls":           "provided",
				"liquidation preferences": "defined",
			},
		}
	default:
		return domain.Summary{
			Overview: fmt.Sprintf("This %s contains important legal provisions and requirements that need careful review. "+
				"The document outlines various obligations, rights, and procedures that must be followed by all parties involved.", fileName),
			KeyPoints: []string{
				"Compliance requirements clearly defined",
				"Reporting obligations specified",
				"Performance standards established",
				"Review and amendment procedures",
				"Enforcement mechanisms outlined",
			},
			Parties: map[string]string{
				"entity":       "Primary Entity",
				"regulator":    "Regulatory Body",
				"stakeholders": "Stakeholders",
			},
			FinancialTerms: map[string]string{
				"fees":            "Fee structure defined",
				"payments":        "Payment schedules established",
				"penalties":       "Penalty provisions included",
				"cost allocation": "Cost allocation specified",
			},
		}
	}
}
