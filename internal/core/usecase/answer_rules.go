package usecase

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AnswerRules holds the trigger vocabulary of the chat router. The order in
// which rules are evaluated is fixed in code and cannot be configured.
type AnswerRules struct {
	Liability            []string `yaml:"liability"`
	LiabilityClauseTerms []string `yaml:"liability_clause_terms"`
	Termination          []string `yaml:"termination"`
	Summary              []string `yaml:"summary"`
	RiskList             []string `yaml:"risk_list"`
}

func DefaultAnswerRules() AnswerRules {
	return AnswerRules{
		Liability:            []string{"liability", "liable"},
		LiabilityClauseTerms: []string{"liability"},
		Termination:          []string{"termination", "terminate"},
		Summary:              []string{"key terms", "summary"},
		RiskList:             []string{"risk", "danger"},
	}
}

// LoadAnswerRules reads a YAML rules file. Sections missing from the file keep
// their defaults; an empty path returns the defaults.
func LoadAnswerRules(path string) (AnswerRules, error) {
	rules := DefaultAnswerRules()
	if strings.TrimSpace(path) == "" {
		return rules, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return AnswerRules{}, fmt.Errorf("read answer rules %s: %w", path, err)
	}
	return ParseAnswerRules(raw)
}

func ParseAnswerRules(raw []byte) (AnswerRules, error) {
	var loaded AnswerRules
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return AnswerRules{}, fmt.Errorf("parse answer rules: %w", err)
	}
	return loaded.withDefaults(), nil
}

// withDefaults lower-cases every term and fills empty sections from the defaults.
func (r AnswerRules) withDefaults() AnswerRules {
	rules := DefaultAnswerRules()
	overlay := func(dst *[]string, src []string) {
		if terms := normalizeTerms(src); len(terms) > 0 {
			*dst = terms
		}
	}
	overlay(&rules.Liability, r.Liability)
	overlay(&rules.LiabilityClauseTerms, r.LiabilityClauseTerms)
	overlay(&rules.Termination, r.Termination)
	overlay(&rules.Summary, r.Summary)
	overlay(&rules.RiskList, r.RiskList)
	return rules
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			out = append(out, term)
		}
	}
	return out
}

func containsAny(haystack string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}
