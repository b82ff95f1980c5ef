package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidateClauses checks content and every clause against it. Offsets are
// counted in code points. Content that is not UTF-8 is ErrInvalidEncoding, an
// unknown risk level is ErrInvalidInput, any span problem is ErrInvalidSpan.
func ValidateClauses(content string, clauses []RiskClause) error {
	if err := ValidateContent(content); err != nil {
		return err
	}
	if len(clauses) == 0 {
		return nil
	}
	runes := []rune(content)
	seen := make(map[string]struct{}, len(clauses))
	for _, clause := range clauses {
		if !clause.RiskLevel.Valid() {
			return WrapError(ErrInvalidInput, "validate clause "+clause.ID, fmt.Errorf("unknown risk level %q", clause.RiskLevel))
		}
		if err := validateSpan(runes, clause); err != nil {
			return WrapError(ErrInvalidSpan, "validate clause "+clause.ID, err)
		}
		if _, dup := seen[clause.ID]; dup {
			return WrapError(ErrInvalidSpan, "validate clause "+clause.ID, errors.New("duplicate clause id"))
		}
		seen[clause.ID] = struct{}{}
	}
	return nil
}

// ValidateContent rejects content whose bytes are not valid UTF-8.
func ValidateContent(content string) error {
	if !utf8.ValidString(content) {
		return WrapError(ErrInvalidEncoding, "validate content", errors.New("invalid byte sequence"))
	}
	return nil
}

// ValidateSpan checks a single clause against the code points of a document.
func ValidateSpan(runes []rune, clause RiskClause) error {
	if err := validateSpan(runes, clause); err != nil {
		return WrapError(ErrInvalidSpan, "validate clause "+clause.ID, err)
	}
	return nil
}

func validateSpan(runes []rune, clause RiskClause) error {
	switch {
	case clause.StartIndex < 0:
		return fmt.Errorf("start %d is negative", clause.StartIndex)
	case clause.StartIndex >= clause.EndIndex:
		return fmt.Errorf("empty or inverted span [%d,%d)", clause.StartIndex, clause.EndIndex)
	case clause.EndIndex > len(runes):
		return fmt.Errorf("end %d exceeds content length %d", clause.EndIndex, len(runes))
	}
	if got := string(runes[clause.StartIndex:clause.EndIndex]); got != clause.Text {
		return fmt.Errorf("span [%d,%d) holds %q, clause text is %q", clause.StartIndex, clause.EndIndex, got, clause.Text)
	}
	return nil
}

// Validate checks the analyzer contract: a summary overview, known risk
// levels, non-empty ids and spans that match content.
func (a DocumentAnalysis) Validate(content string) error {
	if strings.TrimSpace(a.Summary.Overview) == "" {
		return WrapError(ErrMalformedAnalysis, "validate analysis", errors.New("summary overview is empty"))
	}
	for i, risk := range a.Risks {
		if strings.TrimSpace(risk.ID) == "" {
			return WrapError(ErrMalformedAnalysis, "validate analysis", fmt.Errorf("risk #%d has no id", i))
		}
		if !risk.RiskLevel.Valid() {
			return WrapError(ErrMalformedAnalysis, "validate analysis", fmt.Errorf("risk %s has level %q", risk.ID, risk.RiskLevel))
		}
	}
	if err := ValidateClauses(content, a.Risks); err != nil {
		return WrapError(ErrMalformedAnalysis, "validate analysis", err)
	}
	return nil
}

// RuneLen is the length of s in code points, the unit of clause offsets.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
