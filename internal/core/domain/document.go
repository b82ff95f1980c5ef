package domain

import (
	"maps"
	"slices"
	"time"
)

type DocumentStatus string

const (
	StatusUploading  DocumentStatus = "uploading"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusError      DocumentStatus = "error"
)

// UploadDateLayout is the calendar-date format of Document.UploadDate.
const UploadDateLayout = "2006-01-02"

func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusUploading, StatusProcessing, StatusCompleted, StatusError:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is allowed out of s.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// InProgress reports whether Progress carries meaning for s.
func (s DocumentStatus) InProgress() bool {
	return s == StatusUploading || s == StatusProcessing
}

func (s DocumentStatus) rank() int {
	switch s {
	case StatusUploading:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether a document in status s may move to next.
// Progression is monotonic; error interrupts any non-terminal state.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	if !next.Valid() || s.Terminal() {
		return false
	}
	if next == StatusError {
		return true
	}
	return next.rank() >= s.rank()
}

type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

func (l RiskLevel) Valid() bool {
	return l == RiskHigh || l == RiskMedium || l == RiskLow
}

func (l RiskLevel) Severity() int {
	switch l {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	default:
		return 0
	}
}

// AggregateRiskLevel is the most severe level among clauses, low when empty.
func AggregateRiskLevel(clauses []RiskClause) RiskLevel {
	level := RiskLow
	for _, clause := range clauses {
		if clause.RiskLevel.Severity() > level.Severity() {
			level = clause.RiskLevel
		}
	}
	return level
}

type Summary struct {
	Overview       string            `json:"overview" yaml:"overview"`
	KeyPoints      []string          `json:"key_points" yaml:"key_points"`
	Parties        map[string]string `json:"parties" yaml:"parties"`
	FinancialTerms map[string]string `json:"financial_terms" yaml:"financial_terms"`
}

func (s *Summary) Clone() *Summary {
	if s == nil {
		return nil
	}
	return &Summary{
		Overview:       s.Overview,
		KeyPoints:      slices.Clone(s.KeyPoints),
		Parties:        maps.Clone(s.Parties),
		FinancialTerms: maps.Clone(s.FinancialTerms),
	}
}

type RiskClause struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	RiskLevel      RiskLevel `json:"risk_level"`
	Category       string    `json:"category"`
	Explanation    string    `json:"explanation"`
	Recommendation string    `json:"recommendation"`
	StartIndex     int       `json:"start_index"`
	EndIndex       int       `json:"end_index"`
}

type Document struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	FileName    string         `json:"file_name"`
	MimeType    string         `json:"mime_type,omitempty"`
	UploadDate  string         `json:"upload_date"`
	Status      DocumentStatus `json:"status"`
	Progress    float64        `json:"progress"`
	Content     string         `json:"content,omitempty"`
	RiskLevel   RiskLevel      `json:"risk_level"`
	Summary     *Summary       `json:"summary,omitempty"`
	RiskClauses []RiskClause   `json:"risk_clauses"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Clone returns a copy that shares no slices or maps with d.
func (d Document) Clone() Document {
	out := d
	out.Summary = d.Summary.Clone()
	out.RiskClauses = slices.Clone(d.RiskClauses)
	if out.RiskClauses == nil {
		out.RiskClauses = []RiskClause{}
	}
	return out
}

// DocumentPatch lists the fields an update may change. Nil means unchanged.
// RiskLevel is absent on purpose: it is always derived from RiskClauses.
type DocumentPatch struct {
	Title       *string
	Status      *DocumentStatus
	Progress    *float64
	Content     *string
	Summary     *Summary
	RiskClauses *[]RiskClause
	Error       *string
}

// TouchesAnalysis reports whether the patch writes fields frozen at completion.
func (p DocumentPatch) TouchesAnalysis() bool {
	return p.Content != nil || p.Summary != nil || p.RiskClauses != nil
}

// DocumentAnalysis is what an analyzer produces for one document.
type DocumentAnalysis struct {
	Summary Summary      `json:"summary"`
	Risks   []RiskClause `json:"risks"`
}

type RiskFilter struct {
	Level  string `json:"level,omitempty"`
	Search string `json:"search,omitempty"`
}

type RiskReport struct {
	DocumentID string            `json:"document_id"`
	RiskLevel  RiskLevel         `json:"risk_level"`
	Clauses    []RiskClause      `json:"clauses"`
	Counts     map[RiskLevel]int `json:"counts"`
	Total      int               `json:"total"`
}
