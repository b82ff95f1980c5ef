package domain

type AnswerKind string

const (
	AnswerNoDocumentSelected AnswerKind = "no_document_selected"
	AnswerDocumentNotFound   AnswerKind = "document_not_found"
	AnswerSummary            AnswerKind = "summary"
	AnswerLiability          AnswerKind = "liability"
	AnswerRiskList           AnswerKind = "risk_list"
	AnswerTermination        AnswerKind = "termination"
	AnswerDefault            AnswerKind = "default"
)

type Answer struct {
	Kind          AnswerKind   `json:"kind"`
	DocumentID    string       `json:"document_id,omitempty"`
	DocumentTitle string       `json:"document_title,omitempty"`
	RiskLevel     RiskLevel    `json:"risk_level,omitempty"`
	Summary       *Summary     `json:"summary,omitempty"`
	Clauses       []RiskClause `json:"clauses,omitempty"`
	Guidance      []string     `json:"guidance,omitempty"`
	Topics        []string     `json:"topics,omitempty"`
	Text          string       `json:"text"`
}
