package domain

type SegmentKind string

const (
	SegmentPlain SegmentKind = "plain"
	SegmentRisk  SegmentKind = "risk"
)

// Segment is a contiguous run of document text. Clause is set for risk runs.
type Segment struct {
	Kind   SegmentKind `json:"kind"`
	Text   string      `json:"text"`
	Clause *RiskClause `json:"clause,omitempty"`
}

// Segmentation is the render-ready body of a document. Discarded holds
// clauses dropped because they overlapped an already emitted risk span.
type Segmentation struct {
	Segments  []Segment    `json:"segments"`
	Discarded []RiskClause `json:"discarded,omitempty"`
}
