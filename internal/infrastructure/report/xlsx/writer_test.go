package xlsx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
)

func TestWriteRiskWorkbook(t *testing.T) {
	doc := domain.Document{
		ID:         "doc-1",
		Title:      "Supply Contract",
		FileName:   "supply_contract.txt",
		UploadDate: "2026-10-15",
		RiskLevel:  domain.RiskHigh,
		Summary: &domain.Summary{
			Overview:       "Supply of parts",
			KeyPoints:      []string{"Net 30"},
			Parties:        map[string]string{"supplier": "Acme", "buyer": "Globex"},
			FinancialTerms: map[string]string{"value": "$10"},
		},
		RiskClauses: []domain.RiskClause{
			{ID: "risk-1", Text: "unlimited liability", RiskLevel: domain.RiskHigh, Category: "Liability", StartIndex: 4, EndIndex: 23},
			{ID: "risk-2", Text: "renews automatically", RiskLevel: domain.RiskMedium, Category: "Contract Terms", StartIndex: 30, EndIndex: 50},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewWriter().Write(doc, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(risksSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ID", "Level", "Category", "Text", "Explanation", "Recommendation", "Start", "End"}, rows[0])
	assert.Equal(t, "risk-1", rows[1][0])
	assert.Equal(t, "high", rows[1][1])
	assert.Equal(t, "unlimited liability", rows[1][3])
	assert.Equal(t, "50", rows[2][7])

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Overall risk", "high"}, summary[3])
	assert.Contains(t, summary, []string{"Party", "buyer", "Globex"})
	assert.Contains(t, summary, []string{"Financial term", "value", "$10"})
}

func TestWriteDocumentWithoutAnalysis(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter().Write(domain.Document{ID: "empty", RiskLevel: domain.RiskLow}, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(risksSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, ContentType, NewWriter().ContentType())
}
