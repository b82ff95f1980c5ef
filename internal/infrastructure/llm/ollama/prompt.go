package ollama

import "fmt"

const (
	promptWindowRunes  = 12000
	promptOverlapRunes  = 400
)

func buildAnalysisPrompt(fileName, content string, part, total int) string {
	header := "File: " + fileName
	if total > 1 {
		header += fmt.Sprintf("\nThis is part %d of %d of the document. Summarize only what this part contains.", part, total)
	}

	return `You are a contract risk reviewer.
Return a strict JSON object with keys:
summary: {overview (string), key_points (array of strings), parties (object role -> name), financial_terms (object term -> value)},
risks: array of {text (string, copied verbatim from the document), risk_level ("high"|"medium"|"low"), category (string), explanation (string), recommendation (string)}.
Every risk text must be an exact substring of the document. No markdown, no extra keys.

` + header + `
Document:
` + content
}
