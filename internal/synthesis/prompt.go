package synthesis

import (
	"fmt"
	"strings"

	"github.com/itsmevijay17/LexiVoice/internal/chunker"
)

// SystemPrompt is sent as the system message on every call.
const SystemPrompt = "You are a legal information assistant. Provide accurate, well-sourced answers " +
	"based on legal documents. Always respond in valid JSON format."

// NoDocuments stands in for the context block when nothing was retrieved.
const NoDocuments = "No relevant documents found."

// Prompt is a rendered system/user message pair.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt renders the grounded prompt for query over chunks.
// Chunk text is embedded verbatim.
func BuildPrompt(query string, chunks []chunker.Chunk, jurisdiction string) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a legal information assistant specializing in %s law. "+
		"Your role is to provide accurate, helpful answers based ONLY on the provided legal documents.\n\n",
		strings.ToUpper(jurisdiction))

	b.WriteString("LEGAL CONTEXT:\n")
	b.WriteString(formatContext(chunks))
	b.WriteString("\n\nUSER QUESTION:\n")
	b.WriteString(query)
	b.WriteString(`

INSTRUCTIONS:
1. Answer the question using ONLY the information provided in the LEGAL CONTEXT above
2. If the context doesn't contain enough information, say "I don't have enough information to answer this question based on the provided documents"
3. Cite specific laws, sections, and acts when possible
4. Be concise but thorough
5. Use simple language that non-lawyers can understand

IMPORTANT: You must respond in the following JSON format:
{
    "answer": "Your clear, direct answer to the question",
    "reasoning": "Explain which laws and sections support this answer",
    "sources": ["List of specific law titles or sections cited"],
    "confidence": "high/medium/low based on how well the context supports the answer"
}

Respond ONLY with valid JSON, no additional text before or after.`)

	return Prompt{System: SystemPrompt, User: b.String()}
}

func formatContext(chunks []chunker.Chunk) string {
	if len(chunks) == 0 {
		return NoDocuments
	}
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		parts = append(parts, fmt.Sprintf("Document %d:\nTitle: %s\nSection: %s\nCategory: %s\nContent: %s",
			i+1,
			orDefault(c.Title, "Unknown"),
			orDefault(c.Section, "N/A"),
			orDefault(c.Category, "general"),
			c.Text))
	}
	return strings.Join(parts, "\n\n")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
