package synthesis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itsmevijay17/LexiVoice/internal/errkind"
	"github.com/itsmevijay17/LexiVoice/internal/partition"
)

// Confidence values for the labels a model may return.
const (
	ConfidenceHigh   = 0.9
	ConfidenceMedium = 0.7
	ConfidenceLow    = 0.5

	// ConfidenceDegraded is reported when the model's reply could not be parsed.
	ConfidenceDegraded = 0.3

	// DegradedReasoning replaces the reasoning of an unparseable reply.
	DegradedReasoning = "Could not parse structured response"

	degradedAnswerLimit = 500
)

// SourceRef is a retrieved document shown to the user.
type SourceRef struct {
	Title   string  `json:"title"`
	Section string  `json:"section,omitempty"`
	URL     string  `json:"url,omitempty"`
	Score   float64 `json:"relevance_score"`
}

// AnswerRecord is the synthesized answer for one request.
type AnswerRecord struct {
	Query        string      `json:"query"`
	Jurisdiction string      `json:"jurisdiction"`
	Answer       string      `json:"answer"`
	Reasoning    string      `json:"reasoning"`
	Sources      []SourceRef `json:"sources"`
	// Cited holds the source names the model claims to have used.
	Cited           []string `json:"cited"`
	Confidence      float64  `json:"confidence"`
	ConfidenceLabel string   `json:"confidence_label"`
	Language        string   `json:"language"`
	Degraded        bool     `json:"degraded"`
}

// Answer is either a FullAnswer or a DegradedAnswer.
type Answer interface {
	isAnswer()
	Result() AnswerRecord
}

// FullAnswer is a reply that matched the answer schema.
type FullAnswer struct {
	Record AnswerRecord
}

// DegradedAnswer carries the raw reply of a model whose output could not
// be parsed.
type DegradedAnswer struct {
	Record   AnswerRecord
	Raw      string
	ParseErr error
}

func (FullAnswer) isAnswer()     {}
func (DegradedAnswer) isAnswer() {}

// Result returns the answer record.
func (a FullAnswer) Result() AnswerRecord { return a.Record }

// Result returns the answer record.
func (a DegradedAnswer) Result() AnswerRecord { return a.Record }

// ParseReply decodes a model reply into an Answer. It never fails: a reply
// that does not match the schema becomes a DegradedAnswer.
func ParseReply(raw string) Answer {
	rec, err := decodeReply(raw)
	if err != nil {
		text := truncateRunes(raw, degradedAnswerLimit)
		if strings.TrimSpace(text) == "" {
			text = "Error parsing response"
		}
		return DegradedAnswer{
			Record: AnswerRecord{
				Answer:          text,
				Reasoning:       DegradedReasoning,
				Sources:         []SourceRef{},
				Cited:           []string{},
				Confidence:      ConfidenceDegraded,
				ConfidenceLabel: "low",
				Degraded:        true,
			},
			Raw:      raw,
			ParseErr: fmt.Errorf("%w: %w", errkind.ErrSynthesisParse, err),
		}
	}
	return FullAnswer{Record: rec}
}

// requiredFields must be present and non-null in every reply.
var requiredFields = []string{"answer", "reasoning", "sources", "confidence"}

func decodeReply(raw string) (AnswerRecord, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFences(raw)), &obj); err != nil {
		return AnswerRecord{}, err
	}
	if obj == nil {
		return AnswerRecord{}, fmt.Errorf("reply is not a JSON object")
	}

	for _, key := range requiredFields {
		if v, ok := obj[key]; !ok || string(v) == "null" {
			return AnswerRecord{}, fmt.Errorf("field %q: missing", key)
		}
	}

	var rec AnswerRecord
	var err error
	if rec.Answer, err = stringField(obj, "answer"); err != nil {
		return AnswerRecord{}, err
	}
	if strings.TrimSpace(rec.Answer) == "" {
		return AnswerRecord{}, fmt.Errorf("field %q: empty", "answer")
	}
	if rec.Reasoning, err = stringField(obj, "reasoning"); err != nil {
		return AnswerRecord{}, err
	}
	if rec.Cited, err = sourcesField(obj); err != nil {
		return AnswerRecord{}, err
	}
	if rec.Confidence, rec.ConfidenceLabel, err = confidenceField(obj); err != nil {
		return AnswerRecord{}, err
	}
	return rec, nil
}

func stringField(obj map[string]json.RawMessage, key string) (string, error) {
	var s string
	if err := json.Unmarshal(obj[key], &s); err != nil {
		return "", fmt.Errorf("field %q: expected string", key)
	}
	return s, nil
}

// sourcesField accepts a list of strings or a single string.
func sourcesField(obj map[string]json.RawMessage) ([]string, error) {
	raw := obj["sources"]
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if list == nil {
			list = []string{}
		}
		return list, nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}, nil
	}
	return nil, fmt.Errorf("field %q: expected string list", "sources")
}

// confidenceField accepts a high/medium/low label or a number in [0,1].
func confidenceField(obj map[string]json.RawMessage) (float64, string, error) {
	raw := obj["confidence"]
	var label string
	if err := json.Unmarshal(raw, &label); err == nil {
		score, normalized := ConfidenceFromLabel(label)
		return score, normalized, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, "", fmt.Errorf("field %q: expected label or number", "confidence")
	}
	if n < 0 || n > 1 {
		return 0, "", fmt.Errorf("field %q: %v outside [0,1]", "confidence", n)
	}
	return n, labelFor(n), nil
}

// ConfidenceFromLabel maps a confidence label to its score. Unknown labels
// count as medium.
func ConfidenceFromLabel(label string) (float64, string) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "high":
		return ConfidenceHigh, "high"
	case "low":
		return ConfidenceLow, "low"
	default:
		return ConfidenceMedium, "medium"
	}
}

func labelFor(score float64) string {
	switch {
	case score >= 0.8:
		return "high"
	case score >= 0.6:
		return "medium"
	default:
		return "low"
	}
}

// SourceRefs returns up to limit retrieved documents, best first, with one
// entry per title.
func SourceRefs(hits partition.Result, limit int) []SourceRef {
	refs := make([]SourceRef, 0, max(limit, 0))
	seen := make(map[string]bool)
	for i, h := range hits {
		if i >= limit {
			break
		}
		title := orDefault(h.Chunk.Title, "Unknown")
		if seen[title] {
			continue
		}
		seen[title] = true
		refs = append(refs, SourceRef{
			Title:   title,
			Section: h.Chunk.Section,
			URL:     h.Chunk.SourceURL,
			Score:   h.Score,
		})
	}
	return refs
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
