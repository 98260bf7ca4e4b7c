package synthesis

import (
	"strings"

	"github.com/itsmevijay17/LexiVoice/internal/partition"
)

// Quality warnings.
const (
	WarnShortAnswer       = "Answer seems too short"
	WarnNoSources         = "No sources cited"
	WarnShortReasoning    = "Reasoning seems insufficient"
	WarnSourcesUnmatched  = "Sources don't match retrieved documents"
	minAnswerChars        = 20
	minReasoningChars     = 30
	qualityPenaltyPerWarn = 0.2
)

// Quality is a heuristic assessment of an answer.
type Quality struct {
	Valid    bool     `json:"is_valid"`
	Score    float64  `json:"quality_score"`
	Warnings []string `json:"warnings"`
}

// ValidateQuality checks that rec is substantive and cites the documents
// that were retrieved for it.
func ValidateQuality(rec AnswerRecord, hits partition.Result) Quality {
	warnings := []string{}

	if len([]rune(rec.Answer)) < minAnswerChars {
		warnings = append(warnings, WarnShortAnswer)
	}
	if len(rec.Cited) == 0 {
		warnings = append(warnings, WarnNoSources)
	}
	if len([]rune(rec.Reasoning)) < minReasoningChars {
		warnings = append(warnings, WarnShortReasoning)
	}
	if len(hits) > 0 && !citesRetrieved(rec.Cited, hits) {
		warnings = append(warnings, WarnSourcesUnmatched)
	}

	return Quality{
		Valid:    len(warnings) == 0,
		Score:    max(0, 1.0-float64(len(warnings))*qualityPenaltyPerWarn),
		Warnings: warnings,
	}
}

// citesRetrieved reports whether any cited source names a retrieved title,
// in either direction of containment.
func citesRetrieved(cited []string, hits partition.Result) bool {
	for _, c := range cited {
		c = strings.ToLower(c)
		for _, h := range hits {
			title := strings.ToLower(h.Chunk.Title)
			if strings.Contains(title, c) || strings.Contains(c, title) {
				return true
			}
		}
	}
	return false
}
