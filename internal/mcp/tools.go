package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/itsmevijay17/LexiVoice/internal/app"
	"github.com/itsmevijay17/LexiVoice/internal/auditlog"
	"github.com/itsmevijay17/LexiVoice/internal/orchestrator"
	"github.com/itsmevijay17/LexiVoice/internal/synthesis"
	"github.com/itsmevijay17/LexiVoice/internal/translator"
)

type legalAskInput struct {
	Query        string `json:"query" jsonschema:"The legal question to answer"`
	Jurisdiction string `json:"jurisdiction" jsonschema:"Jurisdiction whose statutes are searched, e.g. india"`
	Language     string `json:"language,omitempty" jsonschema:"ISO 639-1 code of the question and answer language (default: en)"`
	TopK         int    `json:"top_k,omitempty" jsonschema:"Number of passages to retrieve (default: 5)"`
	SessionID    string `json:"session_id,omitempty" jsonschema:"Caller session identifier for audit correlation"`
}

type legalAskVoiceInput struct {
	Transcription    string `json:"transcription" jsonschema:"Transcribed spoken question"`
	DetectedLanguage string `json:"detected_language,omitempty" jsonschema:"Language detected by the speech recognizer"`
	Jurisdiction     string `json:"jurisdiction" jsonschema:"Jurisdiction whose statutes are searched"`
	TopK             int    `json:"top_k,omitempty" jsonschema:"Number of passages to retrieve (default: 5)"`
	SessionID        string `json:"session_id,omitempty" jsonschema:"Caller session identifier for audit correlation"`
}

type legalAskOutput struct {
	RequestID       string                `json:"request_id"`
	Answer          string                `json:"answer"`
	Reasoning       string                `json:"reasoning"`
	Sources         []synthesis.SourceRef `json:"sources"`
	Confidence      float64               `json:"confidence"`
	ConfidenceLabel string                `json:"confidence_label"`
	Language        string                `json:"language"`
	Degraded        bool                  `json:"degraded"`
	Warnings        []string              `json:"warnings,omitempty"`
}

func newLegalAskOutput(r *orchestrator.Response) legalAskOutput {
	sources := r.Answer.Sources
	if sources == nil {
		sources = []synthesis.SourceRef{}
	}
	return legalAskOutput{
		RequestID:       r.RequestID,
		Answer:          r.Answer.Answer,
		Reasoning:       r.Answer.Reasoning,
		Sources:         sources,
		Confidence:      r.Answer.Confidence,
		ConfidenceLabel: r.Answer.ConfidenceLabel,
		Language:        r.Answer.Language,
		Degraded:        r.Degraded,
		Warnings:        r.Warnings,
	}
}

// answerText renders an answer for clients that only read text content.
func answerText(out legalAskOutput) string {
	var b strings.Builder
	b.WriteString(out.Answer)
	if len(out.Sources) > 0 {
		b.WriteString("\n\nSources:")
		for _, src := range out.Sources {
			b.WriteString("\n- ")
			b.WriteString(src.Title)
			if src.Section != "" {
				b.WriteString(", section ")
				b.WriteString(src.Section)
			}
		}
	}
	fmt.Fprintf(&b, "\n\nConfidence: %s (%.2f)", out.ConfidenceLabel, out.Confidence)
	if out.Degraded {
		b.WriteString("\nThis answer is degraded; consult a lawyer.")
	}
	return b.String()
}

func (s *Server) registerLegalTools() {
	addTool(s, ToolInfo{
		Name:        "legal_ask",
		Description: "Answer a legal question using the statutes of one jurisdiction. Returns the answer, reasoning, cited sources and a confidence score.",
		Kind:        KindLegal,
		Keywords:    []string{"law", "statute", "question", "answer"},
	}, func(ctx context.Context, req *mcp.CallToolRequest, args legalAskInput) (*mcp.CallToolResult, legalAskOutput, error) {
		resp, err := s.svc.Ask(ctx, orchestrator.Request{
			Query:        args.Query,
			Jurisdiction: args.Jurisdiction,
			UserLanguage: args.Language,
			TopK:         args.TopK,
			Channel:      auditlog.ChannelText,
			SessionID:    args.SessionID,
		})
		if err != nil {
			return nil, legalAskOutput{}, fmt.Errorf("legal_ask failed: %w", err)
		}
		out := newLegalAskOutput(resp)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: answerText(out)}},
		}, out, nil
	})

	addTool(s, ToolInfo{
		Name:        "legal_ask_voice",
		Description: "Answer a transcribed spoken legal question. The answer is returned in the detected language.",
		Kind:        KindLegal,
		Keywords:    []string{"voice", "speech", "transcription"},
	}, func(ctx context.Context, req *mcp.CallToolRequest, args legalAskVoiceInput) (*mcp.CallToolResult, legalAskOutput, error) {
		resp, err := s.svc.AskVoice(ctx, orchestrator.VoiceRequest{
			Transcription:    args.Transcription,
			DetectedLanguage: args.DetectedLanguage,
			Jurisdiction:     args.Jurisdiction,
			TopK:             args.TopK,
			SessionID:        args.SessionID,
		})
		if err != nil {
			return nil, legalAskOutput{}, fmt.Errorf("legal_ask_voice failed: %w", err)
		}
		out := newLegalAskOutput(resp)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: answerText(out)}},
		}, out, nil
	})
}

type legalFeedbackInput struct {
	QueryID   string `json:"query_id" jsonschema:"request_id of the answer being rated"`
	Rating    int    `json:"rating" jsonschema:"Rating from 1 (not helpful) to 5 (very helpful)"`
	Comment   string `json:"comment,omitempty" jsonschema:"Optional comment of at most 500 characters"`
	SessionID string `json:"session_id,omitempty" jsonschema:"Caller session identifier for audit correlation"`
}

type legalFeedbackOutput struct {
	ID      string `json:"id"`
	QueryID string `json:"query_id"`
	Rating  int    `json:"rating"`
}

func (s *Server) registerFeedbackTools() {
	addTool(s, ToolInfo{
		Name:        "legal_feedback",
		Description: "Rate a previous answer from 1 to 5, optionally with a short comment.",
		Kind:        KindLegal,
		Keywords:    []string{"rating", "feedback", "review"},
	}, func(ctx context.Context, req *mcp.CallToolRequest, args legalFeedbackInput) (*mcp.CallToolResult, legalFeedbackOutput, error) {
		fb, err := s.svc.Feedback(ctx, auditlog.Feedback{
			QueryID:   args.QueryID,
			SessionID: args.SessionID,
			Rating:    args.Rating,
			Comment:   args.Comment,
		})
		if err != nil {
			return nil, legalFeedbackOutput{}, fmt.Errorf("legal_feedback failed: %w", err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{
				Text: fmt.Sprintf("Recorded rating %d for %s.", fb.Rating, fb.QueryID),
			}},
		}, legalFeedbackOutput{ID: fb.ID, QueryID: fb.QueryID, Rating: fb.Rating}, nil
	})
}

type emptyInput struct{}

type jurisdictionsOutput struct {
	Jurisdictions []app.JurisdictionStatus `json:"jurisdictions"`
	Count         int                      `json:"count"`
}

type languagesOutput struct {
	Default   string                `json:"default"`
	Languages []translator.Language `json:"languages"`
}

func (s *Server) registerCatalogTools() {
	addTool(s, ToolInfo{
		Name:        "legal_jurisdictions",
		Description: "List the jurisdictions that can be queried and whether their index is loaded.",
		Kind:        KindCatalog,
		Keywords:    []string{"country", "index", "corpus"},
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, jurisdictionsOutput, error) {
		list, err := s.svc.Jurisdictions()
		if err != nil {
			return nil, jurisdictionsOutput{}, fmt.Errorf("list jurisdictions: %w", err)
		}
		names := make([]string, len(list))
		for i, j := range list {
			names[i] = j.Name
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{
				Text: fmt.Sprintf("%d jurisdiction(s): %s", len(list), strings.Join(names, ", ")),
			}},
		}, jurisdictionsOutput{Jurisdictions: list, Count: len(list)}, nil
	})

	addTool(s, ToolInfo{
		Name:        "legal_languages",
		Description: "List the languages questions can be asked and answered in.",
		Kind:        KindCatalog,
		Keywords:    []string{"translation", "locale"},
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, languagesOutput, error) {
		langs := translator.Languages()
		codes := make([]string, len(langs))
		for i, l := range langs {
			codes[i] = l.Code
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "Supported languages: " + strings.Join(codes, ", ")}},
		}, languagesOutput{Default: translator.DefaultLanguage, Languages: langs}, nil
	})
}
