package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/itsmevijay17/LexiVoice/internal/auditlog"
	"github.com/itsmevijay17/LexiVoice/internal/errkind"
	"github.com/itsmevijay17/LexiVoice/internal/orchestrator"
	"github.com/itsmevijay17/LexiVoice/internal/translator"
)

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Version: s.config.Version}
	if s.telemetry != nil {
		h := s.telemetry.Health()
		resp.Telemetry = &h
		if h.Degraded {
			resp.Status = "degraded"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(err)
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()

	resp, err := s.svc.Ask(ctx, orchestrator.Request{
		Query:        req.Query,
		Jurisdiction: req.Jurisdiction,
		UserLanguage: req.UserLanguage,
		TopK:         req.TopK,
		Channel:      auditlog.ChannelText,
		SessionID:    req.SessionID,
		Speak:        req.Speak,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewChatResponse(resp))
}

func (s *Server) handleVoice(c echo.Context) error {
	var req VoiceRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(err)
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()

	resp, err := s.svc.AskVoice(ctx, orchestrator.VoiceRequest{
		Transcription:    req.Transcription,
		DetectedLanguage: req.DetectedLanguage,
		Jurisdiction:     req.Jurisdiction,
		TopK:             req.TopK,
		SessionID:        req.SessionID,
		Speak:            req.Speak,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewChatResponse(resp))
}

func (s *Server) handleFeedback(c echo.Context) error {
	var req FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return errors.Join(errkind.ErrInvalidRequest, err)
	}
	fb, err := s.svc.Feedback(c.Request().Context(), auditlog.Feedback{
		QueryID:      req.QueryID,
		SessionID:    req.SessionID,
		UserLanguage: req.UserLanguage,
		Rating:       req.Rating,
		Comment:      req.Comment,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, FeedbackResponse{
		ID:        fb.ID,
		QueryID:   fb.QueryID,
		Rating:    fb.Rating,
		Comment:   fb.Comment,
		CreatedAt: fb.Timestamp,
	})
}

func (s *Server) handleJurisdictions(c echo.Context) error {
	list, err := s.svc.Jurisdictions()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, JurisdictionsResponse{Jurisdictions: list})
}

func (s *Server) handleLanguages(c echo.Context) error {
	return c.JSON(http.StatusOK, LanguagesResponse{
		Default:   translator.DefaultLanguage,
		Languages: translator.Languages(),
	})
}

func (s *Server) requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	ctx := c.Request().Context()
	if s.config.RequestTimeout > 0 {
		return context.WithTimeout(ctx, s.config.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func invalidBody(err error) error {
	return errkind.NewStageError(string(orchestrator.StageReceive),
		errors.Join(errkind.ErrInvalidRequest, err))
}

// errorHandler renders every error as an ErrorResponse. Pipeline errors
// keep their kind and stage; echo errors keep their status code.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := ErrorResponse{
			Error:     err.Error(),
			Kind:      errkind.Of(err).String(),
			RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
		}

		var he *echo.HTTPError
		var se *errkind.StageError
		if errors.As(err, &se) {
			body.Stage = se.Stage
		}
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		case se != nil:
			status = se.Kind.HTTPStatus()
			body.Kind = se.Kind.String()
		case errors.As(err, &he):
			status = he.Code
			body.Error = http.StatusText(he.Code)
			if msg, ok := he.Message.(string); ok {
				body.Error = msg
			}
			if status < http.StatusInternalServerError {
				body.Kind = errkind.InvalidRequest.String()
			}
		default:
			status = errkind.Of(err).HTTPStatus()
		}

		if status >= http.StatusInternalServerError {
			logger.Error("request failed", zap.Error(err), zap.Int("status", status))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Warn("failed to write error response", zap.Error(err))
		}
	}
}
