// Package errkind classifies pipeline failures into a small set of kinds.
//
// Every package in the pipeline wraps one of the sentinel errors declared
// here with %w, so callers can classify any error chain with Of and decide
// whether to degrade or surface the failure.
package errkind

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the category of a pipeline failure.
type Kind int

const (
	Unknown Kind = iota
	MalformedDocument
	IndexNotFound
	IndexCorrupt
	TranslationUnavailable
	SynthesisParse
	ExternalService
	InvalidRequest
)

var (
	// ErrMalformedDocument is returned when a corpus document cannot be chunked.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrIndexNotFound is returned when no persisted index exists for a jurisdiction.
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexCorrupt is returned when a persisted index is unreadable or inconsistent.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrTranslationUnavailable is returned when every translation provider failed.
	ErrTranslationUnavailable = errors.New("translation unavailable")

	// ErrSynthesisParse is returned when a model response does not match the answer schema.
	ErrSynthesisParse = errors.New("synthesis response parse failed")

	// ErrExternalService is returned when a remote model, translation or speech call fails.
	ErrExternalService = errors.New("external service failure")

	// ErrInvalidRequest is returned when an inbound request fails validation.
	ErrInvalidRequest = errors.New("invalid request")
)

var sentinels = []struct {
	err  error
	kind Kind
}{
	{ErrMalformedDocument, MalformedDocument},
	{ErrIndexNotFound, IndexNotFound},
	{ErrIndexCorrupt, IndexCorrupt},
	{ErrTranslationUnavailable, TranslationUnavailable},
	{ErrSynthesisParse, SynthesisParse},
	{ErrExternalService, ExternalService},
	{ErrInvalidRequest, InvalidRequest},
}

// String returns the stable wire name of the kind.
func (k Kind) String() string {
	switch k {
	case MalformedDocument:
		return "malformed_document"
	case IndexNotFound:
		return "index_not_found"
	case IndexCorrupt:
		return "index_corrupt"
	case TranslationUnavailable:
		return "translation_unavailable"
	case SynthesisParse:
		return "synthesis_parse"
	case ExternalService:
		return "external_service"
	case InvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// HTTPStatus maps the kind to the status code used by transports.
func (k Kind) HTTPStatus() int {
	switch k {
	case InvalidRequest:
		return http.StatusBadRequest
	case IndexNotFound:
		return http.StatusNotFound
	case MalformedDocument, SynthesisParse:
		return http.StatusUnprocessableEntity
	case IndexCorrupt, TranslationUnavailable:
		return http.StatusServiceUnavailable
	case ExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Of returns the kind of the first sentinel found in err's chain.
func Of(err error) Kind {
	if err == nil {
		return Unknown
	}
	var se *StageError
	if errors.As(err, &se) && se.Kind != Unknown {
		return se.Kind
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return Unknown
}

// StageError is a pipeline failure attributed to the stage that produced it.
type StageError struct {
	Stage string
	Kind  Kind
	Err   error
}

// NewStageError classifies err and attributes it to stage.
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Kind: Of(err), Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
