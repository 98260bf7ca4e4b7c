package logging

import (
	"context"
	"fmt"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type (
	requestKey      struct{}
	sessionKey      struct{}
	jurisdictionKey struct{}
	languageKey     struct{}
)

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ContextFields returns the correlation fields stored on ctx, trace ids
// first.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 7)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}
	for _, kv := range []struct {
		key string
		val string
	}{
		{"request_id", RequestIDFromContext(ctx)},
		{"session_id", SessionIDFromContext(ctx)},
		{"jurisdiction", JurisdictionFromContext(ctx)},
		{"language", LanguageFromContext(ctx)},
	} {
		if kv.val != "" {
			fields = append(fields, zap.String(kv.key, kv.val))
		}
	}
	return fields
}

// ValidateID checks a client-supplied identifier: 1 to 128 characters of
// letters, digits, hyphen and underscore.
func ValidateID(id, name string) error {
	switch {
	case id == "":
		return fmt.Errorf("%s is empty", name)
	case len(id) > maxIDLen:
		return fmt.Errorf("%s longer than %d bytes", name, maxIDLen)
	case !idPattern.MatchString(id):
		return fmt.Errorf("%s may only contain letters, digits, '-' and '_'", name)
	}
	return nil
}

// WithRequestID stores the request id. Invalid ids leave ctx unchanged.
func WithRequestID(ctx context.Context, id string) context.Context {
	if ValidateID(id, "request id") != nil {
		return ctx
	}
	return context.WithValue(ctx, requestKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestKey{})
}

// WithSessionID stores the client session id. Invalid ids are dropped.
func WithSessionID(ctx context.Context, id string) context.Context {
	if ValidateID(id, "session id") != nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, id)
}

func SessionIDFromContext(ctx context.Context) string {
	return stringValue(ctx, sessionKey{})
}

func WithJurisdiction(ctx context.Context, jurisdiction string) context.Context {
	if jurisdiction == "" {
		return ctx
	}
	return context.WithValue(ctx, jurisdictionKey{}, jurisdiction)
}

func JurisdictionFromContext(ctx context.Context) string {
	return stringValue(ctx, jurisdictionKey{})
}

// WithLanguage stores the user's language code.
func WithLanguage(ctx context.Context, lang string) context.Context {
	if lang == "" {
		return ctx
	}
	return context.WithValue(ctx, languageKey{}, lang)
}

func LanguageFromContext(ctx context.Context) string {
	return stringValue(ctx, languageKey{})
}

func stringValue(ctx context.Context, key any) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop(), config: NewDefaultConfig()}
}
