// Package logging wraps zap for LexiVoice.
//
// Every request-scoped call takes a context.Context and picks up the
// correlation fields stored on it (trace and span ids, request_id,
// session_id, jurisdiction, language):
//
//	ctx = logging.WithRequestID(ctx, id)
//	ctx = logging.WithJurisdiction(ctx, "india")
//	logger.Info(ctx, "request answered", zap.Duration("took", d))
//
// The console core redacts sensitive field names (api_key, token,
// authorization and friends) and values that look like credentials.
// When an OpenTelemetry LoggerProvider is installed, records are also
// bridged through otelzap. Levels below error are sampled per tick; error
// and above always pass.
//
// Tests use NewTestLogger, which records entries on a zaptest observer.
package logging
