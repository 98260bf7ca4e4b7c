package orchestrator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap/zapcore"

	"github.com/itsmevijay17/LexiVoice/internal/auditlog"
	"github.com/itsmevijay17/LexiVoice/internal/chunker"
	"github.com/itsmevijay17/LexiVoice/internal/corpus"
	"github.com/itsmevijay17/LexiVoice/internal/embeddings"
	"github.com/itsmevijay17/LexiVoice/internal/errkind"
	"github.com/itsmevijay17/LexiVoice/internal/logging"
	"github.com/itsmevijay17/LexiVoice/internal/partition"
	"github.com/itsmevijay17/LexiVoice/internal/registry"
	"github.com/itsmevijay17/LexiVoice/internal/speech"
	"github.com/itsmevijay17/LexiVoice/internal/synthesis"
	"github.com/itsmevijay17/LexiVoice/internal/telemetry"
	"github.com/itsmevijay17/LexiVoice/internal/translator"
)

const wageText = "The federal minimum wage is $7.25 per hour. Employers covered by the FLSA must pay at least this rate."

const wageReply = `{"answer":"The federal minimum wage is $7.25 per hour.","reasoning":"The Minimum Wage document sets the hourly rate covered employers must pay.","sources":["Minimum Wage"],"confidence":"high"}`

// captureLLM records every prompt it is asked to complete.
type captureLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []synthesis.Prompt
}

func (c *captureLLM) Complete(_ context.Context, p synthesis.Prompt) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, p)
	return c.reply, c.err
}

// recordingEmbedder records the queries that reach retrieval.
type recordingEmbedder struct {
	*embeddings.Embedder
	mu      sync.Mutex
	queries []string
}

func (r *recordingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	r.mu.Lock()
	r.queries = append(r.queries, text)
	r.mu.Unlock()
	return r.Embedder.EmbedQuery(ctx, text)
}

// dictTranslator translates through a fixed dictionary.
type dictTranslator struct {
	dict      map[string]string
	err       error
	detected  string
	detectErr error
	calls     []string
}

func (d *dictTranslator) DetectLanguage(_ context.Context, text string) (translator.Detection, error) {
	d.calls = append(d.calls, "detect")
	if d.detectErr != nil {
		return translator.Detection{}, d.detectErr
	}
	return translator.Detection{Language: d.detected, Confidence: 0.9}, nil
}

func (d *dictTranslator) TranslateFrom(_ context.Context, text, source, target string) (translator.Result, error) {
	d.calls = append(d.calls, source+">"+target)
	if d.err != nil {
		return translator.Result{Text: text, Original: text}, d.err
	}
	out, ok := d.dict[text]
	if !ok {
		out = "[" + target + "] " + text
	}
	return translator.Result{Text: out, Original: text, Source: source, Target: target, Translated: true}, nil
}

type fakeSpeaker struct {
	err   error
	texts []string
	langs []string
}

func (f *fakeSpeaker) Name() string { return "fake" }

func (f *fakeSpeaker) Speak(_ context.Context, text, language string) (speech.Audio, error) {
	f.texts = append(f.texts, text)
	f.langs = append(f.langs, language)
	if f.err != nil {
		return speech.Audio{}, f.err
	}
	return speech.Audio{Data: []byte("ID3audio"), ContentType: "audio/mpeg"}, nil
}

type memoryAudit struct {
	full    bool
	entries []auditlog.Entry
}

func (m *memoryAudit) Enqueue(e auditlog.Entry) bool {
	if m.full {
		return false
	}
	m.entries = append(m.entries, e)
	return true
}

func (m *memoryAudit) EnqueueFeedback(auditlog.Feedback) bool { return !m.full }

func (m *memoryAudit) Close() error { return nil }

type fixture struct {
	llm      *captureLLM
	embedder *recordingEmbedder
	audit    *memoryAudit
	registry *registry.Registry
}

func writeCorpus(t *testing.T, dir, jurisdiction string, docs []corpus.Document) {
	t.Helper()
	data, err := json.Marshal(docs)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, jurisdiction+".json"), data, 0o600))
}

// newFixture wires a real corpus, chunker, hash embedder, index store and
// registry behind the pipeline.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithDocs(t, []corpus.Document{
		{Title: "Minimum Wage", Section: "FLSA 6(a)", Category: "labor", SourceURL: "https://www.dol.gov/agencies/whd/minimum-wage", Body: wageText},
		{Title: "Overtime", Section: "FLSA 7(a)", Category: "labor", Body: "Hours worked over forty in a workweek are paid at one and a half times the regular rate."},
	})
}

// newFixtureWithDocs is newFixture over a custom usa corpus.
func newFixtureWithDocs(t *testing.T, docs []corpus.Document) *fixture {
	t.Helper()
	corpusDir := t.TempDir()
	writeCorpus(t, corpusDir, "usa", docs)

	emb, err := embeddings.NewEmbedder(embeddings.NewHashBackend(64), embeddings.Config{Backend: "hash", Dimension: 64}, nil)
	require.NoError(t, err)
	store, err := partition.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	builder := partition.NewBuilder(chunker.New(), emb, store, nil)
	reg, err := registry.New(store, builder, corpus.NewSource(corpusDir), registry.Config{Workers: 1}, nil)
	require.NoError(t, err)

	return &fixture{
		llm:      &captureLLM{reply: wageReply},
		embedder: &recordingEmbedder{Embedder: emb},
		audit:    &memoryAudit{},
		registry: reg,
	}
}

func (f *fixture) pipeline(t *testing.T, tr Translator, sp speech.Speaker, cfg Config) *Pipeline {
	t.Helper()
	gen, err := synthesis.New(f.llm, nil)
	require.NoError(t, err)
	p, err := New(Deps{
		Indexes:    f.registry,
		Embedder:   f.embedder,
		Generator:  gen,
		Translator: tr,
		Speaker:    sp,
		Audit:      f.audit,
	}, cfg, nil)
	require.NoError(t, err)
	return p
}

func stageStatus(resp *Response, s Stage) StageStatus {
	for _, st := range resp.Stages {
		if st.Stage == s {
			return st.Status
		}
	}
	return ""
}

func TestPipeline_MinimumWageEndToEnd(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, nil, nil, DefaultConfig())

	resp, err := p.Ask(context.Background(), Request{
		Query:        "What is the minimum wage?",
		Jurisdiction: "USA",
		SessionID:    "sess_1",
	})
	require.NoError(t, err)

	require.Len(t, f.llm.prompts, 1)
	assert.Contains(t, f.llm.prompts[0].User, "Content: "+wageText, "chunk text reaches the prompt verbatim")
	assert.Contains(t, f.llm.prompts[0].User, "specializing in USA law")

	rec := resp.Answer
	assert.Equal(t, "The federal minimum wage is $7.25 per hour.", rec.Answer)
	assert.Equal(t, "What is the minimum wage?", rec.Query)
	assert.Equal(t, "usa", rec.Jurisdiction)
	assert.Equal(t, "en", rec.Language)
	assert.InDelta(t, 0.9, rec.Confidence, 1e-9)
	assert.False(t, resp.Degraded)
	assert.Empty(t, resp.Warnings)
	assert.NotEmpty(t, resp.RequestID)
	assert.Empty(t, resp.TranslatedQuery)

	titles := make([]string, 0, len(rec.Sources))
	for _, s := range rec.Sources {
		titles = append(titles, s.Title)
	}
	assert.Contains(t, titles, "Minimum Wage")
	assert.Len(t, resp.Hits, 2)
	assert.True(t, resp.Quality.Valid, "warnings: %v", resp.Quality.Warnings)

	want := []StageStatus{StatusCompleted, StatusSkipped, StatusCompleted, StatusCompleted, StatusSkipped, StatusSkipped, StatusCompleted, StatusCompleted}
	require.Len(t, resp.Stages, len(AllStages()))
	for i, s := range AllStages() {
		assert.Equal(t, s, resp.Stages[i].Stage)
		assert.Equal(t, want[i], resp.Stages[i].Status, "stage %s", s)
	}

	require.Len(t, f.audit.entries, 1)
	entry := f.audit.entries[0]
	assert.Equal(t, "sess_1", entry.SessionID)
	assert.Equal(t, "usa", entry.Jurisdiction)
	assert.Equal(t, auditlog.ChannelText, entry.Channel)
	assert.Equal(t, rec.Answer, entry.Answer)
	assert.Equal(t, rec.Reasoning, entry.Reasoning)
	assert.Equal(t, "The Minimum Wage document sets the hourly rate covered employers must pay.", entry.Reasoning)
	assert.Equal(t, "en", entry.Language)
	assert.Equal(t, "high", entry.ConfidenceLabel)
	assert.Equal(t, []string{"Minimum Wage"}, entry.Cited)
	require.Len(t, entry.Sources, len(rec.Sources))
	for i, s := range rec.Sources {
		assert.Equal(t, auditlog.Source{Title: s.Title, Section: s.Section, URL: s.URL, Score: s.Score}, entry.Sources[i])
	}
	assert.Len(t, entry.Hits, 2)
}

func TestPipeline_SingleDocumentMinimumWage(t *testing.T) {
	const body = "The minimum wage is $15. Employers must comply."
	f := newFixtureWithDocs(t, []corpus.Document{
		{Title: "Minimum Wage", Body: body, Jurisdiction: "usa"},
	})
	f.llm.reply = `{"answer":"The minimum wage is $15.","reasoning":"Minimum Wage states the rate.","sources":["Minimum Wage"],"confidence":"high"}`
	p := f.pipeline(t, nil, nil, DefaultConfig())

	resp, err := p.Ask(context.Background(), Request{
		Query:        "What is the minimum wage?",
		Jurisdiction: "usa",
	})
	require.NoError(t, err)

	require.Len(t, resp.Hits, 1)
	assert.Greater(t, resp.Hits[0].Score, 0.0)
	require.Len(t, resp.Answer.Sources, 1)
	assert.Equal(t, "Minimum Wage", resp.Answer.Sources[0].Title)
	assert.Greater(t, resp.Answer.Sources[0].Score, 0.0)

	require.Len(t, f.llm.prompts, 1)
	assert.Contains(t, f.llm.prompts[0].User, body)
	assert.Equal(t, "The minimum wage is $15.", resp.Answer.Answer)
	assert.False(t, resp.Degraded)
}

func TestPipeline_TranslatedQueryReachesRetrieval(t *testing.T) {
	f := newFixture(t)
	tr := &dictTranslator{dict: map[string]string{
		"न्यूनतम वेतन क्या है?":                        "What is the minimum wage?",
		"The federal minimum wage is $7.25 per hour.": "संघीय न्यूनतम वेतन $7.25 प्रति घंटा है।",
	}}
	p := f.pipeline(t, tr, nil, DefaultConfig())

	resp, err := p.Ask(context.Background(), Request{
		Query:        "न्यूनतम वेतन क्या है?",
		Jurisdiction: "usa",
		UserLanguage: "hi",
	})
	require.NoError(t, err)

	require.Len(t, f.embedder.queries, 1)
	assert.Equal(t, "What is the minimum wage?", f.embedder.queries[0])
	assert.Equal(t, "What is the minimum wage?", resp.TranslatedQuery)
	assert.Contains(t, f.llm.prompts[0].User, "USER QUESTION:\nWhat is the minimum wage?")

	assert.Equal(t, "संघीय न्यूनतम वेतन $7.25 प्रति घंटा है।", resp.Answer.Answer)
	assert.Equal(t, "न्यूनतम वेतन क्या है?", resp.Answer.Query)
	assert.Equal(t, "hi", resp.Answer.Language)
	assert.Equal(t, []string{"hi>en", "en>hi", "en>hi"}, tr.calls)
	assert.Empty(t, resp.Warnings)
	assert.Equal(t, StatusCompleted, stageStatus(resp, StageTranslateIn))
	assert.Equal(t, StatusCompleted, stageStatus(resp, StageTranslateOut))
}

func TestPipeline_VoiceDetectsMissingLanguage(t *testing.T) {
	f := newFixture(t)
	tr := &dictTranslator{
		detected: "hi",
		dict:     map[string]string{"न्यूनतम वेतन क्या है?": "What is the minimum wage?"},
	}
	p := f.pipeline(t, tr, nil, DefaultConfig())

	resp, err := p.AskVoice(context.Background(), VoiceRequest{
		Transcription: "न्यूनतम वेतन क्या है?",
		Jurisdiction:  "usa",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"detect", "hi>en", "en>hi", "en>hi"}, tr.calls)
	require.Len(t, f.embedder.queries, 1)
	assert.Equal(t, "What is the minimum wage?", f.embedder.queries[0])
	assert.Equal(t, "hi", resp.Answer.Language)
	assert.Equal(t, StatusCompleted, stageStatus(resp, StageReceive))
	assert.Equal(t, StatusCompleted, stageStatus(resp, StageTranslateIn))
	assert.Empty(t, resp.Warnings)
}

func TestPipeline_VoiceDetectionFailureAssumesDefault(t *testing.T) {
	tests := []struct {
		name string
		tr   *dictTranslator
	}{
		{name: "detector fails", tr: &dictTranslator{detectErr: errkind.ErrTranslationUnavailable}},
		{name: "unsupported language", tr: &dictTranslator{detected: "xx"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.pipeline(t, tt.tr, nil, DefaultConfig())

			resp, err := p.AskVoice(context.Background(), VoiceRequest{
				Transcription: "What is the minimum wage?",
				Jurisdiction:  "usa",
			})
			require.NoError(t, err)

			assert.Equal(t, []string{"detect"}, tt.tr.calls)
			assert.Equal(t, "en", resp.Answer.Language)
			assert.Equal(t, []string{WarnLanguageUndetected}, resp.Warnings)
			assert.Equal(t, StatusDegraded, stageStatus(resp, StageReceive))
			assert.Equal(t, StatusSkipped, stageStatus(resp, StageTranslateIn))
		})
	}
}

func TestPipeline_TextWithoutLanguageSkipsDetection(t *testing.T) {
	f := newFixture(t)
	tr := &dictTranslator{detected: "hi"}
	p := f.pipeline(t, tr, nil, DefaultConfig())

	resp, err := p.Ask(context.Background(), Request{Query: "What is the minimum wage?", Jurisdiction: "usa"})
	require.NoError(t, err)
	assert.Empty(t, tr.calls)
	assert.Equal(t, "en", resp.Answer.Language)
}

func TestPipeline_QueryTranslationDisabled(t *testing.T) {
	f := newFixture(t)
	tr := &dictTranslator{}
	cfg := DefaultConfig()
	cfg.TranslateQuery = false
	p := f.pipeline(t, tr, nil, cfg)

	resp, err := p.Ask(context.Background(), Request{Query: "salaire minimum", Jurisdiction: "usa", UserLanguage: "fr"})
	require.NoError(t, err)
	assert.Equal(t, []string{"salaire minimum"}, f.embedder.queries)
	assert.Equal(t, StatusSkipped, stageStatus(resp, StageTranslateIn))
	assert.Equal(t, []string{"en>fr", "en>fr"}, tr.calls)
}

func TestPipeline_TranslationFailureDegrades(t *testing.T) {
	tests := []struct {
		name string
		tr   Translator
	}{
		{"providers unavailable", &dictTranslator{err: errkind.ErrTranslationUnavailable}},
		{"no translator", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.pipeline(t, tt.tr, nil, DefaultConfig())

			resp, err := p.Ask(context.Background(), Request{Query: "What is the minimum wage?", Jurisdiction: "usa", UserLanguage: "es"})
			require.NoError(t, err)

			assert.Equal(t, []string{"What is the minimum wage?"}, f.embedder.queries)
			assert.Equal(t, []string{WarnQueryUntranslated, WarnAnswerUntranslated, WarnReasoningUntranslated}, resp.Warnings)
			assert.Equal(t, "The federal minimum wage is $7.25 per hour.", resp.Answer.Answer)
			assert.Equal(t, "en", resp.Answer.Language)
			assert.Equal(t, StatusDegraded, stageStatus(resp, StageTranslateIn))
			assert.Equal(t, StatusDegraded, stageStatus(resp, StageTranslateOut))
		})
	}
}

func TestPipeline_DegradedAnswerIsReturned(t *testing.T) {
	f := newFixture(t)
	f.llm.reply = "The minimum wage is $7.25, but I could not format this."
	p := f.pipeline(t, nil, nil, DefaultConfig())

	resp, err := p.Ask(context.Background(), Request{Query: "What is the minimum wage?", Jurisdiction: "usa"})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Equal(t, f.llm.reply, resp.Answer.Answer)
	assert.Equal(t, synthesis.ConfidenceDegraded, resp.Answer.Confidence)
	assert.Contains(t, resp.Warnings, WarnDegradedAnswer)
	assert.Equal(t, StatusDegraded, stageStatus(resp, StageSynthesize))
	require.Len(t, f.audit.entries, 1)
	assert.True(t, f.audit.entries[0].Degraded)
}

func TestPipeline_Speak(t *testing.T) {
	t.Run("answer is spoken in the user language", func(t *testing.T) {
		f := newFixture(t)
		sp := &fakeSpeaker{}
		p := f.pipeline(t, &dictTranslator{}, sp, DefaultConfig())

		resp, err := p.Ask(context.Background(), Request{Query: "minimum wage", Jurisdiction: "usa", UserLanguage: "de", Speak: true})
		require.NoError(t, err)

		require.Len(t, sp.texts, 1)
		assert.Equal(t, resp.Answer.Answer, sp.texts[0], "only the answer is spoken")
		assert.Equal(t, []string{"de"}, sp.langs)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("ID3audio")), resp.AudioBase64)
		assert.Equal(t, "audio/mpeg", resp.AudioContentType)
	})

	t.Run("failure fails the request", func(t *testing.T) {
		f := newFixture(t)
		p := f.pipeline(t, nil, &fakeSpeaker{err: errors.New("tts quota exceeded")}, DefaultConfig())

		resp, err := p.Ask(context.Background(), Request{Query: "minimum wage", Jurisdiction: "usa", Speak: true})
		require.Error(t, err)
		assert.Nil(t, resp)

		var se *errkind.StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, string(StageSpeak), se.Stage)
		assert.Equal(t, errkind.ExternalService, se.Kind)
		assert.Empty(t, f.audit.entries, "failed requests are not logged")
	})

	t.Run("requested without a speaker", func(t *testing.T) {
		f := newFixture(t)
		p := f.pipeline(t, nil, nil, DefaultConfig())

		resp, err := p.Ask(context.Background(), Request{Query: "minimum wage", Jurisdiction: "usa", Speak: true})
		require.NoError(t, err)
		assert.Empty(t, resp.AudioBase64)
		assert.Contains(t, resp.Warnings, WarnSpeechUnavailable)
	})
}

func TestPipeline_VoicePrefixesReasoning(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, &dictTranslator{}, nil, DefaultConfig())

	resp, err := p.AskVoice(context.Background(), VoiceRequest{
		Transcription:    "minimum wage kya hai",
		DetectedLanguage: "hi",
		Jurisdiction:     "usa",
	})
	require.NoError(t, err)

	assert.Equal(t, "You asked: \"minimum wage kya hai\"\n\n[hi] The Minimum Wage document sets the hourly rate covered employers must pay.", resp.Answer.Reasoning)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, auditlog.ChannelVoice, f.audit.entries[0].Channel)
	assert.Equal(t, "hi", f.audit.entries[0].UserLanguage)
}

func TestPipeline_InvalidRequests(t *testing.T) {
	f := newFixture(t)
	cfg := DefaultConfig()
	cfg.MaxQueryChars = 50
	cfg.Jurisdictions = []string{"usa", "india", "canada"}
	p := f.pipeline(t, nil, nil, cfg)

	tests := []struct {
		name string
		req  Request
	}{
		{"empty query", Request{Query: "   ", Jurisdiction: "usa"}},
		{"query too long", Request{Query: strings.Repeat("a", 51), Jurisdiction: "usa"}},
		{"missing jurisdiction", Request{Query: "wage"}},
		{"path traversal", Request{Query: "wage", Jurisdiction: "../etc"}},
		{"unknown jurisdiction", Request{Query: "wage", Jurisdiction: "mars"}},
		{"unsupported language", Request{Query: "wage", Jurisdiction: "usa", UserLanguage: "xx"}},
		{"negative top_k", Request{Query: "wage", Jurisdiction: "usa", TopK: -1}},
		{"unknown channel", Request{Query: "wage", Jurisdiction: "usa", Channel: "fax"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Ask(context.Background(), tt.req)
			require.Error(t, err)
			var se *errkind.StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, string(StageReceive), se.Stage)
			assert.Equal(t, errkind.InvalidRequest, se.Kind)
		})
	}
	assert.Empty(t, f.llm.prompts)
	assert.Empty(t, f.embedder.queries)
}

func TestPipeline_TopKClamped(t *testing.T) {
	f := newFixture(t)
	cfg := DefaultConfig()
	cfg.MaxTopK = 1
	p := f.pipeline(t, nil, nil, cfg)

	resp, err := p.Ask(context.Background(), Request{Query: "minimum wage", Jurisdiction: "usa", TopK: 50})
	require.NoError(t, err)
	assert.Len(t, resp.Hits, 1)
}

func TestPipeline_MissingCorpusFailsRetrieve(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, nil, nil, DefaultConfig())

	_, err := p.Ask(context.Background(), Request{Query: "minimum wage", Jurisdiction: "canada"})
	require.Error(t, err)
	var se *errkind.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, string(StageRetrieve), se.Stage)
	assert.Equal(t, errkind.IndexNotFound, se.Kind)
	assert.Equal(t, 404, se.Kind.HTTPStatus())
}

func TestPipeline_ModelFailureFailsSynthesize(t *testing.T) {
	f := newFixture(t)
	f.llm.err = errors.New("503 service unavailable")
	p := f.pipeline(t, nil, nil, DefaultConfig())

	_, err := p.Ask(context.Background(), Request{Query: "minimum wage", Jurisdiction: "usa"})
	var se *errkind.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, string(StageSynthesize), se.Stage)
	assert.Equal(t, errkind.ExternalService, se.Kind)
}

func TestPipeline_DroppedLogEntryDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.audit.full = true
	p := f.pipeline(t, nil, nil, DefaultConfig())

	resp, err := p.Ask(context.Background(), Request{Query: "minimum wage", Jurisdiction: "usa"})
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, stageStatus(resp, StageLog))
}

func TestPipeline_LogsCorrelationFields(t *testing.T) {
	f := newFixture(t)
	gen, err := synthesis.New(f.llm, nil)
	require.NoError(t, err)
	tl := logging.NewTestLogger()
	p, err := New(Deps{Indexes: f.registry, Embedder: f.embedder, Generator: gen}, DefaultConfig(), tl.Logger)
	require.NoError(t, err)

	resp, err := p.Ask(context.Background(), Request{Query: "minimum wage", Jurisdiction: "usa", SessionID: "sess_42"})
	require.NoError(t, err)

	tl.AssertLogged(t, zapcore.InfoLevel, "request answered")
	tl.AssertField(t, "request answered", "request_id", resp.RequestID)
	tl.AssertField(t, "request answered", "jurisdiction", "usa")
	tl.AssertField(t, "request answered", "session_id", "sess_42")
}

func TestPipeline_RecordsStageSpans(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tt.TracerProvider())
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	f := newFixture(t)
	p := f.pipeline(t, nil, nil, DefaultConfig())

	resp, err := p.Ask(context.Background(), Request{Query: "minimum wage", Jurisdiction: "usa"})
	require.NoError(t, err)

	root := tt.Span(t, "pipeline.Ask")
	assert.Contains(t, root.Attributes, attribute.String("request_id", resp.RequestID))
	for _, name := range []string{"pipeline.retrieve", "pipeline.synthesize"} {
		span := tt.Span(t, name)
		assert.Equal(t, root.SpanContext.SpanID(), span.Parent.SpanID(), name)
		assert.Contains(t, span.Attributes, attribute.String("status", string(StatusCompleted)), name)
	}
}

func TestPipeline_ReusesRequestIDFromContext(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, nil, nil, DefaultConfig())

	ctx := logging.WithRequestID(context.Background(), "req-from-transport")
	resp, err := p.Ask(ctx, Request{Query: "minimum wage", Jurisdiction: "usa"})
	require.NoError(t, err)
	assert.Equal(t, "req-from-transport", resp.RequestID)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "req-from-transport", f.audit.entries[0].ID)
}

func TestNew_RequiresDependencies(t *testing.T) {
	f := newFixture(t)
	gen, err := synthesis.New(f.llm, nil)
	require.NoError(t, err)

	_, err = New(Deps{Embedder: f.embedder, Generator: gen}, DefaultConfig(), nil)
	assert.Error(t, err)
	_, err = New(Deps{Indexes: f.registry, Generator: gen}, DefaultConfig(), nil)
	assert.Error(t, err)
	_, err = New(Deps{Indexes: f.registry, Embedder: f.embedder}, DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestVoicePrefix(t *testing.T) {
	assert.Equal(t, "You asked: \"मजदूरी\"\n\n", VoicePrefix("मजदूरी"))
}
