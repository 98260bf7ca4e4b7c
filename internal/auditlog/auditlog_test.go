package auditlog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/itsmevijay17/LexiVoice/internal/pii"
)

type memorySink struct {
	mu       sync.Mutex
	entries  []Entry
	feedback []Feedback
	gate     chan struct{}
	err     error
	closed  bool
}

func (m *memorySink) Write(_ context.Context, e Entry) error {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return m.err
}

func (m *memorySink) WriteFeedback(_ context.Context, f Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback = append(m.feedback, f)
	return m.err
}

func (m *memorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memorySink) all() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

func TestDispatcher_CloseDrains(t *testing.T) {
	sink := &memorySink{}
	d := NewDispatcher([]Sink{sink}, 16, time.Second, zap.NewNop())

	for i := 0; i < 10; i++ {
		assert.True(t, d.Enqueue(Entry{Jurisdiction: "usa", Query: "q"}))
	}
	require.NoError(t, d.Close())

	got := sink.all()
	require.Len(t, got, 10)
	for _, e := range got {
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.Timestamp.IsZero())
	}
	assert.True(t, sink.closed)

	assert.False(t, d.Enqueue(Entry{}), "closed dispatcher rejects entries")
	assert.Equal(t, int64(1), d.Dropped())
	assert.NoError(t, d.Close(), "close is idempotent")
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	sink := &memorySink{gate: make(chan struct{})}
	d := NewDispatcher([]Sink{sink}, 2, time.Second, zap.NewNop())

	accepted := 0
	for i := 0; i < 10; i++ {
		if d.Enqueue(Entry{Query: "q"}) {
			accepted++
		}
	}
	// One entry may be held by the writer, two more fit the queue.
	assert.LessOrEqual(t, accepted, 3)
	assert.Equal(t, int64(10-accepted), d.Dropped())

	close(sink.gate)
	require.NoError(t, d.Close())
	assert.Len(t, sink.all(), accepted)
}

func TestDispatcher_SinkErrorDoesNotStopOthers(t *testing.T) {
	failing := &memorySink{err: errors.New("disk full")}
	ok := &memorySink{}
	d := NewDispatcher([]Sink{failing, ok}, 4, time.Second, zap.NewNop())

	d.Enqueue(Entry{Query: "q"})
	require.NoError(t, d.Close())
	assert.Len(t, ok.all(), 1)
}

func TestDispatcher_ScrubsPersonalData(t *testing.T) {
	scrubber, err := pii.New(nil)
	require.NoError(t, err)
	sink := &memorySink{}
	d := NewDispatcher([]Sink{sink}, 4, time.Second, zap.NewNop(), WithScrubber(scrubber))

	d.Enqueue(Entry{
		Query:     "My employer emailed hr@acme.example about my SSN 123-45-6789",
		Answer:    "Contact the labour office.",
		Reasoning: "The user at hr@acme.example asked about wages.",
	})
	d.EnqueueFeedback(Feedback{QueryID: "q1", Rating: 2, Comment: "Call me on jane@home.example"})
	require.NoError(t, d.Close())

	got := sink.all()
	require.Len(t, got, 1)
	assert.Equal(t, "My employer emailed [EMAIL] about my SSN [ID]", got[0].Query)
	assert.Equal(t, "Contact the labour office.", got[0].Answer)
	assert.Equal(t, "The user at [EMAIL] asked about wages.", got[0].Reasoning)

	require.Len(t, sink.feedback, 1)
	assert.Equal(t, "Call me on [EMAIL]", sink.feedback[0].Comment)
}

func TestDispatcher_Feedback(t *testing.T) {
	sink := &memorySink{}
	d := NewDispatcher([]Sink{sink}, 4, time.Second, zap.NewNop())

	assert.True(t, d.Enqueue(Entry{ID: "q1", Query: "q"}))
	assert.True(t, d.EnqueueFeedback(Feedback{QueryID: "q1", Rating: 5}))
	require.NoError(t, d.Close())

	assert.Len(t, sink.all(), 1)
	require.Len(t, sink.feedback, 1)
	fb := sink.feedback[0]
	assert.NotEmpty(t, fb.ID)
	assert.False(t, fb.Timestamp.IsZero())
	assert.Equal(t, "q1", fb.QueryID)
	assert.Equal(t, 5, fb.Rating)

	assert.False(t, d.EnqueueFeedback(Feedback{QueryID: "q1", Rating: 1}), "closed dispatcher rejects feedback")
}

func TestFeedback_Validate(t *testing.T) {
	tests := []struct {
		name    string
		fb      Feedback
		wantErr bool
	}{
		{name: "lowest rating", fb: Feedback{QueryID: "q", Rating: 1}},
		{name: "highest rating with comment", fb: Feedback{QueryID: "q", Rating: 5, Comment: "Clear answer"}},
		{name: "comment at limit", fb: Feedback{QueryID: "q", Rating: 3, Comment: strings.Repeat("न", MaxCommentLength)}},
		{name: "missing query", fb: Feedback{Rating: 3}, wantErr: true},
		{name: "rating zero", fb: Feedback{QueryID: "q", Rating: 0}, wantErr: true},
		{name: "rating six", fb: Feedback{QueryID: "q", Rating: 6}, wantErr: true},
		{name: "comment too long", fb: Feedback{QueryID: "q", Rating: 3, Comment: strings.Repeat("a", MaxCommentLength+1)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fb.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFeedback)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNop(t *testing.T) {
	var l Logger = Nop{}
	assert.True(t, l.Enqueue(Entry{}))
	assert.True(t, l.EnqueueFeedback(Feedback{}))
	assert.NoError(t, l.Close())
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "queries.jsonl")
	s, err := NewFileSink(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Write(ctx, Entry{ID: "1", Jurisdiction: "usa", Query: "What is the minimum wage?", Channel: ChannelText,
		Hits: []HitRef{{ChunkID: 0, Score: 0.8}}}))
	require.NoError(t, s.Write(ctx, Entry{ID: "2", Jurisdiction: "india", Channel: ChannelVoice}))
	require.NoError(t, s.WriteFeedback(ctx, Feedback{ID: "3", QueryID: "1", Rating: 4, Comment: "Helpful"}))
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []json.RawMessage
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, append(json.RawMessage(nil), sc.Bytes()...))
	}
	require.Len(t, lines, 3)

	var types []string
	for _, l := range lines {
		var head struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(l, &head))
		types = append(types, head.Type)
	}
	assert.Equal(t, []string{"query", "query", "feedback"}, types)

	var first, second Entry
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "What is the minimum wage?", first.Query)
	assert.Equal(t, []HitRef{{ChunkID: 0, Score: 0.8}}, first.Hits)
	assert.Equal(t, ChannelVoice, second.Channel)

	var fb Feedback
	require.NoError(t, json.Unmarshal(lines[2], &fb))
	assert.Equal(t, Feedback{ID: "3", QueryID: "1", Rating: 4, Comment: "Helpful"}, fb)
}

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}
	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(server.Shutdown)
	return server
}

func TestNATSSink(t *testing.T) {
	server := startTestNATSServer(t)

	sub, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer sub.Close()

	msgs := make(chan *nats.Msg, 4)
	_, err = sub.ChanSubscribe("lexivoice.queries.>", msgs)
	require.NoError(t, err)
	feedback := make(chan *nats.Msg, 4)
	_, err = sub.ChanSubscribe(FeedbackSubject, feedback)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	sink, err := DialNATSSink(server.ClientURL(), "")
	require.NoError(t, err)

	d := NewDispatcher([]Sink{sink}, 4, time.Second, zap.NewNop())
	d.Enqueue(Entry{Jurisdiction: "canada", Query: "Is overtime paid?", Confidence: 0.7})
	d.EnqueueFeedback(Feedback{QueryID: "q1", Rating: 2})
	require.NoError(t, d.Close())

	select {
	case msg := <-msgs:
		assert.Equal(t, "lexivoice.queries.canada", msg.Subject)
		var e Entry
		require.NoError(t, json.Unmarshal(msg.Data, &e))
		assert.Equal(t, "Is overtime paid?", e.Query)
		assert.InDelta(t, 0.7, e.Confidence, 1e-9)
	case <-time.After(5 * time.Second):
		t.Fatal("no entry published")
	}
	select {
	case msg := <-feedback:
		var fb Feedback
		require.NoError(t, json.Unmarshal(msg.Data, &fb))
		assert.Equal(t, "q1", fb.QueryID)
		assert.Equal(t, 2, fb.Rating)
	case <-time.After(5 * time.Second):
		t.Fatal("no feedback published")
	}
	assert.True(t, sink.nc.IsClosed())
}

func TestNATSSink_Subject(t *testing.T) {
	s := NewNATSSink(nil, "audit")
	assert.Equal(t, "audit.usa", s.Subject("usa"))
	assert.Equal(t, "audit.unknown", s.Subject(""))
}
