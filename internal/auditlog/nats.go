package auditlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the subject entries are published under.
const DefaultSubjectPrefix = "lexivoice.queries"

// FeedbackSubject is the subject feedback is published on.
const FeedbackSubject = "lexivoice.feedback"

// NATSSink publishes entries on <prefix>.<jurisdiction> and feedback on
// FeedbackSubject.
type NATSSink struct {
	nc     *nats.Conn
	prefix string
	owned  bool
}

// NewNATSSink publishes over an existing connection. The caller keeps
// ownership of nc.
func NewNATSSink(nc *nats.Conn, prefix string) *NATSSink {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSSink{nc: nc, prefix: prefix}
}

// DialNATSSink connects to url and owns the connection.
func DialNATSSink(url, prefix string) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("lexivoice"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	s := NewNATSSink(nc, prefix)
	s.owned = true
	return s, nil
}

// Name returns "nats".
func (*NATSSink) Name() string { return "nats" }

// Subject returns the subject for a jurisdiction.
func (s *NATSSink) Subject(jurisdiction string) string {
	if jurisdiction == "" {
		jurisdiction = "unknown"
	}
	return s.prefix + "." + jurisdiction
}

// Write publishes e. Delivery is at most once.
func (s *NATSSink) Write(_ context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}
	if err := s.nc.Publish(s.Subject(e.Jurisdiction), data); err != nil {
		return fmt.Errorf("publishing entry: %w", err)
	}
	return nil
}

// WriteFeedback publishes f. Delivery is at most once.
func (s *NATSSink) WriteFeedback(_ context.Context, f Feedback) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling feedback: %w", err)
	}
	if err := s.nc.Publish(FeedbackSubject, data); err != nil {
		return fmt.Errorf("publishing feedback: %w", err)
	}
	return nil
}

// Close flushes pending publishes, and closes the connection when the
// sink dialed it.
func (s *NATSSink) Close() error {
	if err := s.nc.Flush(); err != nil && s.nc.IsConnected() {
		return err
	}
	if s.owned {
		s.nc.Close()
	}
	return nil
}
