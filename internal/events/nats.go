// internal/events/nats.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "candymint"

// Publisher is the part of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink forwards bus events to NATS as JSON, one subject per event type:
// "<prefix>.batch.started", "<prefix>.item.resolved" and so on.
type NATSSink struct {
	pub    Publisher
	conn   *nats.Conn
	prefix string
	sub    Subscription
	logger *zap.Logger
}

// ConnectNATS dials the server and returns a sink bound to the connection.
func ConnectNATS(natsURL, prefix string, logger *zap.Logger) (*NATSSink, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("candy-mint-events"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	sink := NewNATSSink(nc, prefix, logger)
	sink.conn = nc
	sink.logger.Info("NATS sink connected",
		zap.String("url", natsURL),
		zap.String("prefix", sink.prefix))
	return sink, nil
}

// NewNATSSink wraps an existing publisher.
func NewNATSSink(pub Publisher, prefix string, logger *zap.Logger) *NATSSink {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSSink{pub: pub, prefix: prefix, logger: logger.Named("nats_sink")}
}

// Subject returns the subject for an event type.
func (s *NATSSink) Subject(t EventType) string {
	return s.prefix + "." + string(t)
}

// Attach subscribes the sink to every event type on the bus.
func (s *NATSSink) Attach(bus *Bus) {
	s.sub = bus.SubscribeAll(s)
}

// Handle publishes one event.
func (s *NATSSink) Handle(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type(), err)
	}
	subject := s.Subject(event.Type())
	if err := s.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	s.logger.Debug("Event forwarded", zap.String("subject", subject))
	return nil
}

// Close detaches from the bus and drains the connection if the sink owns one.
func (s *NATSSink) Close() error {
	if s.sub != nil {
		s.sub.Unsubscribe()
		s.sub = nil
	}
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}
