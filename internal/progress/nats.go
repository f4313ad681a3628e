package progress

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/jobsweep/backend/internal/domain"
)

// NATSSink publishes session events on <prefix>.<sessionID>.<type>
type NATSSink struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewNATSSink connects to url
func NewNATSSink(url, prefix string, connTimeout time.Duration, logger *zap.Logger) (*NATSSink, error) {
	opts := []nats.Option{
		nats.Name("jobsweep"),
		nats.Timeout(connTimeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	return &NATSSink{
		conn:   conn,
		prefix: prefix,
		logger: logger.Named("nats"),
	}, nil
}

// Subject returns the subject an event is published on
func (s *NATSSink) Subject(ev domain.SessionEvent) string {
	return fmt.Sprintf("%s.%s.%s", s.prefix, ev.SessionID, ev.Type)
}

// Publish implements Publisher. nats.Conn.Publish only buffers, so this
// does not block on the network.
func (s *NATSSink) Publish(ev domain.SessionEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("failed to marshal session event", zap.String("session_id", ev.SessionID), zap.Error(err))
		return
	}

	subject := s.Subject(ev)
	if err := s.conn.Publish(subject, data); err != nil {
		s.logger.Warn("failed to publish session event",
			zap.String("session_id", ev.SessionID),
			zap.String("subject", subject),
			zap.Error(err))
		return
	}

	s.logger.Debug("published session event",
		zap.String("subject", subject),
		zap.Int("size", len(data)))
}

// Close drains and closes the connection
func (s *NATSSink) Close() {
	if s.conn != nil {
		if err := s.conn.Drain(); err != nil {
			s.conn.Close()
		}
	}
}
