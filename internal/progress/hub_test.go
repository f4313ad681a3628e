package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jobsweep/backend/internal/domain"
)

func TestHub_RoutesBySession(t *testing.T) {
	h := NewHub(4, zap.NewNop())

	s1, cancel1 := h.Subscribe("s1")
	defer cancel1()
	all, cancelAll := h.Subscribe(AllSessions)
	defer cancelAll()

	h.Publish(domain.SessionEvent{Type: domain.EventProgress, SessionID: "s1"})
	h.Publish(domain.SessionEvent{Type: domain.EventProgress, SessionID: "s2"})

	require.Len(t, s1, 1)
	assert.Equal(t, "s1", (<-s1).SessionID)
	assert.Len(t, all, 2)
}

func TestHub_SlowSubscriberDropsEvents(t *testing.T) {
	h := NewHub(1, zap.NewNop())
	ch, cancel := h.Subscribe("s1")
	defer cancel()

	for i := 0; i < 5; i++ {
		h.Publish(domain.SessionEvent{Type: domain.EventProgress, SessionID: "s1"})
	}
	assert.Len(t, ch, 1)
}

func TestHub_DropsAreLoggedUnderHubName(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := NewHub(1, zap.New(core))
	_, cancel := h.Subscribe("s1")
	defer cancel()

	h.Publish(domain.SessionEvent{Type: domain.EventProgress, SessionID: "s1"})
	h.Publish(domain.SessionEvent{Type: domain.EventProgress, SessionID: "s1"})

	entries := logs.FilterMessage("Dropping event for slow subscriber").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "hub", entries[0].LoggerName)
}

func TestHub_CancelClosesChannel(t *testing.T) {
	h := NewHub(1, zap.NewNop())
	ch, cancel := h.Subscribe("s1")
	assert.Equal(t, 1, h.Subscribers())

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, h.Subscribers())

	// publishing with no subscribers is fine
	h.Publish(domain.SessionEvent{SessionID: "s1"})
}

func TestNATSSink_Subject(t *testing.T) {
	s := &NATSSink{prefix: "jobsweep.sessions"}
	ev := domain.SessionEvent{Type: domain.EventCompleted, SessionID: "abc"}
	assert.Equal(t, "jobsweep.sessions.abc.completed", s.Subject(ev))
}
