package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Inbox accepts agent responses
type Inbox interface {
	Deliver(resp Response)
}

// Transport carries a command into a tab. Replies are handed to reply,
// possibly after Send returned and possibly never.
type Transport interface {
	Send(ctx context.Context, tabID string, cmd Command, reply Inbox) error
}

type pendingRequest struct {
	tabID string
	ch    chan Response
}

// Bus correlates agent responses with outstanding requests by request id
type Bus struct {
	transport Transport
	logger    *zap.Logger

	mu      sync.Mutex
	pending map[string]*pendingRequest
}

// NewBus creates a new correlation bus over transport
func NewBus(transport Transport, logger *zap.Logger) *Bus {
	return &Bus{
		transport: transport,
		logger:    logger.Named("agent-bus"),
		pending:   make(map[string]*pendingRequest),
	}
}

// Request sends cmd to tabID and waits for the correlated response or for
// ctx to end. The request is deregistered on every return path, so a reply
// arriving afterwards is dropped.
func (b *Bus) Request(ctx context.Context, tabID string, cmd Command) (Response, error) {
	cmd.RequestID = uuid.NewString()
	if cmd.Command == "" {
		cmd.Command = CommandScrapePage
	}

	req := &pendingRequest{tabID: tabID, ch: make(chan Response, 1)}
	b.register(cmd.RequestID, req)
	defer b.deregister(cmd.RequestID)

	if err := b.transport.Send(ctx, tabID, cmd, b); err != nil {
		return Response{}, fmt.Errorf("send %s to tab %s: %w", cmd.Command, tabID, err)
	}

	select {
	case resp := <-req.ch:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Deliver implements Inbox
func (b *Bus) Deliver(resp Response) {
	b.mu.Lock()
	req, ok := b.pending[resp.RequestID]
	b.mu.Unlock()

	if !ok {
		b.logger.Debug("Dropping uncorrelated response", zap.String("request_id", resp.RequestID))
		return
	}
	if req.tabID != resp.TabID {
		b.logger.Debug("Dropping response from unexpected tab",
			zap.String("request_id", resp.RequestID),
			zap.String("expected_tab", req.tabID),
			zap.String("tab_id", resp.TabID),
		)
		return
	}

	select {
	case req.ch <- resp:
	default:
		// a response was already delivered for this request
	}
}

// Pending returns the number of outstanding requests
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Bus) register(id string, req *pendingRequest) {
	b.mu.Lock()
	b.pending[id] = req
	b.mu.Unlock()
}

func (b *Bus) deregister(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}
