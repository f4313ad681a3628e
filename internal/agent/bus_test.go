package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobsweep/backend/internal/domain"
)

// transportFunc lets a test decide how each command is answered
type transportFunc func(ctx context.Context, tabID string, cmd Command, reply Inbox) error

func (f transportFunc) Send(ctx context.Context, tabID string, cmd Command, reply Inbox) error {
	return f(ctx, tabID, cmd, reply)
}

func TestBus_RequestCorrelates(t *testing.T) {
	next := "https://example.com/page/2"
	bus := NewBus(transportFunc(func(_ context.Context, tabID string, cmd Command, reply Inbox) error {
		assert.Equal(t, CommandScrapePage, cmd.Command)
		assert.NotEmpty(t, cmd.RequestID)
		go reply.Deliver(Response{
			RequestID:   cmd.RequestID,
			TabID:       tabID,
			Jobs:        []domain.JobRecord{{Title: "Engineer"}},
			NextPageURL: &next,
		})
		return nil
	}), zap.NewNop())

	resp, err := bus.Request(context.Background(), "tab-1", Command{Platform: domain.PlatformSeek, PageNumber: 1})
	require.NoError(t, err)
	assert.Len(t, resp.Jobs, 1)
	require.NotNil(t, resp.NextPageURL)
	assert.Equal(t, next, *resp.NextPageURL)
	assert.Zero(t, bus.Pending())
}

func TestBus_DropsMismatchedTab(t *testing.T) {
	bus := NewBus(transportFunc(func(_ context.Context, _ string, cmd Command, reply Inbox) error {
		reply.Deliver(Response{RequestID: cmd.RequestID, TabID: "other-tab"})
		return nil
	}), zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := bus.Request(ctx, "tab-1", Command{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, bus.Pending())
}

func TestBus_LateResponseIsDropped(t *testing.T) {
	var lateReply func()
	bus := NewBus(transportFunc(func(_ context.Context, tabID string, cmd Command, reply Inbox) error {
		lateReply = func() { reply.Deliver(Response{RequestID: cmd.RequestID, TabID: tabID}) }
		return nil
	}), zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := bus.Request(ctx, "tab-1", Command{})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NotNil(t, lateReply)
	assert.NotPanics(t, lateReply)
	assert.Zero(t, bus.Pending())
}

func TestBus_SendError(t *testing.T) {
	sendErr := errors.New("boom")
	bus := NewBus(transportFunc(func(context.Context, string, Command, Inbox) error {
		return sendErr
	}), zap.NewNop())

	_, err := bus.Request(context.Background(), "tab-1", Command{})
	assert.ErrorIs(t, err, sendErr)
	assert.Zero(t, bus.Pending())
}

func TestBus_DuplicateResponseDoesNotBlock(t *testing.T) {
	bus := NewBus(transportFunc(func(_ context.Context, tabID string, cmd Command, reply Inbox) error {
		reply.Deliver(Response{RequestID: cmd.RequestID, TabID: tabID, Error: "first"})
		reply.Deliver(Response{RequestID: cmd.RequestID, TabID: tabID, Error: "second"})
		return nil
	}), zap.NewNop())

	resp, err := bus.Request(context.Background(), "tab-1", Command{})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Error)
}
