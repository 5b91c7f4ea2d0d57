package broadcast_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/gavel-live/internal/adapters/broadcast"
	"github.com/floroz/gavel-live/internal/auction"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSubscription struct {
	pattern string
	ch      chan broadcast.Message
	once    sync.Once
}

func (s *fakeSubscription) Messages() <-chan broadcast.Message { return s.ch }

func (s *fakeSubscription) Close() error {
	s.once.Do(func() { close(s.ch) })
	return nil
}

// fakeBus is an in-memory Bus supporting trailing-* patterns
type fakeBus struct {
	mu         sync.Mutex
	subs       []*fakeSubscription
	published  []broadcast.Message
	publishErr error
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	msg := broadcast.Message{Channel: channel, Payload: payload}
	b.published = append(b.published, msg)
	for _, s := range b.subs {
		if strings.HasPrefix(channel, strings.TrimSuffix(s.pattern, "*")) {
			s.ch <- msg
		}
	}
	return nil
}

func (b *fakeBus) PSubscribe(_ context.Context, pattern string) (broadcast.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &fakeSubscription{pattern: pattern, ch: make(chan broadcast.Message, 16)}
	b.subs = append(b.subs, s)
	return s, nil
}

func (b *fakeBus) subscribed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs) > 0
}

type recordingAnnouncer struct {
	mu        sync.Mutex
	summaries []auction.BidSummary
}

func (a *recordingAnnouncer) Announce(_ context.Context, s auction.BidSummary) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summaries = append(a.summaries, s)
}

func (a *recordingAnnouncer) received() []auction.BidSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]auction.BidSummary(nil), a.summaries...)
}

func testSummary() auction.BidSummary {
	return auction.BidSummary{
		LotID:       uuid.New(),
		BidID:       uuid.New(),
		Amount:      2500,
		CommittedAt: time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC),
		BidderID:    uuid.New(),
		BidderName:  "Alice",
		Version:     3,
	}
}

func TestAnnouncer_PublishesToLotChannel(t *testing.T) {
	bus := &fakeBus{}
	local := &recordingAnnouncer{}
	announcer := broadcast.NewAnnouncer(bus, local, broadcast.DefaultChannelPrefix, discardLogger)

	s := testSummary()
	announcer.Announce(context.Background(), s)

	require.Len(t, bus.published, 1)
	assert.Equal(t, "lot:"+s.LotID.String(), bus.published[0].Channel)

	decoded, err := auction.DecodeBidPlaced(bus.published[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, s.BidID, decoded.BidID)
	assert.Equal(t, s.Version, decoded.Version)

	assert.Empty(t, local.received(), "local delivery comes back through the subscriber")
}

func TestAnnouncer_FallsBackToLocalOnPublishFailure(t *testing.T) {
	bus := &fakeBus{publishErr: errors.New("connection refused")}
	local := &recordingAnnouncer{}
	announcer := broadcast.NewAnnouncer(bus, local, broadcast.DefaultChannelPrefix, discardLogger)

	s := testSummary()
	announcer.Announce(context.Background(), s)

	require.Len(t, local.received(), 1)
	assert.Equal(t, s.BidID, local.received()[0].BidID)
}

func TestSubscriber_DeliversDecodedBids(t *testing.T) {
	bus := &fakeBus{}
	local := &recordingAnnouncer{}
	subscriber := broadcast.NewSubscriber(bus, local, broadcast.DefaultChannelPrefix, discardLogger)
	announcer := broadcast.NewAnnouncer(bus, local, broadcast.DefaultChannelPrefix, discardLogger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- subscriber.Run(ctx) }()
	require.Eventually(t, bus.subscribed, time.Second, 5*time.Millisecond)

	// garbage on a matching channel is skipped
	require.NoError(t, bus.Publish(ctx, "lot:garbage", []byte{0xff, 0xff}))

	s := testSummary()
	announcer.Announce(ctx, s)

	require.Eventually(t, func() bool { return len(local.received()) == 1 }, time.Second, 5*time.Millisecond)
	got := local.received()[0]
	assert.Equal(t, s.LotID, got.LotID)
	assert.Equal(t, s.BidderName, got.BidderName)
	assert.True(t, s.CommittedAt.Equal(got.CommittedAt))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not stop after cancel")
	}
}

func TestSubscriber_ReportsClosedSubscription(t *testing.T) {
	bus := &fakeBus{}
	subscriber := broadcast.NewSubscriber(bus, &recordingAnnouncer{}, broadcast.DefaultChannelPrefix, discardLogger)

	done := make(chan error, 1)
	go func() { done <- subscriber.Run(context.Background()) }()
	require.Eventually(t, bus.subscribed, time.Second, 5*time.Millisecond)

	bus.mu.Lock()
	_ = bus.subs[0].Close()
	bus.mu.Unlock()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, broadcast.ErrSubscriptionClosed)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not return")
	}
}
