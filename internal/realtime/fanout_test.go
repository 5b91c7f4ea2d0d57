package realtime_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/floroz/gavel-live/internal/auction"
	"github.com/floroz/gavel-live/internal/realtime"
)

func newTestFanout() (*realtime.Registry, *realtime.Fanout) {
	registry := realtime.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return registry, realtime.NewFanout(registry, logger)
}

func summary(lotID uuid.UUID, version int64) auction.BidSummary {
	return auction.BidSummary{
		LotID:   lotID,
		BidID:   uuid.New(),
		Amount:  100 + version,
		Version: version,
	}
}

func TestFanout_DeliversToCurrentMembersOnly(t *testing.T) {
	registry, fanout := newTestFanout()
	ctx := context.Background()
	lotID := uuid.New()

	early := newFakeObserver()
	elsewhere := newFakeObserver()
	registry.Join(early, lotID)
	registry.Join(elsewhere, uuid.New())

	fanout.Announce(ctx, summary(lotID, 1))

	late := newFakeObserver()
	registry.Join(late, lotID)

	fanout.Announce(ctx, summary(lotID, 2))

	assert.Equal(t, []int64{1, 2}, early.versions())
	assert.Equal(t, []int64{2}, late.versions(), "no replay for joiners after an announcement")
	assert.Empty(t, elsewhere.versions())
}

func TestFanout_DiscardsStaleVersions(t *testing.T) {
	registry, fanout := newTestFanout()
	ctx := context.Background()
	lotID := uuid.New()

	obs := newFakeObserver()
	registry.Join(obs, lotID)

	fanout.Announce(ctx, summary(lotID, 1))
	fanout.Announce(ctx, summary(lotID, 3))
	fanout.Announce(ctx, summary(lotID, 2)) // late arrival
	fanout.Announce(ctx, summary(lotID, 3)) // duplicate
	fanout.Announce(ctx, summary(lotID, 4))

	assert.Equal(t, []int64{1, 3, 4}, obs.versions())
}

func TestFanout_VersionsAreTrackedPerLot(t *testing.T) {
	registry, fanout := newTestFanout()
	ctx := context.Background()
	lotA, lotB := uuid.New(), uuid.New()

	obs := newFakeObserver()
	registry.Join(obs, lotA)
	registry.Join(obs, lotB)

	fanout.Announce(ctx, summary(lotA, 5))
	fanout.Announce(ctx, summary(lotB, 1))

	assert.Equal(t, []int64{5, 1}, obs.versions())
}

func TestFanout_FailingObserverIsDroppedAndOthersStillReceive(t *testing.T) {
	registry, fanout := newTestFanout()
	ctx := context.Background()
	lotID, otherLot := uuid.New(), uuid.New()

	healthy := newFakeObserver()
	dead := newFakeObserver()
	registry.Join(healthy, lotID)
	registry.Join(dead, lotID)
	registry.Join(dead, otherLot)
	dead.breakDelivery()

	fanout.Announce(ctx, summary(lotID, 1))

	assert.Equal(t, []int64{1}, healthy.versions())
	assert.True(t, dead.isClosed())
	assert.Equal(t, []uuid.UUID{healthy.ID()}, registry.MembersOf(lotID))
	assert.Empty(t, registry.MembersOf(otherLot), "all subscriptions of a dead observer go")
	assert.False(t, healthy.isClosed())
}
