package realtime_test

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/floroz/gavel-live/internal/auction"
)

var errGone = errors.New("observer gone")

// fakeObserver records deliveries; it fails every delivery once broken.
type fakeObserver struct {
	id uuid.UUID

	mu        sync.Mutex
	delivered []auction.BidSummary
	broken    bool
	closed    bool
}

func newFakeObserver() *fakeObserver {
	return &fakeObserver{id: uuid.New()}
}

func (o *fakeObserver) ID() uuid.UUID { return o.id }

func (o *fakeObserver) Deliver(_ context.Context, s auction.BidSummary) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.broken {
		return errGone
	}
	o.delivered = append(o.delivered, s)
	return nil
}

func (o *fakeObserver) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
}

func (o *fakeObserver) breakDelivery() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.broken = true
}

func (o *fakeObserver) versions() []int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]int64, 0, len(o.delivered))
	for _, s := range o.delivered {
		out = append(out, s.Version)
	}
	return out
}

func (o *fakeObserver) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
