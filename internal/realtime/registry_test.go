package realtime_test

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/floroz/gavel-live/internal/realtime"
)

func TestRegistry_JoinIsIdempotent(t *testing.T) {
	r := realtime.NewRegistry()
	obs := newFakeObserver()
	lotID := uuid.New()

	r.Join(obs, lotID)
	r.Join(obs, lotID)

	assert.Equal(t, []uuid.UUID{obs.ID()}, r.MembersOf(lotID))
	assert.Len(t, r.Members(lotID), 1)
}

func TestRegistry_Leave(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(r *realtime.Registry, obs *fakeObserver, lotID uuid.UUID)
		wantMembers int
	}{
		{
			name: "member leaves",
			setup: func(r *realtime.Registry, obs *fakeObserver, lotID uuid.UUID) {
				r.Join(obs, lotID)
			},
			wantMembers: 0,
		},
		{
			name:        "non-member leave is a no-op",
			setup:       func(*realtime.Registry, *fakeObserver, uuid.UUID) {},
			wantMembers: 0,
		},
		{
			name: "leaving another lot keeps this one",
			setup: func(r *realtime.Registry, obs *fakeObserver, lotID uuid.UUID) {
				r.Join(obs, lotID)
				r.Join(obs, uuid.New())
			},
			wantMembers: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := realtime.NewRegistry()
			obs := newFakeObserver()
			lotID := uuid.New()
			tt.setup(r, obs, lotID)

			if tt.wantMembers == 1 {
				// leave some lot the observer never joined
				r.Leave(obs.ID(), uuid.New())
			} else {
				r.Leave(obs.ID(), lotID)
				r.Leave(obs.ID(), lotID)
			}

			assert.Len(t, r.MembersOf(lotID), tt.wantMembers)
		})
	}
}

func TestRegistry_DropObserver(t *testing.T) {
	r := realtime.NewRegistry()
	obs := newFakeObserver()
	other := newFakeObserver()
	lotA, lotB := uuid.New(), uuid.New()

	r.Join(obs, lotA)
	r.Join(obs, lotB)
	r.Join(other, lotA)

	assert.ElementsMatch(t, []uuid.UUID{lotA, lotB}, r.LotsOf(obs.ID()))
	assert.True(t, r.DropObserver(obs.ID()))
	assert.False(t, r.DropObserver(obs.ID()), "second drop finds nothing")

	assert.Equal(t, []uuid.UUID{other.ID()}, r.MembersOf(lotA))
	assert.Empty(t, r.MembersOf(lotB))
	assert.Empty(t, r.LotsOf(obs.ID()))
}

func TestRegistry_ConcurrentMutationsAndReads(t *testing.T) {
	r := realtime.NewRegistry()
	lotID := uuid.New()

	const observers = 50
	var wg sync.WaitGroup
	stop := make(chan struct{})

	// readers run while membership churns
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					for _, obs := range r.Members(lotID) {
						assert.NotEqual(t, uuid.Nil, obs.ID())
					}
					_ = r.MembersOf(lotID)
				}
			}
		}()
	}

	var writers sync.WaitGroup
	kept := make([]*fakeObserver, observers)
	for i := 0; i < observers; i++ {
		kept[i] = newFakeObserver()
		writers.Add(1)
		go func(obs *fakeObserver, leave bool) {
			defer writers.Done()
			r.Join(obs, lotID)
			r.Join(obs, uuid.New())
			if leave {
				r.DropObserver(obs.ID())
			}
		}(kept[i], i%2 == 0)
	}
	writers.Wait()
	close(stop)
	wg.Wait()

	assert.Len(t, r.MembersOf(lotID), observers/2)
}
