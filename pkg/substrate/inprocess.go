package substrate

import (
	"context"
	"fmt"
	"sync"
)

// NewInprocessCohort returns size Cohort handles, one per rank, that
// communicate over Go channels and mutexes rather than a network transport.
// It's the backend used for --peers 1 (the common case, and the one the
// coordinator's own test suite drives end to end) and for simulating a
// multi-peer cohort inside a single test binary, the way the teacher spins
// up n goroutine workers sharing one process in make.go/assemble.go/copy.go
// rather than n OS processes.
func NewInprocessCohort(size int) []Cohort {
	if size < 1 {
		panic("substrate: cohort size must be >= 1")
	}
	h := &hub{size: size}
	cohorts := make([]Cohort, size)
	for r := 0; r < size; r++ {
		cohorts[r] = &inprocessCohort{hub: h, rank: r}
	}
	return cohorts
}

// hub holds the state shared by every rank's Cohort handle: one rendezvous
// station per (kind, round) pair, lazily created, plus the point-to-point
// mailboxes and the cohort-wide abort flag.
type hub struct {
	size int

	mu       sync.Mutex
	stations map[string]*rendezvous
	mailbox  map[string]chan []byte
	aborted  error
}

func (h *hub) station(key string) *rendezvous {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stations == nil {
		h.stations = make(map[string]*rendezvous)
	}
	s, ok := h.stations[key]
	if !ok {
		s = newRendezvous(h.size, h)
		h.stations[key] = s
	}
	return s
}

func (h *hub) box(key string) chan []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.mailbox == nil {
		h.mailbox = make(map[string]chan []byte)
	}
	c, ok := h.mailbox[key]
	if !ok {
		c = make(chan []byte, 1)
		h.mailbox[key] = c
	}
	return c
}

func (h *hub) abortErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.aborted
}

func (h *hub) abort(err error) {
	h.mu.Lock()
	if h.aborted == nil {
		h.aborted = err
	}
	stations := make([]*rendezvous, 0, len(h.stations))
	for _, s := range h.stations {
		stations = append(stations, s)
	}
	h.mu.Unlock()
	for _, s := range stations {
		s.abort(err)
	}
}

// rendezvous is a reusable barrier: size callers submit a value, the last
// arrival computes a shared result from all of them, and every caller
// (including the last) receives that result.
type rendezvous struct {
	mu     sync.Mutex
	cond   *sync.Cond
	h      *hub
	size   int
	values map[int]any
	result any
	ready  bool
}

func newRendezvous(size int, h *hub) *rendezvous {
	r := &rendezvous{size: size, h: h, values: make(map[int]any)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

func (r *rendezvous) abort(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cond.Broadcast()
}

// join submits rank's value and blocks until every rank has joined, at
// which point compute is invoked exactly once (by whichever goroutine
// arrives last) to produce the shared result every caller receives.
func (r *rendezvous) join(ctx context.Context, rank int, v any, compute func(map[int]any) any) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.h.abortErr(); err != nil {
		return nil, err
	}
	r.values[rank] = v
	if len(r.values) == r.size {
		r.result = compute(r.values)
		r.ready = true
		r.cond.Broadcast()
	} else {
		for !r.ready {
			if err := r.h.abortErr(); err != nil {
				return nil, err
			}
			r.cond.Wait()
			if err := r.h.abortErr(); err != nil {
				return nil, err
			}
		}
	}
	return r.result, nil
}

// inprocessCohort is one rank's handle onto a shared hub. Each instance
// tracks its own per-kind call counters so that its Nth call to, say,
// AllGatherUint64 rendezvous with every other rank's Nth call — correct as
// long as every rank drives the same collective call sequence, which the
// coordinator's phase state machine guarantees.
type inprocessCohort struct {
	hub  *hub
	rank int

	mu     sync.Mutex
	rounds map[string]int
}

func (c *inprocessCohort) Rank() int { return c.rank }
func (c *inprocessCohort) Size() int { return c.hub.size }

func (c *inprocessCohort) nextRound(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rounds == nil {
		c.rounds = make(map[string]int)
	}
	n := c.rounds[kind]
	c.rounds[kind] = n + 1
	return n
}

func (c *inprocessCohort) Barrier(ctx context.Context) error {
	round := c.nextRound("barrier")
	station := c.hub.station(fmt.Sprintf("barrier-%d", round))
	_, err := station.join(ctx, c.rank, struct{}{}, func(map[int]any) any { return struct{}{} })
	return err
}

func (c *inprocessCohort) AllGatherUint64(ctx context.Context, v uint64) ([]uint64, error) {
	round := c.nextRound("allgather-u64")
	station := c.hub.station(fmt.Sprintf("allgather-u64-%d", round))
	res, err := station.join(ctx, c.rank, v, func(vals map[int]any) any {
		out := make([]uint64, len(vals))
		for r, val := range vals {
			out[r] = val.(uint64)
		}
		return out
	})
	if err != nil {
		return nil, err
	}
	return res.([]uint64), nil
}

func (c *inprocessCohort) GatherUint32ToRoot(ctx context.Context, root int, v []uint32) ([][]uint32, error) {
	round := c.nextRound("gather-u32")
	station := c.hub.station(fmt.Sprintf("gather-u32-%d", round))
	res, err := station.join(ctx, c.rank, v, func(vals map[int]any) any {
		out := make([][]uint32, len(vals))
		for r, val := range vals {
			out[r] = val.([]uint32)
		}
		return out
	})
	if err != nil {
		return nil, err
	}
	if c.rank != root {
		return nil, nil
	}
	return res.([][]uint32), nil
}

func (c *inprocessCohort) BroadcastUint64(ctx context.Context, root int, v uint64) (uint64, error) {
	round := c.nextRound("broadcast-u64")
	station := c.hub.station(fmt.Sprintf("broadcast-u64-%d", round))
	res, err := station.join(ctx, c.rank, v, func(vals map[int]any) any {
		return vals[root]
	})
	if err != nil {
		return 0, err
	}
	return res.(uint64), nil
}

func (c *inprocessCohort) Send(ctx context.Context, to int, tag uint64, body []byte) error {
	if err := c.hub.abortErr(); err != nil {
		return err
	}
	box := c.hub.box(fmt.Sprintf("%d-%d-%d", c.rank, to, tag))
	cp := append([]byte(nil), body...)
	select {
	case box <- cp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *inprocessCohort) Recv(ctx context.Context, from int, tag uint64) ([]byte, error) {
	box := c.hub.box(fmt.Sprintf("%d-%d-%d", from, c.rank, tag))
	select {
	case b := <-box:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *inprocessCohort) Abort(err error) { c.hub.abort(err) }
func (c *inprocessCohort) Close() error    { return nil }

var _ Cohort = (*inprocessCohort)(nil)
