package substrate

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// TCPConfig describes a static rank->address table for a real, multi-process
// cohort: a TCP backend, one OS process per peer, peers addressed by a
// static rank->address table, for real multi-host runs.
// Addrs[0] is where rank 0 listens; every other rank dials it. Rank 0 is a
// star topology hub: it runs the same rendezvous logic NewInprocessCohort
// uses locally, fed by messages relayed in from the other ranks' single
// connection to it, and it forwards point-to-point traffic between two
// non-root ranks across their respective connections.
type TCPConfig struct {
	Rank        int
	Size        int
	Addrs       []string
	DialTimeout time.Duration
}

// NewTCPCohort dials (or listens and accepts) according to cfg and returns a
// Cohort bound to the resulting connection set. On rank 0 it blocks until
// every other rank has connected; any other rank returns as soon as its own
// connection to rank 0 is established.
func NewTCPCohort(ctx context.Context, cfg TCPConfig) (Cohort, error) {
	if cfg.Size < 1 {
		return nil, errors.New("substrate: cohort size must be >= 1")
	}
	if len(cfg.Addrs) != cfg.Size {
		return nil, fmt.Errorf("substrate: %d addresses for a cohort of size %d", len(cfg.Addrs), cfg.Size)
	}
	if cfg.Rank < 0 || cfg.Rank >= cfg.Size {
		return nil, fmt.Errorf("substrate: rank %d out of range for size %d", cfg.Rank, cfg.Size)
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	if cfg.Rank == 0 {
		return newTCPRoot(ctx, cfg)
	}
	return newTCPLeaf(ctx, cfg)
}

// tcpRoot is rank 0's handle: a local inprocessCohort for its own
// participation in every rendezvous, plus one goroutine per leaf connection
// relaying that leaf's submits and point-to-point traffic into the same hub.
//
// Forwarding a point-to-point Send between two non-root ranks requires both
// of their connections to already be registered; the coordinator's phase
// state machine always puts a Barrier ahead of its first Send, so by the
// time any rank's Barrier call returns, every rank's connection exists.
type tcpRoot struct {
	*inprocessCohort
	mu      sync.Mutex
	conns   map[int]net.Conn
	writeMu map[int]*sync.Mutex
}

func newTCPRoot(ctx context.Context, cfg TCPConfig) (Cohort, error) {
	ln, err := net.Listen("tcp", cfg.Addrs[0])
	if err != nil {
		return nil, errors.Wrap(err, "substrate: listen")
	}

	h := &hub{size: cfg.Size}
	root := &tcpRoot{
		inprocessCohort: &inprocessCohort{hub: h, rank: 0},
		conns:           make(map[int]net.Conn),
		writeMu:         make(map[int]*sync.Mutex),
	}

	g, _ := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Size-1; i++ {
		g.Go(func() error {
			conn, err := ln.Accept()
			if err != nil {
				return errors.Wrap(err, "substrate: accept")
			}
			m, err := readMessage(conn)
			if err != nil {
				return errors.Wrap(err, "substrate: handshake read")
			}
			if m.Kind != kindHandshake {
				return fmt.Errorf("substrate: expected handshake, got kind %d", m.Kind)
			}
			rank, err := getUint64(m.Body)
			if err != nil {
				return err
			}

			root.mu.Lock()
			root.conns[int(rank)] = conn
			root.writeMu[int(rank)] = &sync.Mutex{}
			root.mu.Unlock()

			go root.serveLeaf(int(rank), conn)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		ln.Close()
		return nil, err
	}
	_ = ln.Close() // every expected leaf has connected; no more listening needed
	return root, nil
}

// serveLeaf reads frames from one leaf connection for the lifetime of the
// cohort, relaying each into the shared hub exactly as the leaf's own
// inprocessCohort call would have, then writing the rendezvous result back.
func (root *tcpRoot) serveLeaf(rank int, conn net.Conn) {
	for {
		m, err := readMessage(conn)
		if err != nil {
			root.hub.abort(errors.Wrapf(err, "substrate: connection to rank %d lost", rank))
			return
		}
		switch m.Kind {
		case kindBarrierArrive:
			go root.relayJoin(rank, conn, "barrier", m.Tag, struct{}{}, kindBarrierRelease,
				func(map[int]any) any { return struct{}{} },
				func(any) []byte { return nil })

		case kindAllGatherSubmit:
			v, err := getUint64(m.Body)
			if err != nil {
				root.hub.abort(err)
				return
			}
			go root.relayJoin(rank, conn, "allgather-u64", m.Tag, v, kindAllGatherResult,
				func(vals map[int]any) any {
					out := make([]uint64, len(vals))
					for r, val := range vals {
						out[r] = val.(uint64)
					}
					return out
				},
				func(res any) []byte {
					vec := res.([]uint64)
					b := make([]byte, 8*len(vec))
					for i, x := range vec {
						putUint64Into(b[i*8:], x)
					}
					return b
				})

		case kindGatherSubmit:
			v, err := getUint32Slice(m.Body)
			if err != nil {
				root.hub.abort(err)
				return
			}
			go root.relayJoin(rank, conn, "gather-u32", m.Tag, v, kindGatherResult,
				func(vals map[int]any) any {
					out := make([][]uint32, len(vals))
					for r, val := range vals {
						out[r] = val.([]uint32)
					}
					return out
				},
				func(any) []byte { return nil }) // non-root never inspects the gather result

		case kindBroadcastSubmit:
			go root.relayJoin(rank, conn, "broadcast-u64", m.Tag, uint64(0), kindBroadcastResult,
				func(vals map[int]any) any { return vals[0] },
				func(res any) []byte { return putUint64(res.(uint64)) })

		case kindTagged:
			src, dst, payload, err := getEnvelope(m.Body)
			if err != nil {
				root.hub.abort(err)
				return
			}
			if dst == 0 {
				root.hub.box(fmt.Sprintf("%d-%d-%d", src, dst, m.Tag)) <- append([]byte(nil), payload...)
				continue
			}
			if err := root.sendTo(dst, wireMessage{Kind: kindTagged, Tag: m.Tag, Body: m.Body}); err != nil {
				root.hub.abort(err)
				return
			}

		case kindAbort:
			root.hub.abort(fmt.Errorf("substrate: abort from rank %d: %s", rank, string(m.Body)))
			return

		default:
			root.hub.abort(fmt.Errorf("substrate: unexpected frame kind %d from rank %d", m.Kind, rank))
			return
		}
	}
}

// relayJoin performs rank's rendezvous join on the shared hub (the same call
// an inprocessCohort would make locally) and writes the result back to rank
// over conn. Run in its own goroutine per inbound frame because join blocks
// until every rank — including root itself — has arrived.
func (root *tcpRoot) relayJoin(rank int, conn net.Conn, kind string, round uint64, v any, resultKind Kind,
	compute func(map[int]any) any, encode func(any) []byte) {
	station := root.hub.station(fmt.Sprintf("%s-%d", kind, round))
	res, err := station.join(context.Background(), rank, v, compute)
	if err != nil {
		return // hub.abort already tore everyone down; nothing more to relay
	}
	_ = root.writeTo(conn, rank, wireMessage{Kind: resultKind, Tag: round, Body: encode(res)})
}

func (root *tcpRoot) sendTo(rank int, m wireMessage) error {
	root.mu.Lock()
	conn, ok := root.conns[rank]
	root.mu.Unlock()
	if !ok {
		return fmt.Errorf("substrate: no connection to rank %d", rank)
	}
	return root.writeTo(conn, rank, m)
}

func (root *tcpRoot) writeTo(conn net.Conn, rank int, m wireMessage) error {
	root.mu.Lock()
	mu := root.writeMu[rank]
	root.mu.Unlock()
	mu.Lock()
	defer mu.Unlock()
	return writeMessage(conn, m)
}

// Barrier/AllGatherUint64/GatherUint32ToRoot/BroadcastUint64/Recv are all
// inherited from the embedded inprocessCohort, which already joins the same
// hub that serveLeaf relays leaf traffic into.

// Send delivers to root's own hub mailbox when to is 0; for any other rank
// it writes a kindTagged frame down that rank's connection, since the
// embedded inprocessCohort's Send only reaches root's local hub.
func (root *tcpRoot) Send(ctx context.Context, to int, tag uint64, body []byte) error {
	if to == 0 {
		return root.inprocessCohort.Send(ctx, to, tag, body)
	}
	if err := root.hub.abortErr(); err != nil {
		return err
	}
	return root.sendTo(to, wireMessage{Kind: kindTagged, Tag: tag, Body: putEnvelope(0, to, body)})
}

func (root *tcpRoot) Abort(err error) {
	root.hub.abort(err)
	root.mu.Lock()
	conns := make(map[int]net.Conn, len(root.conns))
	for rank, conn := range root.conns {
		conns[rank] = conn
	}
	root.mu.Unlock()
	for rank, conn := range conns {
		_ = root.writeTo(conn, rank, wireMessage{Kind: kindAbort, Body: []byte(err.Error())})
	}
}

func (root *tcpRoot) Close() error {
	root.mu.Lock()
	conns := make([]net.Conn, 0, len(root.conns))
	for _, conn := range root.conns {
		conns = append(conns, conn)
	}
	root.mu.Unlock()
	var firstErr error
	for _, conn := range conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// tcpLeaf is the non-root side: one connection to rank 0, a read loop that
// demultiplexes inbound frames into either a collective-result channel or a
// point-to-point mailbox, and a writer mutex serializing outbound frames.
type tcpLeaf struct {
	conn net.Conn
	rank int
	size int

	writeMu sync.Mutex

	mu      sync.Mutex
	rounds  map[string]int
	pending map[string]chan wireMessage
	mailbox map[string]chan []byte
	aborted error
	abortCh chan struct{}
	closeCh chan struct{}
}

func newTCPLeaf(ctx context.Context, cfg TCPConfig) (Cohort, error) {
	d := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", cfg.Addrs[0])
	if err != nil {
		return nil, errors.Wrapf(err, "substrate: dial rank 0 at %s", cfg.Addrs[0])
	}
	if err := writeMessage(conn, wireMessage{Kind: kindHandshake, Body: putUint64(uint64(cfg.Rank))}); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "substrate: handshake write")
	}
	l := &tcpLeaf{
		conn:    conn,
		rank:    cfg.Rank,
		size:    cfg.Size,
		rounds:  make(map[string]int),
		pending: make(map[string]chan wireMessage),
		mailbox: make(map[string]chan []byte),
		abortCh: make(chan struct{}),
		closeCh: make(chan struct{}),
	}
	go l.readLoop()
	return l, nil
}

func (l *tcpLeaf) readLoop() {
	for {
		m, err := readMessage(l.conn)
		if err != nil {
			l.abortLocally(errors.Wrap(err, "substrate: connection to rank 0 lost"))
			return
		}
		switch m.Kind {
		case kindBarrierRelease, kindAllGatherResult, kindGatherResult, kindBroadcastResult:
			l.resultChan(resultKey(m.Kind, m.Tag)) <- m
		case kindTagged:
			src, _, payload, err := getEnvelope(m.Body)
			if err != nil {
				l.abortLocally(err)
				return
			}
			l.mailboxChan(fmt.Sprintf("%d-%d", src, m.Tag)) <- append([]byte(nil), payload...)
		case kindAbort:
			l.abortLocally(fmt.Errorf("substrate: abort: %s", string(m.Body)))
			return
		default:
			l.abortLocally(fmt.Errorf("substrate: unexpected frame kind %d", m.Kind))
			return
		}
	}
}

func resultKey(kind Kind, round uint64) string { return fmt.Sprintf("%d-%d", kind, round) }

func (l *tcpLeaf) resultChan(key string) chan wireMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.pending[key]
	if !ok {
		c = make(chan wireMessage, 1)
		l.pending[key] = c
	}
	return c
}

func (l *tcpLeaf) mailboxChan(key string) chan []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.mailbox[key]
	if !ok {
		c = make(chan []byte, 1)
		l.mailbox[key] = c
	}
	return c
}

func (l *tcpLeaf) abortLocally(err error) {
	l.mu.Lock()
	if l.aborted == nil {
		l.aborted = err
		close(l.abortCh)
	}
	l.mu.Unlock()
}

func (l *tcpLeaf) abortErr() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.aborted
}

func (l *tcpLeaf) send(m wireMessage) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return writeMessage(l.conn, m)
}

func (l *tcpLeaf) nextRound(kind string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.rounds[kind]
	l.rounds[kind] = n + 1
	return uint64(n)
}

// roundtrip submits a frame to root and blocks for the matching result,
// respecting ctx, an in-flight Abort, and a dead connection.
func (l *tcpLeaf) roundtrip(ctx context.Context, submitKind, resultKind Kind, round uint64, body []byte) (wireMessage, error) {
	if err := l.abortErr(); err != nil {
		return wireMessage{}, err
	}
	ch := l.resultChan(resultKey(resultKind, round))
	if err := l.send(wireMessage{Kind: submitKind, Tag: round, Body: body}); err != nil {
		return wireMessage{}, err
	}
	select {
	case m := <-ch:
		return m, nil
	case <-l.abortCh:
		return wireMessage{}, l.aborted
	case <-ctx.Done():
		return wireMessage{}, ctx.Err()
	}
}

func (l *tcpLeaf) Rank() int { return l.rank }
func (l *tcpLeaf) Size() int { return l.size }

func (l *tcpLeaf) Barrier(ctx context.Context) error {
	round := l.nextRound("barrier")
	_, err := l.roundtrip(ctx, kindBarrierArrive, kindBarrierRelease, round, nil)
	return err
}

func (l *tcpLeaf) AllGatherUint64(ctx context.Context, v uint64) ([]uint64, error) {
	round := l.nextRound("allgather-u64")
	m, err := l.roundtrip(ctx, kindAllGatherSubmit, kindAllGatherResult, round, putUint64(v))
	if err != nil {
		return nil, err
	}
	out := make([]uint64, len(m.Body)/8)
	for i := range out {
		out[i] = getUint64At(m.Body, i*8)
	}
	return out, nil
}

func (l *tcpLeaf) GatherUint32ToRoot(ctx context.Context, root int, v []uint32) ([][]uint32, error) {
	round := l.nextRound("gather-u32")
	_, err := l.roundtrip(ctx, kindGatherSubmit, kindGatherResult, round, putUint32Slice(v))
	if err != nil {
		return nil, err
	}
	return nil, nil // non-root: the gathered table lives only at root
}

func (l *tcpLeaf) BroadcastUint64(ctx context.Context, root int, v uint64) (uint64, error) {
	round := l.nextRound("broadcast-u64")
	m, err := l.roundtrip(ctx, kindBroadcastSubmit, kindBroadcastResult, round, nil)
	if err != nil {
		return 0, err
	}
	return getUint64(m.Body)
}

func (l *tcpLeaf) Send(ctx context.Context, to int, tag uint64, body []byte) error {
	if err := l.abortErr(); err != nil {
		return err
	}
	return l.send(wireMessage{Kind: kindTagged, Tag: tag, Body: putEnvelope(l.rank, to, body)})
}

func (l *tcpLeaf) Recv(ctx context.Context, from int, tag uint64) ([]byte, error) {
	ch := l.mailboxChan(fmt.Sprintf("%d-%d", from, tag))
	select {
	case b := <-ch:
		return b, nil
	case <-l.abortCh:
		return nil, l.aborted
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *tcpLeaf) Abort(err error) {
	l.abortLocally(err)
	_ = l.send(wireMessage{Kind: kindAbort, Body: []byte(err.Error())})
}

func (l *tcpLeaf) Close() error { return l.conn.Close() }

var (
	_ Cohort = (*tcpRoot)(nil)
	_ Cohort = (*tcpLeaf)(nil)
)
