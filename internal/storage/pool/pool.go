package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

var ErrNoConnections = errors.New("pool: no connections could be opened")

// Factory opens one physical connection.
type Factory[T any] func(ctx context.Context) (T, error)

// Pool is a fixed set of connections opened up front. Acquire blocks while
// every connection is leased; each Release hands its connection to exactly
// one waiter.
type Pool[T any] struct {
	conns   chan T
	size    int
	waiting atomic.Int64
	logger  *slog.Logger
}

// Stats is a point-in-time snapshot of the pool.
type Stats struct {
	Size      int
	Available int
	InUse     int
	Waiting   int
}

// New opens size connections. Connections that fail to open are logged and
// left out, so the pool may hold fewer than size. It fails only when none
// could be opened.
func New[T any](ctx context.Context, size int, open Factory[T], logger *slog.Logger) (*Pool[T], error) {
	const op = "storage.pool.New"

	log := logger.With(slog.String("op", op))

	if size <= 0 {
		return nil, fmt.Errorf("%s: invalid pool size %d", op, size)
	}

	opened := make([]T, 0, size)
	for i := 0; i < size; i++ {
		conn, err := open(ctx)
		if err != nil {
			log.Warn("failed to open connection", slog.Int("slot", i), slog.String("error", err.Error()))
			continue
		}
		opened = append(opened, conn)
	}

	if len(opened) == 0 {
		log.Error("pool has no usable connections", slog.Int("requested", size))
		return nil, fmt.Errorf("%s: %w", op, ErrNoConnections)
	}
	if len(opened) < size {
		log.Warn("pool started below requested size",
			slog.Int("requested", size),
			slog.Int("opened", len(opened)),
		)
	}

	p := &Pool[T]{
		conns:  make(chan T, len(opened)),
		size:   len(opened),
		logger: logger,
	}
	for _, conn := range opened {
		p.conns <- conn
	}

	return p, nil
}

// Acquire leases a connection. With a context that is never done it blocks
// until a connection is released; otherwise it gives up with ctx.Err().
func (p *Pool[T]) Acquire(ctx context.Context) (*Lease[T], error) {
	select {
	case conn := <-p.conns:
		return &Lease[T]{pool: p, conn: conn}, nil
	default:
	}

	p.waiting.Add(1)
	defer p.waiting.Add(-1)

	select {
	case conn := <-p.conns:
		return &Lease[T]{pool: p, conn: conn}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// With runs fn on a leased connection and releases it on every exit path.
func (p *Pool[T]) With(ctx context.Context, fn func(conn T) error) error {
	lease, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	return fn(lease.Conn())
}

func (p *Pool[T]) put(conn T) {
	// Capacity equals the number of connections, so this never blocks.
	p.conns <- conn
}

func (p *Pool[T]) Stats() Stats {
	available := len(p.conns)
	return Stats{
		Size:      p.size,
		Available: available,
		InUse:     p.size - available,
		Waiting:   int(p.waiting.Load()),
	}
}

// Close closes the idle connections with closeFn. It is meant for shutdown;
// leased connections are left to their holders.
func (p *Pool[T]) Close(closeFn func(T) error) error {
	var errs []error
	for {
		select {
		case conn := <-p.conns:
			if err := closeFn(conn); err != nil {
				errs = append(errs, err)
			}
		default:
			return errors.Join(errs...)
		}
	}
}

// Lease is exclusive use of one pooled connection until Release.
type Lease[T any] struct {
	pool     *Pool[T]
	conn     T
	released atomic.Bool
}

func (l *Lease[T]) Conn() T {
	return l.conn
}

// Release returns the connection to the pool. Calls after the first are
// no-ops.
func (l *Lease[T]) Release() {
	if !l.released.CompareAndSwap(false, true) {
		return
	}
	l.pool.put(l.conn)
}
