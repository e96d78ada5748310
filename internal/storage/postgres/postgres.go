package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IlyasAtabaev731/jar-bank/internal/storage"
	"github.com/IlyasAtabaev731/jar-bank/internal/storage/pool"
	_ "github.com/lib/pq"
)

type Storage struct {
	db             *sql.DB
	pool           *pool.Pool[*sql.Conn]
	acquireTimeout time.Duration
	logger         *slog.Logger
}

type Options struct {
	PoolSize int
	// AcquireTimeout bounds the wait for a free connection. Zero waits
	// for as long as the caller's context allows.
	AcquireTimeout time.Duration
}

func New(ctx context.Context, dbUrl string, opts Options, logger *slog.Logger) (*Storage, error) {
	db, err := sql.Open("postgres", dbUrl)
	if err != nil {
		return nil, fmt.Errorf("database connection error %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect database error %w", err)
	}

	s, err := NewWithDB(ctx, db, opts, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// NewWithDB pins opts.PoolSize connections of db into the pool. db must not
// be used directly afterwards.
func NewWithDB(ctx context.Context, db *sql.DB, opts Options, logger *slog.Logger) (*Storage, error) {
	db.SetMaxOpenConns(opts.PoolSize)
	db.SetMaxIdleConns(opts.PoolSize)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	p, err := pool.New(ctx, opts.PoolSize, func(ctx context.Context) (*sql.Conn, error) {
		return db.Conn(ctx)
	}, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Connection pool ready", slog.Int("size", p.Stats().Size))

	return &Storage{
		db:             db,
		pool:           p,
		acquireTimeout: opts.AcquireTimeout,
		logger:         logger,
	}, nil
}

func (s *Storage) Stop() error {
	poolErr := s.pool.Close(func(conn *sql.Conn) error {
		return conn.Close()
	})

	return errors.Join(poolErr, s.db.Close())
}

func (s *Storage) PoolStats() pool.Stats {
	return s.pool.Stats()
}

// Atomic runs fn in a transaction on a leased connection. The transaction
// commits when fn returns nil and rolls back otherwise; the connection goes
// back to the pool either way.
func (s *Storage) Atomic(ctx context.Context, fn func(tx storage.Tx) error) (err error) {
	const op = "storage.postgres.Atomic"

	lease, err := s.acquire(ctx)
	if err != nil {
		return fmt.Errorf("%s: acquire connection: %w", op, err)
	}
	defer lease.Release()

	sqlTx, err := lease.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error("Failed to rollback transaction", slog.String("op", op), slog.String("error", rbErr.Error()))
			}
			return
		}
		if cErr := sqlTx.Commit(); cErr != nil {
			err = fmt.Errorf("%s: commit: %w", op, cErr)
		}
	}()

	return fn(&Tx{tx: sqlTx})
}

func (s *Storage) acquire(ctx context.Context) (*pool.Lease[*sql.Conn], error) {
	if s.acquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.acquireTimeout)
		defer cancel()
	}

	return s.pool.Acquire(ctx)
}
