package db

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kfa-archive/kfa-backend/config"
	"github.com/kfa-archive/kfa-backend/internal/logging"
)

// Querier is the subset of pgx used by the stores. It is satisfied by
// *Conn, *pgxpool.Pool and the pgxmock pool used in tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Conn is a single database connection handed out by the pool. It is
// either a pooled connection or, when the pool never came up, a direct
// unpooled one.
type Conn struct {
	pooled *pgxpool.Conn
	direct *pgx.Conn
}

func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if c.pooled != nil {
		return c.pooled.Exec(ctx, sql, args...)
	}
	return c.direct.Exec(ctx, sql, args...)
}

func (c *Conn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if c.pooled != nil {
		return c.pooled.Query(ctx, sql, args...)
	}
	return c.direct.Query(ctx, sql, args...)
}

func (c *Conn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if c.pooled != nil {
		return c.pooled.QueryRow(ctx, sql, args...)
	}
	return c.direct.QueryRow(ctx, sql, args...)
}

// Pool owns the bounded set of database connections. When the database is
// unreachable at startup the pool comes up degraded instead of crashing
// the process: Acquire then opens direct connections so diagnostics keep
// working once the database returns.
type Pool struct {
	pool *pgxpool.Pool // nil in degraded mode
	dsn  string
}

// Open builds the pool with a fail-soft policy. It never returns an
// error; initialization failures are logged and leave the pool degraded.
func Open(ctx context.Context, cfg *config.DatabaseConfig) *Pool {
	dsn := DSN(cfg)
	p := &Pool{dsn: dsn}

	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logging.Log.WithError(err).Error("db: bad configuration, running without pool")
		return p
	}

	maxConns := cfg.MaxConns
	if maxConns < 1 {
		maxConns = 5
	}
	pcfg.MaxConns = int32(maxConns)
	pcfg.MinConns = 1
	pcfg.MaxConnIdleTime = 5 * time.Minute
	pcfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		logging.Log.WithError(err).Error("db: pool init failed, running without pool")
		return p
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		logging.Log.WithError(err).Error("db: unreachable at startup, running without pool")
		return p
	}

	p.pool = pool
	return p
}

// Acquire hands out a live connection, blocking while the pool is
// exhausted. In degraded mode it opens a direct unpooled connection.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	if p.pool != nil {
		c, err := p.pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return &Conn{pooled: c}, nil
	}

	direct, err := pgx.Connect(ctx, p.dsn)
	if err != nil {
		return nil, err
	}
	return &Conn{direct: direct}, nil
}

// Release returns a healthy connection to the pool. Unhealthy or direct
// connections are closed outright.
func (p *Pool) Release(c *Conn, healthy bool) {
	if c == nil {
		return
	}
	if c.pooled != nil {
		if healthy {
			c.pooled.Release()
			return
		}
		_ = c.pooled.Hijack().Close(context.Background())
		return
	}
	if c.direct != nil {
		_ = c.direct.Close(context.Background())
	}
}

// WithConn runs fn with one connection and guarantees release-or-close on
// every exit path. The stores run each operation through here so no code
// path can leak a connection.
func (p *Pool) WithConn(ctx context.Context, fn func(q Querier) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}

	healthy := true
	defer func() { p.Release(conn, healthy) }()

	if err := fn(conn); err != nil {
		healthy = connUsable(err)
		return err
	}
	return nil
}

// connUsable reports whether the connection that produced err can go back
// to the pool. A PgError means the server answered, so the connection
// itself is fine; transport and deadline errors discard it.
func connUsable(err error) bool {
	if err == nil {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return true
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// Mode reports how connections are currently handed out.
func (p *Pool) Mode() string {
	if p.pool != nil {
		return "pooled"
	}
	return "direct"
}

func (p *Pool) Ping(ctx context.Context) error {
	if p.pool != nil {
		return p.pool.Ping(ctx)
	}

	conn, err := pgx.Connect(ctx, p.dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	return conn.Ping(ctx)
}

func (p *Pool) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}
