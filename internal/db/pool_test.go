package db

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/kfa-archive/kfa-backend/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(&config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "kfa",
		Password: "secret",
		Name:     "archive",
	})
	assert.Equal(t, "host=db.internal port=5433 user=kfa password=secret dbname=archive sslmode=disable", dsn)
}

func TestOpenDegradesWhenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Port 1 is never a postgres server; Open must come back degraded
	// rather than fail.
	pool := Open(ctx, &config.DatabaseConfig{
		Host: "127.0.0.1",
		Port: 1,
		User: "kfa",
		Name: "archive",
	})
	defer pool.Close()

	assert.Equal(t, "direct", pool.Mode())

	// Acquire keeps trying the database directly, and still fails here.
	_, err := pool.Acquire(ctx)
	assert.Error(t, err)
}

func TestConnUsable(t *testing.T) {
	assert.True(t, connUsable(nil))
	assert.True(t, connUsable(pgx.ErrNoRows))
	assert.True(t, connUsable(&pgconn.PgError{Code: "23505"}))
	assert.True(t, connUsable(errors.New("application level failure")))

	assert.False(t, connUsable(&net.OpError{Op: "read", Err: errors.New("reset")}))
	assert.False(t, connUsable(context.DeadlineExceeded))
	assert.False(t, connUsable(context.Canceled))
}
