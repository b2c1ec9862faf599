package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"
)

// DefaultTable is the table the demo schema creates.
const DefaultTable = "docs"

// Config holds what the Store needs to reach its table.
type Config struct {
	DSN    string
	Table  string
	Metric Metric
}

// Store persists documents and their embeddings in a PostgreSQL table with a
// pgvector column. It holds no open connection: every operation connects,
// does its work and disconnects.
type Store struct {
	dsn    string
	table  pgx.Identifier
	metric Metric
	logger *zap.Logger
}

// New validates cfg and returns a Store. It does not touch the database.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if _, err := pgx.ParseConfig(cfg.DSN); err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	metric := cfg.Metric
	if metric == "" {
		metric = Cosine
	}
	if !metric.Valid() {
		return nil, fmt.Errorf("unknown vector metric %q", metric)
	}
	return &Store{
		dsn:    cfg.DSN,
		table:  pgx.Identifier{table},
		metric: metric,
		logger: logger,
	}, nil
}

// withConn opens a connection with pgvector types registered, runs fn and
// closes the connection whatever fn returns.
func (s *Store) withConn(ctx context.Context, fn func(conn *pgx.Conn) error) (err error) {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer func() {
		if cerr := conn.Close(context.WithoutCancel(ctx)); cerr != nil {
			s.logger.Warn("close postgres connection", zap.Error(cerr))
		}
	}()

	if err := pgxvec.RegisterTypes(ctx, conn); err != nil {
		return fmt.Errorf("register pgvector types: %w", err)
	}
	return fn(conn)
}

// withTx runs fn inside a single transaction, committing once on success and
// rolling back on any error.
func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return s.withConn(ctx, func(conn *pgx.Conn) error {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if err := fn(tx); err != nil {
			if rerr := tx.Rollback(context.WithoutCancel(ctx)); rerr != nil && !errors.Is(rerr, pgx.ErrTxClosed) {
				s.logger.Warn("rollback failed", zap.Error(rerr))
			}
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
}
