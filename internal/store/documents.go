package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// ErrInvalidLimit is returned by Search for a non-positive k.
var ErrInvalidLimit = errors.New("search limit must be positive")

// Document pairs a text with its embedding.
type Document struct {
	Text      string
	Embedding []float32
}

// Result is one nearest-neighbour hit.
type Result struct {
	Text     string
	Distance float64
	Score    float64
}

// InsertDocuments copies docs into the table in one transaction. Either every
// row is committed or none is.
func (s *Store) InsertDocuments(ctx context.Context, docs []Document) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(docs))
	for i, d := range docs {
		rows[i] = []any{d.Text, pgvector.NewVector(d.Embedding)}
	}

	var n int64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		n, err = tx.CopyFrom(ctx, s.table, []string{"text", "embedding"}, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("insert documents: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("Documents inserted", zap.String("table", s.table.Sanitize()), zap.Int64("rows", n))
	return n, nil
}

// Search returns up to k rows nearest to vec under the configured metric,
// closest first.
func (s *Store) Search(ctx context.Context, vec []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, k)
	}

	query := fmt.Sprintf(`
		SELECT text, embedding %[2]s $1 AS distance
		FROM %[1]s
		ORDER BY embedding %[2]s $1
		LIMIT $2`, s.table.Sanitize(), s.metric.Operator())

	var results []Result
	err := s.withConn(ctx, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, pgvector.NewVector(vec), k)
		if err != nil {
			return fmt.Errorf("search documents: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var r Result
			if err := rows.Scan(&r.Text, &r.Distance); err != nil {
				return fmt.Errorf("scan result: %w", err)
			}
			r.Score = s.metric.Score(r.Distance)
			results = append(results, r)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("search documents: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
