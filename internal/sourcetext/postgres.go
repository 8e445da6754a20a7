package sourcetext

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresResolver reads source text from the ingestion database, used when
// the service runs next to the corpus-build pipeline.
type PostgresResolver struct {
	pool *pgxpool.Pool
}

func NewPostgresResolver(ctx context.Context, connString string) (*PostgresResolver, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connecting to source text database: %w", err)
	}

	return &PostgresResolver{pool: pool}, nil
}

func (r *PostgresResolver) Resolve(ctx context.Context, sourceFile string) (string, error) {
	query := `SELECT full_text FROM documents WHERE source_file = $1`

	var text string
	if err := r.pool.QueryRow(ctx, query, sourceFile).Scan(&text); err != nil {
		return "", fmt.Errorf("loading source text for %s: %w", sourceFile, err)
	}

	return text, nil
}

func (r *PostgresResolver) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresResolver) Close() {
	r.pool.Close()
}
