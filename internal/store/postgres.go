package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridironlab/gridiron-data/internal/config"
)

// PostgresStore keeps every document as a JSONB row in a single table.
// One row per identifier; saves upsert.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS player_documents (
	id         text PRIMARY KEY,
	doc        jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`

// NewPostgresStore connects, bootstraps the schema, and validates
// connectivity. An unreachable database here is fatal for the run.
func NewPostgresStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Schema bootstrap on a plain connection, before the pool starts
	// preparing statements against the table.
	conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect for schema bootstrap: %w", err)
	}
	if _, err := conn.Exec(ctx, schemaSQL); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("create player_documents table: %w", err)
	}
	conn.Close(ctx)

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{pool: pool, logger: logger}, nil
}

// registerPreparedStatements registers all statements the store uses.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		"doc_save": `INSERT INTO player_documents (id, doc, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		"doc_load":   "SELECT doc FROM player_documents WHERE id = $1",
		"doc_exists": "SELECT 1 FROM player_documents WHERE id = $1",
		"doc_list":   "SELECT id FROM player_documents",
	}
	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Save upserts the document as JSONB.
func (s *PostgresStore) Save(ctx context.Context, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", id, err)
	}
	if _, err := s.pool.Exec(ctx, "doc_save", id, data); err != nil {
		return fmt.Errorf("save document %s: %w", id, err)
	}
	s.logger.Debug("Saved document", "id", id, "bytes", len(data))
	return nil
}

// Load reads the JSONB document into out.
func (s *PostgresStore) Load(ctx context.Context, id string, out any) error {
	var data []byte
	err := s.pool.QueryRow(ctx, "doc_load", id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load document %s: %w", id, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode document %s: %w", id, err)
	}
	return nil
}

// Exists checks for a row without reading the document.
func (s *PostgresStore) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx, "doc_exists", id).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check document %s: %w", id, err)
	}
	return true, nil
}

// ListIDs returns all player record ids, excluding housekeeping documents.
func (s *PostgresStore) ListIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, "doc_list")
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		if IsHousekeeping(id) {
			continue
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document ids: %w", err)
	}
	s.logger.Info("Found existing player documents", "count", len(ids))
	return ids, nil
}

// SaveBulk queues all upserts into one pgx batch round trip.
func (s *PostgresStore) SaveBulk(ctx context.Context, docs map[string]any) (saved, failed int) {
	batch := &pgx.Batch{}
	order := make([]string, 0, len(docs))
	for id, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			s.logger.Error("Marshal failed in bulk save", "id", id, "error", err)
			failed++
			continue
		}
		batch.Queue("doc_save", id, data)
		order = append(order, id)
	}
	if batch.Len() == 0 {
		return saved, failed
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for _, id := range order {
		if _, err := results.Exec(); err != nil {
			s.logger.Error("Bulk save failed", "id", id, "error", err)
			failed++
			continue
		}
		saved++
	}
	s.logger.Info("Bulk save complete", "saved", saved, "failed", failed)
	return saved, failed
}
