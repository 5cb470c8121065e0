package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"bridgesnap/internal/application"
	"bridgesnap/internal/domain"

	_ "modernc.org/sqlite"
)

// Repository is the local snapshot archive used by the one-shot CLI.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := createSchema(db); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chain_id INTEGER NOT NULL,
		address TEXT NOT NULL,
		from_block INTEGER NOT NULL,
		to_block INTEGER NOT NULL,
		topic0 TEXT NOT NULL,
		max_logs INTEGER NOT NULL,
		log_count INTEGER NOT NULL,
		unique_tx_count INTEGER NOT NULL,
		commitment TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_snapshots_key
		ON snapshots (chain_id, address, from_block, to_block, topic0, max_logs, created_at)`)
	return err
}

func (r *Repository) StoreSnapshot(ctx context.Context, record domain.SnapshotRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `INSERT INTO snapshots
		(chain_id, address, from_block, to_block, topic0, max_logs, log_count, unique_tx_count, commitment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ChainID, strings.ToLower(record.Address), record.FromBlock, record.ToBlock,
		strings.ToLower(record.Topic0), record.MaxLogs, record.LogCount, record.UniqueTxCount,
		record.Commitment, record.CreatedAt.UTC().UnixMilli())
	return err
}

func (r *Repository) LatestCommitment(ctx context.Context, key domain.SnapshotKey) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var commitment string
	err := r.db.QueryRowContext(ctx, `SELECT commitment FROM snapshots
		WHERE chain_id = ? AND address = ? AND from_block = ? AND to_block = ? AND topic0 = ? AND max_logs = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`,
		key.ChainID, strings.ToLower(key.Address), key.FromBlock, key.ToBlock,
		strings.ToLower(key.Topic0), key.MaxLogs).Scan(&commitment)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return commitment, true, nil
}

func (r *Repository) QuerySnapshots(ctx context.Context, filter application.SnapshotQueryFilter) ([]domain.SnapshotRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	clauses := make([]string, 0, 4)
	args := make([]any, 0, 5)

	if filter.ChainID != nil {
		clauses = append(clauses, "chain_id = ?")
		args = append(args, *filter.ChainID)
	}
	if filter.Address != "" {
		clauses = append(clauses, "address = ?")
		args = append(args, strings.ToLower(filter.Address))
	}
	if filter.FromBlock != nil {
		clauses = append(clauses, "from_block >= ?")
		args = append(args, *filter.FromBlock)
	}
	if filter.ToBlock != nil {
		clauses = append(clauses, "to_block <= ?")
		args = append(args, *filter.ToBlock)
	}

	query := `SELECT chain_id, address, from_block, to_block, topic0, max_logs, log_count, unique_tx_count, commitment, created_at FROM snapshots`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, normalizeLimit(filter.Limit))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.SnapshotRecord
	for rows.Next() {
		var record domain.SnapshotRecord
		var createdAtMilli int64
		if err := rows.Scan(&record.ChainID, &record.Address, &record.FromBlock, &record.ToBlock,
			&record.Topic0, &record.MaxLogs, &record.LogCount, &record.UniqueTxCount,
			&record.Commitment, &createdAtMilli); err != nil {
			return nil, err
		}
		record.CreatedAt = time.UnixMilli(createdAtMilli).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}
