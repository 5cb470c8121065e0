package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"bridgesnap/internal/application"
	"bridgesnap/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

// Repository is the snapshot archive used by the monitor daemon.
type Repository struct {
	db *sql.DB
}

func NewRepository(dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("db dsn is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		chain_id BIGINT UNSIGNED NOT NULL,
		address VARCHAR(42) NOT NULL,
		from_block BIGINT UNSIGNED NOT NULL,
		to_block BIGINT UNSIGNED NOT NULL,
		topic0 VARCHAR(66) NOT NULL DEFAULT '',
		max_logs BIGINT UNSIGNED NOT NULL,
		log_count INT NOT NULL,
		unique_tx_count INT NOT NULL,
		commitment VARCHAR(66) NOT NULL,
		created_at DATETIME(3) NOT NULL,
		PRIMARY KEY (id),
		KEY idx_snapshots_key (chain_id, address, from_block, to_block, topic0, max_logs, created_at)
	)`)
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
		record.Commitment, record.CreatedAt.UTC())
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
		if err := rows.Scan(&record.ChainID, &record.Address, &record.FromBlock, &record.ToBlock,
			&record.Topic0, &record.MaxLogs, &record.LogCount, &record.UniqueTxCount,
			&record.Commitment, &record.CreatedAt); err != nil {
			return nil, err
		}
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
