package application

import (
	"context"
	"errors"

	"bridgesnap/internal/domain"
)

// SnapshotArchive persists snapshot records beside the core pipeline. The
// pipeline itself stays stateless; the archive only remembers what past runs
// committed to.
type SnapshotArchive interface {
	StoreSnapshot(ctx context.Context, record domain.SnapshotRecord) error
	LatestCommitment(ctx context.Context, key domain.SnapshotKey) (string, bool, error)
	QuerySnapshots(ctx context.Context, filter SnapshotQueryFilter) ([]domain.SnapshotRecord, error)
	Ping(ctx context.Context) error
}

type SnapshotQueryFilter struct {
	ChainID   *uint64
	Address   string
	FromBlock *uint64
	ToBlock   *uint64
	Limit     int
}

// ArchiveSnapshot stores one snapshot record and reports whether an earlier
// run over the identical parameter key produced a different commitment. A
// drift means the underlying log set (or its arrival order under truncation)
// changed between runs.
func ArchiveSnapshot(ctx context.Context, archive SnapshotArchive, record domain.SnapshotRecord) (string, bool, error) {
	if archive == nil {
		return "", false, errors.New("snapshot archive is required")
	}
	previous, ok, err := archive.LatestCommitment(ctx, record.Key())
	if err != nil {
		return "", false, err
	}
	if err := archive.StoreSnapshot(ctx, record); err != nil {
		return "", false, err
	}
	if ok && previous != record.Commitment {
		return previous, true, nil
	}
	return previous, false, nil
}
