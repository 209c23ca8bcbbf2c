package repository

import (
	"context"
	"database/sql"
)

// GetCursor retrieves the last indexed block for the indexer, 0 when the
// indexer has never run
func (r *Repository) GetCursor(ctx context.Context, indexerID string) (uint64, error) {
	var block uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT last_block FROM spherre.indexer_cursors WHERE indexer_id = $1`, indexerID).Scan(&block)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, storeErr("get indexer cursor", err)
	}
	return block, nil
}

// SetCursor records the last indexed block for the indexer
func (r *Repository) SetCursor(ctx context.Context, indexerID string, block uint64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO spherre.indexer_cursors (indexer_id, last_block, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (indexer_id) DO UPDATE SET last_block = EXCLUDED.last_block, updated_at = CURRENT_TIMESTAMP`,
		indexerID, block)
	if err != nil {
		return storeErr("set indexer cursor", err)
	}
	return nil
}
