package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spherre/multisig-service/internal/models"
	"github.com/spherre/multisig-service/internal/service"
)

// CreateSmartLock persists a new lock; lock_id is globally unique
func (r *Repository) CreateSmartLock(ctx context.Context, lock *models.SmartLock) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO spherre.smart_locks (id, lock_id, account_id, token, token_amount, date_locked, lock_duration, lock_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		lock.ID, lock.LockID, lock.AccountID, lock.Token, lock.TokenAmount,
		lock.DateLocked, lock.LockDuration, lock.Status, lock.CreatedAt)
	if err != nil {
		return storeErr("create smart lock", err)
	}
	return nil
}

// GetSmartLockByLockID retrieves a lock by its on-chain identifier
func (r *Repository) GetSmartLockByLockID(ctx context.Context, lockID int64) (*models.SmartLock, error) {
	lock := &models.SmartLock{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, lock_id, account_id, token, token_amount, date_locked, lock_duration, lock_status, created_at
		FROM spherre.smart_locks
		WHERE lock_id = $1`, lockID).
		Scan(&lock.ID, &lock.LockID, &lock.AccountID, &lock.Token, &lock.TokenAmount,
			&lock.DateLocked, &lock.LockDuration, &lock.Status, &lock.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: smart lock %d", service.ErrNotFound, lockID)
	}
	if err != nil {
		return nil, storeErr("find smart lock", err)
	}
	return lock, nil
}

// ListSmartLocks retrieves a page of the account's locks, most recently
// locked first, optionally filtered by status
func (r *Repository) ListSmartLocks(ctx context.Context, accountID string, status models.LockStatus, page, perPage int) ([]*models.SmartLock, *service.Pagination, error) {
	where := "account_id = $1"
	args := []any{accountID}
	if status != "" {
		args = append(args, string(status))
		where += fmt.Sprintf(" AND lock_status = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM spherre.smart_locks WHERE %s`, where), args...).Scan(&total); err != nil {
		return nil, nil, storeErr("count smart locks", err)
	}

	query := fmt.Sprintf(`
		SELECT id, lock_id, account_id, token, token_amount, date_locked, lock_duration, lock_status, created_at
		FROM spherre.smart_locks
		WHERE %s
		ORDER BY date_locked DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, storeErr("list smart locks", err)
	}
	defer rows.Close()

	var locks []*models.SmartLock
	for rows.Next() {
		lock := &models.SmartLock{}
		if err := rows.Scan(&lock.ID, &lock.LockID, &lock.AccountID, &lock.Token, &lock.TokenAmount,
			&lock.DateLocked, &lock.LockDuration, &lock.Status, &lock.CreatedAt); err != nil {
			return nil, nil, storeErr("scan smart lock", err)
		}
		locks = append(locks, lock)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, storeErr("iterate smart locks", err)
	}
	return locks, pagination(total, page, perPage), nil
}

// UpdateLockStatus transitions a lock's status
func (r *Repository) UpdateLockStatus(ctx context.Context, lockID int64, status models.LockStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE spherre.smart_locks SET lock_status = $1 WHERE lock_id = $2`, status, lockID)
	if err != nil {
		return storeErr("update lock status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: smart lock %d", service.ErrNotFound, lockID)
	}
	return nil
}
