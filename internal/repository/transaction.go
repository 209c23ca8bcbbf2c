package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/spherre/multisig-service/internal/models"
	"github.com/spherre/multisig-service/internal/service"
)

const transactionColumns = `
	t.id, t.transaction_id, t.account_id, t.tx_type, t.status,
	t.proposer_id, t.executor_id, t.payload, t.created_at, t.executed_at,
	ARRAY(SELECT a.member_id::text FROM spherre.transaction_approvals a WHERE a.transaction_pk = t.id ORDER BY a.created_at),
	ARRAY(SELECT rj.member_id::text FROM spherre.transaction_rejections rj WHERE rj.transaction_pk = t.id ORDER BY rj.created_at)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	tx := &models.Transaction{}
	var executorID sql.NullString
	var payload []byte
	var executedAt sql.NullTime
	var approved, rejected pq.StringArray
	err := row.Scan(&tx.ID, &tx.TransactionID, &tx.AccountID, &tx.Type, &tx.Status,
		&tx.ProposerID, &executorID, &payload, &tx.CreatedAt, &executedAt,
		&approved, &rejected)
	if err != nil {
		return nil, err
	}
	tx.ExecutorID = executorID.String
	tx.Payload = payload
	if executedAt.Valid {
		t := executedAt.Time
		tx.ExecutedAt = &t
	}
	tx.ApprovedIDs = []string(approved)
	tx.RejectedIDs = []string(rejected)
	return tx, nil
}

// CreateTransaction persists a new transaction. The (account_id,
// transaction_id) pair is unique; duplicates surface as ErrAlreadyExists.
func (r *Repository) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	var payload any
	if len(tx.Payload) > 0 {
		payload = []byte(tx.Payload)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO spherre.transactions (id, transaction_id, account_id, tx_type, status, proposer_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tx.ID, tx.TransactionID, tx.AccountID, tx.Type, tx.Status, tx.ProposerID, payload, tx.CreatedAt)
	if err != nil {
		return storeErr("create transaction", err)
	}
	return nil
}

// GetTransaction retrieves a transaction by its per-account identifier
func (r *Repository) GetTransaction(ctx context.Context, accountID string, transactionID int64) (*models.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM spherre.transactions t WHERE t.account_id = $1 AND t.transaction_id = $2`, transactionColumns)
	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, accountID, transactionID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: transaction %d", service.ErrNotFound, transactionID)
	}
	if err != nil {
		return nil, storeErr("find transaction", err)
	}
	return tx, nil
}

var sortColumns = map[string]string{
	"":               "t.created_at",
	"date_created":   "t.created_at",
	"created_at":     "t.created_at",
	"transaction_id": "t.transaction_id",
}

// ListTransactions retrieves a filtered, ordered page of the account's
// transactions together with the total count
func (r *Repository) ListTransactions(ctx context.Context, accountID string, filter service.TransactionFilter) ([]*models.Transaction, *service.Pagination, error) {
	where := []string{"t.account_id = $1"}
	args := []any{accountID}

	add := func(cond string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("t.status = $%d", string(filter.Status))
	}
	if filter.Type != "" {
		add("t.tx_type = $%d", string(filter.Type))
	}
	if filter.ProposerID != "" {
		add("t.proposer_id = $%d", filter.ProposerID)
	}
	if filter.DateFrom != nil {
		add("t.created_at >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		add("t.created_at <= $%d", *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM spherre.transactions t WHERE %s`, whereClause)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, nil, storeErr("count transactions", err)
	}

	sortColumn, ok := sortColumns[filter.SortBy]
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown sort column %q", service.ErrInvalidArgument, filter.SortBy)
	}
	order := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		order = "ASC"
	}

	query := fmt.Sprintf(`SELECT %s FROM spherre.transactions t WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		transactionColumns, whereClause, sortColumn, order, len(args)+1, len(args)+2)
	args = append(args, filter.PerPage, (filter.Page-1)*filter.PerPage)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, storeErr("list transactions", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, nil, storeErr("scan transaction", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, storeErr("iterate transactions", err)
	}
	return txs, pagination(total, filter.Page, filter.PerPage), nil
}

// UpdateTransaction applies the mutator to the transaction under a row lock.
// Concurrent updates to the same transaction serialize on the FOR UPDATE
// lock, so each mutator observes the sets and status left by the previous
// one. A mutator error rolls everything back.
func (r *Repository) UpdateTransaction(ctx context.Context, accountID string, transactionID int64, mutate func(*models.Transaction) error) (*models.Transaction, error) {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin update transaction", err)
	}
	defer dbtx.Rollback()

	var pk string
	err = dbtx.QueryRowContext(ctx, `
		SELECT id FROM spherre.transactions
		WHERE account_id = $1 AND transaction_id = $2
		FOR UPDATE`, accountID, transactionID).Scan(&pk)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: transaction %d", service.ErrNotFound, transactionID)
	}
	if err != nil {
		return nil, storeErr("lock transaction", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM spherre.transactions t WHERE t.id = $1`, transactionColumns)
	tx, err := scanTransaction(dbtx.QueryRowContext(ctx, query, pk))
	if err != nil {
		return nil, storeErr("load transaction", err)
	}

	before := *tx
	beforeApproved := len(tx.ApprovedIDs)
	beforeRejected := len(tx.RejectedIDs)

	if err := mutate(tx); err != nil {
		return nil, err
	}

	for _, memberID := range tx.ApprovedIDs[beforeApproved:] {
		if _, err := dbtx.ExecContext(ctx,
			`INSERT INTO spherre.transaction_approvals (transaction_pk, member_id) VALUES ($1, $2)`,
			pk, memberID); err != nil {
			return nil, storeErr("record approval", err)
		}
	}
	for _, memberID := range tx.RejectedIDs[beforeRejected:] {
		if _, err := dbtx.ExecContext(ctx,
			`INSERT INTO spherre.transaction_rejections (transaction_pk, member_id) VALUES ($1, $2)`,
			pk, memberID); err != nil {
			return nil, storeErr("record rejection", err)
		}
	}

	if tx.Status != before.Status || tx.ExecutorID != before.ExecutorID || tx.ExecutedAt != before.ExecutedAt {
		var executorID any
		if tx.ExecutorID != "" {
			executorID = tx.ExecutorID
		}
		var executedAt any
		if tx.ExecutedAt != nil {
			executedAt = *tx.ExecutedAt
		}
		if _, err := dbtx.ExecContext(ctx, `
			UPDATE spherre.transactions SET status = $1, executor_id = $2, executed_at = $3 WHERE id = $4`,
			tx.Status, executorID, executedAt, pk); err != nil {
			return nil, storeErr("update transaction", err)
		}
	}

	if err := dbtx.Commit(); err != nil {
		return nil, storeErr("commit update transaction", err)
	}
	return tx, nil
}
