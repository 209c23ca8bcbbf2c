package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/spherre/multisig-service/internal/models"
	"github.com/spherre/multisig-service/internal/service"
)

// CreateAccount inserts the account and its membership rows in one
// transaction
func (r *Repository) CreateAccount(ctx context.Context, account *models.Account) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin create account", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO spherre.accounts (id, address, name, description, is_private, threshold, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING created_at, updated_at`
	err = tx.QueryRowContext(ctx, query,
		account.ID, account.Address, account.Name, account.Description, account.IsPrivate, account.Threshold).
		Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return storeErr("create account", err)
	}

	for _, m := range account.Members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO spherre.account_members (account_id, member_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			account.ID, m.ID); err != nil {
			return storeErr("add account member", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit create account", err)
	}
	return nil
}

// GetAccountByAddress retrieves an account with its members
func (r *Repository) GetAccountByAddress(ctx context.Context, address string) (*models.Account, error) {
	return r.getAccount(ctx, "address", address)
}

// GetAccountByID retrieves an account with its members
func (r *Repository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	return r.getAccount(ctx, "id", id)
}

func (r *Repository) getAccount(ctx context.Context, column, value string) (*models.Account, error) {
	account := &models.Account{}
	query := fmt.Sprintf(`
		SELECT id, address, name, description, is_private, threshold, created_at, updated_at
		FROM spherre.accounts
		WHERE %s = $1`, column)
	err := r.db.QueryRowContext(ctx, query, value).
		Scan(&account.ID, &account.Address, &account.Name, &account.Description,
			&account.IsPrivate, &account.Threshold, &account.CreatedAt, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: account %s", service.ErrNotFound, value)
	}
	if err != nil {
		return nil, storeErr("find account", err)
	}

	members, err := r.accountMembers(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	account.Members = members
	return account, nil
}

func (r *Repository) accountMembers(ctx context.Context, accountID string) ([]*models.Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.address, m.email, m.created_at, m.updated_at
		FROM spherre.members m
		JOIN spherre.account_members am ON am.member_id = m.id
		WHERE am.account_id = $1
		ORDER BY m.created_at`, accountID)
	if err != nil {
		return nil, storeErr("list account members", err)
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		m := &models.Member{}
		if err := rows.Scan(&m.ID, &m.Address, &m.Email, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, storeErr("scan member", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate members", err)
	}
	return members, nil
}

// ListAccountsByMember retrieves every account the address belongs to
func (r *Repository) ListAccountsByMember(ctx context.Context, memberAddress string) ([]*models.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.address, a.name, a.description, a.is_private, a.threshold, a.created_at, a.updated_at
		FROM spherre.accounts a
		JOIN spherre.account_members am ON am.account_id = a.id
		JOIN spherre.members m ON m.id = am.member_id
		WHERE m.address = $1
		ORDER BY a.created_at DESC`, memberAddress)
	if err != nil {
		return nil, storeErr("list member accounts", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		a := &models.Account{}
		if err := rows.Scan(&a.ID, &a.Address, &a.Name, &a.Description,
			&a.IsPrivate, &a.Threshold, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, storeErr("scan account", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate accounts", err)
	}

	for _, a := range accounts {
		members, err := r.accountMembers(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		a.Members = members
	}
	return accounts, nil
}

// UpdateThreshold sets the account's approval threshold
func (r *Repository) UpdateThreshold(ctx context.Context, accountID string, threshold int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE spherre.accounts SET threshold = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		threshold, accountID)
	if err != nil {
		return storeErr("update threshold", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: account %s", service.ErrNotFound, accountID)
	}
	return nil
}

// AddMember links a member to an account; linking twice is a no-op
func (r *Repository) AddMember(ctx context.Context, accountID, memberID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO spherre.account_members (account_id, member_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		accountID, memberID)
	if err != nil {
		return storeErr("add member", err)
	}
	return nil
}

// RemoveMember unlinks a member from an account
func (r *Repository) RemoveMember(ctx context.Context, accountID, memberID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM spherre.account_members WHERE account_id = $1 AND member_id = $2`,
		accountID, memberID)
	if err != nil {
		return storeErr("remove member", err)
	}
	return nil
}

// GetMemberByAddress retrieves a member by on-chain address
func (r *Repository) GetMemberByAddress(ctx context.Context, address string) (*models.Member, error) {
	m := &models.Member{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, address, email, created_at, updated_at
		FROM spherre.members
		WHERE address = $1`, address).
		Scan(&m.ID, &m.Address, &m.Email, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: member %s", service.ErrNotFound, address)
	}
	if err != nil {
		return nil, storeErr("find member", err)
	}
	return m, nil
}

// GetOrCreateMember retrieves the member with the given address, creating the
// record on first sight
func (r *Repository) GetOrCreateMember(ctx context.Context, address string) (*models.Member, error) {
	m := &models.Member{}
	// The no-op update makes RETURNING yield the row on conflict as well.
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO spherre.members (id, address, created_at, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (address) DO UPDATE SET address = EXCLUDED.address
		RETURNING id, address, email, created_at, updated_at`,
		uuid.NewString(), address).
		Scan(&m.ID, &m.Address, &m.Email, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, storeErr("get or create member", err)
	}
	return m, nil
}

// UpdateMemberEmail sets the member's contact email
func (r *Repository) UpdateMemberEmail(ctx context.Context, memberID, email string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE spherre.members SET email = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		email, memberID)
	if err != nil {
		return storeErr("update member email", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: member %s", service.ErrNotFound, memberID)
	}
	return nil
}
