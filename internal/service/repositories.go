package service

import (
	"context"
	"time"

	"github.com/spherre/multisig-service/internal/models"
)

// Pagination describes the page of a list response
type Pagination struct {
	Total       int `json:"total"`
	Pages       int `json:"pages"`
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
}

// TransactionFilter narrows and orders a transaction listing. Filters are
// conjunctive. Zero values mean "no filter".
type TransactionFilter struct {
	Status     models.TransactionStatus
	Type       models.TransactionType
	ProposerID string
	DateFrom   *time.Time
	DateTo     *time.Time
	SortBy     string // created_at (default) or transaction_id
	SortOrder  string // asc or desc (default)
	Page       int
	PerPage    int
}

// AccountRepository persists accounts and members
type AccountRepository interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByAddress(ctx context.Context, address string) (*models.Account, error)
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	ListAccountsByMember(ctx context.Context, memberAddress string) ([]*models.Account, error)
	UpdateThreshold(ctx context.Context, accountID string, threshold int) error
	AddMember(ctx context.Context, accountID, memberID string) error
	RemoveMember(ctx context.Context, accountID, memberID string) error
	GetMemberByAddress(ctx context.Context, address string) (*models.Member, error)
	GetOrCreateMember(ctx context.Context, address string) (*models.Member, error)
	UpdateMemberEmail(ctx context.Context, memberID, email string) error
}

// TransactionRepository persists transactions and their voting sets.
//
// UpdateTransaction is the serialization point for concurrent votes: the
// implementation must load the row under a per-transaction lock, apply the
// mutator, and persist the result atomically. A mutator error aborts the
// update and leaves stored state unchanged.
type TransactionRepository interface {
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, accountID string, transactionID int64) (*models.Transaction, error)
	ListTransactions(ctx context.Context, accountID string, filter TransactionFilter) ([]*models.Transaction, *Pagination, error)
	UpdateTransaction(ctx context.Context, accountID string, transactionID int64, mutate func(*models.Transaction) error) (*models.Transaction, error)
}

// NotificationRepository persists notifications, read receipts and
// per-member delivery preferences
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, id string) (*models.Notification, error)
	ListNotifications(ctx context.Context, accountID, unreadForMemberID string, page, perPage int) ([]*models.Notification, *Pagination, error)
	MarkRead(ctx context.Context, notificationID, memberID string) error
	GetPreference(ctx context.Context, memberID, accountID string) (*models.NotificationPreference, error)
	SavePreference(ctx context.Context, pref *models.NotificationPreference) error
}

// SmartLockRepository persists token locks mirrored from the chain
type SmartLockRepository interface {
	CreateSmartLock(ctx context.Context, lock *models.SmartLock) error
	GetSmartLockByLockID(ctx context.Context, lockID int64) (*models.SmartLock, error)
	ListSmartLocks(ctx context.Context, accountID string, status models.LockStatus, page, perPage int) ([]*models.SmartLock, *Pagination, error)
	UpdateLockStatus(ctx context.Context, lockID int64, status models.LockStatus) error
}

// CursorRepository persists indexer progress
type CursorRepository interface {
	GetCursor(ctx context.Context, indexerID string) (uint64, error)
	SetCursor(ctx context.Context, indexerID string, block uint64) error
}

// Notifier delivers lifecycle notifications to account members.
// Fire-and-forget from the caller's perspective: failures are logged by the
// implementation and never propagated as engine errors.
type Notifier interface {
	Notify(ctx context.Context, accountID string, kind models.NotificationType, title, message string) error
}
