// Package servicetest provides in-memory repository implementations for
// tests. The stores honor the same contracts as the SQL repository,
// including the per-transaction serialization of UpdateTransaction.
package servicetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spherre/multisig-service/internal/models"
	"github.com/spherre/multisig-service/internal/service"
)

// Store is an in-memory implementation of every repository interface
type Store struct {
	mu            sync.Mutex
	accounts      map[string]*models.Account // by id
	members       map[string]*models.Member  // by id
	transactions  map[string]*models.Transaction
	notifications map[string]*models.Notification
	preferences   map[string]*models.NotificationPreference // member_id/account_id
	locks         map[int64]*models.SmartLock
	cursors       map[string]uint64
}

// NewStore initializes an empty in-memory store
func NewStore() *Store {
	return &Store{
		accounts:      make(map[string]*models.Account),
		members:       make(map[string]*models.Member),
		transactions:  make(map[string]*models.Transaction),
		notifications: make(map[string]*models.Notification),
		preferences:   make(map[string]*models.NotificationPreference),
		locks:         make(map[int64]*models.SmartLock),
		cursors:       make(map[string]uint64),
	}
}

func copyAccount(a *models.Account) *models.Account {
	clone := *a
	clone.Members = make([]*models.Member, len(a.Members))
	for i, m := range a.Members {
		member := *m
		clone.Members[i] = &member
	}
	return &clone
}

func copyTransaction(t *models.Transaction) *models.Transaction {
	clone := *t
	clone.ApprovedIDs = append([]string{}, t.ApprovedIDs...)
	clone.RejectedIDs = append([]string{}, t.RejectedIDs...)
	if t.ExecutedAt != nil {
		at := *t.ExecutedAt
		clone.ExecutedAt = &at
	}
	return &clone
}

func copyNotification(n *models.Notification) *models.Notification {
	clone := *n
	clone.ReadBy = append([]string{}, n.ReadBy...)
	return &clone
}

// CreateAccount stores the account and its members
func (s *Store) CreateAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.Address == account.Address {
			return fmt.Errorf("%w: account %s", service.ErrAlreadyExists, account.Address)
		}
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	s.accounts[account.ID] = copyAccount(account)
	for _, m := range account.Members {
		if _, ok := s.members[m.ID]; !ok {
			member := *m
			s.members[m.ID] = &member
		}
	}
	return nil
}

// GetAccountByAddress retrieves an account with its members
func (s *Store) GetAccountByAddress(ctx context.Context, address string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Address == address {
			return s.loadAccount(a), nil
		}
	}
	return nil, fmt.Errorf("%w: account %s", service.ErrNotFound, address)
}

// GetAccountByID retrieves an account with its members
func (s *Store) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", service.ErrNotFound, id)
	}
	return s.loadAccount(a), nil
}

// loadAccount resolves the stored member set against the member table so
// email updates are visible through the account
func (s *Store) loadAccount(a *models.Account) *models.Account {
	clone := copyAccount(a)
	for i, m := range clone.Members {
		if stored, ok := s.members[m.ID]; ok {
			member := *stored
			clone.Members[i] = &member
		}
	}
	return clone
}

// ListAccountsByMember retrieves every account the address belongs to
func (s *Store) ListAccountsByMember(ctx context.Context, memberAddress string) ([]*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Account
	for _, a := range s.accounts {
		for _, m := range a.Members {
			if m.Address == memberAddress {
				out = append(out, s.loadAccount(a))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateThreshold sets the account threshold
func (s *Store) UpdateThreshold(ctx context.Context, accountID string, threshold int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("%w: account %s", service.ErrNotFound, accountID)
	}
	a.Threshold = threshold
	return nil
}

// AddMember links a member to an account
func (s *Store) AddMember(ctx context.Context, accountID, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("%w: account %s", service.ErrNotFound, accountID)
	}
	m, ok := s.members[memberID]
	if !ok {
		return fmt.Errorf("%w: member %s", service.ErrNotFound, memberID)
	}
	for _, existing := range a.Members {
		if existing.ID == memberID {
			return nil
		}
	}
	member := *m
	a.Members = append(a.Members, &member)
	return nil
}

// RemoveMember unlinks a member from an account
func (s *Store) RemoveMember(ctx context.Context, accountID, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("%w: account %s", service.ErrNotFound, accountID)
	}
	kept := a.Members[:0]
	for _, m := range a.Members {
		if m.ID != memberID {
			kept = append(kept, m)
		}
	}
	a.Members = kept
	return nil
}

// GetMemberByAddress retrieves a member by address
func (s *Store) GetMemberByAddress(ctx context.Context, address string) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.Address == address {
			member := *m
			return &member, nil
		}
	}
	return nil, fmt.Errorf("%w: member %s", service.ErrNotFound, address)
}

// GetOrCreateMember retrieves or creates a member by address
func (s *Store) GetOrCreateMember(ctx context.Context, address string) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.Address == address {
			member := *m
			return &member, nil
		}
	}
	m := &models.Member{ID: uuid.NewString(), Address: address, CreatedAt: time.Now()}
	s.members[m.ID] = m
	member := *m
	return &member, nil
}

// UpdateMemberEmail sets the member email
func (s *Store) UpdateMemberEmail(ctx context.Context, memberID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberID]
	if !ok {
		return fmt.Errorf("%w: member %s", service.ErrNotFound, memberID)
	}
	m.Email = email
	return nil
}

func (s *Store) findTransaction(accountID string, transactionID int64) *models.Transaction {
	for _, t := range s.transactions {
		if t.AccountID == accountID && t.TransactionID == transactionID {
			return t
		}
	}
	return nil
}

// CreateTransaction stores a new transaction
func (s *Store) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findTransaction(tx.AccountID, tx.TransactionID) != nil {
		return fmt.Errorf("%w: transaction %d", service.ErrAlreadyExists, tx.TransactionID)
	}
	s.transactions[tx.ID] = copyTransaction(tx)
	return nil
}

// GetTransaction retrieves a transaction by per-account identifier
func (s *Store) GetTransaction(ctx context.Context, accountID string, transactionID int64) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.findTransaction(accountID, transactionID)
	if t == nil {
		return nil, fmt.Errorf("%w: transaction %d", service.ErrNotFound, transactionID)
	}
	return copyTransaction(t), nil
}

// ListTransactions filters, orders and pages the account's transactions
func (s *Store) ListTransactions(ctx context.Context, accountID string, filter service.TransactionFilter) ([]*models.Transaction, *service.Pagination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*models.Transaction
	for _, t := range s.transactions {
		if t.AccountID != accountID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.ProposerID != "" && t.ProposerID != filter.ProposerID {
			continue
		}
		if filter.DateFrom != nil && t.CreatedAt.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && t.CreatedAt.After(*filter.DateTo) {
			continue
		}
		matched = append(matched, copyTransaction(t))
	}

	asc := strings.EqualFold(filter.SortOrder, "asc")
	byID := filter.SortBy == "transaction_id"
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !asc {
			a, b = b, a
		}
		if byID {
			return a.TransactionID < b.TransactionID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.PerPage
	if start > total {
		start = total
	}
	end := start + filter.PerPage
	if end > total {
		end = total
	}
	pages := 0
	if filter.PerPage > 0 {
		pages = (total + filter.PerPage - 1) / filter.PerPage
	}
	return matched[start:end], &service.Pagination{
		Total: total, Pages: pages, CurrentPage: filter.Page, PerPage: filter.PerPage,
	}, nil
}

// UpdateTransaction applies the mutator under the store lock; a mutator
// error leaves the stored transaction untouched
func (s *Store) UpdateTransaction(ctx context.Context, accountID string, transactionID int64, mutate func(*models.Transaction) error) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.findTransaction(accountID, transactionID)
	if t == nil {
		return nil, fmt.Errorf("%w: transaction %d", service.ErrNotFound, transactionID)
	}
	clone := copyTransaction(t)
	if err := mutate(clone); err != nil {
		return nil, err
	}
	s.transactions[clone.ID] = clone
	return copyTransaction(clone), nil
}

// CreateNotification stores a notification
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.ID] = copyNotification(n)
	return nil
}

// GetNotification retrieves a notification
func (s *Store) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, fmt.Errorf("%w: notification %s", service.ErrNotFound, id)
	}
	return copyNotification(n), nil
}

// ListNotifications pages the account's notifications, newest first
func (s *Store) ListNotifications(ctx context.Context, accountID, unreadForMemberID string, page, perPage int) ([]*models.Notification, *service.Pagination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*models.Notification
	for _, n := range s.notifications {
		if n.AccountID != accountID {
			continue
		}
		if unreadForMemberID != "" && n.ReadByMember(unreadForMemberID) {
			continue
		}
		matched = append(matched, copyNotification(n))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return matched[start:end], &service.Pagination{Total: total, Pages: pages, CurrentPage: page, PerPage: perPage}, nil
}

// MarkRead records a read receipt, idempotently
func (s *Store) MarkRead(ctx context.Context, notificationID, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[notificationID]
	if !ok {
		return fmt.Errorf("%w: notification %s", service.ErrNotFound, notificationID)
	}
	if !n.ReadByMember(memberID) {
		n.ReadBy = append(n.ReadBy, memberID)
	}
	return nil
}

// GetPreference retrieves a stored preference, or nil
func (s *Store) GetPreference(ctx context.Context, memberID, accountID string) (*models.NotificationPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.preferences[memberID+"/"+accountID]
	if !ok {
		return nil, nil
	}
	pref := *p
	return &pref, nil
}

// SavePreference inserts or updates a preference
func (s *Store) SavePreference(ctx context.Context, pref *models.NotificationPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *pref
	s.preferences[pref.MemberID+"/"+pref.AccountID] = &p
	return nil
}

// CreateSmartLock stores a new lock
func (s *Store) CreateSmartLock(ctx context.Context, lock *models.SmartLock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locks[lock.LockID]; ok {
		return fmt.Errorf("%w: smart lock %d", service.ErrAlreadyExists, lock.LockID)
	}
	l := *lock
	s.locks[lock.LockID] = &l
	return nil
}

// GetSmartLockByLockID retrieves a lock
func (s *Store) GetSmartLockByLockID(ctx context.Context, lockID int64) (*models.SmartLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[lockID]
	if !ok {
		return nil, fmt.Errorf("%w: smart lock %d", service.ErrNotFound, lockID)
	}
	lock := *l
	return &lock, nil
}

// ListSmartLocks pages the account's locks, most recently locked first
func (s *Store) ListSmartLocks(ctx context.Context, accountID string, status models.LockStatus, page, perPage int) ([]*models.SmartLock, *service.Pagination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*models.SmartLock
	for _, l := range s.locks {
		if l.AccountID != accountID {
			continue
		}
		if status != "" && l.Status != status {
			continue
		}
		lock := *l
		matched = append(matched, &lock)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].DateLocked.After(matched[j].DateLocked) })

	total := len(matched)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return matched[start:end], &service.Pagination{Total: total, Pages: pages, CurrentPage: page, PerPage: perPage}, nil
}

// UpdateLockStatus transitions a lock status
func (s *Store) UpdateLockStatus(ctx context.Context, lockID int64, status models.LockStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[lockID]
	if !ok {
		return fmt.Errorf("%w: smart lock %d", service.ErrNotFound, lockID)
	}
	l.Status = status
	return nil
}

// GetCursor retrieves the indexer cursor
func (s *Store) GetCursor(ctx context.Context, indexerID string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[indexerID], nil
}

// SetCursor stores the indexer cursor
func (s *Store) SetCursor(ctx context.Context, indexerID string, block uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[indexerID] = block
	return nil
}

// RecorderSender is an EmailSender that records outbound messages
type RecorderSender struct {
	mu   sync.Mutex
	Sent []SentEmail
}

// SentEmail is one recorded message
type SentEmail struct {
	To      string
	Subject string
	Body    string
}

// Send records the message
func (r *RecorderSender) Send(to, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, SentEmail{To: to, Subject: subject, Body: body})
	return nil
}

// Messages returns a snapshot of the recorded messages
func (r *RecorderSender) Messages() []SentEmail {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SentEmail{}, r.Sent...)
}
