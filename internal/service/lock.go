package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/spherre/multisig-service/internal/models"
)

// SmartLockService mirrors token locks created by the account contract
type SmartLockService struct {
	locks    SmartLockRepository
	accounts AccountRepository
	log      *logrus.Logger
}

// NewSmartLockService initializes a new smart lock service
func NewSmartLockService(locks SmartLockRepository, accounts AccountRepository, log *logrus.Logger) *SmartLockService {
	return &SmartLockService{locks: locks, accounts: accounts, log: log}
}

// CreateSmartLock records a new lock. lock_id comes from the contract and is
// globally unique; duplicates are refused by the store.
func (s *SmartLockService) CreateSmartLock(ctx context.Context, accountAddress string, lockID int64, token, tokenAmount string, dateLocked time.Time, lockDuration int64) (*models.SmartLock, error) {
	if lockID <= 0 {
		return nil, fmt.Errorf("%w: lock_id must be a positive integer", ErrInvalidArgument)
	}
	if token == "" {
		return nil, fmt.Errorf("%w: token cannot be empty", ErrInvalidArgument)
	}
	if tokenAmount == "" || strings.HasPrefix(tokenAmount, "-") {
		return nil, fmt.Errorf("%w: token_amount must be greater than 0", ErrInvalidArgument)
	}
	if lockDuration <= 0 {
		return nil, fmt.Errorf("%w: lock_duration must be greater than 0", ErrInvalidArgument)
	}
	account, err := s.accounts.GetAccountByAddress(ctx, accountAddress)
	if err != nil {
		return nil, err
	}

	lock := &models.SmartLock{
		ID:           uuid.NewString(),
		LockID:       lockID,
		AccountID:    account.ID,
		Token:        token,
		TokenAmount:  tokenAmount,
		DateLocked:   dateLocked,
		LockDuration: lockDuration,
		Status:       models.LockStatusLocked,
		CreatedAt:    time.Now(),
	}
	if err := s.locks.CreateSmartLock(ctx, lock); err != nil {
		return nil, err
	}

	s.log.Infof("Smart lock %d created for account %s", lockID, accountAddress)
	return lock, nil
}

// UpdateLockStatus transitions a lock between locked and unlocked
func (s *SmartLockService) UpdateLockStatus(ctx context.Context, lockID int64, status models.LockStatus) (*models.SmartLock, error) {
	if status != models.LockStatusLocked && status != models.LockStatusUnlocked {
		return nil, fmt.Errorf("%w: unknown lock status %q", ErrInvalidArgument, status)
	}
	lock, err := s.locks.GetSmartLockByLockID(ctx, lockID)
	if err != nil {
		return nil, err
	}
	if err := s.locks.UpdateLockStatus(ctx, lockID, status); err != nil {
		return nil, err
	}
	lock.Status = status
	return lock, nil
}

// List retrieves the account's locks, most recently locked first
func (s *SmartLockService) List(ctx context.Context, accountAddress string, status models.LockStatus, page, perPage int) ([]*models.SmartLock, *Pagination, error) {
	account, err := s.accounts.GetAccountByAddress(ctx, accountAddress)
	if err != nil {
		return nil, nil, err
	}
	if status != "" && status != models.LockStatusLocked && status != models.LockStatusUnlocked {
		return nil, nil, fmt.Errorf("%w: unknown lock status %q", ErrInvalidArgument, status)
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return s.locks.ListSmartLocks(ctx, account.ID, status, page, perPage)
}
