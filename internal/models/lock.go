package models

import "time"

// LockStatus enumerates the states of a smart lock
type LockStatus string

const (
	LockStatusLocked   LockStatus = "locked"
	LockStatusUnlocked LockStatus = "unlocked"
)

// SmartLock mirrors a token lock created by the account contract.
// LockID is the on-chain lock identifier and is globally unique.
type SmartLock struct {
	ID           string     `json:"id"`
	LockID       int64      `json:"lock_id"`
	AccountID    string     `json:"account_id"`
	Token        string     `json:"token"`
	TokenAmount  string     `json:"token_amount"`
	DateLocked   time.Time  `json:"date_locked"`
	LockDuration int64      `json:"lock_duration"`
	Status       LockStatus `json:"lock_status"`
	CreatedAt    time.Time  `json:"created_at"`
}
