package models

import "time"

// Account represents a multisig account deployed on-chain
type Account struct {
	ID          string    `json:"id"`
	Address     string    `json:"address"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsPrivate   bool      `json:"is_private"`
	Threshold   int       `json:"threshold"`
	Members     []*Member `json:"members,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasMember reports whether the given address belongs to the account
func (a *Account) HasMember(address string) bool {
	for _, m := range a.Members {
		if m.Address == address {
			return true
		}
	}
	return false
}

// MemberByAddress returns the member with the given address, or nil
func (a *Account) MemberByAddress(address string) *Member {
	for _, m := range a.Members {
		if m.Address == address {
			return m
		}
	}
	return nil
}
