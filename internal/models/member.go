package models

import "time"

// Member represents a wallet that can belong to one or more accounts
type Member struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
