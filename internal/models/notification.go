package models

import "time"

// NotificationType enumerates the kinds of account notifications
type NotificationType string

const (
	NotificationTransaction   NotificationType = "transaction"
	NotificationAccountUpdate NotificationType = "account_update"
	NotificationMemberUpdate  NotificationType = "member_update"
	NotificationTokenTransfer NotificationType = "token_transfer"
	NotificationNFTTransfer   NotificationType = "nft_transfer"
)

// Notification represents a message delivered to the members of an account
type Notification struct {
	ID        string           `json:"id"`
	AccountID string           `json:"account_id"`
	Type      NotificationType `json:"notification_type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	ReadBy    []string         `json:"read_by,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// ReadByMember reports whether the member has marked the notification read
func (n *Notification) ReadByMember(memberID string) bool {
	return containsID(n.ReadBy, memberID)
}

// NotificationPreference holds a member's per-account delivery settings
type NotificationPreference struct {
	ID           string    `json:"id"`
	MemberID     string    `json:"member_id"`
	AccountID    string    `json:"account_id"`
	EmailEnabled bool      `json:"email_enabled"`
	UpdatedAt    time.Time `json:"updated_at"`
}
