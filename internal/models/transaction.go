package models

import (
	"encoding/json"
	"time"
)

// TransactionType enumerates the kinds of actions an account can execute
type TransactionType string

const (
	TypeTokenSend       TransactionType = "token_send"
	TypeNFTSend         TransactionType = "nft_send"
	TypeMemberRemove    TransactionType = "member_remove"
	TypeMemberAdd       TransactionType = "member_add"
	TypePermissionEdit  TransactionType = "permission_edit"
	TypeThresholdChange TransactionType = "threshold_change"
)

// ValidTransactionType reports whether t is a known transaction type
func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TypeTokenSend, TypeNFTSend, TypeMemberRemove, TypeMemberAdd,
		TypePermissionEdit, TypeThresholdChange:
		return true
	}
	return false
}

// TransactionStatus enumerates the lifecycle states of a transaction
type TransactionStatus string

const (
	StatusInitiated TransactionStatus = "initiated"
	StatusApproved  TransactionStatus = "approved"
	StatusRejected  TransactionStatus = "rejected"
	StatusExecuted  TransactionStatus = "executed"
)

// ValidTransactionStatus reports whether s is a known status
func ValidTransactionStatus(s TransactionStatus) bool {
	switch s {
	case StatusInitiated, StatusApproved, StatusRejected, StatusExecuted:
		return true
	}
	return false
}

// Transaction represents a proposed multisig action and its voting record.
// TransactionID is the on-chain sequence number, unique per account only.
type Transaction struct {
	ID            string            `json:"id"`
	TransactionID int64             `json:"transaction_id"`
	AccountID     string            `json:"account_id"`
	Type          TransactionType   `json:"tx_type"`
	Status        TransactionStatus `json:"status"`
	ProposerID    string            `json:"proposer_id"`
	ExecutorID    string            `json:"executor_id,omitempty"`
	ApprovedIDs   []string          `json:"approved_member_ids"`
	RejectedIDs   []string          `json:"rejected_member_ids"`
	Payload       json.RawMessage   `json:"payload,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	ExecutedAt    *time.Time        `json:"executed_at,omitempty"`
}

// HasApproved reports whether the member already approved the transaction
func (t *Transaction) HasApproved(memberID string) bool {
	return containsID(t.ApprovedIDs, memberID)
}

// HasRejected reports whether the member already rejected the transaction
func (t *Transaction) HasRejected(memberID string) bool {
	return containsID(t.RejectedIDs, memberID)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
