package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/spherre/multisig-service/internal/models"
)

// TransactionService owns the multisig transaction lifecycle: proposal,
// voting, quorum evaluation and execution. Membership and threshold facts are
// read from the account store on every call, never cached across calls.
type TransactionService struct {
	accounts AccountRepository
	txs      TransactionRepository
	notifier Notifier
	log      *logrus.Logger
}

// NewTransactionService initializes the transaction engine
func NewTransactionService(accounts AccountRepository, txs TransactionRepository, notifier Notifier, log *logrus.Logger) *TransactionService {
	return &TransactionService{accounts: accounts, txs: txs, notifier: notifier, log: log}
}

// Propose creates a new transaction in the initiated state. The proposer must
// be a current member of the account. transaction_id is the on-chain sequence
// number; uniqueness within the account is enforced by the store.
func (s *TransactionService) Propose(ctx context.Context, accountAddress string, transactionID int64, txType models.TransactionType, proposerAddress string, payload json.RawMessage, at time.Time) (*models.Transaction, error) {
	if accountAddress == "" || transactionID <= 0 || proposerAddress == "" {
		return nil, fmt.Errorf("%w: account, transaction_id and proposer are required", ErrInvalidArgument)
	}
	if !models.ValidTransactionType(txType) {
		return nil, fmt.Errorf("%w: unknown transaction type %q", ErrInvalidArgument, txType)
	}

	account, err := s.accounts.GetAccountByAddress(ctx, accountAddress)
	if err != nil {
		return nil, err
	}
	proposer := account.MemberByAddress(proposerAddress)
	if proposer == nil {
		return nil, fmt.Errorf("%w: proposer %s does not belong to account %s", ErrNotAMember, proposerAddress, accountAddress)
	}

	tx := &models.Transaction{
		ID:            uuid.NewString(),
		TransactionID: transactionID,
		AccountID:     account.ID,
		Type:          txType,
		Status:        models.StatusInitiated,
		ProposerID:    proposer.ID,
		ApprovedIDs:   []string{},
		RejectedIDs:   []string{},
		Payload:       payload,
		CreatedAt:     at,
	}
	if err := s.txs.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"account": accountAddress, "transaction_id": transactionID, "type": txType}).Info("Transaction proposed")
	s.notify(ctx, account.ID, models.NotificationTransaction, "Transaction proposed",
		fmt.Sprintf("Transaction #%d (%s) was proposed by %s", transactionID, txType, proposerAddress))
	return tx, nil
}

// Approve records an approval vote. It never advances the status by itself;
// callers that observe the quorum being reached advance it through
// PromoteToApproved, and Execute re-validates the quorum regardless.
func (s *TransactionService) Approve(ctx context.Context, accountAddress string, transactionID int64, memberAddress string) (*models.Transaction, error) {
	account, member, err := s.resolveMember(ctx, accountAddress, memberAddress)
	if err != nil {
		return nil, err
	}

	updated, err := s.txs.UpdateTransaction(ctx, account.ID, transactionID, func(tx *models.Transaction) error {
		if tx.Status != models.StatusInitiated {
			return fmt.Errorf("%w: transaction is %s and cannot be approved", ErrInvalidState, tx.Status)
		}
		if tx.HasApproved(member.ID) || tx.HasRejected(member.ID) {
			return ErrAlreadyActed
		}
		if tx.ProposerID == member.ID {
			return ErrSelfApproval
		}
		tx.ApprovedIDs = append(tx.ApprovedIDs, member.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"account": accountAddress, "transaction_id": transactionID, "member": memberAddress, "approvals": len(updated.ApprovedIDs)}).Info("Transaction approved by member")
	return updated, nil
}

// PromoteToApproved advances an initiated transaction to approved once the
// live approval count meets the account threshold. Returns ErrQuorumNotMet
// when the quorum is still short.
func (s *TransactionService) PromoteToApproved(ctx context.Context, accountAddress string, transactionID int64) (*models.Transaction, error) {
	account, err := s.accounts.GetAccountByAddress(ctx, accountAddress)
	if err != nil {
		return nil, err
	}

	return s.txs.UpdateTransaction(ctx, account.ID, transactionID, func(tx *models.Transaction) error {
		if tx.Status != models.StatusInitiated {
			return fmt.Errorf("%w: transaction is %s", ErrInvalidState, tx.Status)
		}
		if len(tx.ApprovedIDs) < account.Threshold {
			return fmt.Errorf("%w: got %d approvals, need %d", ErrQuorumNotMet, len(tx.ApprovedIDs), account.Threshold)
		}
		tx.Status = models.StatusApproved
		return nil
	})
}

// Execute finalizes an approved transaction. The quorum is re-checked against
// the account's current threshold even though the stored status already says
// approved: threshold changes after approval can invalidate (or satisfy) the
// recorded vote set, and the live check is authoritative.
func (s *TransactionService) Execute(ctx context.Context, accountAddress string, transactionID int64, executorAddress string, at time.Time) (*models.Transaction, error) {
	account, executor, err := s.resolveMember(ctx, accountAddress, executorAddress)
	if err != nil {
		return nil, err
	}

	updated, err := s.txs.UpdateTransaction(ctx, account.ID, transactionID, func(tx *models.Transaction) error {
		if tx.Status != models.StatusApproved {
			return fmt.Errorf("%w: transaction is %s and cannot be executed", ErrInvalidState, tx.Status)
		}
		if len(tx.ApprovedIDs) < account.Threshold {
			return fmt.Errorf("%w: got %d approvals, need %d", ErrQuorumNotMet, len(tx.ApprovedIDs), account.Threshold)
		}
		executedAt := at
		tx.Status = models.StatusExecuted
		tx.ExecutorID = executor.ID
		tx.ExecutedAt = &executedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"account": accountAddress, "transaction_id": transactionID, "executor": executorAddress}).Info("Transaction executed")
	s.notify(ctx, account.ID, models.NotificationTransaction, "Transaction executed",
		fmt.Sprintf("Transaction #%d was executed by %s", transactionID, executorAddress))
	return updated, nil
}

// Reject records a rejection vote. Once more than half of the account's
// current members have rejected, the transaction becomes rejected, terminal.
// The majority is a fixed policy, not the configurable approval threshold,
// and it is evaluated against the member count at the time of this call.
// Proposers may reject their own transaction.
func (s *TransactionService) Reject(ctx context.Context, accountAddress string, transactionID int64, memberAddress string) (*models.Transaction, error) {
	account, member, err := s.resolveMember(ctx, accountAddress, memberAddress)
	if err != nil {
		return nil, err
	}
	memberCount := len(account.Members)

	var becameRejected bool
	updated, err := s.txs.UpdateTransaction(ctx, account.ID, transactionID, func(tx *models.Transaction) error {
		if tx.Status != models.StatusInitiated && tx.Status != models.StatusApproved {
			return fmt.Errorf("%w: transaction is %s and cannot be rejected", ErrInvalidState, tx.Status)
		}
		if tx.HasRejected(member.ID) || tx.HasApproved(member.ID) {
			return ErrAlreadyActed
		}
		tx.RejectedIDs = append(tx.RejectedIDs, member.ID)
		if len(tx.RejectedIDs)*2 > memberCount {
			tx.Status = models.StatusRejected
			becameRejected = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"account": accountAddress, "transaction_id": transactionID, "member": memberAddress, "rejections": len(updated.RejectedIDs)}).Info("Transaction rejected by member")
	if becameRejected {
		s.notify(ctx, account.ID, models.NotificationTransaction, "Transaction rejected",
			fmt.Sprintf("Transaction #%d was rejected by a majority of members", transactionID))
	}
	return updated, nil
}

// Get retrieves a single transaction by its per-account identifier
func (s *TransactionService) Get(ctx context.Context, accountAddress string, transactionID int64) (*models.Transaction, error) {
	account, err := s.accounts.GetAccountByAddress(ctx, accountAddress)
	if err != nil {
		return nil, err
	}
	return s.txs.GetTransaction(ctx, account.ID, transactionID)
}

// List retrieves the account's transactions, newest first by default.
// Filters are conjunctive.
func (s *TransactionService) List(ctx context.Context, accountAddress string, filter TransactionFilter) ([]*models.Transaction, *Pagination, error) {
	account, err := s.accounts.GetAccountByAddress(ctx, accountAddress)
	if err != nil {
		return nil, nil, err
	}
	if filter.Status != "" && !models.ValidTransactionStatus(filter.Status) {
		return nil, nil, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, filter.Status)
	}
	if filter.Type != "" && !models.ValidTransactionType(filter.Type) {
		return nil, nil, fmt.Errorf("%w: unknown transaction type %q", ErrInvalidArgument, filter.Type)
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 || filter.PerPage > 100 {
		filter.PerPage = 20
	}
	return s.txs.ListTransactions(ctx, account.ID, filter)
}

// resolveMember loads the account and verifies the acting address is a
// current member. Both facts are read fresh on every call.
func (s *TransactionService) resolveMember(ctx context.Context, accountAddress, memberAddress string) (*models.Account, *models.Member, error) {
	account, err := s.accounts.GetAccountByAddress(ctx, accountAddress)
	if err != nil {
		return nil, nil, err
	}
	member := account.MemberByAddress(memberAddress)
	if member == nil {
		return nil, nil, fmt.Errorf("%w: %s does not belong to account %s", ErrNotAMember, memberAddress, accountAddress)
	}
	return account, member, nil
}

func (s *TransactionService) notify(ctx context.Context, accountID string, kind models.NotificationType, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, accountID, kind, title, message); err != nil {
		s.log.Errorf("Failed to notify account %s: %v", accountID, err)
	}
}
