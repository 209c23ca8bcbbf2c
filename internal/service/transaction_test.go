package service_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherre/multisig-service/internal/models"
	"github.com/spherre/multisig-service/internal/service"
	"github.com/spherre/multisig-service/internal/service/servicetest"
)

const (
	accountAddr = "0x04718f5a0fc34cc1af16a1cdee98ffb20c31f5cd61d6ab07201858f4287c938d"
	memberA     = "0x0a1"
	memberB     = "0x0b2"
	memberC     = "0x0c3"
	outsider    = "0x0d4"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newEngine(t *testing.T, threshold int, memberAddrs ...string) (*service.TransactionService, *service.AccountService, *servicetest.Store) {
	t.Helper()
	store := servicetest.NewStore()
	log := testLogger()
	accounts := service.NewAccountService(store, nil, log)
	txs := service.NewTransactionService(store, store, nil, log)

	_, err := accounts.CreateAccount(context.Background(), accountAddr, "Treasury", "shared ops wallet", threshold, memberAddrs)
	require.NoError(t, err)
	return txs, accounts, store
}

func propose(t *testing.T, txs *service.TransactionService, id int64, proposer string) *models.Transaction {
	t.Helper()
	tx, err := txs.Propose(context.Background(), accountAddr, id, models.TypeTokenSend, proposer, nil, time.Now())
	require.NoError(t, err)
	return tx
}

func TestProposeValidation(t *testing.T) {
	txs, _, _ := newEngine(t, 2, memberA, memberB, memberC)
	ctx := context.Background()

	tests := []struct {
		name     string
		txID     int64
		txType   models.TransactionType
		proposer string
		want     error
	}{
		{"zero transaction id", 0, models.TypeTokenSend, memberA, service.ErrInvalidArgument},
		{"negative transaction id", -3, models.TypeTokenSend, memberA, service.ErrInvalidArgument},
		{"unknown type", 1, models.TransactionType("sorcery"), memberA, service.ErrInvalidArgument},
		{"empty proposer", 1, models.TypeTokenSend, "", service.ErrInvalidArgument},
		{"proposer not a member", 1, models.TypeTokenSend, outsider, service.ErrNotAMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := txs.Propose(ctx, accountAddr, tt.txID, tt.txType, tt.proposer, nil, time.Now())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestProposeCreatesInitiatedTransaction(t *testing.T) {
	txs, _, _ := newEngine(t, 2, memberA, memberB, memberC)

	tx := propose(t, txs, 7, memberA)
	assert.Equal(t, models.StatusInitiated, tx.Status)
	assert.Equal(t, int64(7), tx.TransactionID)
	assert.Empty(t, tx.ApprovedIDs)
	assert.Empty(t, tx.RejectedIDs)

	got, err := txs.Get(context.Background(), accountAddr, 7)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)
}

func TestProposeDuplicateID(t *testing.T) {
	txs, _, _ := newEngine(t, 2, memberA, memberB, memberC)

	propose(t, txs, 7, memberA)
	_, err := txs.Propose(context.Background(), accountAddr, 7, models.TypeNFTSend, memberB, nil, time.Now())
	assert.ErrorIs(t, err, service.ErrAlreadyExists)
}

func TestApproveRecordsVoteWithoutAdvancing(t *testing.T) {
	txs, _, _ := newEngine(t, 2, memberA, memberB, memberC)
	ctx := context.Background()

	propose(t, txs, 7, memberA)
	tx, err := txs.Approve(ctx, accountAddr, 7, memberB)
	require.NoError(t, err)
	assert.Len(t, tx.ApprovedIDs, 1)
	assert.Equal(t, models.StatusInitiated, tx.Status, "a single approval below the threshold must not change the status")
}

func TestApproveGuards(t *testing.T) {
	txs, _, _ := newEngine(t, 2, memberA, memberB, memberC)
	ctx := context.Background()

	propose(t, txs, 7, memberA)

	_, err := txs.Approve(ctx, accountAddr, 7, memberA)
	assert.ErrorIs(t, err, service.ErrSelfApproval, "proposers cannot approve their own transaction")

	_, err = txs.Approve(ctx, accountAddr, 7, outsider)
	assert.ErrorIs(t, err, service.ErrNotAMember)

	_, err = txs.Approve(ctx, accountAddr, 7, memberB)
	require.NoError(t, err)
	_, err = txs.Approve(ctx, accountAddr, 7, memberB)
	assert.ErrorIs(t, err, service.ErrAlreadyActed, "double approval by the same member")

	_, err = txs.Approve(ctx, accountAddr, 99, memberB)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestApproveAfterRejectIsRefused(t *testing.T) {
	txs, _, _ := newEngine(t, 2, memberA, memberB, memberC)
	ctx := context.Background()

	propose(t, txs, 7, memberA)
	_, err := txs.Reject(ctx, accountAddr, 7, memberB)
	require.NoError(t, err)

	_, err = txs.Approve(ctx, accountAddr, 7, memberB)
	assert.ErrorIs(t, err, service.ErrAlreadyActed, "a member cannot hold both an approval and a rejection")
}

func TestPromoteToApproved(t *testing.T) {
	txs, _, _ := newEngine(t, 2, memberA, memberB, memberC)
	ctx := context.Background()

	propose(t, txs, 7, memberA)
	_, err := txs.Approve(ctx, accountAddr, 7, memberB)
	require.NoError(t, err)

	_, err = txs.PromoteToApproved(ctx, accountAddr, 7)
	assert.ErrorIs(t, err, service.ErrQuorumNotMet, "one approval against a threshold of two")

	_, err = txs.Approve(ctx, accountAddr, 7, memberC)
	require.NoError(t, err)
	tx, err := txs.PromoteToApproved(ctx, accountAddr, 7)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, tx.Status)

	_, err = txs.PromoteToApproved(ctx, accountAddr, 7)
	assert.ErrorIs(t, err, service.ErrInvalidState, "promotion is only valid from initiated")
}

func TestExecuteRequiresApprovedStatus(t *testing.T) {
	txs, _, _ := newEngine(t, 2, memberA, memberB, memberC)
	ctx := context.Background()

	propose(t, txs, 7, memberA)
	_, err := txs.Execute(ctx, accountAddr, 7, memberB, time.Now())
	assert.ErrorIs(t, err, service.ErrInvalidState)
}

func TestExecuteRechecksQuorumAgainstLiveThreshold(t *testing.T) {
	txs, accounts, _ := newEngine(t, 2, memberA, memberB, memberC)
	ctx := context.Background()

	propose(t, txs, 7, memberA)
	_, err := txs.Approve(ctx, accountAddr, 7, memberB)
	require.NoError(t, err)
	_, err = txs.Approve(ctx, accountAddr, 7, memberC)
	require.NoError(t, err)
	_, err = txs.PromoteToApproved(ctx, accountAddr, 7)
	require.NoError(t, err)

	// Raising the threshold after promotion invalidates the recorded votes.
	_, err = accounts.SetThreshold(ctx, accountAddr, 3)
	require.NoError(t, err)
	_, err = txs.Execute(ctx, accountAddr, 7, memberA, time.Now())
	assert.ErrorIs(t, err, service.ErrQuorumNotMet)

	_, err = accounts.SetThreshold(ctx, accountAddr, 2)
	require.NoError(t, err)
	tx, err := txs.Execute(ctx, accountAddr, 7, memberA, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.StatusExecuted, tx.Status)
}

func TestLoweredThresholdUnblocksPromotion(t *testing.T) {
	txs, accounts, _ := newEngine(t, 3, memberA, memberB, memberC)
	ctx := context.Background()

	propose(t, txs, 7, memberA)
	_, err := txs.Approve(ctx, accountAddr, 7, memberB)
	require.NoError(t, err)
	_, err = txs.Approve(ctx, accountAddr, 7, memberC)
	require.NoError(t, err)

	_, err = txs.PromoteToApproved(ctx, accountAddr, 7)
	assert.ErrorIs(t, err, service.ErrQuorumNotMet)

	_, err = accounts.SetThreshold(ctx, accountAddr, 2)
	require.NoError(t, err)

	_, err = txs.PromoteToApproved(ctx, accountAddr, 7)
	require.NoError(t, err)
	tx, err := txs.Execute(ctx, accountAddr, 7, memberA, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.StatusExecuted, tx.Status)
}

func TestFullLifecycle(t *testing.T) {
	txs, _, _ := newEngine(t, 2, memberA, memberB, memberC)
	ctx := context.Background()
	executedAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	propose(t, txs, 42, memberA)
	_, err := txs.Approve(ctx, accountAddr, 42, memberB)
	require.NoError(t, err)
	_, err = txs.Approve(ctx, accountAddr, 42, memberC)
	require.NoError(t, err)
	_, err = txs.PromoteToApproved(ctx, accountAddr, 42)
	require.NoError(t, err)

	tx, err := txs.Execute(ctx, accountAddr, 42, memberA, executedAt)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExecuted, tx.Status)
	require.NotNil(t, tx.ExecutedAt)
	assert.Equal(t, executedAt, *tx.ExecutedAt)
	assert.NotEmpty(t, tx.ExecutorID)

	// Terminal: no further transitions of any kind.
	_, err = txs.Execute(ctx, accountAddr, 42, memberB, time.Now())
	assert.ErrorIs(t, err, service.ErrInvalidState)
	_, err = txs.Reject(ctx, accountAddr, 42, memberB)
	assert.ErrorIs(t, err, service.ErrInvalidState)
}

func TestRejectMajorityBoundary(t *testing.T) {
	txs, _, _ := newEngine(t, 2, memberA, memberB, memberC)
	ctx := context.Background()

	propose(t, txs, 7, memberA)

	// 1 of 3 rejections: 2 > 3 is false, still open.
	tx, err := txs.Reject(ctx, accountAddr, 7, memberB)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInitiated, tx.Status)

	// 2 of 3 rejections: 4 > 3, majority reached.
	tx, err = txs.Reject(ctx, accountAddr, 7, memberC)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, tx.Status)

	_, err = txs.Approve(ctx, accountAddr, 7, memberA)
	assert.ErrorIs(t, err, service.ErrInvalidState, "rejected is terminal")
	_, err = txs.Reject(ctx, accountAddr, 7, memberA)
	assert.ErrorIs(t, err, service.ErrInvalidState)
}

func TestProposerMayRejectOwnTransaction(t *testing.T) {
	txs, _, _ := newEngine(t, 2, memberA, memberB, memberC)

	propose(t, txs, 7, memberA)
	tx, err := txs.Reject(context.Background(), accountAddr, 7, memberA)
	require.NoError(t, err)
	assert.Len(t, tx.RejectedIDs, 1)
}

func TestRejectApprovedTransaction(t *testing.T) {
	txs, _, _ := newEngine(t, 1, memberA, memberB)
	ctx := context.Background()

	propose(t, txs, 7, memberA)
	_, err := txs.Approve(ctx, accountAddr, 7, memberB)
	require.NoError(t, err)
	_, err = txs.PromoteToApproved(ctx, accountAddr, 7)
	require.NoError(t, err)

	// Approved transactions can still be voted down before execution; the
	// single rejection is a majority of the two members' half.
	tx, err := txs.Reject(ctx, accountAddr, 7, memberA)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, tx.Status, "1 of 2 rejections is not a strict majority")
}

func TestRejectAfterApproveIsRefused(t *testing.T) {
	txs, _, _ := newEngine(t, 2, memberA, memberB, memberC)
	ctx := context.Background()

	propose(t, txs, 7, memberA)
	_, err := txs.Approve(ctx, accountAddr, 7, memberB)
	require.NoError(t, err)
	_, err = txs.Reject(ctx, accountAddr, 7, memberB)
	assert.ErrorIs(t, err, service.ErrAlreadyActed)
}

func TestListFiltersAndPaginates(t *testing.T) {
	txs, _, _ := newEngine(t, 2, memberA, memberB, memberC)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := int64(1); i <= 5; i++ {
		_, err := txs.Propose(ctx, accountAddr, i, models.TypeTokenSend, memberA, nil, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}
	_, err := txs.Propose(ctx, accountAddr, 6, models.TypeMemberAdd, memberB, nil, base.Add(6*time.Hour))
	require.NoError(t, err)

	list, pagination, err := txs.List(ctx, accountAddr, service.TransactionFilter{Page: 1, PerPage: 4})
	require.NoError(t, err)
	assert.Len(t, list, 4)
	assert.Equal(t, 6, pagination.Total)
	assert.Equal(t, 2, pagination.Pages)
	assert.Equal(t, int64(6), list[0].TransactionID, "newest first by default")

	list, _, err = txs.List(ctx, accountAddr, service.TransactionFilter{Type: models.TypeMemberAdd, Page: 1, PerPage: 20})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(6), list[0].TransactionID)

	from := base.Add(4 * time.Hour)
	list, _, err = txs.List(ctx, accountAddr, service.TransactionFilter{DateFrom: &from, Page: 1, PerPage: 20, SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, int64(4), list[0].TransactionID)

	_, _, err = txs.List(ctx, accountAddr, service.TransactionFilter{Status: models.TransactionStatus("pending")})
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
}

func TestConcurrentApprovalsSerialize(t *testing.T) {
	approvers := []string{memberB, memberC, "0x0e5", "0x0f6", "0x0a7"}
	txs, _, _ := newEngine(t, 3, append([]string{memberA}, approvers...)...)
	ctx := context.Background()

	propose(t, txs, 7, memberA)

	// Every approver votes at once and then tries to advance the status, the
	// way the approve endpoint does. All votes must land, and exactly one
	// promotion must win.
	var promoted int32
	errs := make(chan error, len(approvers))
	var wg sync.WaitGroup
	for _, addr := range approvers {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			if _, err := txs.Approve(ctx, accountAddr, 7, addr); err != nil {
				errs <- err
				return
			}
			_, err := txs.PromoteToApproved(ctx, accountAddr, 7)
			switch {
			case err == nil:
				atomic.AddInt32(&promoted, 1)
			case errors.Is(err, service.ErrQuorumNotMet), errors.Is(err, service.ErrInvalidState):
			default:
				errs <- err
			}
		}(addr)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	tx, err := txs.Get(ctx, accountAddr, 7)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, tx.Status)
	assert.Equal(t, int32(1), promoted, "exactly one promotion may observe the transition")
	require.Len(t, tx.ApprovedIDs, len(approvers), "no vote may be lost")
	seen := map[string]bool{}
	for _, id := range tx.ApprovedIDs {
		assert.False(t, seen[id], "duplicate vote for member %s", id)
		seen[id] = true
	}
	assert.Empty(t, tx.RejectedIDs)
}

func TestConcurrentRejectionsSerialize(t *testing.T) {
	rejectors := []string{memberB, memberC, "0x0e5", "0x0f6", "0x0a7"}
	txs, _, _ := newEngine(t, 3, append([]string{memberA}, rejectors...)...)
	ctx := context.Background()

	propose(t, txs, 7, memberA)

	// Once a strict majority of the 6 members lands, the transaction is
	// terminal and stragglers get ErrInvalidState; nothing else may happen.
	var recorded int32
	errs := make(chan error, len(rejectors))
	var wg sync.WaitGroup
	for _, addr := range rejectors {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			_, err := txs.Reject(ctx, accountAddr, 7, addr)
			switch {
			case err == nil:
				atomic.AddInt32(&recorded, 1)
			case errors.Is(err, service.ErrInvalidState):
			default:
				errs <- err
			}
		}(addr)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	tx, err := txs.Get(ctx, accountAddr, 7)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, tx.Status)
	assert.Greater(t, len(tx.RejectedIDs)*2, 6, "terminal only past the strict majority")
	assert.Equal(t, int(recorded), len(tx.RejectedIDs), "every accepted vote is in the stored set")
	seen := map[string]bool{}
	for _, id := range tx.RejectedIDs {
		assert.False(t, seen[id], "duplicate vote for member %s", id)
		seen[id] = true
	}
}

func TestListOrderingWithEqualTimestamps(t *testing.T) {
	txs, _, _ := newEngine(t, 2, memberA, memberB, memberC)
	ctx := context.Background()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := int64(1); i <= 3; i++ {
		_, err := txs.Propose(ctx, accountAddr, i, models.TypeTokenSend, memberA, nil, at)
		require.NoError(t, err)
	}

	list, _, err := txs.List(ctx, accountAddr, service.TransactionFilter{SortBy: "transaction_id", Page: 1, PerPage: 20})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, int64(3), list[0].TransactionID, "descending is the default order")
	assert.Equal(t, int64(2), list[1].TransactionID)
	assert.Equal(t, int64(1), list[2].TransactionID)

	list, _, err = txs.List(ctx, accountAddr, service.TransactionFilter{SortBy: "transaction_id", SortOrder: "asc", Page: 1, PerPage: 20})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, int64(1), list[0].TransactionID)

	// Equal created_at keys must still yield every row exactly once.
	list, _, err = txs.List(ctx, accountAddr, service.TransactionFilter{Page: 1, PerPage: 20})
	require.NoError(t, err)
	ids := []int64{}
	for _, tx := range list {
		ids = append(ids, tx.TransactionID)
	}
	assert.ElementsMatch(t, []int64{1, 2, 3}, ids)
}

func TestGetUnknownAccountOrTransaction(t *testing.T) {
	txs, _, _ := newEngine(t, 2, memberA, memberB, memberC)
	ctx := context.Background()

	_, err := txs.Get(ctx, "0x0dead", 1)
	assert.ErrorIs(t, err, service.ErrNotFound)
	_, err = txs.Get(ctx, accountAddr, 1)
	assert.ErrorIs(t, err, service.ErrNotFound)
}
