package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/spherre/multisig-service/internal/integrations/starknet"
	"github.com/spherre/multisig-service/internal/models"
	"github.com/spherre/multisig-service/internal/service"
)

const indexerID = "spherre-main"

// Event selectors emitted by the account contracts
var (
	selAccountDeployed     = starknet.EventSelector("AccountDeployed")
	selTransactionProposed = starknet.EventSelector("TransactionProposed")
	selTransactionApproved = starknet.EventSelector("TransactionApproved")
	selTransactionRejected = starknet.EventSelector("TransactionRejected")
	selTransactionExecuted = starknet.EventSelector("TransactionExecuted")
)

// Indexer mirrors on-chain account events into the local store. It is a
// best-effort projection: every event maps to exactly one service call, and
// duplicate delivery of an event is a no-op, never an error.
type Indexer struct {
	chain    *starknet.Client
	accounts *service.AccountService
	txs      *service.TransactionService
	cursors  service.CursorRepository
	log      *logrus.Logger

	cron    *cron.Cron
	pollMu  sync.Mutex
	running bool
}

// New initializes a new indexer
func New(chain *starknet.Client, accounts *service.AccountService, txs *service.TransactionService,
	cursors service.CursorRepository, log *logrus.Logger) *Indexer {
	return &Indexer{chain: chain, accounts: accounts, txs: txs, cursors: cursors, log: log}
}

// Start schedules the poll loop with the given cron spec
func (ix *Indexer) Start(spec string) error {
	ix.cron = cron.New()
	if _, err := ix.cron.AddFunc(spec, ix.poll); err != nil {
		return fmt.Errorf("failed to schedule indexer: %w", err)
	}
	ix.cron.Start()
	ix.log.Infof("Indexer scheduled: %s", spec)
	return nil
}

// Stop halts the poll loop and waits for an in-flight poll to finish
func (ix *Indexer) Stop() {
	if ix.cron != nil {
		<-ix.cron.Stop().Done()
	}
	ix.pollMu.Lock()
	defer ix.pollMu.Unlock()
}

// poll runs one sync pass; overlapping ticks are skipped
func (ix *Indexer) poll() {
	ix.pollMu.Lock()
	if ix.running {
		ix.pollMu.Unlock()
		return
	}
	ix.running = true
	ix.pollMu.Unlock()
	defer func() {
		ix.pollMu.Lock()
		ix.running = false
		ix.pollMu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := ix.Sync(ctx); err != nil {
		ix.log.Errorf("Indexer sync failed: %v", err)
	}
}

// Sync processes every event between the stored cursor and the chain head
func (ix *Indexer) Sync(ctx context.Context) error {
	last, err := ix.cursors.GetCursor(ctx, indexerID)
	if err != nil {
		return err
	}
	head, err := ix.chain.BlockNumber(ctx)
	if err != nil {
		return err
	}
	if head <= last {
		return nil
	}

	selectors := []string{selAccountDeployed, selTransactionProposed,
		selTransactionApproved, selTransactionRejected, selTransactionExecuted}
	events, err := ix.chain.GetEvents(ctx, last+1, head, selectors)
	if err != nil {
		return err
	}

	// The cursor moves only once every event landed. Halting here leaves it
	// behind the failed event, and the duplicate-safe handlers make the
	// replay of the range on the next tick free.
	for _, ev := range events {
		if err := ix.handleEvent(ctx, ev); err != nil {
			ix.log.WithFields(logrus.Fields{"tx_hash": ev.TransactionHash, "block": ev.BlockNumber}).
				Errorf("Failed to project event: %v", err)
			return fmt.Errorf("projection halted at block %d: %w", ev.BlockNumber, err)
		}
	}

	if err := ix.cursors.SetCursor(ctx, indexerID, head); err != nil {
		return err
	}
	ix.log.Infof("Indexed blocks %d..%d (%d events)", last+1, head, len(events))
	return nil
}

func (ix *Indexer) handleEvent(ctx context.Context, ev starknet.Event) error {
	if len(ev.Keys) == 0 {
		return nil
	}
	switch ev.Keys[0] {
	case selAccountDeployed:
		return ix.handleAccountDeployed(ctx, ev)
	case selTransactionProposed:
		return ix.handleProposed(ctx, ev)
	case selTransactionApproved:
		return ix.handleApproved(ctx, ev)
	case selTransactionRejected:
		return ix.handleRejected(ctx, ev)
	case selTransactionExecuted:
		return ix.handleExecuted(ctx, ev)
	}
	return nil
}

// AccountDeployed data layout:
// [address, name, description, members_len, members..., threshold]
func (ix *Indexer) handleAccountDeployed(ctx context.Context, ev starknet.Event) error {
	if len(ev.Data) < 5 {
		return fmt.Errorf("malformed AccountDeployed event: %d fields", len(ev.Data))
	}
	address := ev.Data[0]
	name := starknet.FeltToText(ev.Data[1])
	description := starknet.FeltToText(ev.Data[2])
	membersLen, err := starknet.FeltToInt(ev.Data[3])
	if err != nil {
		return fmt.Errorf("malformed members length: %w", err)
	}
	if int64(len(ev.Data)) < 4+membersLen+1 {
		return fmt.Errorf("malformed AccountDeployed event: %d members announced, %d fields", membersLen, len(ev.Data))
	}
	members := make([]string, 0, membersLen)
	for i := int64(0); i < membersLen; i++ {
		members = append(members, ev.Data[4+i])
	}
	threshold, err := starknet.FeltToInt(ev.Data[4+membersLen])
	if err != nil {
		return fmt.Errorf("malformed threshold: %w", err)
	}

	_, err = ix.accounts.CreateAccount(ctx, address, name, description, int(threshold), members)
	if errors.Is(err, service.ErrAlreadyExists) {
		ix.log.Debugf("Account %s already indexed", address)
		return nil
	}
	return err
}

var txTypeCodes = map[int64]models.TransactionType{
	1: models.TypeTokenSend,
	2: models.TypeNFTSend,
	3: models.TypeMemberRemove,
	4: models.TypeMemberAdd,
	5: models.TypePermissionEdit,
	6: models.TypeThresholdChange,
}

// TransactionProposed data layout: [transaction_id, tx_type, proposer, date]
func (ix *Indexer) handleProposed(ctx context.Context, ev starknet.Event) error {
	txID, typeCode, actor, at, err := decodeLifecycleEvent(ev, true)
	if err != nil {
		return err
	}
	txType, ok := txTypeCodes[typeCode]
	if !ok {
		return fmt.Errorf("unknown transaction type code %d", typeCode)
	}

	_, err = ix.txs.Propose(ctx, ev.FromAddress, txID, txType, actor, nil, at)
	if errors.Is(err, service.ErrAlreadyExists) {
		ix.log.Debugf("Transaction %d on %s already indexed", txID, ev.FromAddress)
		return nil
	}
	return err
}

// TransactionApproved data layout: [transaction_id, approver, date]
func (ix *Indexer) handleApproved(ctx context.Context, ev starknet.Event) error {
	txID, _, actor, _, err := decodeLifecycleEvent(ev, false)
	if err != nil {
		return err
	}

	_, err = ix.txs.Approve(ctx, ev.FromAddress, txID, actor)
	if errors.Is(err, service.ErrAlreadyActed) || errors.Is(err, service.ErrInvalidState) {
		return nil
	}
	if err != nil {
		return err
	}
	// Advance the status once the quorum is there; the contract has already
	// accepted the vote, so a short quorum just means more votes are coming.
	_, err = ix.txs.PromoteToApproved(ctx, ev.FromAddress, txID)
	if errors.Is(err, service.ErrQuorumNotMet) || errors.Is(err, service.ErrInvalidState) {
		return nil
	}
	return err
}

// TransactionRejected data layout: [transaction_id, rejector, date]
func (ix *Indexer) handleRejected(ctx context.Context, ev starknet.Event) error {
	txID, _, actor, _, err := decodeLifecycleEvent(ev, false)
	if err != nil {
		return err
	}

	_, err = ix.txs.Reject(ctx, ev.FromAddress, txID, actor)
	if errors.Is(err, service.ErrAlreadyActed) || errors.Is(err, service.ErrInvalidState) {
		return nil
	}
	return err
}

// TransactionExecuted data layout: [transaction_id, executor, date]
func (ix *Indexer) handleExecuted(ctx context.Context, ev starknet.Event) error {
	txID, _, actor, at, err := decodeLifecycleEvent(ev, false)
	if err != nil {
		return err
	}

	// The chain is authoritative about execution: advance the local status
	// first in case the approval that completed the quorum arrived in the
	// same batch.
	if _, err := ix.txs.PromoteToApproved(ctx, ev.FromAddress, txID); err != nil &&
		!errors.Is(err, service.ErrInvalidState) && !errors.Is(err, service.ErrQuorumNotMet) {
		return err
	}

	_, err = ix.txs.Execute(ctx, ev.FromAddress, txID, actor, at)
	if errors.Is(err, service.ErrInvalidState) {
		ix.log.Debugf("Transaction %d on %s already executed", txID, ev.FromAddress)
		return nil
	}
	return err
}

// decodeLifecycleEvent pulls the shared [transaction_id, (tx_type,) actor,
// date] layout out of a lifecycle event
func decodeLifecycleEvent(ev starknet.Event, withType bool) (txID, typeCode int64, actor string, at time.Time, err error) {
	want := 3
	if withType {
		want = 4
	}
	if len(ev.Data) < want {
		err = fmt.Errorf("malformed lifecycle event: %d fields, want %d", len(ev.Data), want)
		return
	}
	if txID, err = starknet.FeltToInt(ev.Data[0]); err != nil {
		err = fmt.Errorf("malformed transaction id: %w", err)
		return
	}
	i := 1
	if withType {
		if typeCode, err = starknet.FeltToInt(ev.Data[1]); err != nil {
			err = fmt.Errorf("malformed transaction type: %w", err)
			return
		}
		i = 2
	}
	actor = ev.Data[i]
	ts, tsErr := starknet.FeltToInt(ev.Data[i+1])
	if tsErr != nil {
		err = fmt.Errorf("malformed timestamp: %w", tsErr)
		return
	}
	at = time.Unix(ts, 0).UTC()
	return
}
