package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/spherre/multisig-service/internal/models"
	"github.com/spherre/multisig-service/internal/utils"
)

// AccountService manages multisig accounts and their members
type AccountService struct {
	accounts AccountRepository
	notifier Notifier
	log      *logrus.Logger
}

// NewAccountService initializes a new account service
func NewAccountService(accounts AccountRepository, notifier Notifier, log *logrus.Logger) *AccountService {
	return &AccountService{accounts: accounts, notifier: notifier, log: log}
}

// CreateAccount creates an account and registers its members, creating member
// records for addresses seen for the first time
func (s *AccountService) CreateAccount(ctx context.Context, address, name, description string, threshold int, memberAddresses []string) (*models.Account, error) {
	if !utils.IsValidStarknetAddress(address) {
		return nil, fmt.Errorf("%w: invalid account address", ErrInvalidArgument)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if len(memberAddresses) == 0 {
		return nil, fmt.Errorf("%w: at least one member is required", ErrInvalidArgument)
	}
	if threshold < 1 || threshold > len(memberAddresses) {
		return nil, fmt.Errorf("%w: threshold must be between 1 and the member count", ErrInvalidArgument)
	}

	members := make([]*models.Member, 0, len(memberAddresses))
	for _, addr := range memberAddresses {
		if !utils.IsValidStarknetAddress(addr) {
			return nil, fmt.Errorf("%w: invalid member address %s", ErrInvalidArgument, addr)
		}
		member, err := s.accounts.GetOrCreateMember(ctx, addr)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}

	account := &models.Account{
		ID:          uuid.NewString(),
		Address:     address,
		Name:        name,
		Description: description,
		IsPrivate:   true,
		Threshold:   threshold,
		Members:     members,
		CreatedAt:   time.Now(),
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.log.Infof("Account created: %s (%d members, threshold %d)", address, len(members), threshold)
	return account, nil
}

// GetAccountByAddress retrieves an account with its members
func (s *AccountService) GetAccountByAddress(ctx context.Context, address string) (*models.Account, error) {
	return s.accounts.GetAccountByAddress(ctx, address)
}

// ListMemberAccounts retrieves every account the member belongs to
func (s *AccountService) ListMemberAccounts(ctx context.Context, memberAddress string) ([]*models.Account, error) {
	if !utils.IsValidStarknetAddress(memberAddress) {
		return nil, fmt.Errorf("%w: invalid member address", ErrInvalidArgument)
	}
	return s.accounts.ListAccountsByMember(ctx, memberAddress)
}

// IsMember reports whether the address is a current member of the account
func (s *AccountService) IsMember(ctx context.Context, accountAddress, memberAddress string) (bool, error) {
	account, err := s.accounts.GetAccountByAddress(ctx, accountAddress)
	if err != nil {
		return false, err
	}
	return account.HasMember(memberAddress), nil
}

// SetThreshold updates the approval threshold. The threshold must remain
// satisfiable by the current membership.
func (s *AccountService) SetThreshold(ctx context.Context, accountAddress string, threshold int) (*models.Account, error) {
	account, err := s.accounts.GetAccountByAddress(ctx, accountAddress)
	if err != nil {
		return nil, err
	}
	if threshold < 1 || threshold > len(account.Members) {
		return nil, fmt.Errorf("%w: threshold must be between 1 and %d", ErrInvalidArgument, len(account.Members))
	}
	if err := s.accounts.UpdateThreshold(ctx, account.ID, threshold); err != nil {
		return nil, err
	}
	account.Threshold = threshold

	s.log.Infof("Threshold for account %s set to %d", accountAddress, threshold)
	s.notify(ctx, account.ID, models.NotificationAccountUpdate, "Threshold changed",
		fmt.Sprintf("Approval threshold is now %d of %d members", threshold, len(account.Members)))
	return account, nil
}

// AddMember adds a member to the account, creating the member record when the
// address is new. Adding an existing member is a no-op.
func (s *AccountService) AddMember(ctx context.Context, accountAddress, memberAddress string) (*models.Account, error) {
	if !utils.IsValidStarknetAddress(memberAddress) {
		return nil, fmt.Errorf("%w: invalid member address", ErrInvalidArgument)
	}
	account, err := s.accounts.GetAccountByAddress(ctx, accountAddress)
	if err != nil {
		return nil, err
	}
	if account.HasMember(memberAddress) {
		return account, nil
	}
	member, err := s.accounts.GetOrCreateMember(ctx, memberAddress)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.AddMember(ctx, account.ID, member.ID); err != nil {
		return nil, err
	}
	account.Members = append(account.Members, member)

	s.log.Infof("Member %s added to account %s", memberAddress, accountAddress)
	s.notify(ctx, account.ID, models.NotificationMemberUpdate, "Member added",
		fmt.Sprintf("%s is now a member of the account", memberAddress))
	return account, nil
}

// RemoveMember removes a member from the account. Removal that would leave
// the threshold unsatisfiable is refused.
func (s *AccountService) RemoveMember(ctx context.Context, accountAddress, memberAddress string) (*models.Account, error) {
	account, err := s.accounts.GetAccountByAddress(ctx, accountAddress)
	if err != nil {
		return nil, err
	}
	member := account.MemberByAddress(memberAddress)
	if member == nil {
		return nil, fmt.Errorf("%w: %s does not belong to account %s", ErrNotAMember, memberAddress, accountAddress)
	}
	if account.Threshold > len(account.Members)-1 {
		return nil, fmt.Errorf("%w: removing %s would leave the threshold of %d unsatisfiable", ErrInvalidArgument, memberAddress, account.Threshold)
	}
	if err := s.accounts.RemoveMember(ctx, account.ID, member.ID); err != nil {
		return nil, err
	}
	remaining := make([]*models.Member, 0, len(account.Members)-1)
	for _, m := range account.Members {
		if m.ID != member.ID {
			remaining = append(remaining, m)
		}
	}
	account.Members = remaining

	s.log.Infof("Member %s removed from account %s", memberAddress, accountAddress)
	s.notify(ctx, account.ID, models.NotificationMemberUpdate, "Member removed",
		fmt.Sprintf("%s is no longer a member of the account", memberAddress))
	return account, nil
}

// GetMemberByAddress retrieves a member record
func (s *AccountService) GetMemberByAddress(ctx context.Context, address string) (*models.Member, error) {
	return s.accounts.GetMemberByAddress(ctx, address)
}

// UpdateMemberEmail sets or replaces the member's contact email
func (s *AccountService) UpdateMemberEmail(ctx context.Context, memberAddress, newEmail string) (*models.Member, error) {
	if newEmail == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidArgument)
	}
	member, err := s.accounts.GetMemberByAddress(ctx, memberAddress)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.UpdateMemberEmail(ctx, member.ID, newEmail); err != nil {
		return nil, err
	}
	member.Email = newEmail
	s.log.Infof("Email updated for member %s", memberAddress)
	return member, nil
}

func (s *AccountService) notify(ctx context.Context, accountID string, kind models.NotificationType, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, accountID, kind, title, message); err != nil {
		s.log.Errorf("Failed to notify account %s: %v", accountID, err)
	}
}
