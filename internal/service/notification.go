package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/spherre/multisig-service/internal/models"
)

// EmailSender dispatches a single outbound email
type EmailSender interface {
	Send(to, subject, body string) error
}

// NotificationService creates account notifications and delivers them to
// members over email. It implements the Notifier contract used by the other
// services.
type NotificationService struct {
	notifications NotificationRepository
	accounts      AccountRepository
	sender        EmailSender
	log           *logrus.Logger
}

// NewNotificationService initializes a new notification service
func NewNotificationService(notifications NotificationRepository, accounts AccountRepository, sender EmailSender, log *logrus.Logger) *NotificationService {
	return &NotificationService{notifications: notifications, accounts: accounts, sender: sender, log: log}
}

// Notify creates a notification for the account and emails every member with
// a contact email and an enabled preference. A member without either is a
// silent no-op. Delivery failures are logged, never returned to the caller's
// business flow as transaction errors.
func (s *NotificationService) Notify(ctx context.Context, accountID string, kind models.NotificationType, title, message string) error {
	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}

	n := &models.Notification{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		Type:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now(),
	}
	if err := s.notifications.CreateNotification(ctx, n); err != nil {
		return err
	}

	if s.sender == nil {
		return nil
	}
	for _, member := range account.Members {
		if member.Email == "" {
			continue
		}
		pref, err := s.notifications.GetPreference(ctx, member.ID, account.ID)
		if err != nil || pref == nil || !pref.EmailEnabled {
			continue
		}
		if err := s.sender.Send(member.Email, title, message); err != nil {
			s.log.Errorf("Failed to email %s: %v", member.Email, err)
		}
	}
	return nil
}

// Get retrieves a single notification
func (s *NotificationService) Get(ctx context.Context, notificationID string) (*models.Notification, error) {
	return s.notifications.GetNotification(ctx, notificationID)
}

// List retrieves the account's notifications, newest first, optionally
// restricted to those the given member has not read yet
func (s *NotificationService) List(ctx context.Context, accountAddress string, unreadOnly bool, memberAddress string, page, perPage int) ([]*models.Notification, *Pagination, error) {
	account, err := s.accounts.GetAccountByAddress(ctx, accountAddress)
	if err != nil {
		return nil, nil, err
	}
	if page < 1 || perPage < 1 {
		return nil, nil, fmt.Errorf("%w: page and per_page must be positive", ErrInvalidArgument)
	}
	if perPage > 100 {
		perPage = 100
	}

	unreadFor := ""
	if unreadOnly && memberAddress != "" {
		member, err := s.accounts.GetMemberByAddress(ctx, memberAddress)
		if err != nil {
			return nil, nil, err
		}
		unreadFor = member.ID
	}
	return s.notifications.ListNotifications(ctx, account.ID, unreadFor, page, perPage)
}

// MarkRead records that the member has read the notification. Marking an
// already-read notification again is a no-op.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, memberAddress string) error {
	if _, err := s.notifications.GetNotification(ctx, notificationID); err != nil {
		return err
	}
	member, err := s.accounts.GetMemberByAddress(ctx, memberAddress)
	if err != nil {
		return err
	}
	return s.notifications.MarkRead(ctx, notificationID, member.ID)
}

// TogglePreference flips the member's email preference for the account.
// The first call creates the preference, enabled unless emailEnabled says
// otherwise; later calls with emailEnabled nil invert the stored value.
func (s *NotificationService) TogglePreference(ctx context.Context, memberAddress, accountAddress string, emailEnabled *bool) (*models.NotificationPreference, error) {
	account, err := s.accounts.GetAccountByAddress(ctx, accountAddress)
	if err != nil {
		return nil, err
	}
	member, err := s.accounts.GetMemberByAddress(ctx, memberAddress)
	if err != nil {
		return nil, err
	}

	pref, err := s.notifications.GetPreference(ctx, member.ID, account.ID)
	if err != nil {
		return nil, err
	}
	if pref == nil {
		enabled := true
		if emailEnabled != nil {
			enabled = *emailEnabled
		}
		pref = &models.NotificationPreference{
			ID:           uuid.NewString(),
			MemberID:     member.ID,
			AccountID:    account.ID,
			EmailEnabled: enabled,
		}
	} else if emailEnabled != nil {
		pref.EmailEnabled = *emailEnabled
	} else {
		pref.EmailEnabled = !pref.EmailEnabled
	}
	pref.UpdatedAt = time.Now()

	if err := s.notifications.SavePreference(ctx, pref); err != nil {
		return nil, err
	}
	return pref, nil
}
