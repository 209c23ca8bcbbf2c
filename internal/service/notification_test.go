package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherre/multisig-service/internal/models"
	"github.com/spherre/multisig-service/internal/service"
	"github.com/spherre/multisig-service/internal/service/servicetest"
)

func newNotifications(t *testing.T) (*service.NotificationService, *service.AccountService, *servicetest.RecorderSender, string) {
	t.Helper()
	store := servicetest.NewStore()
	log := testLogger()
	sender := &servicetest.RecorderSender{}
	notifications := service.NewNotificationService(store, store, sender, log)
	accounts := service.NewAccountService(store, notifications, log)

	account, err := accounts.CreateAccount(context.Background(), accountAddr, "Treasury", "", 2, []string{memberA, memberB, memberC})
	require.NoError(t, err)
	return notifications, accounts, sender, account.ID
}

func TestNotifyEmailsOnlyOptedInMembers(t *testing.T) {
	notifications, accounts, sender, accountID := newNotifications(t)
	ctx := context.Background()

	// memberA: email + enabled preference. memberB: email, no preference.
	// memberC: no email at all.
	_, err := accounts.UpdateMemberEmail(ctx, memberA, "a@example.com")
	require.NoError(t, err)
	_, err = accounts.UpdateMemberEmail(ctx, memberB, "b@example.com")
	require.NoError(t, err)
	_, err = notifications.TogglePreference(ctx, memberA, accountAddr, nil)
	require.NoError(t, err)

	err = notifications.Notify(ctx, accountID, models.NotificationTransaction, "Transaction proposed", "Transaction #1 was proposed")
	require.NoError(t, err)

	sent := sender.Messages()
	require.Len(t, sent, 1, "only the member with an email and an enabled preference gets mail")
	assert.Equal(t, "a@example.com", sent[0].To)
	assert.Equal(t, "Transaction proposed", sent[0].Subject)

	list, pagination, err := notifications.List(ctx, accountAddr, false, "", 1, 20)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, pagination.Total)
}

func TestTogglePreference(t *testing.T) {
	notifications, _, _, _ := newNotifications(t)
	ctx := context.Background()

	pref, err := notifications.TogglePreference(ctx, memberA, accountAddr, nil)
	require.NoError(t, err)
	assert.True(t, pref.EmailEnabled, "first toggle creates the preference enabled")

	pref, err = notifications.TogglePreference(ctx, memberA, accountAddr, nil)
	require.NoError(t, err)
	assert.False(t, pref.EmailEnabled, "second toggle flips it")

	enabled := true
	pref, err = notifications.TogglePreference(ctx, memberA, accountAddr, &enabled)
	require.NoError(t, err)
	assert.True(t, pref.EmailEnabled, "explicit values are set, not flipped")
}

func TestMarkReadIsIdempotent(t *testing.T) {
	notifications, _, _, accountID := newNotifications(t)
	ctx := context.Background()

	err := notifications.Notify(ctx, accountID, models.NotificationAccountUpdate, "Threshold changed", "now 2 of 3")
	require.NoError(t, err)
	list, _, err := notifications.List(ctx, accountAddr, false, "", 1, 20)
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := list[0].ID

	require.NoError(t, notifications.MarkRead(ctx, id, memberA))
	require.NoError(t, notifications.MarkRead(ctx, id, memberA))

	n, err := notifications.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, n.ReadBy, 1)

	err = notifications.MarkRead(ctx, "ffffffff-0000-0000-0000-000000000000", memberA)
	assert.ErrorIs(t, err, service.ErrNotFound)
	err = notifications.MarkRead(ctx, id, outsider)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestListUnreadOnly(t *testing.T) {
	notifications, _, _, accountID := newNotifications(t)
	ctx := context.Background()

	require.NoError(t, notifications.Notify(ctx, accountID, models.NotificationTransaction, "first", "m"))
	require.NoError(t, notifications.Notify(ctx, accountID, models.NotificationTransaction, "second", "m"))

	list, _, err := notifications.List(ctx, accountAddr, false, "", 1, 20)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.NoError(t, notifications.MarkRead(ctx, list[0].ID, memberA))

	unread, pagination, err := notifications.List(ctx, accountAddr, true, memberA, 1, 20)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, 1, pagination.Total)
	assert.NotEqual(t, list[0].ID, unread[0].ID)

	_, _, err = notifications.List(ctx, accountAddr, false, "", 0, 20)
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
}
