package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherre/multisig-service/internal/service"
	"github.com/spherre/multisig-service/internal/service/servicetest"
)

func newAccounts(t *testing.T) *service.AccountService {
	t.Helper()
	return service.NewAccountService(servicetest.NewStore(), nil, testLogger())
}

func TestCreateAccountValidation(t *testing.T) {
	accounts := newAccounts(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		address   string
		accName   string
		threshold int
		members   []string
	}{
		{"bad address", "not-an-address", "Treasury", 1, []string{memberA}},
		{"empty name", accountAddr, "", 1, []string{memberA}},
		{"no members", accountAddr, "Treasury", 1, nil},
		{"threshold zero", accountAddr, "Treasury", 0, []string{memberA}},
		{"threshold above member count", accountAddr, "Treasury", 3, []string{memberA, memberB}},
		{"bad member address", accountAddr, "Treasury", 1, []string{"bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := accounts.CreateAccount(ctx, tt.address, tt.accName, "", tt.threshold, tt.members)
			assert.ErrorIs(t, err, service.ErrInvalidArgument)
		})
	}
}

func TestCreateAccountRegistersMembers(t *testing.T) {
	accounts := newAccounts(t)
	ctx := context.Background()

	account, err := accounts.CreateAccount(ctx, accountAddr, "Treasury", "ops", 2, []string{memberA, memberB, memberC})
	require.NoError(t, err)
	assert.Len(t, account.Members, 3)
	assert.True(t, account.IsPrivate)

	_, err = accounts.CreateAccount(ctx, accountAddr, "Treasury", "ops", 2, []string{memberA, memberB, memberC})
	assert.ErrorIs(t, err, service.ErrAlreadyExists)

	ok, err := accounts.IsMember(ctx, accountAddr, memberB)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = accounts.IsMember(ctx, accountAddr, outsider)
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := accounts.ListMemberAccounts(ctx, memberA)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = accounts.ListMemberAccounts(ctx, outsider)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSetThresholdBounds(t *testing.T) {
	accounts := newAccounts(t)
	ctx := context.Background()
	_, err := accounts.CreateAccount(ctx, accountAddr, "Treasury", "", 2, []string{memberA, memberB, memberC})
	require.NoError(t, err)

	_, err = accounts.SetThreshold(ctx, accountAddr, 0)
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
	_, err = accounts.SetThreshold(ctx, accountAddr, 4)
	assert.ErrorIs(t, err, service.ErrInvalidArgument)

	account, err := accounts.SetThreshold(ctx, accountAddr, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, account.Threshold)

	got, err := accounts.GetAccountByAddress(ctx, accountAddr)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Threshold)
}

func TestAddMemberIsIdempotent(t *testing.T) {
	accounts := newAccounts(t)
	ctx := context.Background()
	_, err := accounts.CreateAccount(ctx, accountAddr, "Treasury", "", 1, []string{memberA})
	require.NoError(t, err)

	account, err := accounts.AddMember(ctx, accountAddr, memberB)
	require.NoError(t, err)
	assert.Len(t, account.Members, 2)

	account, err = accounts.AddMember(ctx, accountAddr, memberB)
	require.NoError(t, err)
	assert.Len(t, account.Members, 2, "re-adding an existing member changes nothing")
}

func TestRemoveMemberKeepsThresholdSatisfiable(t *testing.T) {
	accounts := newAccounts(t)
	ctx := context.Background()
	_, err := accounts.CreateAccount(ctx, accountAddr, "Treasury", "", 2, []string{memberA, memberB})
	require.NoError(t, err)

	_, err = accounts.RemoveMember(ctx, accountAddr, memberB)
	assert.ErrorIs(t, err, service.ErrInvalidArgument, "removal would leave a 2-of-1 account")

	_, err = accounts.RemoveMember(ctx, accountAddr, outsider)
	assert.ErrorIs(t, err, service.ErrNotAMember)

	_, err = accounts.SetThreshold(ctx, accountAddr, 1)
	require.NoError(t, err)
	account, err := accounts.RemoveMember(ctx, accountAddr, memberB)
	require.NoError(t, err)
	assert.Len(t, account.Members, 1)
}

func TestUpdateMemberEmail(t *testing.T) {
	accounts := newAccounts(t)
	ctx := context.Background()
	_, err := accounts.CreateAccount(ctx, accountAddr, "Treasury", "", 1, []string{memberA})
	require.NoError(t, err)

	_, err = accounts.UpdateMemberEmail(ctx, memberA, "")
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
	_, err = accounts.UpdateMemberEmail(ctx, outsider, "x@example.com")
	assert.ErrorIs(t, err, service.ErrNotFound)

	member, err := accounts.UpdateMemberEmail(ctx, memberA, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", member.Email)

	got, err := accounts.GetMemberByAddress(ctx, memberA)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.Email)
}
