package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/homework-access/internal/models"
	"github.com/magabrotheeeer/homework-access/internal/services/account"
)

type AdminMock struct {
	mock.Mock
}

func (m *AdminMock) Block(ctx context.Context, uid, reason string) error {
	return m.Called(ctx, uid, reason).Error(0)
}

func (m *AdminMock) Unblock(ctx context.Context, uid string) error {
	return m.Called(ctx, uid).Error(0)
}

func (m *AdminMock) Delete(ctx context.Context, uid string) error {
	return m.Called(ctx, uid).Error(0)
}

func (m *AdminMock) Syncs(ctx context.Context, uid string, limit int) ([]models.SubscriptionEvent, error) {
	args := m.Called(ctx, uid, limit)
	events, _ := args.Get(0).([]models.SubscriptionEvent)
	return events, args.Error(1)
}

func openerFor(admin *AdminMock, closed *bool) adminOpener {
	return func(context.Context) (userAdmin, func(), error) {
		return admin, func() { *closed = true }, nil
	}
}

func runUserCommand(cmd *cobra.Command, args ...string) (string, error) {
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestUserBlockCommand(t *testing.T) {
	admin := new(AdminMock)
	admin.On("Block", mock.Anything, "uid-1", "Cheating").Return(nil).Once()
	var closed bool

	out, err := runUserCommand(RunUserCommand(openerFor(admin, &closed)), "block", "--id", "uid-1", "--reason", "Cheating")
	require.NoError(t, err)
	assert.Contains(t, out, "User uid-1 blocked")
	assert.True(t, closed)
	admin.AssertExpectations(t)
}

func TestUserCommands_RequireID(t *testing.T) {
	for _, sub := range []string{"block", "unblock", "delete", "syncs"} {
		t.Run(sub, func(t *testing.T) {
			admin := new(AdminMock)
			var closed bool
			_, err := runUserCommand(RunUserCommand(openerFor(admin, &closed)), sub)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "--id is required")
			assert.False(t, closed)
		})
	}
}

func TestUserDeleteCommand_NotFound(t *testing.T) {
	admin := new(AdminMock)
	admin.On("Delete", mock.Anything, "uid-9").Return(account.ErrUserNotFound).Once()
	var closed bool

	_, err := runUserCommand(RunUserCommand(openerFor(admin, &closed)), "delete", "--id", "uid-9")
	assert.ErrorIs(t, err, account.ErrUserNotFound)
	assert.True(t, closed)
}

func TestUserUnblockCommand(t *testing.T) {
	admin := new(AdminMock)
	admin.On("Unblock", mock.Anything, "uid-1").Return(nil).Once()
	var closed bool

	out, err := runUserCommand(RunUserCommand(openerFor(admin, &closed)), "unblock", "--id", "uid-1")
	require.NoError(t, err)
	assert.Contains(t, out, "User uid-1 unblocked")
}

func TestUserSyncsCommand(t *testing.T) {
	end := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	admin := new(AdminMock)
	admin.On("Syncs", mock.Anything, "uid-1", 5).Return([]models.SubscriptionEvent{
		{UserUID: "uid-1", Status: "active", EndDate: &end, SyncedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)},
		{UserUID: "uid-1", Status: "expired", SyncedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
	}, nil).Once()
	var closed bool

	out, err := runUserCommand(RunUserCommand(openerFor(admin, &closed)), "syncs", "--id", "uid-1", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Syncs: 2")
	assert.Contains(t, out, "2025-03-10T09:00:00Z status=active end=2025-04-10T09:00:00Z")
	assert.Contains(t, out, "status=expired end=-")
	admin.AssertExpectations(t)
}
