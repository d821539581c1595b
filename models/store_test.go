package models_test

import (
	"context"
	"testing"

	"github.com/mmdatafocus/moldpark_backend/models"
	"github.com/mmdatafocus/moldpark_backend/models/modelstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkTransitions(t *testing.T) {
	now := modelstest.Now
	n := models.ProducerNetwork{Status: models.NetworkStatusPending}

	require.NoError(t, n.Activate(now))
	assert.Equal(t, models.NetworkStatusActive, n.Status)
	assert.True(t, n.CanReceiveOrders)
	assert.ErrorIs(t, n.Activate(now), models.ErrInvalidTransition)

	assert.Error(t, n.Suspend(now, "  "))
	require.NoError(t, n.Suspend(now, "late deliveries"))
	assert.False(t, n.CanReceiveOrders)
	assert.True(t, n.CanSendMessages)
	assert.ErrorIs(t, n.Suspend(now, "again"), models.ErrInvalidTransition)

	require.NoError(t, n.Activate(now))
	assert.Nil(t, n.SuspendedAt)
	assert.Empty(t, n.StatusReason)

	require.NoError(t, n.Terminate(now, "contract ended"))
	assert.False(t, n.CanSendMessages)
	assert.ErrorIs(t, n.Terminate(now, "twice"), models.ErrInvalidTransition)
	assert.ErrorIs(t, n.Activate(now), models.ErrInvalidTransition)
}

func TestProducerOwnerCannotBePrivileged(t *testing.T) {
	_, db := modelstest.NewStore(t)

	admin := modelstest.CreateAdmin(t, db)
	err := db.Create(&models.Producer{UserID: admin.ID, CompanyName: "Staff Lab", IsActive: true}).Error
	assert.ErrorIs(t, err, models.ErrProducerPrivileged)

	p := modelstest.CreateProducer(t, db, 100)
	owner := p.User
	owner.IsSuperuser = true
	assert.ErrorIs(t, db.Save(&owner).Error, models.ErrProducerPrivileged)
}

func TestSaveSuperuser(t *testing.T) {
	store, db := modelstest.NewStore(t)
	ctx := context.Background()

	u, created, err := store.SaveSuperuser(ctx, "ops", "ops@moldpark.com", "first-password")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, u.CheckPassword("first-password"))

	u, created, err = store.SaveSuperuser(ctx, "ops", "", "second-password")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "ops@moldpark.com", u.Email)

	stored, err := store.GetUserByUsername(ctx, "ops")
	require.NoError(t, err)
	assert.True(t, stored.CheckPassword("second-password"))
	assert.False(t, stored.CheckPassword("first-password"))

	admins, err := store.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "ops", admins[0].Username)

	p := modelstest.CreateProducer(t, db, 100)
	_, _, err = store.SaveSuperuser(ctx, p.User.Username, "", "lab-password")
	assert.ErrorIs(t, err, models.ErrProducerPrivileged)
}

func TestRoleOf(t *testing.T) {
	store, db := modelstest.NewStore(t)
	ctx := context.Background()

	cases := []struct {
		name string
		user models.User
		want models.UserRole
	}{
		{"admin", modelstest.CreateAdmin(t, db), models.UserRoleAdmin},
		{"center", modelstest.CreateCenter(t, db, 100).User, models.UserRoleCenter},
		{"producer", modelstest.CreateProducer(t, db, 100).User, models.UserRoleProducer},
		{"orphan", modelstest.CreateUser(t, db), models.UserRoleNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := store.RoleOf(ctx, tc.user)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestOverdueOrders(t *testing.T) {
	store, db := modelstest.NewStore(t)
	c := modelstest.CreateCenter(t, db, 100)
	p := modelstest.CreateProducer(t, db, 100)

	modelstest.CreateOrders(t, db, c.ID, p.ID, 2, modelstest.Estimated(modelstest.Ago(modelstest.Days(1))))
	modelstest.CreateOrders(t, db, c.ID, p.ID, 1,
		modelstest.Estimated(modelstest.Ago(modelstest.Days(5))),
		modelstest.Delivered(modelstest.Ago(modelstest.Days(1))))
	modelstest.CreateOrders(t, db, c.ID, p.ID, 1, modelstest.Estimated(modelstest.Now.Add(modelstest.Days(3))))
	modelstest.CreateOrders(t, db, c.ID, p.ID, 1)

	n, err := store.CountOrders(context.Background(), models.Overdue(modelstest.Now))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestOrphanUsers(t *testing.T) {
	store, db := modelstest.NewStore(t)
	ctx := context.Background()

	modelstest.CreateAdmin(t, db)
	modelstest.CreateCenter(t, db, 100)
	modelstest.CreateProducer(t, db, 100)
	orphan := modelstest.CreateUser(t, db)

	n, err := store.CountUsers(ctx, models.UserQuery{Orphans: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	users, err := store.SampleUsers(ctx, models.UserQuery{Orphans: true}, 10)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, orphan.ID, users[0].ID)
}

func TestLastNotificationAt(t *testing.T) {
	store, db := modelstest.NewStore(t)
	ctx := context.Background()
	u := modelstest.CreateUser(t, db)

	at, err := store.LastNotificationAt(ctx, u.ID, "quota_pressure")
	require.NoError(t, err)
	assert.Nil(t, at)

	modelstest.CreateNotification(t, db, u.ID, "quota_pressure", modelstest.Ago(modelstest.Days(3)), false)
	modelstest.CreateNotification(t, db, u.ID, "quota_pressure", modelstest.Ago(modelstest.Days(1)), true)
	modelstest.CreateNotification(t, db, u.ID, "center_inactivity", modelstest.Now, true)

	at, err = store.LastNotificationAt(ctx, u.ID, "quota_pressure")
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.True(t, at.Equal(modelstest.Ago(modelstest.Days(1))), "got %s", at)

	unread, err := store.CountNotifications(ctx, models.NotificationQuery{RecipientID: u.ID, UnreadOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	kinds, err := store.NotificationKindCounts(ctx, models.NotificationQuery{RecipientID: u.ID})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"quota_pressure": 2, "center_inactivity": 1}, kinds)
}
