package businessflow

import (
	"context"
	"testing"

	"github.com/phishguard/phishsim/models"
	"github.com/phishguard/phishsim/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func directoryWithUsers() *fakeDirectoryRepo {
	repo := newFakeDirectoryRepo()
	repo.tenants[1] = &models.Tenant{ID: 1, Name: "Acme", IsActive: utils.ToPtr(true)}
	repo.users = []*models.DirectoryUser{
		{ID: 1, TenantID: 1, Email: "alice@acme.test", Department: "finance", Role: "manager", IsActive: utils.ToPtr(true), OptedOut: utils.ToPtr(false)},
		{ID: 2, TenantID: 1, Email: "bob@acme.test", Department: "finance", Role: "analyst", IsActive: utils.ToPtr(true), OptedOut: utils.ToPtr(false)},
		{ID: 3, TenantID: 1, Email: "carol@acme.test", Department: "engineering", Role: "manager", IsActive: utils.ToPtr(true), OptedOut: utils.ToPtr(false)},
		{ID: 4, TenantID: 1, Email: "dave@acme.test", Department: "engineering", Role: "analyst", IsActive: utils.ToPtr(true), OptedOut: utils.ToPtr(true)},
	}
	return repo
}

func TestTargetResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("ResolvesDepartment", func(t *testing.T) {
		resolver := NewTargetResolver(directoryWithUsers())

		users, err := resolver.Resolve(ctx, 1, []models.TargetGroupSpec{
			{Type: models.TargetGroupSpecDepartment, Values: []string{"finance"}},
		}, nil)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "alice@acme.test", users[0].Email)
		assert.Equal(t, "bob@acme.test", users[1].Email)
	})

	t.Run("DeduplicatesAcrossSpecs", func(t *testing.T) {
		resolver := NewTargetResolver(directoryWithUsers())

		// Alice is both in finance and a manager; she must appear once.
		users, err := resolver.Resolve(ctx, 1, []models.TargetGroupSpec{
			{Type: models.TargetGroupSpecDepartment, Values: []string{"finance"}},
			{Type: models.TargetGroupSpecRole, Values: []string{"manager"}},
		}, nil)
		require.NoError(t, err)
		require.Len(t, users, 3)

		seen := make(map[uint]int)
		for _, u := range users {
			seen[u.ID]++
		}
		for id, count := range seen {
			assert.Equal(t, 1, count, "user %d resolved more than once", id)
		}
	})

	t.Run("AppliesExclusions", func(t *testing.T) {
		resolver := NewTargetResolver(directoryWithUsers())

		users, err := resolver.Resolve(ctx, 1, []models.TargetGroupSpec{
			{Type: models.TargetGroupSpecDepartment, Values: []string{"finance"}},
		}, []uint{1})
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, uint(2), users[0].ID)
	})

	t.Run("SkipsOptedOutUsers", func(t *testing.T) {
		resolver := NewTargetResolver(directoryWithUsers())

		users, err := resolver.Resolve(ctx, 1, []models.TargetGroupSpec{
			{Type: models.TargetGroupSpecDepartment, Values: []string{"engineering"}},
		}, nil)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, uint(3), users[0].ID)
	})

	t.Run("ResolvesUserList", func(t *testing.T) {
		resolver := NewTargetResolver(directoryWithUsers())

		users, err := resolver.Resolve(ctx, 1, []models.TargetGroupSpec{
			{Type: models.TargetGroupSpecUserList, Values: []string{"1", "3"}},
		}, nil)
		require.NoError(t, err)
		require.Len(t, users, 2)
	})

	t.Run("UnknownDepartmentFails", func(t *testing.T) {
		resolver := NewTargetResolver(directoryWithUsers())

		_, err := resolver.Resolve(ctx, 1, []models.TargetGroupSpec{
			{Type: models.TargetGroupSpecDepartment, Values: []string{"legal"}},
		}, nil)
		require.Error(t, err)
		assert.True(t, IsInvalidSpec(err))
		assert.ErrorIs(t, err, ErrUnknownDepartment)
	})

	t.Run("UnknownRoleFails", func(t *testing.T) {
		resolver := NewTargetResolver(directoryWithUsers())

		_, err := resolver.Resolve(ctx, 1, []models.TargetGroupSpec{
			{Type: models.TargetGroupSpecRole, Values: []string{"director"}},
		}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownRole)
	})

	t.Run("UnknownUserInListFails", func(t *testing.T) {
		resolver := NewTargetResolver(directoryWithUsers())

		_, err := resolver.Resolve(ctx, 1, []models.TargetGroupSpec{
			{Type: models.TargetGroupSpecUserList, Values: []string{"1", "999"}},
		}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownUser)
	})

	t.Run("NonNumericUserIDFails", func(t *testing.T) {
		resolver := NewTargetResolver(directoryWithUsers())

		_, err := resolver.Resolve(ctx, 1, []models.TargetGroupSpec{
			{Type: models.TargetGroupSpecUserList, Values: []string{"alice"}},
		}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownUser)
	})

	t.Run("InvalidSpecTypeFails", func(t *testing.T) {
		resolver := NewTargetResolver(directoryWithUsers())

		_, err := resolver.Resolve(ctx, 1, []models.TargetGroupSpec{
			{Type: "ou", Values: []string{"finance"}},
		}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidSpecType)
	})

	t.Run("EmptyResultFails", func(t *testing.T) {
		resolver := NewTargetResolver(directoryWithUsers())

		// Everyone in finance is excluded, so the set collapses to zero.
		_, err := resolver.Resolve(ctx, 1, []models.TargetGroupSpec{
			{Type: models.TargetGroupSpecDepartment, Values: []string{"finance"}},
		}, []uint{1, 2})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyTargetSet)
	})

	t.Run("ExcludedUserNotResurrectedByLaterSpec", func(t *testing.T) {
		resolver := NewTargetResolver(directoryWithUsers())

		// Alice is reachable via two specs but excluded once; the exclusion wins.
		users, err := resolver.Resolve(ctx, 1, []models.TargetGroupSpec{
			{Type: models.TargetGroupSpecDepartment, Values: []string{"finance"}},
			{Type: models.TargetGroupSpecRole, Values: []string{"manager"}},
		}, []uint{1})
		require.NoError(t, err)
		for _, u := range users {
			assert.NotEqual(t, uint(1), u.ID)
		}
	})
}
