package test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llamamind/mindmap/store"
)

func createTestingUser(ctx context.Context, ts *store.Store, username string) (*store.User, error) {
	return ts.CreateUser(ctx, &store.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		Role:         store.RoleUser,
	})
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	user, err := createTestingUser(ctx, ts, "alice")
	require.NoError(t, err)
	require.NotZero(t, user.ID)
	require.NotZero(t, user.CreatedTs)

	found, err := ts.GetUser(ctx, &store.FindUser{Username: &user.Username})
	require.NoError(t, err)
	require.Equal(t, user.ID, found.ID)
	require.Equal(t, "alice@example.com", found.Email)
	require.Equal(t, store.RoleUser, found.Role)

	email := "alice@mindmap.dev"
	updated, err := ts.UpdateUser(ctx, &store.UpdateUser{ID: user.ID, Email: &email})
	require.NoError(t, err)
	require.Equal(t, email, updated.Email)
	require.Equal(t, "alice", updated.Username)

	missing := "nobody"
	found, err = ts.GetUser(ctx, &store.FindUser{Username: &missing})
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestUserStoreUniqueUsername(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	_, err := createTestingUser(ctx, ts, "bob")
	require.NoError(t, err)
	_, err = createTestingUser(ctx, ts, "bob")
	require.Error(t, err)
}

func TestListUsersByRole(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	_, err := createTestingUser(ctx, ts, "carol")
	require.NoError(t, err)
	_, err = ts.CreateUser(ctx, &store.User{
		Username:     "root",
		Email:        "root@example.com",
		PasswordHash: "hash",
		Role:         store.RoleAdmin,
	})
	require.NoError(t, err)

	role := store.RoleAdmin
	admins, err := ts.ListUsers(ctx, &store.FindUser{Role: &role})
	require.NoError(t, err)
	require.Len(t, admins, 1)
	require.Equal(t, "root", admins[0].Username)

	all, err := ts.ListUsers(ctx, &store.FindUser{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestCreateUserResolvesRole(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	first, err := ts.CreateUser(ctx, &store.User{Username: "first", Email: "first@example.com", PasswordHash: "hash"})
	require.NoError(t, err)
	require.Equal(t, store.RoleAdmin, first.Role)
	second, err := ts.CreateUser(ctx, &store.User{Username: "second", Email: "second@example.com", PasswordHash: "hash"})
	require.NoError(t, err)
	require.Equal(t, store.RoleUser, second.Role)

	found, err := ts.GetUser(ctx, &store.FindUser{ID: &first.ID})
	require.NoError(t, err)
	require.Equal(t, store.RoleAdmin, found.Role)
}

func TestCreateUserConcurrentlySingleAdmin(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	const workers = 6
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// A losing transaction may be aborted by the database; that is fine
			// as long as no second admin is committed.
			_, _ = ts.CreateUser(ctx, &store.User{
				Username:     fmt.Sprintf("user%d", i),
				Email:        fmt.Sprintf("user%d@example.com", i),
				PasswordHash: "hash",
			})
		}(i)
	}
	wg.Wait()

	all, err := ts.ListUsers(ctx, &store.FindUser{})
	require.NoError(t, err)
	require.NotEmpty(t, all)
	role := store.RoleAdmin
	admins, err := ts.ListUsers(ctx, &store.FindUser{Role: &role})
	require.NoError(t, err)
	require.Len(t, admins, 1)
	require.Equal(t, all[0].ID, admins[0].ID)
}
