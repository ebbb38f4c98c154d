package users_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-client/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    users.RoleType
		wantErr bool
	}{
		{in: "user", want: users.RoleUser},
		{in: " ADMIN ", want: users.RoleAdmin},
		{in: "super_admin", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := users.ParseRole(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestApplyPatchOnlyTouchesSetFields(t *testing.T) {
	u := users.User{ID: "u1", Email: "a@b.com", Username: "alice", DisplayName: "Alice", Role: users.RoleUser}

	merged := u.Apply(users.Patch{DisplayName: utils.Ptr("Alice B"), Role: utils.Ptr(users.RoleAdmin)})

	require.Equal(t, "u1", merged.ID)
	require.Equal(t, "a@b.com", merged.Email)
	require.Equal(t, "alice", merged.Username)
	require.Equal(t, "Alice B", merged.DisplayName)
	require.Equal(t, users.RoleAdmin, merged.Role)
	require.Equal(t, "Alice", u.DisplayName, "original must not change")
}

func TestPatchIsEmpty(t *testing.T) {
	require.True(t, users.Patch{}.IsEmpty())
	require.False(t, users.Patch{Email: utils.Ptr("x@y.z")}.IsEmpty())
}

func TestUserName(t *testing.T) {
	var nilUser *users.User
	require.Equal(t, "", nilUser.Name())
	require.Equal(t, "a@b.com", (&users.User{Email: "a@b.com"}).Name())
	require.Equal(t, "alice", (&users.User{Email: "a@b.com", Username: "alice"}).Name())
	require.Equal(t, "Alice", (&users.User{Email: "a@b.com", Username: "alice", DisplayName: "Alice"}).Name())
	require.False(t, nilUser.IsAdmin())
	require.True(t, (&users.User{Role: users.RoleAdmin}).IsAdmin())
}

func TestUsersPagePages(t *testing.T) {
	require.Equal(t, 0, users.UsersPage{Total: 5}.Pages())
	require.Equal(t, 1, users.UsersPage{Total: 5, Limit: 10}.Pages())
	require.Equal(t, 3, users.UsersPage{Total: 21, Limit: 10}.Pages())
}

func TestFakeUserRepoList(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()
	for _, email := range []string{"c@x.io", "a@x.io", "b@x.io"} {
		require.NoError(t, repo.Upsert(&users.User{Email: email, Role: users.RoleUser}))
	}

	page, err := repo.List(0, 2)
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.Equal(t, 1, page.Page)
	require.Len(t, page.Users, 2)
	require.Equal(t, "a@x.io", page.Users[0].Email)

	page, err = repo.List(2, 2)
	require.NoError(t, err)
	require.Equal(t, 2, page.Page)
	require.Len(t, page.Users, 1)
	require.Equal(t, "c@x.io", page.Users[0].Email)

	page, err = repo.List(10, 2)
	require.NoError(t, err)
	require.Empty(t, page.Users)
}

func TestFakeUserRepoDelete(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()
	u := &users.User{Email: "a@x.io"}
	require.NoError(t, repo.Upsert(u))
	require.NotEmpty(t, u.ID)

	require.NoError(t, repo.Delete(u.ID))
	_, err := repo.GetByEmail("a@x.io")
	require.Error(t, err)
	require.Error(t, repo.Delete(u.ID))
}
