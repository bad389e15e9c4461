package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydro360/internal/auth"
	"hydro360/internal/db"
	"hydro360/models"
	"hydro360/repository"
)

func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(append([]string{"--driver", "sqlite", "--db", dbPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestMigrateAndRollback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hydro.db")

	out, err := run(t, path, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "applied 0001")
	assert.Contains(t, out, "applied 0003")

	out, err = run(t, path, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "no pending migrations\n", out)

	out, err = run(t, path, "rollback")
	require.NoError(t, err)
	assert.Equal(t, "rolled back 0003\n", out)

	d, err := db.OpenRaw(path)
	require.NoError(t, err)
	defer d.Close()
	v, err := db.Version(d)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestRollback_RejectsMongo(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs([]string{"--driver", "mongo", "--mongo-uri", "mongodb://127.0.0.1:1", "rollback"})
	assert.ErrorContains(t, root.Execute(), "only supported for sqlite")
}

func TestUserCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hydro.db")

	out, err := run(t, path, "user", "create",
		"--first-name", "Chi", "--last-name", "Okafor",
		"--email", " Chi@Example.com ", "--password", "Sup3rSecret",
		"--role", "superadmin")
	require.NoError(t, err)
	assert.Contains(t, out, "created superadmin chi@example.com")

	_, err = run(t, path, "user", "create", "--first-name", "Chi", "--email", "chi@example.com", "--password", "Sup3rSecret")
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, path, "user", "create", "--first-name", "Weak", "--email", "weak@example.com", "--password", "short")
	assert.ErrorContains(t, err, "must be at least 8 characters")

	_, err = run(t, path, "user", "create", "--first-name", "Bad", "--email", "bad@example.com", "--password", "Sup3rSecret", "--role", "owner")
	assert.ErrorContains(t, err, `invalid role "owner"`)

	out, err = run(t, path, "user", "set-role", "chi@example.com", "admin")
	require.NoError(t, err)
	assert.Equal(t, "chi@example.com is now admin\n", out)

	_, err = run(t, path, "user", "set-role", "nobody@example.com", "admin")
	assert.ErrorContains(t, err, "no user with email nobody@example.com")

	out, err = run(t, path, "user", "grant", "chi@example.com", "manage_users", "manage_users", "system_settings")
	require.NoError(t, err)
	assert.Equal(t, "chi@example.com permissions: manage_users, system_settings\n", out)

	_, err = run(t, path, "user", "grant", "chi@example.com", "delete_everything")
	assert.ErrorContains(t, err, `invalid permission "delete_everything"`)

	d, err := db.Open(path)
	require.NoError(t, err)
	defer d.Close()
	u, err := repository.NewUserRepository(d).GetByEmail(context.Background(), "chi@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.True(t, u.HasPermission(models.PermManageUsers))
	assert.True(t, auth.CheckPassword(u.PasswordHash, "Sup3rSecret"))
}

func TestUserDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hydro.db")
	_, err := run(t, path, "user", "create", "--first-name", "Efe", "--email", "efe@example.com", "--password", "Sup3rSecret")
	require.NoError(t, err)

	d, err := db.Open(path)
	require.NoError(t, err)
	defer d.Close()
	store := repository.NewSQLiteStore(d)
	ctx := context.Background()
	u, err := store.Users.GetByEmail(ctx, "efe@example.com")
	require.NoError(t, err)
	rep, err := store.Reports.Create(ctx, &models.Report{
		Title: "Leaking hydrant", Description: "The hydrant on the corner leaks all day.",
		Type: models.TypeLeak, ReportedBy: u.Ref(),
	})
	require.NoError(t, err)

	_, err = run(t, path, "user", "delete", "efe@example.com")
	assert.ErrorContains(t, err, "without --yes")

	out, err := run(t, path, "user", "delete", "efe@example.com", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "deleted efe@example.com ("+u.ID+")\n", out)

	gone, err := store.Users.GetByEmail(ctx, "efe@example.com")
	require.NoError(t, err)
	assert.Nil(t, gone)
	report, err := store.Reports.GetByID(ctx, rep.ID)
	require.NoError(t, err)
	assert.Nil(t, report, "reports go with their reporter")

	_, err = run(t, path, "user", "delete", "efe@example.com", "--yes")
	assert.ErrorContains(t, err, "no user with email efe@example.com")
}
