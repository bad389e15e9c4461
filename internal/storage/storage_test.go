package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydro360/internal/config"
	"hydro360/models"
)

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "hydro.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Ping(ctx))
	u, err := store.Users.Create(ctx, &models.User{FirstName: "Ngozi", Email: "ngozi@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "postgres"})
	assert.ErrorContains(t, err, `unknown database driver "postgres"`)
}

func TestOpen_MongoRequiresURI(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: config.DriverMongo})
	assert.Error(t, err)
}

func TestOpenUploads(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	s, err := OpenUploads(context.Background(), config.UploadConfig{Backend: config.UploadLocal, Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "local", s.Backend())
	assert.DirExists(t, dir)

	_, err = OpenUploads(context.Background(), config.UploadConfig{Backend: "ftp"})
	assert.ErrorContains(t, err, "unknown upload backend")

	_, err = OpenUploads(context.Background(), config.UploadConfig{Backend: config.UploadS3})
	assert.ErrorContains(t, err, "bucket is required")
}
