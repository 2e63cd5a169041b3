package migrations

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"testing/fstest"

	"tdadiffusion/internal"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindMigrationFiles_Embedded(t *testing.T) {
	m := NewMigrator(nil, internal.Discard())

	files, err := FindMigrationFiles(m.files)
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "001", files[0].Version)
	assert.Equal(t, "create_analyses", files[0].Name)
	assert.Contains(t, string(files[0].SQL), "CREATE TABLE IF NOT EXISTS diffusion_analyses")
	assert.Equal(t, "002", files[1].Version)
	assert.Len(t, files[0].Checksum(), 64)
}

func TestFindMigrationFiles_OrderingAndSkips(t *testing.T) {
	files, err := FindMigrationFiles(fstest.MapFS{
		"010_late.sql":  {Data: []byte("SELECT 10")},
		"002_early.sql": {Data: []byte("SELECT 2")},
		"README.md":     {Data: []byte("docs")},
		"noversion.sql": {Data: []byte("SELECT 0")},
	})
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, "002", files[0].Version)
	assert.Equal(t, "010", files[1].Version)
}

func TestFindMigrationFiles_DuplicateVersion(t *testing.T) {
	_, err := FindMigrationFiles(fstest.MapFS{
		"003_a.sql": {Data: []byte("SELECT 1")},
		"003_b.sql": {Data: []byte("SELECT 2")},
	})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "003"))
}

func TestMigrator_Postgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Skipping live test: TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", url)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	m := NewMigrator(db, internal.Discard())
	_, err = m.Up(ctx)
	require.NoError(t, err)

	again, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Empty(t, again, "second run applies nothing")

	status, err := m.Status(ctx)
	require.NoError(t, err)
	for _, s := range status {
		assert.True(t, s.Applied, s.Version)
		assert.False(t, s.Modified, s.Version)
	}
}
