package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"dataexplorer/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepositoryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.db")
	ctx := context.Background()

	repo, err := Open(path)
	require.NoError(t, err)

	_, ok, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Save(ctx, "first"))
	require.NoError(t, repo.Save(ctx, "second"))
	require.NoError(t, repo.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	id, ok, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, core.SessionID("second"), id)

	var rows int
	require.NoError(t, reopened.db.Get(&rows, `SELECT COUNT(*) FROM active_session`))
	assert.Equal(t, 1, rows)
}
