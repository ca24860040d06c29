package session

import (
	"context"
	stderrors "errors"
	"testing"

	"dataexplorer/domain/core"
	"dataexplorer/domain/workflow"
	"dataexplorer/internal"
	"dataexplorer/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Load(ctx context.Context) (core.SessionID, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(core.SessionID), args.Bool(1), args.Error(2)
}

func (m *MockSessionRepository) Save(ctx context.Context, id core.SessionID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func TestStoreEmptyWhenNothingPersisted(t *testing.T) {
	store := NewStore(NewMemoryRepository(), internal.Discard())

	_, ok := store.Get()
	assert.False(t, ok)
}

func TestStoreHydratesExactlyOnce(t *testing.T) {
	repo := NewMemoryRepository()
	require.NoError(t, repo.Save(context.Background(), "s-1"))

	store := NewStore(repo, internal.Discard())
	for i := 0; i < 5; i++ {
		sess, ok := store.Get()
		require.True(t, ok)
		assert.Equal(t, core.SessionID("s-1"), sess.ID)
	}
	require.NoError(t, store.Hydrate(context.Background()))
	assert.Equal(t, 1, repo.Loads())
}

func TestStoreSetOverwritesAndPersists(t *testing.T) {
	repo := NewMemoryRepository()
	store := NewStore(repo, internal.Discard())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, workflow.Session{ID: "a"}))
	require.NoError(t, store.Set(ctx, workflow.Session{ID: "b"}))

	sess, ok := store.Get()
	require.True(t, ok)
	assert.Equal(t, core.SessionID("b"), sess.ID)

	persisted, ok, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, core.SessionID("b"), persisted)
}

func TestStoreRejectsEmptySession(t *testing.T) {
	store := NewStore(NewMemoryRepository(), internal.Discard())
	err := store.Set(context.Background(), workflow.Session{})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestStoreRestoresAcrossReload(t *testing.T) {
	blobs, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	first := NewStore(NewBlobRepository(blobs), internal.Discard())
	require.NoError(t, first.Set(ctx, workflow.Session{ID: "persisted-session"}))

	// a fresh process sees the same durable slot
	reloaded := NewStore(NewBlobRepository(blobs), internal.Discard())
	sess, ok := reloaded.Get()
	require.True(t, ok)
	assert.Equal(t, core.SessionID("persisted-session"), sess.ID)
}

func TestStoreSubscribe(t *testing.T) {
	store := NewStore(NewMemoryRepository(), internal.Discard())
	ctx := context.Background()

	var seen []core.SessionID
	cancel := store.Subscribe(func(s workflow.Session) { seen = append(seen, s.ID) })

	require.NoError(t, store.Set(ctx, workflow.Session{ID: "one"}))
	cancel()
	require.NoError(t, store.Set(ctx, workflow.Session{ID: "two"}))

	assert.Equal(t, []core.SessionID{"one"}, seen)
}

func TestStoreKeepsValueWhenPersistFails(t *testing.T) {
	repo := new(MockSessionRepository)
	repo.On("Load", mock.Anything).Return(core.SessionID(""), false, nil).Once()
	repo.On("Save", mock.Anything, core.SessionID("s-9")).Return(stderrors.New("disk full")).Once()

	store := NewStore(repo, internal.Discard())
	err := store.Set(context.Background(), workflow.Session{ID: "s-9"})
	assert.Equal(t, errors.CodeStorageError, errors.GetCode(err))

	sess, ok := store.Get()
	assert.True(t, ok)
	assert.Equal(t, core.SessionID("s-9"), sess.ID)
	repo.AssertExpectations(t)
}

func TestStoreHydrationErrorIsSticky(t *testing.T) {
	repo := new(MockSessionRepository)
	repo.On("Load", mock.Anything).Return(core.SessionID(""), false, stderrors.New("corrupt")).Once()

	store := NewStore(repo, internal.Discard())
	err := store.Hydrate(context.Background())
	assert.Equal(t, errors.CodeStorageError, errors.GetCode(err))
	assert.Equal(t, err, store.Hydrate(context.Background()))

	_, ok := store.Get()
	assert.False(t, ok)
	repo.AssertNumberOfCalls(t, "Load", 1)
}
