package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"dataexplorer/domain/core"
)

// ActiveSessionKey is the single durable slot holding the active session id
const ActiveSessionKey = "session/active"

type persistedSession struct {
	SessionID string    `json:"session_id"`
	SavedAt   time.Time `json:"saved_at"`
}

// BlobRepository persists the active session id as one JSON blob
type BlobRepository struct {
	blobs BlobStore
	key   string
}

// NewBlobRepository creates a repository over a blob store
func NewBlobRepository(blobs BlobStore) *BlobRepository {
	return &BlobRepository{blobs: blobs, key: ActiveSessionKey}
}

// Load implements ports.SessionRepository
func (r *BlobRepository) Load(ctx context.Context) (core.SessionID, bool, error) {
	rc, err := r.blobs.GetBlob(ctx, r.key)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", false, fmt.Errorf("failed to read session blob: %w", err)
	}

	var ps persistedSession
	if err := json.Unmarshal(data, &ps); err != nil {
		return "", false, fmt.Errorf("failed to decode session blob: %w", err)
	}
	id, err := core.ParseSessionID(ps.SessionID)
	if err != nil {
		return "", false, nil
	}
	return id, true, nil
}

// Save implements ports.SessionRepository
func (r *BlobRepository) Save(ctx context.Context, id core.SessionID) error {
	data, err := json.Marshal(persistedSession{SessionID: id.String(), SavedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return r.blobs.StoreBlob(ctx, r.key, data)
}

// MemoryRepository keeps the session id in process memory
type MemoryRepository struct {
	mu    sync.Mutex
	id    core.SessionID
	saved bool
	loads int
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Load implements ports.SessionRepository
func (r *MemoryRepository) Load(ctx context.Context) (core.SessionID, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads++
	return r.id, r.saved, nil
}

// Save implements ports.SessionRepository
func (r *MemoryRepository) Save(ctx context.Context, id core.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id = id
	r.saved = true
	return nil
}

// Loads reports how many times Load was called
func (r *MemoryRepository) Loads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loads
}
