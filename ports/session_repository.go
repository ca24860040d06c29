package ports

import (
	"context"

	"dataexplorer/domain/core"
)

// SessionRepository persists the single active session id across restarts.
// There is exactly one slot: Save overwrites, last writer wins.
type SessionRepository interface {
	// Load returns the persisted session id; ok is false if none was ever saved
	Load(ctx context.Context) (id core.SessionID, ok bool, err error)

	// Save overwrites the persisted session id
	Save(ctx context.Context, id core.SessionID) error
}
