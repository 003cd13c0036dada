package memory_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"errors"

	"github.com/lewisedginton/ron/internal/storage_manager"
)

// ErrCorruptDocument is returned by Fetch when a stored document exists but
// cannot be decoded. The snapshot returned with it holds the default document
// and the stored version, so a write replaces the unreadable payload.
var ErrCorruptDocument = errors.New("memory document is corrupt")

// Status is the outcome kind of a store call.
type Status int

const (
	StatusOK Status = iota
	StatusNotFound
	StatusUnauthorized
	StatusConflict
	StatusTransport
	StatusCorrupt
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusUnauthorized:
		return "unauthorized"
	case StatusConflict:
		return "conflict"
	case StatusCorrupt:
		return "corrupt"
	default:
		return "transport"
	}
}

// StatusOf classifies an error returned by a Client or a provider.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, storage_manager.ErrNotFound):
		return StatusNotFound
	case errors.Is(err, storage_manager.ErrUnauthorized):
		return StatusUnauthorized
	case errors.Is(err, storage_manager.ErrConflict):
		return StatusConflict
	case errors.Is(err, ErrCorruptDocument):
		return StatusCorrupt
	default:
		return StatusTransport
	}
}
