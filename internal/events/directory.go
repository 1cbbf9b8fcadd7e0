package events

import (
	"context"

	"github.com/confhub-io/confhub/internal/domain"
)

// SpeakerDirectory resolves users for report assignment. Implementations
// return an error matching ErrSpeakerNotFound for absent users.
type SpeakerDirectory interface {
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
}

// SpeakerDirectoryFunc adapts a function to SpeakerDirectory.
type SpeakerDirectoryFunc func(ctx context.Context, id int64) (*domain.User, error)

// GetUserByID calls f.
func (f SpeakerDirectoryFunc) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return f(ctx, id)
}
