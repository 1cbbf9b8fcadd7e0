package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/confhub-io/confhub/internal/pkg/ctxlog"
)

// ErrorMapping binds a sentinel error to the status and message it
// should produce. An empty Message falls back to err.Error().
type ErrorMapping struct {
	Error   error
	Status  int
	Message string
}

// HandleError translates a service error through the given mappings.
// Unmapped errors are logged and answered with a plain 500 so internals
// never leak to clients.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	for _, m := range mappings {
		if !errors.Is(err, m.Error) {
			continue
		}
		msg := m.Message
		if msg == "" {
			msg = err.Error()
		}
		Error(w, m.Status, msg)
		return
	}

	ctxlog.FromContext(ctx).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}
