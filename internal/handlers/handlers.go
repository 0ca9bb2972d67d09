package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"rental-push-go/internal/push"
	"rental-push-go/internal/store"
)

// Dispatcher sends a notification to every device of a user.
type Dispatcher interface {
	Dispatch(ctx context.Context, n push.Notification) (push.Result, error)
}

type Handler struct {
	Store          store.Store
	Dispatcher     Dispatcher
	VAPIDPublicKey string
	SharedSecret   string
	Logger         *zap.Logger
}

func NewHandler(s store.Store, d Dispatcher, publicKey, sharedSecret string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:          s,
		Dispatcher:     d,
		VAPIDPublicKey: publicKey,
		SharedSecret:   sharedSecret,
		Logger:         logger,
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
