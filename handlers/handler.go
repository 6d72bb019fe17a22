package handlers

import (
	"context"

	"go.uber.org/zap"

	mw "github.com/padraicbc/barrancos/middleware"
	"github.com/padraicbc/barrancos/records"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds shared dependencies used by all route handlers.
type Handler struct {
	svc    *records.Service
	flash  *mw.Flasher
	health Pinger
	logger *zap.Logger
}

// New creates a Handler around the record service.
func New(svc *records.Service, flash *mw.Flasher, health Pinger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, flash: flash, health: health, logger: logger}
}
