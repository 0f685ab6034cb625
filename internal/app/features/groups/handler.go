// internal/app/features/groups/handler.go
package groups

import (
	"github.com/dalemusser/studyhub/internal/app/service/registry"
	"go.uber.org/zap"
)

// Handler serves the group registry: browse, create and detail.
type Handler struct {
	Registry *registry.Service
	Log      *zap.Logger
}

func NewHandler(reg *registry.Service, logger *zap.Logger) *Handler {
	return &Handler{Registry: reg, Log: logger}
}
