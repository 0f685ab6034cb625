package health

import (
	"context"
	"net/http"

	"github.com/dalemusser/studyhub/internal/app/system/jsonio"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ClientCounter reports live realtime connections.
type ClientCounter interface {
	ClientCount() int
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client   *mongo.Client
	Realtime ClientCounter
	Log      *zap.Logger
}

// NewHandler constructs a health Handler with the Mongo client and logger.
// rt may be nil.
func NewHandler(client *mongo.Client, rt ClientCounter, logger *zap.Logger) *Handler {
	return &Handler{
		Client:   client,
		Realtime: rt,
		Log:      logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status          string `json:"status"`
	Database        string `json:"database"`
	Message         string `json:"message,omitempty"`
	RealtimeClients *int   `json:"realtime_clients,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "realtime_clients":3 }
//
// On DB failure: 503 and
//
//	{ "status":"error", "database":"disconnected", "message":"Database unavailable" }
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		jsonio.Write(w, http.StatusServiceUnavailable, healthResponse{
			Status:   "error",
			Database: "disconnected",
			Message:  "Database unavailable",
		})
		return
	}

	resp := healthResponse{Status: "ok", Database: "connected"}
	if h.Realtime != nil {
		n := h.Realtime.ClientCount()
		resp.RealtimeClients = &n
	}
	jsonio.Write(w, http.StatusOK, resp)
}
