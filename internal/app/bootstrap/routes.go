// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	authgooglefeature "github.com/dalemusser/studyhub/internal/app/features/authgoogle"
	focusfeature "github.com/dalemusser/studyhub/internal/app/features/focus"
	groupsfeature "github.com/dalemusser/studyhub/internal/app/features/groups"
	healthfeature "github.com/dalemusser/studyhub/internal/app/features/health"
	locationfeature "github.com/dalemusser/studyhub/internal/app/features/location"
	logoutfeature "github.com/dalemusser/studyhub/internal/app/features/logout"
	membersfeature "github.com/dalemusser/studyhub/internal/app/features/members"
	messagesfeature "github.com/dalemusser/studyhub/internal/app/features/messages"
	rankingfeature "github.com/dalemusser/studyhub/internal/app/features/ranking"
	realtimefeature "github.com/dalemusser/studyhub/internal/app/features/realtime"
	userinfofeature "github.com/dalemusser/studyhub/internal/app/features/userinfo"
	"github.com/dalemusser/studyhub/internal/app/system/metrics"
	"github.com/dalemusser/studyhub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed, so the services are already built.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	svc, err := current()
	if err != nil {
		return nil, err
	}
	return newRouter(svc, appCfg, deps, logger), nil
}

func newRouter(svc *services, appCfg AppConfig, deps DBDeps, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(metrics.Middleware())

	// Global auth middleware: loads SessionUser into context if signed in.
	r.Use(svc.sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, svc.realtime, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", metrics.Handler())

	// Authentication
	googleHandler := authgooglefeature.NewHandler(svc.sessionMgr, svc.stateStore, svc.identity,
		appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL, logger)
	r.Route("/auth", func(ar chi.Router) {
		ar.Use(svc.authLimit.Middleware(ratelimit.ClientIP))
		ar.Mount("/google", authgooglefeature.Routes(googleHandler))
	})

	logoutHandler := logoutfeature.NewHandler(svc.sessionMgr, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	// Realtime authenticates itself (cookie or ticket).
	rtHandler := realtimefeature.NewHandler(svc.realtime, svc.tickets, svc.fetcher, logger)
	r.Mount("/realtime", realtimefeature.Routes(rtHandler))

	// Signed in, user id not required yet.
	r.Group(func(sr chi.Router) {
		sr.Use(svc.sessionMgr.RequireSignedIn)
		userinfofeature.MountRoutes(sr, userinfofeature.NewHandler(svc.identity, logger))
		focusfeature.MountRoutes(sr, focusfeature.NewHandler(svc.focus, logger))
	})

	// Everything group scoped needs a user id.
	r.Route("/groups", func(gr chi.Router) {
		gr.Use(svc.sessionMgr.RequireUserID)
		groupsfeature.MountRoutes(gr, groupsfeature.NewHandler(svc.registry, logger))
		membersfeature.MountRoutes(gr, membersfeature.NewHandler(svc.membership, logger))
		messagesfeature.MountRoutes(gr, messagesfeature.NewHandler(svc.messaging, logger))
		locationfeature.MountRoutes(gr, locationfeature.NewHandler(svc.presence, logger))
		rankingfeature.MountRoutes(gr, rankingfeature.NewHandler(svc.ranking, logger))
	})

	return r
}
