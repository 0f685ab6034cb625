// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"sync"

	"github.com/dalemusser/studyhub/internal/app/policy/grouppolicy"
	"github.com/dalemusser/studyhub/internal/app/service/focus"
	"github.com/dalemusser/studyhub/internal/app/service/identity"
	"github.com/dalemusser/studyhub/internal/app/service/membership"
	"github.com/dalemusser/studyhub/internal/app/service/messaging"
	"github.com/dalemusser/studyhub/internal/app/service/presence"
	"github.com/dalemusser/studyhub/internal/app/service/ranking"
	"github.com/dalemusser/studyhub/internal/app/service/registry"
	"github.com/dalemusser/studyhub/internal/app/store/oauthstate"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/ratelimit"
	"github.com/dalemusser/studyhub/internal/app/system/realtime"
	"github.com/dalemusser/studyhub/internal/app/system/sidefx"
	"github.com/dalemusser/studyhub/internal/app/system/tasks"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/dalemusser/studyhub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// services is everything Startup builds and BuildHandler and Shutdown use.
type services struct {
	sessionMgr *auth.SessionManager
	fetcher    *userstore.Fetcher
	stateStore *oauthstate.Store
	fx         *sidefx.Runner
	realtime   *realtime.Manager
	tickets    *realtime.Tickets
	authLimit  *ratelimit.Limiter

	identity   *identity.Service
	registry   *registry.Service
	membership *membership.Service
	messaging  *messaging.Service
	presence   *presence.Service
	focus      *focus.Service
	ranking    *ranking.Service

	scheduler  *tasks.Scheduler
	reconciler *workers.Reconciler
}

var (
	runningMu sync.Mutex
	running   *services
)

var errNotStarted = errors.New("bootstrap: Startup has not run")

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. StudyHub
// builds its services here and starts the background jobs.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	svc, err := newServices(coreCfg, appCfg, deps, logger)
	if err != nil {
		return err
	}
	svc.scheduler.Start()
	svc.reconciler.Start()

	runningMu.Lock()
	running = svc
	runningMu.Unlock()
	return nil
}

func newServices(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (*services, error) {
	db := deps.MongoDatabase

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	fetcher := userstore.NewFetcher(db)
	sessionMgr.SetUserFetcher(fetcher)

	gate := grouppolicy.New(db)
	hubLog := logger.Named("realtime")
	rt := realtime.NewManager(func() *realtime.Hub {
		return realtime.NewHub(gate.Authorize, hubLog)
	})
	fx := sidefx.New(logger.Named("sidefx"), appCfg.SideFXTimeout)
	loc := appCfg.Location()

	reg := registry.New(db, registry.Config{
		InviteCodeAttempts: appCfg.InviteCodeAttempts,
		Transactions:       appCfg.MembershipTransactions,
	}, logger)
	chat := messaging.New(db, rt, fx, ratelimit.PerMinute(appCfg.MessageRatePerMinute), logger)
	stateStore := oauthstate.New(db)

	return &services{
		sessionMgr: sessionMgr,
		fetcher:    fetcher,
		stateStore: stateStore,
		fx:         fx,
		realtime:   rt,
		tickets:    realtime.NewTickets(appCfg.TicketSecret(), appCfg.RealtimeTicketTTL),
		authLimit:  ratelimit.PerMinute(appCfg.AuthRatePerMinute),

		identity:   identity.New(userstore.New(db), logger),
		registry:   reg,
		membership: membership.New(db, reg, chat, rt, fx, logger),
		messaging:  chat,
		presence:   presence.New(db, rt, fx, ratelimit.PerMinute(appCfg.LocationRatePerMinute), logger),
		focus:      focus.New(db, rt, fx, loc, logger),
		ranking:    ranking.New(db, loc, appCfg.RankingTopN),

		scheduler:  tasks.NewScheduler(logger, timeouts.Long(), tasks.OAuthStateCleanupJob(stateStore, logger)),
		reconciler: workers.NewReconciler(db, logger, appCfg.ReconcileInterval),
	}, nil
}

func current() (*services, error) {
	runningMu.Lock()
	defer runningMu.Unlock()
	if running == nil {
		return nil, errNotStarted
	}
	return running, nil
}
