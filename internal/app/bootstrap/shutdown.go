// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background work, closes realtime connections, drains
// side effects, then disconnects MongoDB.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if svc, err := current(); err == nil {
		svc.stop(ctx, logger)
	}

	if deps.MongoClient != nil {
		logger.Info("disconnecting StudyHub MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}

func (s *services) stop(ctx context.Context, logger *zap.Logger) {
	s.scheduler.Stop()
	s.reconciler.Stop()
	if err := s.realtime.Shutdown(ctx); err != nil {
		logger.Warn("realtime shutdown", zap.Error(err))
	}
	s.fx.Wait()
}
