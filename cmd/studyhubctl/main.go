// Command studyhubctl runs one-shot maintenance against the StudyHub database.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dalemusser/studyhub/internal/app/bootstrap"
	"github.com/dalemusser/studyhub/internal/app/store/oauthstate"
	"github.com/dalemusser/studyhub/internal/app/system/tasks"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/dalemusser/studyhub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "studyhubctl",
		Usage: "Maintenance commands for the StudyHub database.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mongo-uri", Value: "mongodb://localhost:27017", EnvVars: []string{"STUDYHUB_MONGO_URI"}},
			&cli.StringFlag{Name: "mongo-database", Value: "studyhub", EnvVars: []string{"STUDYHUB_MONGO_DATABASE"}},
			&cli.BoolFlag{Name: "debug", Usage: "Verbose logging."},
		},
		Commands: []*cli.Command{
			ensureIndexesCommand(),
			reconcileCommand(),
			cleanupStatesCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func ensureIndexesCommand() *cli.Command {
	return &cli.Command{
		Name:  "ensure-indexes",
		Usage: "Create collections, validators and indexes.",
		Action: func(c *cli.Context) error {
			return withDB(c, func(ctx context.Context, deps bootstrap.DBDeps, logger *zap.Logger) error {
				if err := bootstrap.EnsureSchema(ctx, &config.CoreConfig{}, bootstrap.AppConfig{}, deps, logger); err != nil {
					return err
				}
				logger.Info("schema ensured")
				return nil
			})
		},
	}
}

func reconcileCommand() *cli.Command {
	return &cli.Command{
		Name:  "reconcile-counts",
		Usage: "Restore missing owner memberships and recompute member counts.",
		Action: func(c *cli.Context) error {
			return withDB(c, func(ctx context.Context, deps bootstrap.DBDeps, logger *zap.Logger) error {
				rep, err := workers.NewReconciler(deps.MongoDatabase, logger, 0).RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("groups=%d owners_restored=%d counts_fixed=%d\n", rep.Groups, rep.OwnersRestored, rep.CountsFixed)
				return nil
			})
		},
	}
}

func cleanupStatesCommand() *cli.Command {
	return &cli.Command{
		Name:  "cleanup-oauth-states",
		Usage: "Delete expired sign-in state tokens.",
		Action: func(c *cli.Context) error {
			return withDB(c, func(ctx context.Context, deps bootstrap.DBDeps, logger *zap.Logger) error {
				job := tasks.OAuthStateCleanupJob(oauthstate.New(deps.MongoDatabase), logger)
				return tasks.NewScheduler(logger, timeouts.Batch()).RunOnce(job)
			})
		},
	}
}

// withDB connects using the global flags and disconnects when fn returns.
func withDB(c *cli.Context, fn func(ctx context.Context, deps bootstrap.DBDeps, logger *zap.Logger) error) error {
	logger, err := newLogger(c.Bool("debug"))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	appCfg := bootstrap.AppConfig{
		MongoURI:         c.String("mongo-uri"),
		MongoDatabase:    c.String("mongo-database"),
		MongoMaxPoolSize: 4,
	}

	ctx, cancel := context.WithTimeout(c.Context, timeouts.Batch())
	defer cancel()

	deps, err := bootstrap.ConnectDB(ctx, &config.CoreConfig{}, appCfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = deps.MongoClient.Disconnect(context.Background()) }()

	return fn(ctx, deps, logger)
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
