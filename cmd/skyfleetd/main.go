// Command skyfleetd is the orchestrator daemon: it loads configuration,
// opens the database, wires the run/job services and the reconciler
// driver, mounts the HTTP API, and runs until a shutdown signal arrives
// (spec §2, §6, §9).
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/skyfleet/orchestrator/internal/backend"
	"github.com/skyfleet/orchestrator/internal/backend/aggregator"
	"github.com/skyfleet/orchestrator/internal/backend/aws"
	"github.com/skyfleet/orchestrator/internal/backend/azure"
	"github.com/skyfleet/orchestrator/internal/backend/cudo"
	"github.com/skyfleet/orchestrator/internal/backend/datacrunch"
	"github.com/skyfleet/orchestrator/internal/backend/gcp"
	"github.com/skyfleet/orchestrator/internal/backend/lambda"
	"github.com/skyfleet/orchestrator/internal/backend/tensordock"
	"github.com/skyfleet/orchestrator/internal/config"
	"github.com/skyfleet/orchestrator/internal/gateway"
	"github.com/skyfleet/orchestrator/internal/httpapi"
	"github.com/skyfleet/orchestrator/internal/lifecycle"
	"github.com/skyfleet/orchestrator/internal/locks"
	"github.com/skyfleet/orchestrator/internal/logger"
	"github.com/skyfleet/orchestrator/internal/namegen"
	"github.com/skyfleet/orchestrator/internal/planner"
	"github.com/skyfleet/orchestrator/internal/pool"
	"github.com/skyfleet/orchestrator/internal/reconciler"
	"github.com/skyfleet/orchestrator/internal/runs"
	"github.com/skyfleet/orchestrator/internal/store/postgres"
	"github.com/skyfleet/orchestrator/internal/store/postgres/migrations"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file (CONFIG_FILE env var also honored)")
	flag.Parse()

	if *configPath != "" {
		if err := os.Setenv("CONFIG_FILE", *configPath); err != nil {
			log.Fatalf("set config path: %v", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg := logger.New(cfg.Logging)
	entry := logrus.NewEntry(lg.Logger)

	dsn := cfg.Database.DSN
	if dsn == "" {
		dsn = cfg.Database.ConnectionString()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		entry.WithError(err).Fatal("open postgres")
	}
	if err := db.Ping(); err != nil {
		entry.WithError(err).Fatal("ping postgres")
	}

	if cfg.Database.MigrateOnStart {
		if err := migrations.Apply(db); err != nil {
			entry.WithError(err).Fatal("apply migrations")
		}
	}

	st := postgres.NewWithDB(db)

	registry := backend.NewRegistry()
	registry.Register("aws", aws.New())
	registry.Register("azure", azure.New())
	registry.Register("cudo", cudo.New())
	registry.Register("datacrunch", datacrunch.New())
	registry.Register("gcp", gcp.New())
	registry.Register("lambda", lambda.New())
	registry.Register("tensordock", tensordock.New())
	registry.Register("aggregator", aggregator.New(entry,
		aws.New(), azure.New(), cudo.New(), datacrunch.New(), gcp.New(), lambda.New(), tensordock.New()))

	lockSvc := locks.New()
	poolMgr := pool.New(st)
	pl := planner.New(registry, poolMgr, entry)
	names := namegen.New(cfg.NameGen.Adjectives, cfg.NameGen.Nouns, nil)
	gw := gateway.New(cfg.Gateway, entry)

	// No runner-agent transport is wired yet; the reconciler still
	// dispatches instance creation but leaves heartbeat polling a no-op
	// until a concrete Agent resolver is supplied.
	var agents runs.AgentResolver

	runsSvc := runs.New(st, lockSvc, poolMgr, pl, registry, names, gw, agents, entry)
	recon := reconciler.New(st, lockSvc, poolMgr, runsSvc, agents, cfg.Reconciler, entry)
	api := httpapi.New(cfg.Server, runsSvc, st, poolMgr, entry)

	mgr := lifecycle.NewManager(lg)
	mgr.Register(recon)
	mgr.Register(api)

	ctx := context.Background()
	if err := mgr.Run(ctx); err != nil {
		entry.WithError(err).Fatal("orchestrator exited with error")
	}
}
