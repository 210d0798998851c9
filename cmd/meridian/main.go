package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/meridiancrm/meridian/pkg/api"
	"github.com/meridiancrm/meridian/pkg/audit"
	"github.com/meridiancrm/meridian/pkg/auth"
	"github.com/meridiancrm/meridian/pkg/authz"
	"github.com/meridiancrm/meridian/pkg/config"
	"github.com/meridiancrm/meridian/pkg/crm"
	"github.com/meridiancrm/meridian/pkg/jobs"
	"github.com/meridiancrm/meridian/pkg/notifications"
	"github.com/meridiancrm/meridian/pkg/observability"
	"github.com/meridiancrm/meridian/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("Server exited")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting meridian")

	ctx := context.Background()

	db, err := storage.Connect(storage.ConnectionConfig{
		URL:         cfg.Database.URL,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.RunMigrations(ctx, db, logger); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	metrics := observability.NewMetrics(nil)

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}

	// Identity and authorization
	identityCache := auth.NewIdentityCache(
		cfg.Auth.IdentityCacheSize, cfg.Auth.IdentityCacheTTL, redisClient, metrics)
	authService := auth.NewService(
		auth.NewUserStore(db),
		auth.NewSessionStore(db),
		identityCache,
		auth.ServiceConfig{
			AccessTokenTTL:  cfg.Auth.AccessTokenTTL,
			RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
			BcryptCost:      cfg.Auth.BcryptCost,
		},
	)
	policy := authz.DefaultPolicy()

	// Entity stores and side-effect pipeline
	leads := crm.NewLeadStore(db)
	contacts := crm.NewContactStore(db)
	accounts := crm.NewAccountStore(db)
	deals := crm.NewDealStore(db)

	notificationStore := notifications.NewStore(db)
	auditStore := audit.NewStore(db)

	server := api.NewServer(api.Config{
		Logger:        logger,
		Metrics:       metrics,
		Policy:        policy,
		Auth:          authService,
		Leads:         leads,
		Contacts:      contacts,
		Accounts:      accounts,
		Deals:         deals,
		Tasks:         crm.NewTaskStore(db),
		Campaigns:     crm.NewCampaignStore(db),
		Comms:         crm.NewCommunicationStore(db),
		Converter:     crm.NewConverter(leads, contacts, accounts, deals),
		Reports:       crm.NewReportStore(db),
		Org:           crm.NewOrganizationStore(db),
		Notifications: notificationStore,
		Fanout:        notifications.NewFanout(notificationStore, metrics),
		AuditStore:    auditStore,
		Recorder:      audit.NewRecorder(auditStore, logrus.StandardLogger(), metrics),
		Tracing:       cfg.Observability.OTelEnabled,
	})

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes and scraping
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	// Scheduled maintenance
	scheduler := jobs.NewScheduler(logger, 10*time.Minute)
	if cfg.Jobs.AuditExportBucket != "" {
		exporter, err := audit.NewS3Exporter(ctx,
			cfg.Jobs.AuditExportBucket, cfg.Jobs.AuditExportPrefix, cfg.Jobs.AuditExportRegion)
		if err != nil {
			return err
		}
		if err := scheduler.Register(cfg.Jobs.AuditExportSchedule,
			jobs.NewAuditExportJob(auditStore, exporter)); err != nil {
			return err
		}
	}
	if err := scheduler.Register(cfg.Jobs.PruneSchedule, jobs.NewPruneJob(
		notificationStore, auth.NewSessionStore(db),
		cfg.Jobs.NotificationRetention, logger)); err != nil {
		return err
	}
	scheduler.Start()

	// Pool stats for the dashboard
	statsDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.ObserveDBStats(db.Stats())
			case <-statsDone:
				return
			}
		}
	}()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		close(statsDone)
		return scheduler.Stop(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})

	g := new(errgroup.Group)
	g.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(shutdown.WaitForShutdown)

	return g.Wait()
}
