package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"dialer-platform/internal/appointments"
	"dialer-platform/internal/audit"
	"dialer-platform/internal/auth"
	"dialer-platform/internal/config"
	"dialer-platform/internal/dialer"
	"dialer-platform/internal/httpapi"
	"dialer-platform/internal/metrics"
	"dialer-platform/internal/reporting"
	"dialer-platform/internal/retention"
	"dialer-platform/internal/store/postgres"
	"dialer-platform/internal/trash"
	"dialer-platform/pkg/logger"
	"dialer-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dialer HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg config.Config) error {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)
	rootCtx = logger.With(rootCtx, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return err
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
	if err != nil {
		return err
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store := postgres.NewStore(db)
	apptRepo := postgres.NewAppointments(db)

	trashMgr := trash.NewManager()
	trashMgr.Register(trash.EntityLeads, store.LeadTrash())
	trashMgr.Register(trash.EntityAppointments, apptRepo)

	engine := dialer.NewEngine(store, postgres.NewWorkers(db), store.LeadTrash(), dialer.Options{
		LeaseTTL:    cfg.Dialer.LeaseTTL,
		MaxAttempts: cfg.Dialer.MaxAttempts,
		PhoneRegion: cfg.Dialer.PhoneRegion,
		MaxPageSize: cfg.Dialer.MaxPageSize,
	})
	engine.SetRecorder(m)

	httpapi.RegisterValidators()
	h := &httpapi.Handlers{
		Engine:       engine,
		Appointments: appointments.NewService(apptRepo, store),
		Trash:        trashMgr,
		Reports:      reporting.NewService(store),
		Audit:        audit.NewService(postgres.NewAuditLog(db)),
		Guard:        httpapi.NewRequestGuard(rdb, cfg.Dialer.RequestGuardTTL),
		Observer:     m,
	}

	var purge *retention.Job
	if cfg.Retention.Schedule != "" {
		purge, err = retention.NewJob(trashMgr, cfg.Retention.Schedule, cfg.Retention.Days, log)
		if err != nil {
			return err
		}
		purge.SetObserver(m)
		if err := purge.Start(); err != nil {
			return err
		}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(m.Middleware(httpapi.ActionNames()...))
	registerRoutes(r, h, auth.RequireAccessToken(authManager), m.Handler(), func(ctx context.Context) error {
		return utils.HealthCheck(ctx, db, 2*time.Second)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("dialer api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if purge != nil {
		purge.Stop(shutdownCtx)
	}
	return nil
}
