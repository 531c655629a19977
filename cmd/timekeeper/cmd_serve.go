package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"oktel-timekeeper/internal/config"
	"oktel-timekeeper/internal/handler"
	"oktel-timekeeper/internal/mattermost"
	"oktel-timekeeper/internal/metrics"
	"oktel-timekeeper/internal/seed"
	"oktel-timekeeper/internal/service"
	"oktel-timekeeper/internal/store"
	"oktel-timekeeper/internal/store/mongostore"
	"oktel-timekeeper/internal/store/sqlstore"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.StoreDriver == config.DriverSQLite {
		return sqlstore.Open(cfg.SQLitePath, cfg.LogLevel == "debug")
	}
	db, err := mongostore.NewMongoDB(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, err
	}
	st, err := mongostore.New(ctx, db)
	if err != nil {
		db.Close(context.Background())
		return nil, err
	}
	return st, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close(context.Background())

	if cfg.PoliciesFile != "" {
		f, err := seed.Load(cfg.PoliciesFile)
		if err != nil {
			return err
		}
		if err := seed.Apply(ctx, st, f); err != nil {
			return fmt.Errorf("seed policies: %w", err)
		}
		slog.Info("policies loaded", "file", cfg.PoliciesFile, "shifts", len(f.Shifts), "policies", len(f.Policies))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	opts := []service.Option{
		service.WithLocation(loc),
		service.WithMetrics(m),
		service.WithLogger(slog.Default()),
	}
	var mm *mattermost.Client
	if cfg.MattermostEnabled() {
		mm = mattermost.NewClient(cfg.MattermostURL, cfg.AttendanceBotToken)
		opts = append(opts, service.WithNotifier(mattermost.NewNotifier(mm, cfg.ApprovalChannelID, cfg.BotURL)))
	} else {
		slog.Warn("mattermost disabled (no bot token or approval channel)")
	}
	svc := service.NewAttendanceService(st, opts...)

	routes := handler.Routes{
		API:      handler.NewAPI(svc),
		Ready:    st,
		Metrics:  m,
		Gatherer: reg,
	}
	if mm != nil {
		routes.Attendance = handler.NewAttendanceHandler(svc, mm, cfg.BotURL)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.NewRouter(routes),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("timekeeper started", "addr", srv.Addr, "env", cfg.Env, "store", cfg.StoreDriver, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
