package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"salonbook/internal/api"
	"salonbook/internal/booking"
	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/models"
	"salonbook/internal/notify"
	"salonbook/internal/service"
	"salonbook/internal/state"
	"salonbook/internal/store"
	"salonbook/shared/access"
	"salonbook/shared/audit"
	"salonbook/shared/reminders"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	local, err := store.NewSQLiteStore(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer local.Close()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
	}

	identity := state.Identity{Role: models.RoleAdmin}
	if !cfg.IsAdmin() {
		identity = state.Identity{Role: models.RoleClient, ClientID: cfg.Portal.ClientID}
	}

	bus := events.NewEventBus()
	bus.OnError(func(ev events.Event, err error) {
		logger.Warn().Err(err).Str("event", ev.Type).Msg("event handler failed")
	})
	st := state.NewService(documentStore(cfg, local, rdb, &logger), bus, identity, state.Config{
		PollInterval:   cfg.SyncInterval(),
		Debounce:       cfg.Debounce(),
		Guard:          cfg.Guard(),
		CompareAndSwap: cfg.Sync.CompareAndSwap,
	}, &logger)

	engine := booking.NewEngine(booking.Config{
		HorizonDays:   cfg.HorizonDays(),
		SlotStep:      cfg.SlotStep(),
		ArrivalWindow: cfg.ArrivalWindow(),
	}, domain.NewUUID)
	acc := access.NewService(cfg.HTTP.AdminAPIKey, access.NewSessionStore(cfg.SessionTTL()), logger)
	portal := service.NewPortal(st, engine, acc, &logger, service.WithFlowTimeout(cfg.FlowTimeout()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st.Load(ctx)
	stateDone := make(chan struct{})
	go func() {
		defer close(stateDone)
		st.Poll(ctx)
	}()

	var reports audit.Notifier
	if cfg.Telegram.BotToken != "" && len(cfg.Telegram.AdminChatIDs) > 0 {
		bot, err := notify.NewTelegramSender(cfg.Telegram.BotToken, cfg.Telegram.Debug)
		if err != nil {
			logger.Error().Err(err).Msg("telegram disabled")
		} else {
			forwarder := notify.NewTelegramForwarder(bot, cfg.Telegram.AdminChatIDs, &logger)
			forwarder.Attach(bus)
			go forwarder.Run(ctx)
			reports = forwarder
		}
	}

	if cfg.Sheets.Enabled {
		mirror, err := notify.NewSheetsMirror(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("sheets mirror disabled")
		} else {
			for _, kind := range []string{state.EventSynced, domain.KindAddAppointment, domain.KindUpdateAppointment} {
				mirror.Attach(bus, kind)
			}
			mirror.Request()
			go mirror.Run(ctx, st.Snapshot)
		}
	}

	if cfg.IsAdmin() {
		err := config.WatchSchedule(ctx, cfg.SchedulePath, cfg.ScheduleReload(), func(sc *config.ScheduleConfig) {
			if err := portal.ApplySchedule(ctx, sc); err != nil {
				logger.Error().Err(err).Msg("apply schedule")
			}
		})
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.SchedulePath).Msg("schedule file not watched, using document hours")
		}
	}

	if cfg.IsAdmin() && cfg.Reminders.Enabled {
		var reminderMetrics *reminders.Metrics
		if cfg.Monitoring.PrometheusEnabled {
			reminderMetrics = reminders.NewMetrics("salonbook")
		}
		rlog := newZlog(&logger, "reminders")
		sender := reminders.NewSender(portal, reminders.NewRateLimiter(reminders.DefaultRateLimiterConfig()),
			reminders.DefaultRetryConfig(), reminderMetrics, rlog)
		rem := reminders.NewService(&reminders.Config{
			CheckInterval: cfg.ReminderInterval(),
			Window:        cfg.ArrivalWindow(),
		}, portal, sender, rlog)
		rem.Start()
		defer rem.Stop()
	}

	exporter := audit.NewService(&audit.Config{OutputDir: cfg.Audit.OutputDir, Title: "salon"},
		portal, nil, reports, newZlog(&logger, "audit"))
	if cfg.IsAdmin() && cfg.Audit.Enabled {
		exporter.Start()
		defer exporter.Stop()
	}

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(local.DB(), database.BackupConfig{
			Enabled:   true,
			Interval:  cfg.BackupInterval(),
			Path:      cfg.Backup.Path,
			Retention: cfg.BackupRetention(),
		}, &logger)
		go backup.Start(ctx)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, local, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	server := api.NewServer(portal, exporter, api.Config{
		RatePerSecond: cfg.HTTP.RateLimitPerSecond,
		Burst:         cfg.HTTP.RateLimitBurst,
	}, &logger)
	go server.RunSweeper(ctx, time.Minute)

	logger.Info().
		Str("role", string(identity.Role)).
		Int("port", cfg.HTTP.Port).
		Msg("salon portal started")
	if err := serve(ctx, cfg.HTTP.Port, server.Handler()); err != nil {
		logger.Fatal().Err(err).Int("port", cfg.HTTP.Port).Msg("api server failed")
	}

	<-stateDone
	logger.Info().Msg("salon portal stopped")
}

// documentStore picks where the shared document lives: the JSON bin, then
// Redis, with the local SQLite file as fallback. Without a remote the
// SQLite file is the only store.
func documentStore(cfg *config.Config, local *store.SQLiteStore, rdb *redis.Client, logger *zerolog.Logger) domain.DocumentStore {
	var primary domain.DocumentStore
	switch {
	case cfg.Remote.Enabled:
		bin := store.NewBinClient(cfg.Remote.BinURL, cfg.Remote.APIKey)
		if rdb != nil && cfg.RemoteCacheTTL() > 0 {
			bin.UseRedisCache(rdb, cfg.RemoteCacheTTL())
		}
		primary = bin
	case rdb != nil:
		primary = store.NewRedisStore(rdb, cfg.Redis.DocumentKey)
	default:
		return local
	}
	return store.NewFailoverStore(primary, local, logger)
}

func startHealthServer(ctx context.Context, port int, local *store.SQLiteStore, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := local.DB().PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if err := serve(ctx, port, mux); err != nil {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := serve(ctx, port, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

// serve runs an HTTP server until ctx is done.
func serve(ctx context.Context, port int, handler http.Handler) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
