package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shiftbot/internal/config"
	"shiftbot/internal/handler"
	"shiftbot/internal/i18n"
	"shiftbot/internal/logger"
	"shiftbot/internal/service"
	"shiftbot/internal/shift"
	"shiftbot/internal/store"
	"shiftbot/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := i18n.Init(cfg.DefaultLocale); err != nil {
		log.Fatal("init i18n", zap.Error(err))
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal("load timezone", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB
	db, err := store.NewMongoDB(ctx, cfg.MongoURI, cfg.MongoDB, log)
	if err != nil {
		log.Fatal("connect mongodb", zap.Error(err))
	}
	defer db.Close(context.Background())

	attendanceStore, err := store.NewAttendanceStore(ctx, db)
	if err != nil {
		log.Fatal("init attendance store", zap.Error(err))
	}

	tg := telegram.NewClient(cfg.TelegramURL, cfg.BotToken, cfg.GroupChatID, log)

	// Services
	clock := service.NewClock(loc)
	classifier := shift.NewClassifier(shift.DefaultRoles())
	attendanceSvc := service.NewAttendanceService(classifier, clock, attendanceStore, tg, log)

	activityCfg := service.DefaultActivityConfig()
	activityCfg.EscalationInterval = time.Duration(cfg.EscalationIntervalMin) * time.Minute
	activitySvc := service.NewActivityService(attendanceSvc, activityCfg, tg, log)

	users := service.NewUserRegistry(attendanceStore, log)

	// Hydrate in-memory state before accepting commands
	if err := attendanceSvc.Load(ctx); err != nil {
		log.Fatal("hydrate ledger", zap.Error(err))
	}
	if err := users.Load(ctx); err != nil {
		log.Fatal("hydrate registered users", zap.Error(err))
	}

	bot := handler.NewBot(tg, attendanceSvc, activitySvc, users, cfg.RoleFor, cfg.DefaultLocale, cfg.PollTimeout, log)

	// Health checks
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("health server started", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("health server", zap.Error(err))
		}
	}()

	go func() {
		log.Info("bot poller started")
		if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatal("bot poller", zap.Error(err))
		}
	}()

	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
