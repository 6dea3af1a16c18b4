package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kai-5908/reservation-system-tutorial/internal/api/handler"
	"github.com/kai-5908/reservation-system-tutorial/internal/api/router"
	"github.com/kai-5908/reservation-system-tutorial/internal/application"
	"github.com/kai-5908/reservation-system-tutorial/internal/config"
	"github.com/kai-5908/reservation-system-tutorial/internal/domain/slot"
	"github.com/kai-5908/reservation-system-tutorial/internal/infrastructure/postgres"
	"github.com/kai-5908/reservation-system-tutorial/internal/infrastructure/rabbitmq"
	redisinfra "github.com/kai-5908/reservation-system-tutorial/internal/infrastructure/redis"
	"github.com/kai-5908/reservation-system-tutorial/internal/pkg/audit"
	"github.com/kai-5908/reservation-system-tutorial/internal/pkg/logger"
	"github.com/kai-5908/reservation-system-tutorial/internal/pkg/metrics"
	"github.com/kai-5908/reservation-system-tutorial/internal/worker"
)

func main() {
	cfg := config.Load()

	logger.Set(logger.NewLogger(cfg.Env))
	defer func() { _ = logger.Sync() }()

	m := metrics.Init()

	// PostgreSQL
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("データベース接続エラー", zap.Error(err))
	}
	defer db.Close()

	if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
		logger.Fatal("マイグレーションエラー", zap.Error(err))
	}

	// Redis（接続できない場合はキャッシュなしで起動する）
	var cache slot.AvailabilityCache
	rc, err := redisinfra.NewClient(&cfg.Redis)
	if err != nil {
		logger.Warn("Redis に接続できないため空き状況キャッシュを無効化します", zap.Error(err))
	} else {
		defer rc.Close()
		cache = redisinfra.NewAvailabilityCache(rc, cfg.Redis.CacheTTL)
	}

	// 監査ログ
	sink := audit.NewMultiSink(m).Add("log", audit.NewStdoutZapSink())
	if cfg.AMQP.URL != "" {
		publisher, err := rabbitmq.NewAuditPublisher(cfg.AMQP.URL, cfg.AMQP.AuditQueue)
		if err != nil {
			logger.Fatal("監査ログ送信先に接続できません", zap.Error(err))
		}
		defer publisher.Close()
		sink.Add("amqp", publisher)
	}

	if cfg.Auth.Secret == "" {
		logger.Warn("AUTH_SECRET が未設定のため認証が必要なルートは 500 を返します")
	}

	// サービス初期化
	slotRepo := postgres.NewSlotRepository(db)
	reservationRepo := postgres.NewReservationRepository(db)
	txManager := postgres.NewTxManager(db)

	slotService := application.NewSlotService(slotRepo, cache, m)
	reservationService := application.NewReservationService(txManager, slotRepo, reservationRepo, sink,
		application.WithReservationMetrics(m),
		application.WithAvailabilityCache(cache),
	)

	// 開始済み枠のクローズ
	var closer *worker.StartedSlotCloser
	if cfg.Worker.SlotCloseInterval > 0 {
		closer = worker.NewStartedSlotCloser(slotService, cfg.Worker.SlotCloseInterval)
		go closer.Start(context.Background())
	}

	health := handler.NewHealthHandler().AddCheck("database", func(ctx context.Context) error {
		return postgres.Ping(ctx, db)
	})

	e := router.New(router.Handlers{
		Health:      health,
		Slot:        handler.NewSlotHandler(slotService),
		Reservation: handler.NewReservationHandler(reservationService),
	}, router.Options{
		Auth:    cfg.Auth,
		Basic:   cfg.Metrics,
		Metrics: m,
	})
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	// Graceful shutdown
	go func() {
		logger.Info("サーバーを起動します", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Env))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	if closer != nil {
		closer.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("サーバーシャットダウンエラー", zap.Error(err))
		return
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}
