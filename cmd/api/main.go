package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"agrimarket/internal/config"
	"agrimarket/internal/handler"
	"agrimarket/internal/infra/cache"
	"agrimarket/internal/infra/db"
	"agrimarket/internal/infra/migrate"
	"agrimarket/internal/infra/notify"
	infraRepo "agrimarket/internal/infra/repository"
	"agrimarket/internal/logger"
	"agrimarket/internal/server"
	"agrimarket/internal/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	//.env は無くてもよい（本番は環境変数）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.IsDev(), cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//DB接続
	gormDB, closeDB, err := db.Connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	if cfg.AutoMigrate {
		if err := migrate.Run(ctx, gormDB, log, migrate.DefaultOptions()); err != nil {
			return err
		}
	}

	//通知（Kafka）。未設定なら捨てる
	var notifier usecase.NotificationDispatcher
	if len(cfg.KafkaBrokers) > 0 {
		kd := notify.NewKafkaDispatcher(cfg.KafkaBrokers, cfg.KafkaOrderTopic, log)
		defer func() { _ = kd.Close() }()
		notifier = kd
		log.Info("kafka notifications enabled",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaOrderTopic),
		)
	}

	//二重送信ガード（Redis）。未設定ならDBの一意制約だけ
	var guard usecase.CheckoutGuard
	if cfg.RedisAddr != "" {
		rg, err := cache.NewRedisCheckoutGuard(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CheckoutGuardTTL, log)
		if err != nil {
			return err
		}
		defer func() { _ = rg.Close() }()
		guard = rg
	}

	//Repository（GORM実装）
	txm := infraRepo.NewTxManagerGorm(gormDB)
	userRepo := infraRepo.NewUserGormRepository(gormDB)

	//Usecase
	pricer := usecase.NewOrderPricer(
		usecase.FlatRateTax{Rate: cfg.TaxRate},
		usecase.FlatShipping{Fee: cfg.ShippingFlatFee, FreeOver: cfg.FreeShippingThreshold},
		usecase.NoDiscount{},
	)
	creator := usecase.NewOrderCreator(usecase.OrderCreatorDeps{
		Tx:       txm,
		Pricer:   pricer,
		Notifier: notifier,
		Guard:    guard,
		Logger:   log.Named("order_creator"),
	})
	machine := usecase.NewOrderStateMachine(usecase.StateMachineDeps{
		Tx:                    txm,
		Notifier:              notifier,
		Logger:                log.Named("order_state"),
		AllowLateCancellation: cfg.AllowLateCancellation,
	})
	svc := usecase.NewOrderService(usecase.OrderServiceDeps{
		Tx:           txm,
		Creator:      creator,
		StateMachine: machine,
		Logger:       log.Named("order_service"),
	})

	//Handler
	if cfg.PaymentWebhookSecret == "" {
		log.Warn("PAYMENT_WEBHOOK_SECRET is empty, payment callbacks will be rejected")
	}
	e := server.New(cfg, userRepo, server.Handlers{
		Orders:      handler.NewOrderHandler(svc),
		AdminOrders: handler.NewAdminOrderHandler(svc),
		Payments:    handler.NewPaymentHandler(svc, cfg.PaymentWebhookSecret),
	}, log)

	addr := cfg.Port
	if !strings.HasPrefix(addr, ":") {
		addr = ":" + addr
	}
	return server.Start(ctx, e, addr, log)
}
