package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"nexus-fulfillment/internal/pkg/bootstrap"
	"nexus-fulfillment/internal/pkg/database"
	"nexus-fulfillment/internal/pkg/httpclient"
	"nexus-fulfillment/internal/pkg/idgen"
	"nexus-fulfillment/internal/pkg/lock"
	"nexus-fulfillment/internal/pkg/logger"
	"nexus-fulfillment/internal/pkg/mq"
	"nexus-fulfillment/internal/pkg/txctx"
	orderapp "nexus-fulfillment/internal/service/order/application"
	"nexus-fulfillment/internal/service/order/application/saga"
	orderdomain "nexus-fulfillment/internal/service/order/domain"
	orderinfra "nexus-fulfillment/internal/service/order/infrastructure"
	orderhttp "nexus-fulfillment/internal/service/order/interfaces"
	pointapp "nexus-fulfillment/internal/service/point/application"
	pointdomain "nexus-fulfillment/internal/service/point/domain"
	pointinfra "nexus-fulfillment/internal/service/point/infrastructure"
	"nexus-fulfillment/internal/service/point/infrastructure/adapter"
	pointhttp "nexus-fulfillment/internal/service/point/interfaces"
	productdomain "nexus-fulfillment/internal/service/product/domain"
	productinfra "nexus-fulfillment/internal/service/product/infrastructure"
	promotionapp "nexus-fulfillment/internal/service/promotion/application"
	promotiondomain "nexus-fulfillment/internal/service/promotion/domain"
	promotioninfra "nexus-fulfillment/internal/service/promotion/infrastructure"
	"nexus-fulfillment/internal/service/promotion/infrastructure/rule"
	promotionhttp "nexus-fulfillment/internal/service/promotion/interfaces"
	"nexus-fulfillment/internal/store/memory"
	"nexus-fulfillment/internal/store/seed"
)

// repositories 是按存储驱动选出的全部仓储实现
type repositories struct {
	options      productdomain.OptionRepository
	coupons      promotiondomain.CouponRepository
	balances     pointdomain.BalanceRepository
	transactions pointdomain.TransactionRepository
	charges      pointdomain.ChargeRequestRepository
	orders       orderdomain.OrderRepository
	carts        orderdomain.CartRepository
	tx           *txctx.Manager
}

// wire 创建并组装所有依赖项，然后注册路由和后台消费者
func wire(app bootstrap.AppCtx, seedPath string) error {
	cfg := app.Config
	tracer := otel.Tracer(cfg.App.Name)

	repos, err := openRepositories(app)
	if err != nil {
		return err
	}

	locker, err := openLocker(app)
	if err != nil {
		return err
	}

	var publisher mq.Publisher = mq.LogPublisher{}
	if len(cfg.Infra.Kafka.Brokers) > 0 {
		kafkaPublisher := mq.NewKafkaPublisher(cfg.Infra.Kafka.Brokers)
		app.OnShutdown(func(context.Context) error { return kafkaPublisher.Close() })
		publisher = kafkaPublisher
	}

	engine, err := rule.NewCELRuleEngine()
	if err != nil {
		return err
	}
	rules := rule.NewGated(engine, func() bool {
		return bootstrap.GetCurrentConfig().App.FeatureFlags.EnableCouponRules
	})

	if seedPath != "" {
		fixtures, err := seed.Load(seedPath)
		if err != nil {
			return err
		}
		seedRepos := seed.Repositories{Options: repos.options, Coupons: repos.coupons, Balances: repos.balances}
		if err := fixtures.Apply(app.Ctx, seedRepos, engine, time.Now()); err != nil {
			return err
		}
	}

	logger.L().Info().
		Str("database", cfg.Infra.Database.Driver).
		Str("lock", cfg.Infra.Lock.Backend).
		Int("kafka_brokers", len(cfg.Infra.Kafka.Brokers)).
		Msg("infrastructure ready")

	ids := idgen.UUIDGenerator{}
	topics := cfg.Infra.Kafka.Topics

	issuance := promotionapp.NewIssuanceService(repos.coupons, locker, repos.tx, ids, publisher, topics.CouponEvents, tracer)

	orders := orderapp.NewOrderApplicationService(saga.Dependencies{
		Options:      repos.options,
		Balances:     repos.balances,
		Transactions: repos.transactions,
		Coupons:      repos.coupons,
		Rules:        rules,
		Orders:       repos.orders,
		Carts:        repos.carts,
		IDs:          ids,
	}, locker, repos.tx, publisher, topics.OrderEvents, tracer)

	gateway := adapter.NewPaymentHTTPAdapter(httpclient.NewClient(cfg.Payment.Timeout), cfg.Payment.BaseURL)
	charges := pointapp.NewChargeService(pointapp.Repositories{
		Balances:       repos.balances,
		Transactions:   repos.transactions,
		ChargeRequests: repos.charges,
	}, gateway, locker, repos.tx, ids, publisher, topics.PointEvents, tracer,
		pointapp.WithLimits(pointdomain.ChargeLimits{Min: cfg.Point.MinChargeAmount, Max: cfg.Point.MaxChargeAmount}),
	)

	orderhttp.NewOrderHandler(orders).RegisterRoutes(app.Mux)
	promotionhttp.NewPromotionHandler(issuance).RegisterRoutes(app.Mux)
	pointhttp.NewPointHandler(charges).RegisterRoutes(app.Mux)

	if len(cfg.Infra.Kafka.Brokers) > 0 && cfg.App.FeatureFlags.EnablePaymentConsumer {
		return startPaymentConsumer(app, pointhttp.NewPaymentConfirmedHandler(charges))
	}
	return nil
}

func openRepositories(app bootstrap.AppCtx) (*repositories, error) {
	dbCfg := app.Config.Infra.Database
	if dbCfg.Driver == "memory" {
		store := memory.New()
		app.OnShutdown(func(context.Context) error { return store.Close() })
		return &repositories{
			options:      store,
			coupons:      store,
			balances:     store,
			transactions: store,
			charges:      store,
			orders:       store,
			carts:        store,
			tx:           txctx.NewManager(store),
		}, nil
	}

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	app.OnShutdown(func(context.Context) error { return sqlDB.Close() })

	if dbCfg.AutoMigrate {
		var models []any
		models = append(models, productinfra.Models()...)
		models = append(models, promotioninfra.Models()...)
		models = append(models, pointinfra.Models()...)
		models = append(models, orderinfra.Models()...)
		if err := database.Migrate(db, models...); err != nil {
			return nil, err
		}
	}

	points := pointinfra.NewGormPointRepository(db)
	orders := orderinfra.NewGormOrderRepository(db)
	return &repositories{
		options:      productinfra.NewGormOptionRepository(db),
		coupons:      promotioninfra.NewGormCouponRepository(db),
		balances:     points,
		transactions: points,
		charges:      points,
		orders:       orders,
		carts:        orders,
		tx:           txctx.NewManager(txctx.NewGormBeginner(db)),
	}, nil
}

// openLocker 按配置选择业务锁的实现，多实例部署时使用 ZooKeeper 或 Redis
func openLocker(app bootstrap.AppCtx) (lock.Locker, error) {
	infra := app.Config.Infra
	switch infra.Lock.Backend {
	case "zookeeper":
		conn, err := lock.ConnectZookeeper(infra.Zookeeper.Servers, infra.Zookeeper.SessionTimeout)
		if err != nil {
			return nil, err
		}
		app.OnShutdown(func(context.Context) error {
			conn.Close()
			return nil
		})
		zl, err := lock.NewZookeeperLocker(conn, infra.Zookeeper.Root)
		if err != nil {
			return nil, err
		}
		return lock.Instrument(zl), nil
	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    infra.Redis.Addrs,
			Password: infra.Redis.Password,
			DB:       infra.Redis.DB,
		})
		app.OnShutdown(func(context.Context) error { return client.Close() })
		return lock.Instrument(lock.NewRedisLocker(client, lock.WithTTL(infra.Lock.TTL))), nil
	default:
		registry := lock.NewLocal(infra.Lock.SweepInterval)
		app.OnShutdown(func(context.Context) error { return registry.Close() })
		return lock.Instrument(registry), nil
	}
}

// startPaymentConsumer 消费支付确认消息，处理失败的消息转投死信队列
func startPaymentConsumer(app bootstrap.AppCtx, handler *pointhttp.PaymentConfirmedHandler) error {
	kafkaCfg := app.Config.Infra.Kafka
	reader := mq.NewKafkaReader(kafkaCfg.Brokers, kafkaCfg.GroupID, kafkaCfg.Topics.PaymentConfirmed)
	dltWriter := mq.NewKafkaWriter(kafkaCfg.Brokers, "")
	app.OnShutdown(func(context.Context) error { return dltWriter.Close() })

	consumer := mq.NewConsumer("payment-confirmed", reader, handler.Handle, mq.NewFailureHandler(dltWriter))
	if err := consumer.Start(app.Ctx); err != nil {
		return err
	}
	logger.L().Info().Str("topic", kafkaCfg.Topics.PaymentConfirmed).Msg("payment confirmation consumer started")
	// 关停时逆序执行：先停消费者，再关闭死信 Writer
	app.OnShutdown(func(ctx context.Context) error {
		consumer.Stop(ctx)
		return nil
	})
	return nil
}
