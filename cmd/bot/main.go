package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/Proton-105/chatshop/internal/bot"
	"github.com/Proton-105/chatshop/internal/customer"
	"github.com/Proton-105/chatshop/internal/database"
	"github.com/Proton-105/chatshop/internal/engine"
	apperrors "github.com/Proton-105/chatshop/internal/errors"
	"github.com/Proton-105/chatshop/internal/health"
	"github.com/Proton-105/chatshop/internal/i18n"
	"github.com/Proton-105/chatshop/internal/idempotency"
	"github.com/Proton-105/chatshop/internal/jobs"
	jobhandlers "github.com/Proton-105/chatshop/internal/jobs/handlers"
	"github.com/Proton-105/chatshop/internal/lifecycle"
	"github.com/Proton-105/chatshop/internal/media"
	"github.com/Proton-105/chatshop/internal/middleware"
	"github.com/Proton-105/chatshop/internal/notify"
	"github.com/Proton-105/chatshop/internal/order"
	"github.com/Proton-105/chatshop/internal/ratelimit"
	"github.com/Proton-105/chatshop/internal/repository"
	"github.com/Proton-105/chatshop/internal/state"
	"github.com/Proton-105/chatshop/pkg/config"
	"github.com/Proton-105/chatshop/pkg/logger"
	"github.com/Proton-105/chatshop/pkg/metrics"
	"github.com/Proton-105/chatshop/pkg/rabbitmq"
	"github.com/Proton-105/chatshop/pkg/redis"
)

const (
	rateLimitSweepInterval = time.Minute
	stateCollectorInterval = 30 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("shop bot stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, _, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)
	log.Info("starting shop bot", slog.String("env", cfg.AppEnv), slog.Int("bots", len(cfg.Bots)))

	shutdown := lifecycle.NewShutdown(log)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := shutdown.Execute(ctx); err != nil {
			log.Error("shutdown finished with errors", slog.Any("error", err))
		}
	}()

	db, err := database.OpenSQL(ctx, cfg)
	if err != nil {
		return err
	}
	shutdown.Register("postgres_sql", func(context.Context) error { return db.Close() })

	var migrations fs.FS = database.Migrations()
	if cfg.App.MigrationsDir != "" {
		migrations = os.DirFS(cfg.App.MigrationsDir)
	}
	applied, err := database.NewMigrator(db, log).Apply(ctx, migrations)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	log.Info("database migrations applied", slog.Int("applied", applied))

	pool, err := database.NewPool(ctx, cfg)
	if err != nil {
		return err
	}
	shutdown.Register("postgres_pool", func(context.Context) error {
		pool.Close()
		return nil
	})

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	shutdown.Register("redis", func(context.Context) error { return rdb.Close() })
	kv := redis.NewMetricsClient(rdb)

	errHandler := apperrors.NewHandler(log, cfg.Sentry.Enabled)

	conversations := repository.NewConversationRepository(db, log)
	templates := repository.NewTemplateRepository(db, log)
	businesses := repository.NewBusinessRepository(pool, log)
	catalogs := repository.NewCatalogRepository(pool, log)
	customers := repository.NewCustomerRepository(pool, log)
	orders := repository.NewOrderRepository(pool, log)

	sessions := state.NewRedisCache(conversations, rdb.Client, log, cfg.App.ConversationTTL)
	machine := state.NewMachine(sessions, log, rdb.Client)

	resolver, err := i18n.NewResolver(cfg.Locales.Dir, cfg.App.DefaultLanguage, templates, log)
	if err != nil {
		return fmt.Errorf("load locales: %w", err)
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	queue := jobs.NewManager(redisOpt, log)
	shutdown.Register("jobs_client", func(context.Context) error { return queue.Close() })

	composer := notify.NewComposer(resolver)
	languages := notify.SessionLanguages{Store: sessions}
	notifier := notify.NewNotifier(composer, queue, languages, log)

	orderOpts := []order.Option{
		order.WithNotifier(notifier),
		order.WithLocker(kv, cfg.App.OrderLockTTL),
	}
	var broker *rabbitmq.Broker
	if cfg.RabbitMQ.Enabled {
		broker, err = rabbitmq.Dial(cfg.RabbitMQ, cfg.RabbitMQURL(), log)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		shutdown.Register("rabbitmq", func(context.Context) error {
			broker.Close()
			return nil
		})
		orderOpts = append(orderOpts, order.WithPublisher(broker))
	}
	orderManager := order.NewManager(orders, businesses, log, orderOpts...)

	customerService := customer.NewService(customers, customer.NewCache(kv, cfg.App.CustomerCacheTTL), log)
	receipts := media.NewStore(cfg.Media.Root, cfg.Media.BaseURL, log)

	conv := engine.New(engine.Deps{
		Sessions:   machine,
		Catalogs:   catalogs,
		Businesses: businesses,
		Orders:     orderManager,
		Customers:  customerService,
		Receipts:   receipts,
		Templates:  resolver,
		Errors:     errHandler,
	}, engine.Config{
		DefaultLanguage: cfg.App.DefaultLanguage,
		SupportTTL:      cfg.App.SupportSessionTTL,
	}, log)

	var guard *ratelimit.Guard
	if cfg.RateLimit.Enabled {
		guard = ratelimit.NewGuard(cfg.RateLimit, ratelimit.NewRedisLimiter(rdb.Client, log), log)
	}
	idem := idempotency.NewManager(idempotency.NewRedisStore(rdb.Client, log), cfg.App.IdempotencyTTL, log)

	checker := health.NewChecker(log)
	checker.AddCheck("postgres", health.SQL(db))
	checker.AddCheck("postgres_pool", health.Pool(pool))
	checker.AddCheck("redis", health.Redis(rdb.Client))
	if broker != nil {
		checker.AddCheck("rabbitmq", health.CheckFunc(broker.Ping))
	}

	bots := make([]*bot.Bot, 0, len(cfg.Bots))
	for _, bc := range cfg.Bots {
		businessID := bc.BusinessID
		b, err := bot.New(bc, bot.Deps{
			Conversation: conv,
			Idempotency:  idem,
			Guard:        guard,
			Notice: func(ctx context.Context, address string) string {
				lang := languages.Language(ctx, businessID, address)
				return resolver.Resolve(ctx, businessID, lang, "error_rate_limited")
			},
			Errors: errHandler,
		}, log, false)
		if err != nil {
			return err
		}
		checker.AddCheck(fmt.Sprintf("bot_%d", businessID), health.Bot(businessID, b.Telebot()))
		bots = append(bots, b)
	}
	fleet := bot.NewDispatcher(bots...)

	worker := jobs.NewWorker(redisOpt, cfg.Jobs.Concurrency, log)
	worker.RegisterHandler(jobs.TaskTypeNotificationSend, jobhandlers.NewNotificationHandler(fleet, log))
	worker.RegisterHandler(jobs.TaskTypeDepositReminder, jobhandlers.NewDepositReminderHandler(orderManager, notifier, log))

	scheduler := jobs.NewScheduler(redisOpt, cfg.Jobs.ReminderCron, cfg.Jobs.ReminderMinAge, log)
	if err := scheduler.RegisterTasks(); err != nil {
		return fmt.Errorf("register scheduled tasks: %w", err)
	}

	probes := lifecycle.NewProbes(checker)
	ops := lifecycle.NewOpsServer(cfg.HTTP.Addr, probes, func(h http.Handler) http.Handler {
		return logger.Middleware(middleware.AccessLog(log)(h))
	}, cfg.App.ShutdownTimeout, log)

	g, gctx := errgroup.WithContext(ctx)
	for _, b := range bots {
		b := b
		g.Go(func() error { return b.Run(gctx) })
	}
	g.Go(func() error { return ops.Run(gctx) })
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error {
		return metrics.NewStateCollector(conversations, log, stateCollectorInterval).Run(gctx)
	})
	if guard != nil {
		g.Go(func() error {
			guard.Sweep(gctx, rateLimitSweepInterval)
			return nil
		})
	}
	if cfg.Locales.Watch {
		g.Go(func() error { return resolver.Watch(gctx) })
	}
	if broker != nil {
		g.Go(func() error { return broker.Consume(gctx, "shop-bot", orderManager.CommandHandler()) })
	}

	err = g.Wait()
	log.Info("shop bot shutting down")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
