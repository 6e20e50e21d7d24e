package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/analytics"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/api"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/circuitbreaker"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/config"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/consumer"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/cron"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/enqueuer"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/extractor"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/leaderelection"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/matching"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/metrics"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/resolver"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/scheduler"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/stopcondition"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/store/memory"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/store/postgres"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/transport/channel"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/transport/redisq"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/triggering"
)

// engineStore is the union of the store contracts; both backends satisfy it.
type engineStore interface {
	matching.Store
	triggering.Store
	scheduler.Store
	stopcondition.Store
	enqueuer.Store
	api.Store
	extractor.SubscriptionFinder
}

var (
	_ engineStore = (*postgres.Store)(nil)
	_ engineStore = (*memory.Store)(nil)
)

// transport sends messages and delivers those addressed to one destination.
type transport interface {
	Send(ctx context.Context, msg domain.Message) error
	Messages(ctx context.Context, destination string) <-chan domain.Message
}

var (
	_ transport = (*channel.EventBus)(nil)
	_ transport = (*redisq.Queue)(nil)
)

// redisPinger adapts a redis client to api.HealthChecker.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the consumer, scheduler, enqueuer and HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logConfigWarnings(&cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	var sink metrics.Sink = metrics.NewNoopSink()
	var busOpts []channel.Option
	if cfg.MetricsEnabled {
		prom := metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		sink = prom
		busOpts = append(busOpts, channel.WithMetrics(prom))
		log.Printf("subtrigger: metrics enabled (path=%s, port=%s)", cfg.MetricsPath, cfg.MetricsPort)
	}

	var (
		store engineStore
		db    *sql.DB
	)
	switch cfg.Store {
	case config.StorePostgres:
		var err error
		db, err = openDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		store = postgres.New(db)
	default:
		store = memory.New()
		log.Println("subtrigger: using in-memory store")
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
	}

	var tr transport
	if cfg.Transport == config.TransportRedis {
		tr = redisq.New(rdb)
		log.Printf("subtrigger: redis transport (addr=%s)", cfg.RedisAddr)
	} else {
		tr = channel.NewEventBus(cfg.EventBusBufferSize, busOpts...)
		log.Printf("subtrigger: channel transport (buffer=%d)", cfg.EventBusBufferSize)
	}

	assets, areas, err := newResolvers(cfg)
	if err != nil {
		return err
	}

	trig := triggering.NewService(store).WithMetrics(sink)
	if rdb != nil {
		counter := analytics.NewCounter(rdb).
			WithWindow(cfg.AnalyticsWindow).
			WithRetention(cfg.AnalyticsRetention)
		trig = trig.WithCounter(counter)
		log.Printf("subtrigger: analytics enabled (window=%s)", cfg.AnalyticsWindow)
	}
	stopper := stopcondition.NewEvaluator(store).WithMetrics(sink)

	registry := extractor.NewRegistry().
		Register(domain.SourceManual, extractor.NewSweepExtractor(domain.SourceManual, store, assets, trig, tr)).
		Register(domain.SourceScheduled, extractor.NewSweepExtractor(domain.SourceScheduled, store, assets, trig, tr)).
		Register(domain.SourceActivity, extractor.NewActivityExtractor(matching.NewEngine(store), assets, areas, trig, stopper))
	cons := consumer.New(registry).
		WithMetrics(sink).
		WithDrainTimeout(cfg.ConsumerDrainTimeout)

	tick, err := cron.NewParser().Parse(cfg.SchedulerSpec)
	if err != nil {
		return invalidConfig(err)
	}
	sched := scheduler.New(
		scheduler.Config{PageSize: cfg.SchedulerPageSize, AssetPageSize: cfg.AssetPageSize},
		store,
		tr,
	).WithMetrics(sink)

	var enq *enqueuer.Enqueuer
	if cfg.EnqueueEnabled {
		enq = enqueuer.New(
			enqueuer.Config{Interval: cfg.EnqueueInterval, BatchSize: cfg.EnqueueBatchSize},
			store,
			tr,
		).WithMetrics(sink)
	}

	handler := api.NewHandler(store, tr, cfg.AssetPageSize)
	if pg, ok := store.(*postgres.Store); ok {
		handler = handler.WithHealthChecker("database", pg)
	}
	if rdb != nil {
		handler = handler.WithHealthChecker("redis", redisPinger{client: rdb})
	}

	var servers []*http.Server
	if cfg.MetricsEnabled && cfg.MetricsPort != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		servers = append(servers, &http.Server{Addr: ":" + cfg.MetricsPort, Handler: metricsMux})
		servers = append(servers, &http.Server{Addr: cfg.HTTPAddr, Handler: handler})
	} else if cfg.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.MetricsPath, promhttp.Handler())
		mux.Handle("/", handler)
		servers = append(servers, &http.Server{Addr: cfg.HTTPAddr, Handler: mux})
	} else {
		servers = append(servers, &http.Server{Addr: cfg.HTTPAddr, Handler: handler})
	}

	// duties run on one instance only when leader election is enabled.
	duties := func(ctx context.Context) {
		var g errgroup.Group
		g.Go(func() error {
			if err := sched.Run(ctx, tick); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("subtrigger: scheduler error: %v", err)
			}
			return nil
		})
		if enq != nil {
			g.Go(func() error {
				enq.Run(ctx)
				return nil
			})
		}
		_ = g.Wait()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return cons.Run(gctx, tr.Messages(gctx, domain.DestinationTriggering), cfg.ConsumerWorkers)
	})

	g.Go(func() error {
		if cfg.LeaderElectionEnabled && db != nil {
			elector := leaderelection.New(
				leaderelection.NewPostgresLocker(db, cfg.LeaderLockKey),
				cfg.LeaderRetryInterval,
				cfg.LeaderHeartbeatInterval,
			).WithMetrics(sink)
			log.Printf("subtrigger: leader election enabled (key=%d)", cfg.LeaderLockKey)
			elector.Run(gctx, duties)
			return nil
		}
		duties(gctx)
		return nil
	})

	for _, srv := range servers {
		g.Go(func() error {
			log.Printf("subtrigger: http server listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server %s: %w", srv.Addr, err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("subtrigger: http server %s shutdown error: %v", srv.Addr, err)
			}
			return nil
		})
	}

	log.Printf("subtrigger: started (store=%s, transport=%s, scheduler=%q, http=%s)",
		cfg.Store, cfg.Transport, cfg.SchedulerSpec, cfg.HTTPAddr)

	err = g.Wait()
	log.Println("subtrigger: stopped")
	return err
}

func openDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	log.Printf("subtrigger: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DBOpTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newResolvers returns HTTP resolvers for the configured services and empty
// static ones for the others. Both HTTP clients share one circuit breaker.
func newResolvers(cfg config.Config) (extractor.AssetResolver, extractor.AreaResolver, error) {
	static := resolver.NewStatic()
	var assets extractor.AssetResolver = static
	var areas extractor.AreaResolver = static

	opts := []resolver.Option{
		resolver.WithHTTPClient(&http.Client{Timeout: cfg.ResolverTimeout}),
	}
	if cfg.CircuitBreakerThreshold > 0 {
		breaker := circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
		opts = append(opts, resolver.WithBreaker(breaker))
	}

	if cfg.AssetURL != "" {
		client, err := resolver.NewClient(cfg.AssetURL, opts...)
		if err != nil {
			return nil, nil, invalidConfig(err)
		}
		assets = resolver.NewAssets(client)
	}
	if cfg.SpatialURL != "" {
		client, err := resolver.NewClient(cfg.SpatialURL, opts...)
		if err != nil {
			return nil, nil, invalidConfig(err)
		}
		areas = resolver.NewSpatial(client)
	}
	return assets, areas, nil
}
