package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/menu-orders/internal/adapter/handler"
	"github.com/rl1809/menu-orders/internal/adapter/messaging"
	"github.com/rl1809/menu-orders/internal/adapter/storage"
	"github.com/rl1809/menu-orders/internal/config"
	"github.com/rl1809/menu-orders/internal/core/service"
	"github.com/rl1809/menu-orders/internal/port"
)

type eventPublisher interface {
	port.EventPublisher
	Close() error
}

func main() {
	app := &cli.App{
		Name:  "menu-orders",
		Usage: "restaurant menu and order service",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP and gRPC servers",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "apply database migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "down", Usage: "revert the latest migration instead"},
				},
				Action: migrate,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("menu-orders stopped")
	}
}

func migrate(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := cfg.NewLogger()

	db, err := openMySQL(c.Context, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if c.Bool("down") {
		if err := storage.Rollback(db.DB); err != nil {
			return err
		}
		log.Info("reverted latest migration")
		return nil
	}
	if err := storage.Migrate(db.DB); err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}

func serve(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openMySQL(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("connected to mysql")

	opts := []service.Option{service.WithLogger(log)}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: cfg.RedisPoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer rdb.Close()
		log.Info("connected to redis")

		opts = append(opts,
			service.WithLocker(storage.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait)),
			service.WithIdempotency(storage.NewRedisIdempotencyStore(rdb, cfg.IdempotencyTTL)),
		)
	} else {
		log.Warn("REDIS_ADDR is empty, order locks are local to this process")
		opts = append(opts, service.WithLocker(service.NewLocalLocker(cfg.LockWait)))
	}

	var publisher eventPublisher = messaging.NopPublisher{}
	if cfg.KafkaEnabled() {
		publisher = messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaWorkers, cfg.KafkaQueueSize, log)
		log.WithField("topic", cfg.KafkaTopic).Info("publishing order events to kafka")
	}
	opts = append(opts, service.WithPublisher(publisher))

	orderRepo := storage.NewMySQLOrderRepository(db)
	menuRepo := storage.NewMySQLMenuRepository(db)
	orderService := service.NewOrderService(orderRepo, menuRepo, opts...)
	menuService := service.NewMenuService(menuRepo, log)

	metrics := handler.NewMetrics()

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(metrics.UnaryInterceptor()))
	handler.RegisterOrderServiceServer(grpcServer, handler.NewGRPCHandler(orderService, log))

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler.NewRouter(handler.NewHTTPHandler(orderService, menuService, log), metrics),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return errors.Wrap(err, "listen grpc")
		}
		log.Infof("gRPC server listening on %s", cfg.GRPCAddr)
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		log.Infof("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve http")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("HTTP server shutdown")
		}
		log.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		log.Info("gRPC server stopped")

		if err := publisher.Close(); err != nil {
			log.WithError(err).Warn("close event publisher")
		}
		log.Info("event publisher drained")
		return nil
	})

	return g.Wait()
}

func openMySQL(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	db.SetMaxOpenConns(cfg.MySQLMaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQLMaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQLConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping mysql")
	}
	return db, nil
}
