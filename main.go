// main.go

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/norun9/gomarket-cart/cartstore"
	"github.com/norun9/gomarket-cart/services"
	"github.com/norun9/gomarket-cart/storage"
)

const shutdownTimeout = 10 * time.Second

var log *logrus.Logger

func init() {
	log = logrus.New()
	log.Level = logrus.InfoLevel
	log.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
	log.Out = os.Stdout
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("cartservice exited: %v", err)
	}
	log.Info("cartservice stopped")
}

func run(ctx context.Context, cfg Config) error {
	tp, err := initTracerProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warnf("error shutting down tracer provider: %v", err)
		}
	}()

	if cfg.MetricsEnabled {
		mp, err := initMeterProvider(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := mp.Shutdown(context.Background()); err != nil {
				log.Warnf("error shutting down meter provider: %v", err)
			}
		}()
	}

	st, err := newStorage(ctx, cfg)
	if err != nil {
		return err
	}

	mode, _ := cartstore.ParsePersistMode(cfg.PersistMode)
	store := cartstore.New(st,
		cartstore.WithKey(cfg.StorageKey),
		cartstore.WithPersistMode(mode),
		cartstore.WithLogger(log),
	)
	if err := hydrate(ctx, store); err != nil {
		store.Close(context.Background())
		return err
	}
	log.WithField("items", len(store.Products())).Info("cart store initialized")

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	healthpb.RegisterHealthServer(grpcServer, services.NewHealthCheckService(st, log))
	reflection.Register(grpcServer)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           services.NewRouter(store, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := fmt.Sprintf(":%s", cfg.Port)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		log.Infof("gRPC health server listening on %s", addr)
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		log.Infof("cart HTTP API listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http shutdown")
		}
		if err := store.Close(shutdownCtx); err != nil {
			log.WithError(err).Warn("pending cart writes were not flushed")
		}
		if closer, ok := st.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				log.WithError(err).Warn("storage close")
			}
		}
		return nil
	})
	return g.Wait()
}

// hydrate loads the persisted cart. An undecodable payload only costs the saved
// cart; a storage error stops startup so the next write cannot overwrite a cart
// that was never read.
func hydrate(ctx context.Context, store *cartstore.Store) error {
	err := store.Initialize(ctx)
	if errors.Is(err, cartstore.ErrCorruptPayload) {
		log.WithError(err).Warn("stored cart is unreadable, starting empty")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "hydrate cart")
	}
	return nil
}

// newStorage picks Redis when REDIS_ADDR is set and waits for it to answer.
func newStorage(ctx context.Context, cfg Config) (storage.Storage, error) {
	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not set, using in-memory storage")
		return storage.NewLocalStorage(), nil
	}

	log.Infof("using Redis storage at %s", cfg.RedisAddr)
	rs := storage.NewRedisStorage(cfg.RedisAddr, log)
	if err := rs.Initialize(ctx); err != nil {
		rs.Close()
		return nil, fmt.Errorf("failed to initialize Redis storage: %w", err)
	}
	return rs, nil
}
