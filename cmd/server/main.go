// Command server runs the vehicle registry API. It wires stores, services and
// transport from environment configuration; optional backends (Postgres,
// Redis, Kafka, MinIO) degrade to in-process implementations when unset.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	authmw "renavam/pkg/platform/middleware/auth"

	"renavam/internal/audit"
	"renavam/internal/avatar"
	"renavam/internal/car"
	"renavam/internal/identity"
	"renavam/internal/jwttoken"
	"renavam/internal/platform/config"
	"renavam/internal/platform/httpserver"
	"renavam/internal/platform/logger"
	"renavam/internal/platform/metrics"
	platformredis "renavam/internal/platform/redis"
	"renavam/internal/revocation"
	"renavam/internal/transfer"
	httptransport "renavam/internal/transport/http"
)

const (
	shutdownTimeout = 10 * time.Second
	auditBuffer     = 256
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	tokens := jwttoken.New(cfg.JWTSigningKey, cfg.TokenTTL)

	// stores: Postgres when a DSN is configured, in-memory otherwise
	var (
		userStore identity.Store
		carStore  car.Store
		ledger    transfer.Ledger
		txRunner  transfer.TxRunner
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}

		users := identity.NewPostgresStore(db)
		cars := car.NewPostgresStore(db)
		transfers := transfer.NewPostgresLedger(db)
		for _, ensure := range []func(context.Context) error{
			users.EnsureSchema, cars.EnsureSchema, transfers.EnsureSchema,
		} {
			if err := ensure(ctx); err != nil {
				return err
			}
		}

		userStore, carStore, ledger = users, cars, transfers
		txRunner = transfer.NewPostgresTxRunner(db)
		log.Info("using postgres stores")
	} else {
		userStore = identity.NewInMemoryStore()
		carStore = car.NewInMemoryStore()
		ledger = transfer.NewInMemoryLedger()
		txRunner = transfer.NewMemoryTxRunner()
		log.Info("using in-memory stores")
	}

	// token revocation: Redis when configured
	var (
		revocations authmw.TokenRevocationChecker
		revoker     httptransport.TokenRevoker
	)
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		trl := revocation.NewRedisTRL(redisClient.Client)
		revocations, revoker = trl, trl
		log.Info("using redis token revocation list")
	} else {
		trl := revocation.NewMemoryTRL()
		revocations, revoker = trl, trl
	}

	// audit trail: Kafka when configured
	var sink audit.Sink
	if cfg.KafkaBrokers != "" {
		kafkaSink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaAuditTopic)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
		log.Info("audit events go to kafka", "topic", cfg.KafkaAuditTopic)
	} else {
		sink = audit.NewMemorySink()
	}
	auditor := audit.NewPublisher(auditBuffer, log)

	// avatars: MinIO when configured
	var blobs avatar.BlobStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := avatar.NewMinioStore(avatar.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return fmt.Errorf("connect minio: %w", err)
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure minio bucket: %w", err)
		}
		blobs = minioStore
		log.Info("avatars go to minio", "bucket", cfg.MinioBucket)
	} else {
		blobs = avatar.NewMemoryStore()
	}

	identitySvc := identity.NewService(userStore, identity.NewBcryptHasher(), tokens, avatar.NewPipeline(blobs), auditor, m)
	carSvc := car.NewService(carStore, auditor, m)
	transferSvc := transfer.NewService(ledger, carStore, userStore, txRunner, auditor, m, log)

	router := httptransport.NewRouter(httptransport.Deps{
		Identity:       identitySvc,
		Cars:           carSvc,
		Transfers:      transferSvc,
		TokenValidator: tokens,
		Revocations:    revocations,
		Revoker:        revoker,
		TokenTTL:       tokens.TTL(),
		Logger:         log,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		AvatarMaxBytes: cfg.MaxAvatarBodyBytes,
	})

	srv := httpserver.New(cfg.Addr, router)
	worker := audit.NewWorker(sink, auditor.Inbox(), log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("registry listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return worker.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("registry stopped")
	return nil
}
