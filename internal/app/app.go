package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/clip-backend/internal/cfg"
	v1Grpc "github.com/DRSN-tech/clip-backend/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/clip-backend/internal/delivery/v1/http"
	"github.com/DRSN-tech/clip-backend/internal/engine"
	"github.com/DRSN-tech/clip-backend/internal/infrastructure/clipcpp"
	"github.com/DRSN-tech/clip-backend/internal/infrastructure/kafka"
	minioInfra "github.com/DRSN-tech/clip-backend/internal/infrastructure/minio"
	ml_service "github.com/DRSN-tech/clip-backend/internal/infrastructure/ml-service"
	s3Repo "github.com/DRSN-tech/clip-backend/internal/repository/minio"
	"github.com/DRSN-tech/clip-backend/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/clip-backend/internal/repository/pgdb/converter"
	qdrantRepo "github.com/DRSN-tech/clip-backend/internal/repository/qdrant"
	"github.com/DRSN-tech/clip-backend/internal/repository/redis"
	redisConv "github.com/DRSN-tech/clip-backend/internal/repository/redis/converter"
	"github.com/DRSN-tech/clip-backend/internal/rpc"
	"github.com/DRSN-tech/clip-backend/internal/usecase"
	"github.com/DRSN-tech/clip-backend/pkg/clients"
	"github.com/DRSN-tech/clip-backend/pkg/closer"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
	"github.com/DRSN-tech/clip-backend/pkg/postgres"
	"github.com/DRSN-tech/clip-backend/pkg/tr"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

const (
	migrationsSource = "file://db/migrations"
	initTimeout      = 10 * time.Second
	shutdownTimeout  = 10 * time.Second
	topicTimeout     = 10 * time.Second
)

type App struct {
	cfg    *config.Config
	logger logger.Logger
	closer *closer.Closer

	httpSrv      *v1Http.Server
	grpcSrv      *v1Grpc.GRPCServer
	outboxWorker *kafka.OutboxWorker
	imagesInfra  *minioInfra.MinioInfrastructure

	// shutdownCtx отменяется при остановке и прерывает фоновые задачи
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// NewApp поднимает все зависимости. При ошибке уже открытые ресурсы закрываются.
func NewApp(cfg *config.Config, log logger.Logger) (_ *App, err error) {
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	a := &App{
		cfg:            cfg,
		logger:         log,
		closer:         closer.NewCloser(2 * time.Second),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}
	defer func() {
		if err != nil {
			shutdownCancel()
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if cerr := a.closer.Close(ctx); cerr != nil {
				log.Warnf("close after failed init: %v", cerr)
			}
		}
	}()

	eng, err := a.initEngine()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	info, err := eng.Info()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if uint64(info.ProjectionDim()) != cfg.Qdrant.VectorSize {
		return nil, e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: model projects to %d dims, VECTOR_SIZE is %d",
			e.ErrIncorrectEnvVariable, info.ProjectionDim(), cfg.Qdrant.VectorSize))
	}

	db, err := a.initPGDB()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minioClient, err := clients.NewMinIOClient(cfg.Minio)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	minioCtx, minioCancel := context.WithTimeout(context.Background(), initTimeout)
	defer minioCancel()
	if err := clients.EnsureBucket(minioCtx, minioClient, cfg.Minio.BucketName); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrantClient, err := clients.NewQdrantClient(cfg.Qdrant)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.AddFunc("qdrant", qdrantClient.Close)
	qdrantCtx, qdrantCancel := context.WithTimeout(context.Background(), initTimeout)
	defer qdrantCancel()
	if err := clients.EnsureCollection(qdrantCtx, qdrantClient); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redisClient := clients.NewRedisClient(cfg.Redis)
	a.closer.AddFunc("redis", redisClient.Close)
	redisCtx, redisCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer redisCancel()
	if err := redisClient.Ping(redisCtx); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	producer, err := kafka.NewProducer(log, cfg.Kafka)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.AddFunc("kafka producer", producer.Close)
	if err := producer.EnsureTopic(topicTimeout); err != nil {
		log.Warnf("kafka topic check failed, relying on broker auto-create: %v", err)
	}

	recordRepo := pgdb.NewImageRecordRepo(db.Pool, pgdbConv.NewImageRecordConverter())
	outboxRepo := pgdb.NewOutboxEventRepo(db.Pool, pgdbConv.NewOutboxEventConverter())
	embRepo := qdrantRepo.NewEmbeddingRepo(qdrantClient.Client, cfg.Qdrant)
	cacheRepo := redis.NewCacheRepo(redisClient, redisConv.NewTextEmbeddingConverter(), cfg.Redis, log)
	imageRepo := s3Repo.NewImageRepo(minioClient, cfg.Minio)

	a.imagesInfra = minioInfra.NewMinioInfrastructure(imageRepo, cfg.Minio, log, shutdownCtx)

	clipUC := usecase.NewClipUC(eng, cacheRepo, cfg.Index.MaxImageSide, log)
	indexUC := usecase.NewIndexUC(
		eng,
		clipUC,
		a.imagesInfra,
		recordRepo,
		outboxRepo,
		embRepo,
		kafka.NewEventEncoder(),
		tr.NewManager(db.Pool),
		cfg.Index,
		log,
	)

	a.outboxWorker = kafka.NewOutboxWorker(outboxRepo, log, producer, db.DSN())

	a.grpcSrv = v1Grpc.NewGRPCServer(cfg.Grpc, log)
	a.grpcSrv.RegisterServices(clipUC)

	r := chi.NewRouter()
	v1Http.NewRouter(r, log).Init(clipUC, indexUC)
	a.httpSrv = v1Http.NewServer(r, cfg.Http)

	return a, nil
}

// initEngine выбирает бэкенд и загружает модель.
func (a *App) initEngine() (*engine.Engine, error) {
	var backend engine.Backend

	switch a.cfg.Engine.Backend {
	case config.BackendClipCpp:
		backend = clipcpp.New(a.logger)
	case config.BackendRemote:
		conn, err := clients.NewEmbeddingServiceConn(a.cfg.Ml.Addr)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		backend = ml_service.NewMLService(rpc.NewEmbeddingServiceClient(conn), conn, a.cfg.Ml, a.logger)
	default:
		return nil, fmt.Errorf("%w: unknown engine backend %q", e.ErrIncorrectEnvVariable, a.cfg.Engine.Backend)
	}

	eng := engine.New(backend, a.logger, engine.WithDefaultThreads(a.cfg.Engine.Threads))
	a.closer.AddFunc("engine", eng.Close)

	info, err := eng.Load(a.cfg.Engine.ModelPath, a.cfg.Engine.Verbosity)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	a.logger.Infof("model %s loaded via %s backend, projection dim %d", info.Path, a.cfg.Engine.Backend, info.ProjectionDim())
	return eng, nil
}

func (a *App) initPGDB() (*postgres.PgDatabase, error) {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	db, err := postgres.Connect(ctx, a.cfg.Db)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.AddFunc("postgres", func() error {
		db.Close()
		return nil
	})

	if err := db.RunMigrations(migrationsSource, a.logger); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}

// Run запускает серверы и воркер outbox, затем ждёт сигнала или фатальной ошибки.
func (a *App) Run() error {
	a.outboxWorker.Start(a.shutdownCtx)

	grpcErrCh := make(chan error, 1)
	go func() {
		a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
		if err := a.grpcSrv.Start(); err != nil {
			grpcErrCh <- err
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// === Ожидание сигнала или ошибки ===
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "HTTP server fatal error")
	case appErr = <-grpcErrCh:
		a.logger.Errorf(appErr, "gRPC server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	a.stop()

	return appErr
}

// stop останавливает приём запросов, дожидается фоновых задач и закрывает ресурсы.
func (a *App) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.httpSrv.Stop(ctx); err != nil {
		a.logger.Errorf(err, "HTTP server shutdown error")
	} else {
		a.logger.Infof("HTTP server stopped")
	}

	if err := a.grpcSrv.Stop(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		a.logger.Errorf(err, "gRPC server shutdown error")
	}

	a.outboxWorker.Stop()

	if err := a.imagesInfra.WaitForCleanup(ctx); err != nil {
		a.logger.Warnf("MinIO cleanup did not finish before shutdown, some objects may remain: %v", err)
	} else {
		a.logger.Infof("MinIO cleanup completed")
	}
	a.shutdownCancel()

	if err := a.closer.Close(ctx); err != nil {
		a.logger.Errorf(err, "resources closed with errors")
	}

	a.logger.Infof("Application shutdown complete")
}
