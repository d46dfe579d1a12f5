package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"careercompass/internal/ai"
	"careercompass/internal/app"
	"careercompass/internal/cache"
	"careercompass/internal/config"
	"careercompass/internal/model"
	mysqlClient "careercompass/internal/platform/mysql"
	rabbitmqClient "careercompass/internal/platform/rabbitmq"
	redisClient "careercompass/internal/platform/redis"
	sqliteClient "careercompass/internal/platform/sqlite"
	"careercompass/internal/repository"
	"careercompass/internal/worker"
)

type App struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Embeddings *app.EmbeddingService
	Search     *app.SearchService
	Ingest     *app.IngestService
	Access     *app.AccessRecorder
	// IngestQueue is nil when RabbitMQ is not configured.
	IngestQueue app.Publisher

	AccessWorker *worker.QueueWorker
	IngestWorker *worker.QueueWorker
	Sweeper      *worker.ExpirySweeper

	StartedAt time.Time
}

// Options picks which long-running parts Open starts.
type Options struct {
	// Workers starts the queue consumers and the expiry sweeper.
	Workers bool
	// Broker connects to RabbitMQ when a URL is configured.
	Broker bool
}

// New loads the config and opens everything the HTTP server needs.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return Open(ctx, cfg, Options{Workers: true, Broker: true})
}

func Open(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg, StartedAt: time.Now()}

	db, err := OpenDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DB = db

	var searchCache *cache.SearchCache
	if cfg.Redis.Addr != "" {
		redisCli, err := redisClient.New(ctx, redisClient.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Redis = redisCli
		searchCache = cache.NewSearchCache(redisCli, time.Duration(cfg.Redis.SearchCacheTTLSeconds)*time.Second)
	}

	var accessQueue app.Publisher
	if opts.Broker && cfg.RabbitMQ.URL != "" {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.MQConn = mqConn
		accessQueue = rabbitmqClient.NewPublisher(mqConn, cfg.RabbitMQ.AccessQueue)
		a.IngestQueue = rabbitmqClient.NewPublisher(mqConn, cfg.RabbitMQ.IngestQueue)
	}

	embeddingRepo := repository.NewEmbeddingRepository(db)
	documentRepo := repository.NewDocumentRepository(db)

	resolvers := make(map[model.ContentType]app.ContentResolver, len(model.ContentTypes))
	for _, contentType := range model.ContentTypes {
		resolvers[contentType] = repository.NewDocumentResolver(documentRepo, contentType)
	}

	llmClient := ai.NewClient(time.Duration(cfg.LLM.TimeoutSeconds) * time.Second)
	embConfig := ai.EmbeddingConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.EmbeddingModel,
	}

	// a nil *SearchCache must not become a non-nil interface
	var invalidator app.Invalidator
	var resultCache app.ResultCache
	if searchCache != nil {
		invalidator = searchCache
		resultCache = searchCache
	}

	a.Embeddings = app.NewEmbeddingService(embeddingRepo, invalidator)
	a.Search = app.NewSearchService(embeddingRepo, resolvers, resultCache, llmClient, embConfig, app.SearchConfig{
		MaxLimit: cfg.Search.MaxLimit,
		Timeout:  time.Duration(cfg.Search.TimeoutMS) * time.Millisecond,
		FullScan: cfg.Search.FullScan,
	})
	a.Ingest = app.NewIngestService(a.Embeddings, llmClient, embConfig, app.IngestConfig{
		ChunkSize:    cfg.Embedding.ChunkSize,
		ChunkOverlap: cfg.Embedding.ChunkOverlap,
		BatchSize:    cfg.Embedding.EmbedBatchSize,
	})
	a.Access = app.NewAccessRecorder(a.Embeddings, accessQueue)

	if opts.Workers {
		if err := a.startWorkers(ctx); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	return a, nil
}

// OpenDatabase connects the configured gorm dialect and migrates the schema.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Storage.Driver {
	case "sqlite":
		db, err = sqliteClient.New(ctx, cfg.Storage.SQLitePath)
	default:
		db, err = mysqlClient.New(ctx, cfg.MySQLDSN(), mysqlClient.PoolOptions{
			MaxOpenConns: cfg.MySQL.MaxOpenConns,
			MaxIdleConns: cfg.MySQL.MaxIdleConns,
		})
	}
	if err != nil {
		return nil, err
	}
	if err := model.Migrate(db); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}
	return db, nil
}

func (a *App) startWorkers(ctx context.Context) error {
	a.Sweeper = worker.NewExpirySweeper(a.Embeddings, time.Duration(a.Config.Embedding.SweepIntervalSeconds)*time.Second)
	a.Sweeper.Start(ctx)

	if a.MQConn == nil {
		log.Printf("rabbitmq not configured, access tracking runs inline and async ingest is disabled")
		return nil
	}

	a.AccessWorker = worker.NewQueueWorker(a.MQConn, a.Config.RabbitMQ.AccessQueue, worker.NewAccessHandler(a.Embeddings))
	if err := a.AccessWorker.Start(ctx); err != nil {
		return fmt.Errorf("start access worker failed: %w", err)
	}
	a.IngestWorker = worker.NewQueueWorker(a.MQConn, a.Config.RabbitMQ.IngestQueue, worker.NewIngestHandler(a.Ingest))
	if err := a.IngestWorker.Start(ctx); err != nil {
		return fmt.Errorf("start ingest worker failed: %w", err)
	}
	return nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Sweeper != nil {
		a.Sweeper.Close()
	}
	if a.AccessWorker != nil {
		a.AccessWorker.Close()
	}
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
