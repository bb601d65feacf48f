package backend

import (
	"context"
	"fmt"

	"condivise/internal/amqp"
	"condivise/internal/cache"
	"condivise/internal/log"
	"condivise/internal/metrics"
	"condivise/internal/services"
	"condivise/internal/storage"
	"condivise/internal/storage/memory"
	"condivise/internal/storage/postgres"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewFactory creates a new backend factory. m may be nil.
func NewFactory(logger *log.Logger, m *metrics.Metrics) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger:  logger.WithComponent(log.ComponentBackend),
		metrics: m,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := f.openRepository(ctx, config)
	if err != nil {
		return nil, err
	}

	opts := []services.Option{
		services.WithLogger(f.logger),
		services.WithMetrics(f.metrics),
	}

	// AMQP is optional: a broker that is down at startup only disables
	// change events.
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue,
			amqp.WithLogger(f.logger), amqp.WithMetrics(f.metrics))
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without change events",
				log.FieldError, err)
		} else {
			opts = append(opts, services.WithPublisher(client))
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	result := &BackendResult{}
	if config.CacheTTL > 0 {
		ledgerCache := cache.NewLRUCache[services.Ledger](config.CacheSize, config.CacheTTL)
		opts = append(opts, services.WithCache(ledgerCache))
		result.Cache = ledgerCache
	}

	svc := services.NewExpenseService(repo, opts...)
	result.Service = svc
	result.Cleanup = svc.Close
	return result, nil
}

func (f *DefaultFactory) openRepository(ctx context.Context, config Config) (storage.Repository, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil
	case PostgresBackend:
		repo, err := postgres.Open(ctx, config.DatabaseURL, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL repository: %w", err)
		}
		f.logger.Info("Initialized PostgreSQL backend")
		return repo, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
