package backend

import (
	"context"
	"errors"
	"fmt"

	"financeiro/internal/amqp"
	"financeiro/internal/gateway/memory"
	"financeiro/internal/log"
	"financeiro/internal/services"
	"financeiro/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	root   *log.Logger
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{root: logger, logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	publisher, closePublisher := f.newPublisher(ctx, config)
	svc := services.NewBudgetService(repo, publisher).WithLogger(f.root)

	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Store:   repo,
		Service: svc,
		Ready:   repo,
		Cleanup: func() error {
			return errors.Join(closePublisher(), repo.Close())
		},
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store := memory.New()
	publisher, closePublisher := f.newPublisher(ctx, config)

	f.logger.InfoContext(ctx, "Initialized memory backend", "amqp_enabled", publisher != nil)

	return &BackendResult{
		Store:   store,
		Service: services.NewBudgetService(store, publisher).WithLogger(f.root),
		Cleanup: closePublisher,
	}, nil
}

// newPublisher connects to the broker when configured. A broker that is
// down at startup only disables publishing; the worker's catch-up scan
// covers the missed events.
func (f *DefaultFactory) newPublisher(ctx context.Context, config Config) (services.Publisher, CleanupFunc) {
	noop := func() error { return nil }
	if config.AMQPURL == "" {
		return nil, noop
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
		return nil, noop
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client, client.Close
}
