// Package backend opens the store and broker selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"

	"assofin/internal/amqp"
	"assofin/internal/config"
	"assofin/internal/log"
	"assofin/internal/memory"
	"assofin/internal/ports"
	"assofin/internal/services"
	"assofin/internal/storage"
)

type Type string

const (
	Memory Type = config.BackendMemory
	SQLite Type = config.BackendSQLite
)

func (t Type) IsValid() bool {
	switch t {
	case Memory, SQLite:
		return true
	default:
		return false
	}
}

type Config struct {
	Type Type

	SQLiteDBPath string

	// AMQP is optional; an empty URL leaves Result.Broker nil.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}
	t := Type(appConfig.DataBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	return Config{
		Type:         t,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}, nil
}

// Result holds the opened resources. Broker is nil when AMQP is disabled or
// unreachable at startup.
type Result struct {
	Store  ports.Store
	Broker *amqp.Client

	ping func(ctx context.Context) error
}

// Events returns the broker as an event publisher, or a nil interface.
func (r *Result) Events() services.EventPublisher {
	if r.Broker == nil {
		return nil
	}
	return r.Broker
}

// Jobs returns the broker as a job publisher, or a nil interface.
func (r *Result) Jobs() services.JobPublisher {
	if r.Broker == nil {
		return nil
	}
	return r.Broker
}

// Ping checks the store.
func (r *Result) Ping(ctx context.Context) error {
	if r.ping == nil {
		return nil
	}
	return r.ping(ctx)
}

// Close releases the broker and the store.
func (r *Result) Close() error {
	var errs []error
	if r.Broker != nil {
		errs = append(errs, r.Broker.Close())
	}
	errs = append(errs, r.Store.Close())
	return errors.Join(errs...)
}

// Open creates the store for cfg.Type and connects to the broker when one is
// configured. A broker that cannot be reached is logged and left out.
func Open(ctx context.Context, cfg Config, logger *log.Logger) (*Result, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentStorage)

	res := &Result{}
	switch cfg.Type {
	case SQLite:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		res.Store, res.ping = repo, repo.Ping
		logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
	case Memory:
		res.Store = memory.New()
		logger.InfoContext(ctx, "Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without async jobs", log.FieldError, err)
		} else {
			res.Broker = client
			logger.InfoContext(ctx, "Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	return res, nil
}
