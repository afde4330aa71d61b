package services

import (
	"context"
	"errors"

	"assofin/internal/amqp"
)

// ErrAsyncUnavailable is returned when a job is queued without a broker.
var ErrAsyncUnavailable = errors.New("asynchronous jobs are not configured")

// EventPublisher announces transaction changes. *amqp.Client implements it.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, id string, event amqp.TransactionEvent) error
}

// JobPublisher queues bulk categorization runs. *amqp.Client implements it.
type JobPublisher interface {
	PublishCategorizeJob(ctx context.Context, transactionIDs []string) (string, error)
}

// Invalidator drops derived data after a write.
type Invalidator interface {
	Invalidate()
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate() {}
