package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/open-job-board/internal/worker/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrDeliveriesClosed is returned by Start when the broker closes the consumer
var ErrDeliveriesClosed = errors.New("rabbitmq delivery channel closed")

// Store applies credential usage. Implemented by *storage.Storage.
type Store interface {
	ApplyLastUsed(ctx context.Context, credentialID string, usedAt time.Time) (bool, error)
}

// Source yields deliveries. Implemented by *rabbitmq.Client.
type Source interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Config holds worker configuration
type Config struct {
	Logger      *slog.Logger
	Store       Store
	Source      Source
	QueueName   string
	Concurrency int
	JobTimeout  time.Duration
}

// Worker consumes credential usage events and applies them to the database
type Worker struct {
	logger      *slog.Logger
	store       Store
	source      Source
	queueName   string
	concurrency int
	jobTimeout  time.Duration
	workerID    string

	jobsChan chan *domain.Message
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Worker{
		logger:      cfg.Logger,
		store:       cfg.Store,
		source:      cfg.Source,
		queueName:   cfg.QueueName,
		concurrency: concurrency,
		jobTimeout:  cfg.JobTimeout,
		workerID:    "worker-" + uuid.NewString()[:8],
		jobsChan:    make(chan *domain.Message),
		stopChan:    make(chan struct{}),
	}
}

// Start subscribes to the queue, spawns the pool and dispatches deliveries
// until ctx is canceled or the broker closes the consumer.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)

	if closed := w.startMessageDispatcher(ctx, deliveries); closed {
		return ErrDeliveriesClosed
	}

	w.logger.Info("Worker context canceled, stopping...")
	return nil
}

// Stop signals the pool and waits for in-flight messages to settle
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
