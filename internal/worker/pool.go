package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/open-job-board/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	log := w.logger.With(slog.String("worker_name", workerName))

	for {
		select {
		case <-w.stopChan:
			log.Debug("Worker goroutine stopping - stopChan closed")
			return

		case <-ctx.Done():
			log.Debug("Worker goroutine stopping - context canceled")
			return

		case msg := <-w.jobsChan:
			err := w.processMessage(ctx, msg)
			w.settle(log, msg, err)
		}
	}
}

// settle ACKs a processed message or NACKs a failed one
func (w *Worker) settle(log *slog.Logger, msg *domain.Message, err error) {
	log = log.With(
		slog.String("type", msg.Type),
		slog.Uint64("delivery_tag", msg.DeliveryTag),
	)

	if err == nil {
		if ackErr := msg.Delivery.Ack(false); ackErr != nil {
			log.Error("Failed to ACK message", slog.Any("error", ackErr))
		}
		return
	}

	requeue := shouldRequeue(msg, err)
	log.Warn("Message processing failed",
		slog.Any("error", err),
		slog.Bool("requeue", requeue),
	)

	if nackErr := msg.Delivery.Nack(false, requeue); nackErr != nil {
		log.Error("Failed to NACK message", slog.Any("error", nackErr))
	}
}

// shouldRequeue gives a transient failure one more delivery. Payload errors
// and repeat failures are dropped: last_used is best effort and a later event
// for the same credential supersedes a lost one.
func shouldRequeue(msg *domain.Message, err error) bool {
	if errors.Is(err, domain.ErrInvalidPayload) || errors.Is(err, domain.ErrUnsupportedType) {
		return false
	}

	var retryableErr *domain.RetryableError
	if errors.As(err, &retryableErr) {
		return !msg.Redelivered
	}

	return false
}
