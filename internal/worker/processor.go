package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/open-job-board/internal/events"
	"github.com/cuongbtq/open-job-board/internal/worker/domain"
)

// processMessage routes a message to its handler by AMQP type
func (w *Worker) processMessage(ctx context.Context, msg *domain.Message) error {
	switch msg.Type {
	case events.TypeAPIKeyUsed:
		return w.applyAPIKeyUsed(ctx, msg)
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedType, msg.Type)
	}
}

func (w *Worker) applyAPIKeyUsed(ctx context.Context, msg *domain.Message) error {
	var evt events.APIKeyUsed
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if err := evt.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	applied, err := w.store.ApplyLastUsed(ctx, evt.CredentialID, evt.UsedAt.UTC())
	if err != nil {
		return domain.NewRetryableError(err)
	}

	w.logger.Debug("Credential usage applied",
		slog.String("credential_id", evt.CredentialID),
		slog.Time("used_at", evt.UsedAt),
		slog.Bool("applied", applied),
	)

	return nil
}
