// Package events defines the messages exchanged between api-service and
// worker-service over RabbitMQ.
package events

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TypeAPIKeyUsed is the AMQP message type of APIKeyUsed.
const TypeAPIKeyUsed = "apikey.used"

// APIKeyUsed records that a credential authenticated a request at UsedAt.
type APIKeyUsed struct {
	CredentialID string    `json:"credential_id"`
	UsedAt       time.Time `json:"used_at"`
}

// Validate rejects events the worker cannot apply.
func (e APIKeyUsed) Validate() error {
	if _, err := uuid.Parse(e.CredentialID); err != nil {
		return errors.New("credential_id is not a UUID")
	}
	if e.UsedAt.IsZero() {
		return errors.New("used_at is required")
	}
	return nil
}
