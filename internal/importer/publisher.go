package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/offerfeed/internal/model"
)

const (
	// DefaultOfferSubject is the NATS subject offers are published on.
	DefaultOfferSubject = "offers"

	natsClientName         = "offerfeed-importer"
	natsMaxReconnects      = 10
	natsReconnectWait      = 2 * time.Second
	logEventNATSDisconnect = "nats_disconnected"
	logEventNATSReconnect  = "nats_reconnected"
)

var (
	ErrMissingNATSURL   = errors.New("importer: missing nats url")
	ErrPublishOffer     = errors.New("importer: publish offer")
	ErrPublisherMissing = errors.New("importer: publisher missing")
)

// Publisher delivers mapped offers downstream.
type Publisher interface {
	Publish(ctx context.Context, offer model.Offer) error
}

// MessageConnection is the subset of *nats.Conn the publisher needs.
type MessageConnection interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes JSON-encoded offers to a NATS subject.
type NATSPublisher struct {
	connection MessageConnection
	subject    string
}

// NewNATSPublisher creates a publisher; an empty subject falls back to DefaultOfferSubject.
func NewNATSPublisher(connection MessageConnection, subject string) *NATSPublisher {
	trimmedSubject := strings.TrimSpace(subject)
	if trimmedSubject == "" {
		trimmedSubject = DefaultOfferSubject
	}
	return &NATSPublisher{connection: connection, subject: trimmedSubject}
}

// Publish encodes offer and sends it on the configured subject.
func (publisher *NATSPublisher) Publish(ctx context.Context, offer model.Offer) error {
	if publisher == nil || publisher.connection == nil {
		return ErrPublisherMissing
	}
	if contextErr := ctx.Err(); contextErr != nil {
		return fmt.Errorf("%w: %v", ErrPublishOffer, contextErr)
	}
	payload, encodeErr := json.Marshal(offer)
	if encodeErr != nil {
		return fmt.Errorf("%w: %v", ErrPublishOffer, encodeErr)
	}
	if publishErr := publisher.connection.Publish(publisher.subject, payload); publishErr != nil {
		return fmt.Errorf("%w: %v", ErrPublishOffer, publishErr)
	}
	return nil
}

// ConnectNATS dials the NATS server at natsURL with reconnect logging.
func ConnectNATS(natsURL string, logger *zap.Logger) (*nats.Conn, error) {
	trimmedURL := strings.TrimSpace(natsURL)
	if trimmedURL == "" {
		return nil, ErrMissingNATSURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return nats.Connect(trimmedURL,
		nats.Name(natsClientName),
		nats.MaxReconnects(natsMaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, disconnectErr error) {
			logger.Warn(logEventNATSDisconnect, zap.Error(disconnectErr))
		}),
		nats.ReconnectHandler(func(connection *nats.Conn) {
			logger.Info(logEventNATSReconnect, zap.String("url", connection.ConnectedUrl()))
		}),
	)
}
