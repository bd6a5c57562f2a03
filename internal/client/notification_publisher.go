package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/armada-ops/be-proc-approvals/internal/natsclient"
)

// NotificationPublisher publishes approval events to NATS JetStream for
// consumption by the notifications service.
//
// Subject convention: notifications.proc.<event_type>
// Event types: document_approval_required, document_approved,
//              document_rejected, procurement_completed
//
// All publish operations are non-fatal — errors are logged but never
// propagated to the caller, so notification failures never interrupt
// approval operations.
type NotificationPublisher struct {
	nats *natsclient.Client
	log  zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventID       string                 `json:"event_id"`
	EventType     string                 `json:"event_type"`
	ProcurementID string                 `json:"procurement_id"`
	ActorID       string                 `json:"actor_id"`
	ResourceType  string                 `json:"resource_type,omitempty"`
	ResourceID    string                 `json:"resource_id,omitempty"`
	Severity      string                 `json:"severity,omitempty"`
	Category      string                 `json:"category,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// client. A nil client disables publishing.
func NewNotificationPublisher(nats *natsclient.Client, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{nats: nats, log: log}
}

// PublishDocumentEvent publishes a document approval event.
// Subject: notifications.proc.<eventType>
func (p *NotificationPublisher) PublishDocumentEvent(ctx context.Context, eventType, documentID, procurementID, actorID string, payload map[string]interface{}) {
	p.publish(ctx, &NotificationEvent{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		ProcurementID: procurementID,
		ActorID:       actorID,
		ResourceType:  "document",
		ResourceID:    documentID,
		Severity:      "info",
		Category:      "proc_approval",
		Payload:       payload,
	})
}

// PublishProcurementCompleted publishes the completion event for a
// procurement whose last approval step was just approved.
func (p *NotificationPublisher) PublishProcurementCompleted(ctx context.Context, procurementID, actorID string) {
	p.publish(ctx, &NotificationEvent{
		EventID:       uuid.NewString(),
		EventType:     "procurement_completed",
		ProcurementID: procurementID,
		ActorID:       actorID,
		ResourceType:  "procurement",
		ResourceID:    procurementID,
		Severity:      "info",
		Category:      "proc_approval",
	})
}

func (p *NotificationPublisher) publish(ctx context.Context, event *NotificationEvent) {
	if p.nats == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", event.EventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.proc.%s", event.EventType)
	if err := p.nats.Publish(ctx, subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("resource_id", event.ResourceID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("resource_id", event.ResourceID).
		Msg("notification: event published")
}
