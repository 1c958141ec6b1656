package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sia-krs-api/internal/models"
	"github.com/noah-isme/sia-krs-api/pkg/jobs"
)

const auditResourceKRS = "krs_records"

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// EventPublisher hands enrollment events to the background queue. Publishing never blocks and
// never reports failure to the caller.
type EventPublisher struct {
	queue   jobEnqueuer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewEventPublisher constructs a publisher. A nil queue drops every event.
func NewEventPublisher(queue jobEnqueuer, metrics *MetricsService, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{queue: queue, metrics: metrics, logger: logger}
}

// Publish enqueues event, stamping ID and OccurredAt when missing.
func (p *EventPublisher) Publish(event models.EnrollmentEvent) {
	if p == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if p.queue == nil {
		p.metrics.RecordDroppedEvent()
		return
	}
	if err := p.queue.TryEnqueue(jobs.Job{ID: event.ID, Type: string(event.Type), Payload: event}); err != nil {
		p.metrics.RecordDroppedEvent()
		p.logger.Warn("enrollment event dropped",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.String("term_id", event.TermID),
			zap.Error(err))
	}
}

func eventFromJob(job jobs.Job) (models.EnrollmentEvent, error) {
	event, ok := job.Payload.(models.EnrollmentEvent)
	if !ok {
		return models.EnrollmentEvent{}, fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
	}
	return event, nil
}

// RegisterEventSubscribers wires the audit, metrics and log consumers onto mux.
func RegisterEventSubscribers(mux *jobs.Mux, audit auditLogger, metrics *MetricsService, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux.Handle("*", func(ctx context.Context, job jobs.Job) error {
		event, err := eventFromJob(job)
		if err != nil {
			return err
		}
		metrics.RecordEnrollmentEvent(event)
		logger.Info("enrollment event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.String("term_id", event.TermID),
			zap.Int("students", len(event.StudentIDs)),
			zap.Int("records", len(event.RecordIDs)),
			zap.String("actor_id", event.ActorID))
		return nil
	})
	if audit == nil {
		return
	}
	mux.Handle("*", func(ctx context.Context, job jobs.Job) error {
		event, err := eventFromJob(job)
		if err != nil {
			return err
		}
		return audit.CreateAuditLog(ctx, auditEntryFor(event))
	})
}

func auditEntryFor(event models.EnrollmentEvent) *models.AuditLog {
	entry := &models.AuditLog{
		Action:    string(event.Type),
		Resource:  auditResourceKRS,
		CreatedAt: event.OccurredAt,
	}
	if event.ActorID != "" {
		actor := event.ActorID
		entry.UserID = &actor
	}
	if len(event.StudentIDs) == 1 {
		student := event.StudentIDs[0]
		entry.ResourceID = &student
	}
	entry.OldValues, _ = json.Marshal(map[string]interface{}{"status": event.From})
	entry.NewValues, _ = json.Marshal(map[string]interface{}{
		"status":      event.To,
		"term_id":     event.TermID,
		"student_ids": event.StudentIDs,
		"record_ids":  event.RecordIDs,
		"event_id":    event.ID,
	})
	return entry
}
