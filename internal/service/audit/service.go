package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medisync/clinic-api/internal/model"
	"github.com/medisync/clinic-api/internal/repository"
	"github.com/medisync/clinic-api/pkg/messaging"
	"github.com/medisync/clinic-api/pkg/metrics"
)

// Recorder persists security events and fans them out over the broker.
// Recording is fire and forget: a failed write is logged and counted,
// never surfaced to the caller.
type Recorder struct {
	repo    repository.AuditRepository
	broker  messaging.Broker
	channel string
	logger  *zerolog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

type Entry struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Action         string
	EntityType     string
	EntityID       uuid.UUID
	Metadata       map[string]interface{}
	IPAddress      string
	UserAgent      string
}

func NewRecorder(repo repository.AuditRepository, broker messaging.Broker, channel string, logger *zerolog.Logger, m *metrics.Metrics) *Recorder {
	return &Recorder{
		repo:    repo,
		broker:  broker,
		channel: channel,
		logger:  logger,
		metrics: m,
		timeout: 5 * time.Second,
	}
}

// Record writes the entry asynchronously. The caller's context is not
// reused because the request finishes before the write does.
func (r *Recorder) Record(entry Entry) {
	log := r.build(entry)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.repo.Create(ctx, log); err != nil {
			r.metrics.AuditEventsDropped.Inc()
			r.logger.Error().Err(err).
				Str("action", log.Action).
				Str("user_id", log.UserID.String()).
				Msg("failed to persist audit log")
			return
		}
		r.metrics.AuditEventsRecorded.Inc()

		if r.broker == nil {
			return
		}
		if err := r.broker.Publish(ctx, r.channel, log); err != nil {
			r.logger.Warn().Err(err).
				Str("channel", r.channel).
				Msg("failed to publish audit event")
		}
	}()
}

// RecordSync writes the entry before returning. Used by the worker and
// by tests that need the row to exist.
func (r *Recorder) RecordSync(ctx context.Context, entry Entry) error {
	log := r.build(entry)
	if err := r.repo.Create(ctx, log); err != nil {
		r.metrics.AuditEventsDropped.Inc()
		return err
	}
	r.metrics.AuditEventsRecorded.Inc()
	return nil
}

func (r *Recorder) List(ctx context.Context, filters map[string]interface{}) ([]*model.AuditLog, int64, error) {
	return r.repo.ListWithPagination(ctx, filters)
}

func (r *Recorder) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	return r.repo.Cleanup(ctx, before)
}

func (r *Recorder) build(entry Entry) *model.AuditLog {
	var metadata json.RawMessage
	if entry.Metadata != nil {
		if raw, err := json.Marshal(entry.Metadata); err == nil {
			metadata = raw
		}
	}

	return &model.AuditLog{
		ID:             uuid.New(),
		UserID:         entry.UserID,
		OrganizationID: entry.OrganizationID,
		Action:         entry.Action,
		EntityType:     entry.EntityType,
		EntityID:       entry.EntityID,
		Metadata:       metadata,
		IPAddress:      entry.IPAddress,
		UserAgent:      entry.UserAgent,
		CreatedAt:      time.Now(),
	}
}
