package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shuletrack/academic-api/internal/models"
	"github.com/shuletrack/academic-api/pkg/jobs"
)

type auditLogWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditEntry is the payload recorded for one mutating operation.
type AuditEntry struct {
	UserID     string
	SchoolID   string
	Action     string
	Resource   string
	ResourceID string
	NewValues  interface{}
	IPAddress  string
	UserAgent  string
}

// AuditService persists the audit trail asynchronously through the jobs
// queue, keeping the write path off the request's critical path.
type AuditService struct {
	queue   *jobs.Queue
	writer  auditLogWriter
	logger  *zap.Logger
	enabled bool
}

// NewAuditService constructs the audit trail service and its queue.
func NewAuditService(writer auditLogWriter, cfg jobs.QueueConfig, logger *zap.Logger, enabled bool) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{writer: writer, logger: logger, enabled: enabled}
	s.queue = jobs.NewQueue("audit", s.handle, cfg)
	return s
}

// Start launches the queue workers.
func (s *AuditService) Start(ctx context.Context) {
	if !s.enabled {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains and stops the queue workers.
func (s *AuditService) Stop() {
	if !s.enabled {
		return
	}
	s.queue.Stop()
}

// Record enqueues an audit entry. Failures are logged, never propagated; the
// audit trail must not fail the operation it documents.
func (s *AuditService) Record(entry AuditEntry) {
	if !s.enabled {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: entry.Action, Payload: entry}); err != nil {
		s.logger.Warn("failed to enqueue audit entry", zap.String("action", entry.Action), zap.Error(err))
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(AuditEntry)
	if !ok {
		s.logger.Error("audit job carries unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	var newValues json.RawMessage
	if entry.NewValues != nil {
		payload, err := json.Marshal(entry.NewValues)
		if err != nil {
			s.logger.Warn("failed to marshal audit payload", zap.String("action", entry.Action), zap.Error(err))
		} else {
			newValues = payload
		}
	}
	log := &models.AuditLog{
		SchoolID:  entry.SchoolID,
		Action:    entry.Action,
		Resource:  entry.Resource,
		NewValues: newValues,
		IPAddress: entry.IPAddress,
		UserAgent: entry.UserAgent,
	}
	if entry.UserID != "" {
		log.UserID = &entry.UserID
	}
	if entry.ResourceID != "" {
		log.ResourceID = &entry.ResourceID
	}
	return s.writer.CreateAuditLog(ctx, log)
}
