// Package audit records who touched which clinical resource. Events are
// indexed into monthly Elasticsearch indices and mirrored to the process log.
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventAccess  EventType = "ACCESS"
	EventModify  EventType = "MODIFY"
	EventDelete  EventType = "DELETE"
	EventLogin   EventType = "LOGIN"
	EventPayment EventType = "PAYMENT"
)

// Event is one audit entry. Resource names the entity type (user, patient,
// dental_record, treatment_plan, appointment, invoice).
type Event struct {
	Timestamp  time.Time       `json:"timestamp"`
	EventType  EventType       `json:"event_type"`
	UserID     string          `json:"user_id"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	ResourceID string          `json:"resource_id"`
	Status     string          `json:"status"`
	Details    json.RawMessage `json:"details,omitempty"`
}

type Service interface {
	LogEvent(ctx context.Context, event *Event)
}

type service struct {
	es     *elasticsearch.Client
	logger *logrus.Logger
}

// NewService returns an audit service writing to Elasticsearch. Audit writes
// are best-effort: an indexing failure is logged but never fails the clinical
// operation that produced the event.
func NewService(esClient *elasticsearch.Client) Service {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	return &service{
		es:     esClient,
		logger: logger,
	}
}

func (s *service) LogEvent(ctx context.Context, event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).Error("Failed to marshal audit event")
		return
	}

	index := "clinic_audit_" + event.Timestamp.Format("2006.01")
	if _, err := s.es.Index(
		index,
		strings.NewReader(string(payload)),
		s.es.Index.WithContext(ctx),
	); err != nil {
		s.logger.WithError(err).Error("Failed to index audit event")
	}

	s.logger.WithFields(logrus.Fields{
		"event_type":  event.EventType,
		"user_id":     event.UserID,
		"action":      event.Action,
		"resource":    event.Resource,
		"resource_id": event.ResourceID,
		"status":      event.Status,
	}).Info("Audit event logged")
}

type nop struct{}

func (nop) LogEvent(context.Context, *Event) {}

// NewNop returns an audit service that discards events. Used by tests and the
// seeder.
func NewNop() Service { return nop{} }
