package audit

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const writeTimeout = 5 * time.Second

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Sink persists one encoded entry under name. Sinks must never overwrite an existing entry.
type Sink interface {
	Name() string
	Put(ctx context.Context, name string, body []byte) error
}

// ObjectName is the base name an entry is stored under: audit-<id>.json.
func ObjectName(auditReportID string) string {
	return "audit-" + unsafeName.ReplaceAllString(auditReportID, "_") + ".json"
}

type Logger struct {
	sinks       []Sink
	initiator   string
	destination string
	now         func() time.Time
}

func NewLogger(initiator, destination string, sinks ...Sink) *Logger {
	return &Logger{
		sinks:       sinks,
		initiator:   initiator,
		destination: destination,
		now:         time.Now,
	}
}

// Record builds the entry for action and writes it to every sink. It never fails; sink errors are logged.
func (l *Logger) Record(ctx context.Context, transactionID, action string, d Details) Entry {
	id := transactionID
	if id == "" {
		id = "unknown-" + uuid.NewString()
	}

	e := NewEntry(id, action, l.now(), d)
	e.ServiceInitiator = l.initiator
	e.DestinationService = l.destination

	l.Write(ctx, e)
	return e
}

func (l *Logger) Write(ctx context.Context, e Entry) {
	body, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		zap.L().Error("failed to encode audit entry", zap.String("audit_report_id", e.AuditReportID), zap.Error(err))
		return
	}

	// the entry must land even if the caller's request was cancelled
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	name := ObjectName(e.AuditReportID)

	var g errgroup.Group
	for _, s := range l.sinks {
		g.Go(func() error {
			if err := s.Put(ctx, name, body); err != nil {
				zap.L().Error("failed to write audit entry",
					zap.String("sink", s.Name()),
					zap.String("audit_report_id", e.AuditReportID),
					zap.String("action", e.Action),
					zap.Error(err),
				)
				return err
			}
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("audit entry recorded",
		zap.String("audit_report_id", e.AuditReportID),
		zap.String("action", e.Action),
		zap.String("status", string(e.Status)),
	)
}
