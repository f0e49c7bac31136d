// Package audit implements the Audit Sink (C12): a bounded, asynchronous
// queue draining to Postgres, matching the teacher's background-service
// idiom (iamcontainer.Container.StartBackgroundServices) and the
// original gateway's "buffer writes, don't block the request" note.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/unigatehq/gateway/pkg/gateway/gwdomain"
	"github.com/unigatehq/gateway/pkg/gateway/gwinfra"
	"github.com/unigatehq/gateway/pkg/kernel"
	"github.com/unigatehq/gateway/pkg/logx"
)

// Entry is one request's audit-worthy outcome, as observed by the
// AuditLog middleware.
type Entry struct {
	RequestID  string
	AppID      kernel.AppID
	UserID     kernel.UserID
	Method     string
	Path       string
	StatusCode int
	DurationMS int64
	ErrorCode  string
}

// Sink buffers audit entries into a bounded channel and drains them to
// Postgres from a single background worker. A full buffer drops the
// oldest pending entry rather than blocking the request path.
type Sink struct {
	repo  gwinfra.AuditRepository
	queue chan Entry
}

func NewSink(repo gwinfra.AuditRepository, queueSize int) *Sink {
	return &Sink{repo: repo, queue: make(chan Entry, queueSize)}
}

// Record enqueues e for persistence. Never blocks: if the queue is full,
// the oldest entry is dropped to make room, and the drop is logged.
func (s *Sink) Record(e Entry) {
	select {
	case s.queue <- e:
	default:
		select {
		case <-s.queue:
			logx.Warn("audit queue full, dropping oldest pending record")
		default:
		}
		select {
		case s.queue <- e:
		default:
		}
	}
}

// Run drains the queue to Postgres until ctx is cancelled. Intended to
// run in its own goroutine from StartBackgroundServices.
func (s *Sink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.queue:
			rec := gwdomain.AuditRecord{
				ID:         uuid.NewString(),
				RequestID:  e.RequestID,
				AppID:      e.AppID,
				UserID:     e.UserID,
				Method:     e.Method,
				Path:       e.Path,
				StatusCode: e.StatusCode,
				DurationMS: e.DurationMS,
				ErrorCode:  e.ErrorCode,
				CreatedAt:  time.Now(),
			}
			writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.repo.Insert(writeCtx, rec); err != nil {
				logx.WithError(err).Warn("failed to persist audit record")
			}
			cancel()
		}
	}
}
