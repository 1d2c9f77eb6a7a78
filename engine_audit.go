package siteAuth

import (
	"context"

	"github.com/MrEthical07/siteAuth/internal/audit"
)

// auditEntry describes one event; Emit fills the timestamp and client IP.
type auditEntry struct {
	kind        audit.Kind
	success     bool
	actorID     string
	actorRole   string
	description string
	err         error
	metadata    func() map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, entry auditEntry) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if entry.metadata != nil {
		metadata = entry.metadata()
	}
	if entry.err != nil {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["error"] = string(ErrorCodeOf(entry.err))
	}

	e.audit.Emit(ctx, audit.Event{
		Timestamp:   e.now().UTC(),
		Kind:        entry.kind,
		ActorID:     entry.actorID,
		ActorRole:   entry.actorRole,
		Description: entry.description,
		IP:          clientIPFromContext(ctx),
		Success:     entry.success,
		Metadata:    metadata,
	})
}

// AuditDropped reports events dropped because the audit buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditFailed reports events the sink rejected.
func (e *Engine) AuditFailed() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Failed()
}
