package observability

// AuditEvent is a stable, machine-parseable name for a daemon lifecycle
// event. These describe the forwarder itself, not the OS audit records it
// carries.
type AuditEvent string

const (
	AuditConfigLoaded      AuditEvent = "config_loaded"
	AuditReloadRequested   AuditEvent = "reload_requested"
	AuditReloadCompleted   AuditEvent = "reload_completed"
	AuditSinkSessionOpened AuditEvent = "sink_session_opened"
	AuditSinkSessionClosed AuditEvent = "sink_session_closed"
	AuditSubmitFailed      AuditEvent = "submit_failed"
	AuditDispatcherStarted AuditEvent = "dispatcher_started"
	AuditDispatcherStopped AuditEvent = "dispatcher_stopped"
	AuditProbeStateChanged AuditEvent = "probe_state_changed"
	AuditShutdown          AuditEvent = "shutdown"
)

// Auditor handles recording of audit events
type Auditor struct {
	logger    *Logger
	component string
}

// NewAuditor creates a new auditor using the provided logger
func NewAuditor(logger *Logger) *Auditor {
	return &Auditor{
		logger: logger,
	}
}

// WithComponent returns a shallow copy of the auditor that tags emitted events with `_component`.
func (a *Auditor) WithComponent(component string) *Auditor {
	return &Auditor{
		logger:    a.logger,
		component: component,
	}
}

// Emit records an audit event via the structured logger.
func (a *Auditor) Emit(event AuditEvent, fields map[string]interface{}) {
	merged := make(map[string]interface{})
	for k, v := range fields {
		merged[k] = v
	}

	if a.component != "" {
		merged["_component"] = a.component
	}
	merged["_event_type"] = "audit"
	merged["_audit_event"] = string(event)

	a.logger.Info("AUDIT", merged)
}
